package mock

import (
	"context"
	"errors"

	"github.com/opst/stevedore/pkg/domain"
	dbmock "github.com/opst/stevedore/internal/db/mock"
	"github.com/opst/stevedore/pkg/tasks/deploy"
)

type DeployArgs struct {
	OperationId string
	Actor       string
	Release     domain.Release
	Options     domain.DeployOptions
}

type Deployer struct {
	Impl struct {
		Deploy func(ctx context.Context, operationId string, actor string, rel domain.Release, opts domain.DeployOptions) (deploy.Result, error)
	}
	Calls struct {
		Deploy dbmock.CallLog[DeployArgs]
	}
}

var _ deploy.Interface = &Deployer{}

func New() *Deployer {
	return &Deployer{}
}

func (m *Deployer) Deploy(
	ctx context.Context, operationId string, actor string,
	rel domain.Release, opts domain.DeployOptions,
) (deploy.Result, error) {
	m.Calls.Deploy = append(m.Calls.Deploy, DeployArgs{
		OperationId: operationId, Actor: actor, Release: rel, Options: opts,
	})
	if m.Impl.Deploy != nil {
		return m.Impl.Deploy(ctx, operationId, actor, rel, opts)
	}

	panic(errors.New("it should not be called"))
}

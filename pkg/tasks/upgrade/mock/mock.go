package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/stevedore/pkg/domain"
	dbmock "github.com/opst/stevedore/internal/db/mock"
	"github.com/opst/stevedore/pkg/tasks/upgrade"
)

type UpgradeArgs struct {
	OperationId string
	Actor       string
	Release     domain.Release
	IdPrefixes  []string
	Envname     string
	Timeout     time.Duration
}

type Upgrader struct {
	Impl struct {
		Upgrade func(ctx context.Context, operationId string, actor string, rel domain.Release, idPrefixes []string, envname string, timeout time.Duration) (upgrade.Result, error)
	}
	Calls struct {
		Upgrade dbmock.CallLog[UpgradeArgs]
	}
}

var _ upgrade.Interface = &Upgrader{}

func New() *Upgrader {
	return &Upgrader{}
}

func (m *Upgrader) Upgrade(
	ctx context.Context, operationId string, actor string, rel domain.Release,
	idPrefixes []string, envname string, timeout time.Duration,
) (upgrade.Result, error) {
	m.Calls.Upgrade = append(m.Calls.Upgrade, UpgradeArgs{
		OperationId: operationId, Actor: actor, Release: rel,
		IdPrefixes: idPrefixes, Envname: envname, Timeout: timeout,
	})
	if m.Impl.Upgrade != nil {
		return m.Impl.Upgrade(ctx, operationId, actor, rel, idPrefixes, envname, timeout)
	}

	panic(errors.New("it should not be called"))
}

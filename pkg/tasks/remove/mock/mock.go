package mock

import (
	"context"
	"errors"

	dbmock "github.com/opst/stevedore/internal/db/mock"
	"github.com/opst/stevedore/pkg/tasks/remove"
)

type RemoveArgs struct {
	OperationId string
	Actor       string
	Zone        string
	IdPrefixes  []string
}

type Remover struct {
	Impl struct {
		Remove func(ctx context.Context, operationId string, actor string, zone string, idPrefixes []string) (remove.Result, error)
	}
	Calls struct {
		Remove dbmock.CallLog[RemoveArgs]
	}
}

var _ remove.Interface = &Remover{}

func New() *Remover {
	return &Remover{}
}

func (m *Remover) Remove(
	ctx context.Context, operationId string, actor string, zone string, idPrefixes []string,
) (remove.Result, error) {
	m.Calls.Remove = append(m.Calls.Remove, RemoveArgs{
		OperationId: operationId, Actor: actor, Zone: zone, IdPrefixes: idPrefixes,
	})
	if m.Impl.Remove != nil {
		return m.Impl.Remove(ctx, operationId, actor, zone, idPrefixes)
	}

	panic(errors.New("it should not be called"))
}

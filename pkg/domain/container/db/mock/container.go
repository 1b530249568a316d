package mock

import (
	"context"
	"errors"

	"github.com/opst/stevedore/pkg/domain"
	kdb "github.com/opst/stevedore/pkg/domain/container/db"
	dbmock "github.com/opst/stevedore/internal/db/mock"
)

type SetOverrideStatusArgs struct {
	ContainerId string
	Revision    int
	Status      domain.OverrideStatus
}

type SetHealthArgs struct {
	ContainerId string
	Health      domain.HealthInfo
}

type ContainerInterface struct {
	Impl struct {
		Register          func(ctx context.Context, c domain.Container) (domain.Container, error)
		Get               func(ctx context.Context, idPrefix string) (domain.Container, error)
		Find              func(ctx context.Context, query domain.ContainerFindQuery) ([]domain.Container, error)
		SetOverrideStatus func(ctx context.Context, containerId string, revision int, status domain.OverrideStatus) error
		MarkInitialized   func(ctx context.Context, containerId string) error
		SetHealth         func(ctx context.Context, containerId string, health domain.HealthInfo) error
		GetHealth         func(ctx context.Context, containerId string) (domain.HealthInfo, error)
		Delete            func(ctx context.Context, containerId string) error
	}

	Calls struct {
		Register          dbmock.CallLog[domain.Container]
		Get               dbmock.CallLog[string]
		Find              dbmock.CallLog[domain.ContainerFindQuery]
		SetOverrideStatus dbmock.CallLog[SetOverrideStatusArgs]
		MarkInitialized   dbmock.CallLog[string]
		SetHealth         dbmock.CallLog[SetHealthArgs]
		GetHealth         dbmock.CallLog[string]
		Delete            dbmock.CallLog[string]
	}
}

func NewContainerInterface() *ContainerInterface {
	return &ContainerInterface{}
}

var _ kdb.ContainerInterface = &ContainerInterface{}

func (m *ContainerInterface) Register(ctx context.Context, c domain.Container) (domain.Container, error) {
	m.Calls.Register = append(m.Calls.Register, c)
	if m.Impl.Register != nil {
		return m.Impl.Register(ctx, c)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContainerInterface) Get(ctx context.Context, idPrefix string) (domain.Container, error) {
	m.Calls.Get = append(m.Calls.Get, idPrefix)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, idPrefix)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContainerInterface) Find(ctx context.Context, query domain.ContainerFindQuery) ([]domain.Container, error) {
	m.Calls.Find = append(m.Calls.Find, query)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContainerInterface) SetOverrideStatus(
	ctx context.Context, containerId string, revision int, status domain.OverrideStatus,
) error {
	m.Calls.SetOverrideStatus = append(m.Calls.SetOverrideStatus, SetOverrideStatusArgs{
		ContainerId: containerId, Revision: revision, Status: status,
	})
	if m.Impl.SetOverrideStatus != nil {
		return m.Impl.SetOverrideStatus(ctx, containerId, revision, status)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContainerInterface) MarkInitialized(ctx context.Context, containerId string) error {
	m.Calls.MarkInitialized = append(m.Calls.MarkInitialized, containerId)
	if m.Impl.MarkInitialized != nil {
		return m.Impl.MarkInitialized(ctx, containerId)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContainerInterface) SetHealth(ctx context.Context, containerId string, health domain.HealthInfo) error {
	m.Calls.SetHealth = append(m.Calls.SetHealth, SetHealthArgs{
		ContainerId: containerId, Health: health,
	})
	if m.Impl.SetHealth != nil {
		return m.Impl.SetHealth(ctx, containerId, health)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContainerInterface) GetHealth(ctx context.Context, containerId string) (domain.HealthInfo, error) {
	m.Calls.GetHealth = append(m.Calls.GetHealth, containerId)
	if m.Impl.GetHealth != nil {
		return m.Impl.GetHealth(ctx, containerId)
	}

	panic(errors.New("it should not be called"))
}

func (m *ContainerInterface) Delete(ctx context.Context, containerId string) error {
	m.Calls.Delete = append(m.Calls.Delete, containerId)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, containerId)
	}

	panic(errors.New("it should not be called"))
}

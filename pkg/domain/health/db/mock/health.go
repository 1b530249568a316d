package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opst/stevedore/pkg/domain"
	kdb "github.com/opst/stevedore/pkg/domain/health/db"
	dbmock "github.com/opst/stevedore/internal/db/mock"
)

type AppendArgs struct {
	Sample    domain.HealthSample
	Retention time.Duration
}

type WindowArgs struct {
	ContainerId string
	Since       time.Time
}

type HealthSampleInterface struct {
	Impl struct {
		Append func(ctx context.Context, sample domain.HealthSample, retention time.Duration) error
		Window func(ctx context.Context, containerId string, since time.Time) ([]domain.HealthSample, error)
	}

	Calls struct {
		Append dbmock.CallLog[AppendArgs]
		Window dbmock.CallLog[WindowArgs]
	}
}

func NewHealthSampleInterface() *HealthSampleInterface {
	return &HealthSampleInterface{}
}

var _ kdb.HealthSampleInterface = &HealthSampleInterface{}

func (m *HealthSampleInterface) Append(ctx context.Context, sample domain.HealthSample, retention time.Duration) error {
	m.Calls.Append = append(m.Calls.Append, AppendArgs{Sample: sample, Retention: retention})
	if m.Impl.Append != nil {
		return m.Impl.Append(ctx, sample, retention)
	}
	return nil
}

func (m *HealthSampleInterface) Window(ctx context.Context, containerId string, since time.Time) ([]domain.HealthSample, error) {
	m.Calls.Window = append(m.Calls.Window, WindowArgs{ContainerId: containerId, Since: since})
	if m.Impl.Window != nil {
		return m.Impl.Window(ctx, containerId, since)
	}

	panic(errors.New("it should not be called"))
}

package db

import (
	"context"
	"time"

	"github.com/opst/stevedore/pkg/domain"
)

// HealthSampleInterface keeps the rolling health-metric window of each
// container, fed by the reconcile loop and read by tackle situation
// expressions.
type HealthSampleInterface interface {
	// Append records one sample and prunes samples older than retention.
	Append(ctx context.Context, sample domain.HealthSample, retention time.Duration) error

	// Window returns samples of the container since the given time,
	// oldest first.
	Window(ctx context.Context, containerId string, since time.Time) ([]domain.HealthSample, error)
}

package db

import (
	"context"

	"github.com/opst/stevedore/pkg/domain"
)

// ContainerInterface is the authoritative record of container identity,
// placement, health and lifecycle status.
type ContainerInterface interface {
	// Register creates a record for a container the core has just placed.
	//
	// Returns
	//
	// - domain.Container: the record as stored (revision = 1).
	//
	// - error: dberrors.Duplicate when the container id is taken.
	//
	// Registration failure is fatal for the caller; unlike status-flag
	// updates, it is never swallowed.
	Register(ctx context.Context, c domain.Container) (domain.Container, error)

	// Get finds a container by id or id prefix.
	//
	// A prefix shorter than 7 characters is rejected (too ambiguous).
	//
	// Returns
	//
	// - error: dberrors.Missing when no container matches.
	Get(ctx context.Context, idPrefix string) (domain.Container, error)

	// Find lists containers matching query. Zero-value fields do not filter.
	Find(ctx context.Context, query domain.ContainerFindQuery) ([]domain.Container, error)

	// SetOverrideStatus updates the override status of the container,
	// guarded by optimistic concurrency.
	//
	// Args
	//
	// - revision: the revision the caller read. When the stored revision
	// differs, the update is lost and dberrors.Conflict is returned.
	//
	// Callers flipping status flags treat Conflict as non-fatal:
	// log it and move on.
	SetOverrideStatus(ctx context.Context, containerId string, revision int, status domain.OverrideStatus) error

	// MarkInitialized sets the initialized flag. Idempotent.
	MarkInitialized(ctx context.Context, containerId string) error

	// SetHealth replaces the health blob reported by the watch agent.
	SetHealth(ctx context.Context, containerId string, health domain.HealthInfo) error

	// GetHealth reads the health blob, always from the store.
	//
	// Health is written by the reconcile loop independently of any
	// workflow, so pollers must call this every time instead of
	// trusting a Container value they hold.
	GetHealth(ctx context.Context, containerId string) (domain.HealthInfo, error)

	// Delete removes the record. Missing records are not an error
	// (removal reconciles against "already gone" results).
	Delete(ctx context.Context, containerId string) error
}

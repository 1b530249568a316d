package postgres

import (
	"context"
	"time"

	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/domain"
	kdb "github.com/opst/stevedore/pkg/domain/health/db"
)

type healthPG struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *healthPG {
	return &healthPG{pool: pool}
}

var _ kdb.HealthSampleInterface = &healthPG{}

func (m *healthPG) Append(ctx context.Context, sample domain.HealthSample, retention time.Duration) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(
		ctx,
		`
		insert into "health_sample" ("container_id", "at", "alive", "healthy")
		values ($1, $2, $3, $4)
		`,
		sample.ContainerId, sample.At, sample.Alive, sample.Healthy,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		ctx,
		`delete from "health_sample" where "container_id" = $1 and "at" < now() - $2`,
		sample.ContainerId, retention,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (m *healthPG) Window(ctx context.Context, containerId string, since time.Time) ([]domain.HealthSample, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "container_id", "at", "alive", "healthy" from "health_sample"
		where "container_id" = $1 and $2 <= "at"
		order by "at"
		`,
		containerId, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	window := []domain.HealthSample{}
	for rows.Next() {
		s := domain.HealthSample{}
		if err := rows.Scan(&s.ContainerId, &s.At, &s.Alive, &s.Healthy); err != nil {
			return nil, err
		}
		window = append(window, s)
	}
	return window, rows.Err()
}

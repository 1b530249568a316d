package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/domain"
	kdb "github.com/opst/stevedore/pkg/domain/container/db"
	kpgerr "github.com/opst/stevedore/pkg/domain/errors/dberrors"
)

// minimum length of a container id prefix for lookups.
// Anything shorter is too ambiguous against remote-assigned 64-char ids.
const minIdPrefix = 7

type containerPG struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *containerPG {
	return &containerPG{pool: pool}
}

var _ kdb.ContainerInterface = &containerPG{}

func (m *containerPG) Register(ctx context.Context, c domain.Container) (domain.Container, error) {
	health, err := json.Marshal(c.Health)
	if err != nil {
		return domain.Container{}, err
	}

	cpu := pgtype.Numeric{}
	if err := cpu.Set(c.CpuQuota); err != nil {
		return domain.Container{}, err
	}

	if _, err := m.pool.Exec(
		ctx,
		`
		insert into "container" (
			"container_id", "app_name", "commit", "combo_name",
			"entrypoint_name", "envname", "cpu_quota", "memory",
			"zone", "podname", "nodename", "override_status",
			"initialized", "health", "revision"
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, $13, 1)
		`,
		c.ContainerId, c.Appname, c.Commit, c.ComboName,
		c.EntrypointName, c.Envname, cpu, c.Memory,
		c.Zone, c.Podname, c.Nodename, int(c.OverrideStatus), health,
	); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
			return domain.Container{}, kpgerr.Duplicate{
				Table: "container", Identity: c.ContainerId,
			}
		}
		return domain.Container{}, err
	}

	c.Initialized = false
	c.Revision = 1
	return c, nil
}

func (m *containerPG) Get(ctx context.Context, idPrefix string) (domain.Container, error) {
	if len(idPrefix) < minIdPrefix {
		return domain.Container{}, fmt.Errorf(
			"%w: container id prefix should be %d+ characters: %s",
			kpgerr.ErrInvalid, minIdPrefix, idPrefix,
		)
	}

	c, err := scanContainer(m.pool.QueryRow(
		ctx,
		selectContainer+`where "container_id" like $1 || '%' order by "container_id" limit 1`,
		idPrefix,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Container{}, kpgerr.Missing{
				Table: "container", Identity: idPrefix,
			}
		}
		return domain.Container{}, err
	}
	return c, nil
}

func (m *containerPG) Find(ctx context.Context, query domain.ContainerFindQuery) ([]domain.Container, error) {
	sql := selectContainer + `where true`
	args := []interface{}{}
	if query.Appname != "" {
		args = append(args, query.Appname)
		sql += fmt.Sprintf(` and "app_name" = $%d`, len(args))
	}
	if query.Commit != "" {
		args = append(args, query.Commit)
		sql += fmt.Sprintf(` and "commit" like $%d || '%%'`, len(args))
	}
	if query.EntrypointName != "" {
		args = append(args, query.EntrypointName)
		sql += fmt.Sprintf(` and "entrypoint_name" = $%d`, len(args))
	}
	if query.Zone != "" {
		args = append(args, query.Zone)
		sql += fmt.Sprintf(` and "zone" = $%d`, len(args))
	}
	sql += ` order by "container_id"`

	rows, err := m.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := []domain.Container{}
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, c)
	}
	return found, rows.Err()
}

func (m *containerPG) SetOverrideStatus(
	ctx context.Context, containerId string, revision int, status domain.OverrideStatus,
) error {
	tag, err := m.pool.Exec(
		ctx,
		`
		update "container"
		set "override_status" = $1, "revision" = "revision" + 1
		where "container_id" = $2 and "revision" = $3
		`,
		int(status), containerId, revision,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 0 {
		return nil
	}

	// no row hit: distinguish a stale revision from a missing container.
	var found bool
	if err := m.pool.QueryRow(
		ctx, `select exists(select 1 from "container" where "container_id" = $1)`, containerId,
	).Scan(&found); err != nil {
		return err
	}
	if found {
		return kpgerr.Conflict{Table: "container", Identity: containerId}
	}
	return kpgerr.Missing{Table: "container", Identity: containerId}
}

func (m *containerPG) MarkInitialized(ctx context.Context, containerId string) error {
	_, err := m.pool.Exec(
		ctx,
		`update "container" set "initialized" = true where "container_id" = $1`,
		containerId,
	)
	return err
}

func (m *containerPG) SetHealth(ctx context.Context, containerId string, health domain.HealthInfo) error {
	payload, err := json.Marshal(health)
	if err != nil {
		return err
	}
	tag, err := m.pool.Exec(
		ctx,
		`update "container" set "health" = $1 where "container_id" = $2`,
		payload, containerId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "container", Identity: containerId}
	}
	return nil
}

func (m *containerPG) GetHealth(ctx context.Context, containerId string) (domain.HealthInfo, error) {
	var payload []byte
	if err := m.pool.QueryRow(
		ctx, `select "health" from "container" where "container_id" = $1`, containerId,
	).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.HealthInfo{}, kpgerr.Missing{
				Table: "container", Identity: containerId,
			}
		}
		return domain.HealthInfo{}, err
	}

	health := domain.HealthInfo{}
	if err := json.Unmarshal(payload, &health); err != nil {
		return domain.HealthInfo{}, err
	}
	return health, nil
}

func (m *containerPG) Delete(ctx context.Context, containerId string) error {
	_, err := m.pool.Exec(
		ctx, `delete from "container" where "container_id" = $1`, containerId,
	)
	return err
}

const selectContainer = `
select
	"container_id", "app_name", "commit", "combo_name",
	"entrypoint_name", "envname", "cpu_quota", "memory",
	"zone", "podname", "nodename", "override_status",
	"initialized", "health", "revision"
from "container"
`

func scanContainer(row pgx.Row) (domain.Container, error) {
	c := domain.Container{}
	cpu := pgtype.Numeric{}
	var status int
	var health []byte

	if err := row.Scan(
		&c.ContainerId, &c.Appname, &c.Commit, &c.ComboName,
		&c.EntrypointName, &c.Envname, &cpu, &c.Memory,
		&c.Zone, &c.Podname, &c.Nodename, &status,
		&c.Initialized, &health, &c.Revision,
	); err != nil {
		return domain.Container{}, err
	}

	if err := cpu.AssignTo(&c.CpuQuota); err != nil {
		return domain.Container{}, err
	}
	c.OverrideStatus = domain.OverrideStatus(status)
	if err := json.Unmarshal(health, &c.Health); err != nil {
		return domain.Container{}, err
	}
	return c, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/domain"
	kpgerr "github.com/opst/stevedore/pkg/domain/errors/dberrors"
	kdb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/domain/spec"
)

type releasePG struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *releasePG {
	return &releasePG{pool: pool}
}

var _ kdb.ReleaseInterface = &releasePG{}

func (m *releasePG) GetApp(ctx context.Context, appname string) (domain.App, error) {
	app := domain.App{}
	if err := m.pool.QueryRow(
		ctx, `select "name", "repo", "owner_id" from "app" where "name" = $1`, appname,
	).Scan(&app.Name, &app.Repo, &app.OwnerId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.App{}, kpgerr.Missing{Table: "app", Identity: appname}
		}
		return domain.App{}, err
	}
	return app, nil
}

func (m *releasePG) GetByAppAndCommit(ctx context.Context, appname string, commit string) (domain.Release, error) {
	r, err := scanRelease(m.pool.QueryRow(
		ctx,
		selectRelease+`
		where "app_name" = $1 and "commit" like $2 || '%'
		order by "release_id" desc limit 1
		`,
		appname, commit,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Release{}, kpgerr.Missing{
				Table:    "release",
				Identity: fmt.Sprintf("%s@%s", appname, commit),
			}
		}
		return domain.Release{}, err
	}
	return r, nil
}

func (m *releasePG) Register(ctx context.Context, appname string, commit string, manifest string) (domain.Release, error) {
	parsed, err := spec.Unmarshal([]byte(manifest))
	if err != nil {
		return domain.Release{}, err
	}

	var releaseId int
	var createdAt time.Time
	if err := m.pool.QueryRow(
		ctx,
		`
		insert into "release" ("app_name", "commit", "manifest")
		values ($1, $2, $3)
		returning "release_id", "created_at"
		`,
		appname, commit, manifest,
	).Scan(&releaseId, &createdAt); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UniqueViolation {
			return domain.Release{}, kpgerr.Duplicate{
				Table:    "release",
				Identity: fmt.Sprintf("%s@%s", appname, commit),
			}
		}
		return domain.Release{}, err
	}

	return domain.Release{
		ReleaseId:    releaseId,
		Appname:      appname,
		Commit:       commit,
		Manifest:     parsed,
		ManifestText: manifest,
		CreatedAt:    createdAt,
	}, nil
}

func (m *releasePG) SetImage(ctx context.Context, releaseId int, image string) error {
	if _, err := name.ParseReference(image); err != nil {
		return fmt.Errorf("unparsable image reference %s: %w", image, err)
	}

	tag, err := m.pool.Exec(
		ctx, `update "release" set "image" = $1 where "release_id" = $2`, image, releaseId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return kpgerr.Missing{Table: "release", Identity: fmt.Sprintf("#%d", releaseId)}
	}
	return nil
}

func (m *releasePG) AppsWithTackleRules(ctx context.Context) ([]domain.Release, error) {
	latest, err := m.latestReleases(ctx)
	if err != nil {
		return nil, err
	}
	found := []domain.Release{}
	for _, r := range latest {
		if r.Manifest.HasTackleRules() {
			found = append(found, r)
		}
	}
	return found, nil
}

func (m *releasePG) AppsWithCrontab(ctx context.Context) ([]domain.Release, error) {
	latest, err := m.latestReleases(ctx)
	if err != nil {
		return nil, err
	}
	found := []domain.Release{}
	for _, r := range latest {
		if len(r.Manifest.Crontab) != 0 {
			found = append(found, r)
		}
	}
	return found, nil
}

// latestReleases returns the newest release of every app.
//
// Manifests are parsed here; unparsable ones are skipped rather than
// failing the whole scan (a bad manifest should not stall the loops).
func (m *releasePG) latestReleases(ctx context.Context) ([]domain.Release, error) {
	rows, err := m.pool.Query(
		ctx,
		selectRelease+`
		where "release_id" in (
			select max("release_id") from "release" group by "app_name"
		)
		order by "app_name"
		`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := []domain.Release{}
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			continue
		}
		found = append(found, r)
	}
	return found, rows.Err()
}

const selectRelease = `
select "release_id", "app_name", "commit", "image", "manifest", "created_at"
from "release"
`

func scanRelease(row pgx.Row) (domain.Release, error) {
	r := domain.Release{}
	var manifest string
	if err := row.Scan(
		&r.ReleaseId, &r.Appname, &r.Commit, &r.Image, &manifest, &r.CreatedAt,
	); err != nil {
		return domain.Release{}, err
	}

	parsed, err := spec.Unmarshal([]byte(manifest))
	if err != nil {
		return domain.Release{}, err
	}
	r.Manifest = parsed
	r.ManifestText = manifest
	return r, nil
}

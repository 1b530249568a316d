package postgres

import (
	"context"
	"time"

	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	kdb "github.com/opst/stevedore/pkg/domain/cooldown/db"
)

type cooldownPG struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *cooldownPG {
	return &cooldownPG{pool: pool}
}

var _ kdb.CooldownInterface = &cooldownPG{}

func (m *cooldownPG) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// an expired key counts as absent; re-arming it then is a fresh set.
	tag, err := m.pool.Exec(
		ctx,
		`
		insert into "cooldown" ("key", "expires_at") values ($1, now() + $2)
		on conflict ("key") do update set "expires_at" = excluded."expires_at"
		where "cooldown"."expires_at" <= now()
		`,
		key, ttl,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() != 0, nil
}

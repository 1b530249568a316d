package postgres

import (
	"context"
	"encoding/json"

	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/domain"
	kdb "github.com/opst/stevedore/pkg/domain/oplog/db"
)

type oplogPG struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) *oplogPG {
	return &oplogPG{pool: pool}
}

var _ kdb.OpLogInterface = &oplogPG{}

func (m *oplogPG) Record(ctx context.Context, entry domain.OpLog) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return err
	}

	_, err = m.pool.Exec(
		ctx,
		`
		insert into "oplog" ("actor", "op_type", "app_name", "commit", "detail")
		values ($1, $2, $3, $4, $5)
		`,
		entry.Actor, string(entry.OpType), entry.Appname, entry.Commit, detail,
	)
	return err
}

package mock

import (
	"context"

	"github.com/opst/stevedore/pkg/domain"
	dbmock "github.com/opst/stevedore/internal/db/mock"
	kdb "github.com/opst/stevedore/pkg/domain/oplog/db"
)

type OpLogInterface struct {
	Impl struct {
		Record func(ctx context.Context, entry domain.OpLog) error
	}

	Calls struct {
		Record dbmock.CallLog[domain.OpLog]
	}
}

func NewOpLogInterface() *OpLogInterface {
	return &OpLogInterface{}
}

var _ kdb.OpLogInterface = &OpLogInterface{}

// Record defaults to success: most tests only assert what was recorded.
func (m *OpLogInterface) Record(ctx context.Context, entry domain.OpLog) error {
	m.Calls.Record = append(m.Calls.Record, entry)
	if m.Impl.Record != nil {
		return m.Impl.Record(ctx, entry)
	}
	return nil
}

package db

import (
	"context"

	"github.com/opst/stevedore/pkg/domain"
)

// OpLogInterface is the audit log sink.
//
// Recording is best effort from the workflows' point of view: a failed
// Record is logged by the caller and never fails the operation it audits.
type OpLogInterface interface {
	Record(ctx context.Context, entry domain.OpLog) error
}

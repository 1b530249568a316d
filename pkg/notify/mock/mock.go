package mock

import (
	"context"

	mocks "github.com/opst/stevedore/internal/db/mock"
	"github.com/opst/stevedore/pkg/notify"
)

type SendArgs struct {
	Audiences []string
	Text      string
}

// Notifier records Send calls. It succeeds unless Impl.Send is set.
type Notifier struct {
	Impl struct {
		Send func(ctx context.Context, audiences []string, text string) error
	}
	Calls struct {
		Send mocks.CallLog[SendArgs]
	}
}

var _ notify.Interface = &Notifier{}

func New() *Notifier {
	return &Notifier{}
}

func (m *Notifier) Send(ctx context.Context, audiences []string, text string) error {
	m.Calls.Send = append(m.Calls.Send, SendArgs{Audiences: audiences, Text: text})
	if m.Impl.Send != nil {
		return m.Impl.Send(ctx, audiences, text)
	}
	return nil
}

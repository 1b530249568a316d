package mock

import (
	"context"
	"sync"
	"time"

	dbmock "github.com/opst/stevedore/internal/db/mock"
	kdb "github.com/opst/stevedore/pkg/domain/cooldown/db"
)

type SetNXArgs struct {
	Key string
	TTL time.Duration
}

// CooldownInterface is an in-memory cooldown store with real expiry
// semantics, so throttling tests can exercise both sides of the window.
type CooldownInterface struct {
	Impl struct {
		SetNX func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	}

	Calls struct {
		SetNX dbmock.CallLog[SetNXArgs]
	}

	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	expires map[string]time.Time
}

func NewCooldownInterface() *CooldownInterface {
	return &CooldownInterface{expires: map[string]time.Time{}}
}

var _ kdb.CooldownInterface = &CooldownInterface{}

func (m *CooldownInterface) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.Calls.SetNX = append(m.Calls.SetNX, SetNXArgs{Key: key, TTL: ttl})
	if m.Impl.SetNX != nil {
		return m.Impl.SetNX(ctx, key, ttl)
	}

	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.expires[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.expires[key] = now.Add(ttl)
	return true, nil
}

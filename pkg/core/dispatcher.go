package core

import (
	"sync"

	"github.com/opst/stevedore/pkg/tasks/taskerr"
)

// Dispatcher maps zone names to core clients. Each zone runs its own
// scheduler; operations on a container go to its zone's core.
type Dispatcher interface {
	GetCore(zone string) (Client, error)
}

type dispatcher struct {
	mu      sync.Mutex
	targets map[string]string
	clients map[string]Client
}

var _ Dispatcher = &dispatcher{}

// NewDispatcher takes zone name -> core endpoint. Clients are dialed
// lazily, once per zone.
func NewDispatcher(targets map[string]string) *dispatcher {
	return &dispatcher{
		targets: targets,
		clients: map[string]Client{},
	}
}

func (d *dispatcher) GetCore(zone string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[zone]; ok {
		return c, nil
	}

	target, ok := d.targets[zone]
	if !ok {
		return nil, taskerr.BadRequest("unknown zone: %s", zone)
	}

	c, err := Dial(target)
	if err != nil {
		return nil, err
	}
	d.clients[zone] = c
	return c, nil
}

// Package elb manages load-balancer membership of containers.
//
// The balancer itself is an external service; this is its admin API
// client, narrowed to attach/detach.
package elb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opst/stevedore/pkg/domain"
	kstrings "github.com/opst/stevedore/pkg/utils/strings"
)

type Interface interface {
	// Attach registers the container as a backend of its app/entrypoint.
	Attach(ctx context.Context, c domain.Container) error

	// Detach removes the containers from their backends.
	Detach(ctx context.Context, cs ...domain.Container) error
}

type client struct {
	endpoint string
	http     *http.Client
}

// New builds a client of the balancer admin API at endpoint.
func New(endpoint string) *client {
	return &client{endpoint: kstrings.SupplySuffix(endpoint, "/"), http: http.DefaultClient}
}

var _ Interface = &client{}

type updateRequest struct {
	Action     string            `json:"action"`
	Appname    string            `json:"appname"`
	Entrypoint string            `json:"entrypoint"`
	Id         string            `json:"id"`
	Publish    map[string]string `json:"publish,omitempty"`
}

func (c *client) Attach(ctx context.Context, container domain.Container) error {
	return c.update(ctx, "add", container)
}

func (c *client) Detach(ctx context.Context, containers ...domain.Container) error {
	for _, container := range containers {
		if err := c.update(ctx, "remove", container); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) update(ctx context.Context, action string, container domain.Container) error {
	payload, err := json.Marshal(updateRequest{
		Action:     action,
		Appname:    container.Appname,
		Entrypoint: container.EntrypointName,
		Id:         container.ContainerId,
		Publish:    container.Health.Publish,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint+"backends", bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if 300 <= resp.StatusCode {
		return fmt.Errorf("elb %s %s: unexpected status %d", action, container.ContainerId, resp.StatusCode)
	}
	return nil
}

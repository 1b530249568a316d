// Package scm reads app sources from the git hosting service.
package scm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Commit struct {
	Sha       string    `json:"sha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Committed time.Time `json:"committed"`
}

type Interface interface {
	// GetCommit resolves ref (branch, tag or sha) of the project to a commit.
	GetCommit(ctx context.Context, project string, ref string) (Commit, error)

	// GetFileContent reads a single file of the project at ref.
	GetFileContent(ctx context.Context, project string, path string, ref string) ([]byte, error)
}

type client struct {
	endpoint string
	http     *http.Client
}

// New builds a client of the git hosting REST API at endpoint.
func New(endpoint string) *client {
	return &client{endpoint: endpoint, http: http.DefaultClient}
}

var _ Interface = &client{}

func (c *client) GetCommit(ctx context.Context, project string, ref string) (Commit, error) {
	u := fmt.Sprintf(
		"%s/projects/%s/commits/%s",
		c.endpoint, url.PathEscape(project), url.PathEscape(ref),
	)
	body, err := c.get(ctx, u)
	if err != nil {
		return Commit{}, err
	}
	commit := Commit{}
	if err := json.Unmarshal(body, &commit); err != nil {
		return Commit{}, err
	}
	return commit, nil
}

func (c *client) GetFileContent(ctx context.Context, project string, path string, ref string) ([]byte, error) {
	u := fmt.Sprintf(
		"%s/projects/%s/files/%s?ref=%s",
		c.endpoint, url.PathEscape(project), url.PathEscape(path), url.QueryEscape(ref),
	)
	return c.get(ctx, u)
}

func (c *client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if 300 <= resp.StatusCode {
		return nil, fmt.Errorf("scm %s: unexpected status %d", u, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

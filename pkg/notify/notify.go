// Package notify posts messages to the team chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	kstrings "github.com/opst/stevedore/pkg/utils/strings"
)

type Interface interface {
	// Send posts text to each audience.
	//
	// An audience is a channel name (starting with "#") or a user name.
	// Duplicated audiences are posted to once.
	Send(ctx context.Context, audiences []string, text string) error
}

type webhook struct {
	endpoint string
	http     *http.Client
}

// New builds a notifier posting to the chat webhook at endpoint.
func New(endpoint string) *webhook {
	return &webhook{endpoint: endpoint, http: http.DefaultClient}
}

var _ Interface = &webhook{}

type message struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (w *webhook) Send(ctx context.Context, audiences []string, text string) error {
	seen := map[string]struct{}{}
	for _, to := range audiences {
		if to == "" {
			continue
		}
		if _, ok := seen[to]; ok {
			continue
		}
		seen[to] = struct{}{}

		payload, err := json.Marshal(message{To: to, Text: text})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload),
		)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.http.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if 300 <= resp.StatusCode {
			return fmt.Errorf("notify %s: unexpected status %d", to, resp.StatusCode)
		}
	}
	return nil
}

// Mention formats a user name as a chat mention.
func Mention(user string) string {
	if user == "" || strings.HasPrefix(user, "@") {
		return user
	}
	return "@" + user
}

// LogLink builds a deep link into the log viewer, scoped to one container.
func LogLink(baseURL string, appname string, containerId string) string {
	if baseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("app", appname)
	q.Set("container", containerId)
	return kstrings.SupplySuffix(baseURL, "/") + "logs?" + q.Encode()
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/cmd/steved/handlers"
	httptestutil "github.com/opst/stevedore/internal/testutils/http"
	"github.com/opst/stevedore/pkg/api/types/ops"
	"github.com/opst/stevedore/pkg/domain"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/pubsub/inmem"
	"github.com/opst/stevedore/pkg/tasks/remove"
	remmock "github.com/opst/stevedore/pkg/tasks/remove/mock"
	"github.com/opst/stevedore/pkg/utils/try"
)

func removeRequest(t *testing.T, req ops.RemoveRequest) *bytes.Reader {
	t.Helper()
	body := try.To(json.Marshal(req)).OrFatal(t)
	return bytes.NewReader(body)
}

func TestRemoveHandler(t *testing.T) {
	e := echo.New()
	tokyoContainer := domain.Container{
		ContainerId: "container-aaaa-0001", Appname: "notes", Zone: "tokyo",
	}

	t.Run("it streams the workflow's progress and terminates", func(t *testing.T) {
		broker := inmem.New()
		remover := remmock.New()
		remover.Impl.Remove = func(
			ctx context.Context, operationId string, actor string,
			zone string, idPrefixes []string,
		) (remove.Result, error) {
			topic := pubsub.OperationTopic(operationId)
			if err := broker.Publish(ctx, topic, pubsub.Note("tearing down %d containers", len(idPrefixes))); err != nil {
				t.Error(err)
			}
			return remove.Result{Good: 1, Removed: idPrefixes}, nil
		}
		handler := handlers.RemoveHandler(knownContainers(tokyoContainer), remover, broker)

		c, resp := httptestutil.Post(
			e, "/api/remove/",
			removeRequest(t, ops.RemoveRequest{Ids: []string{"container-aaaa-0001"}, Zone: "tokyo"}),
			httptestutil.ContentType("application/json"),
			httptestutil.WithHeader("X-Stevedore-User", "alice"),
		)

		try.To0(handler(c)).OrFatal(t)

		if resp.Code != http.StatusOK {
			t.Errorf("status: got %d", resp.Code)
		}
		if resp.Header().Get("X-Operation-Id") == "" {
			t.Error("the operation id should be exposed")
		}

		called := remover.Calls.Remove
		if called.Times() != 1 {
			t.Fatalf("removes: got %d", called.Times())
		}
		if called[0].Actor != "alice" || called[0].Zone != "tokyo" {
			t.Errorf("remove: got %+v", called[0])
		}

		lines := strings.Split(strings.TrimRight(resp.Body.String(), "\n"), "\n")
		if len(lines) != 1 {
			t.Fatalf("lines: got %q", lines)
		}
		message := map[string]string{}
		try.To0(json.Unmarshal([]byte(lines[0]), &message)).OrFatal(t)
		if message["type"] != "sentence" || !strings.Contains(message["message"], "tearing down") {
			t.Errorf("line: got %+v", message)
		}
	})

	t.Run("a workflow failure is appended as an error line", func(t *testing.T) {
		broker := inmem.New()
		remover := remmock.New()
		remover.Impl.Remove = func(
			ctx context.Context, operationId string, actor string,
			zone string, idPrefixes []string,
		) (remove.Result, error) {
			return remove.Result{}, errors.New("the core is unreachable")
		}
		handler := handlers.RemoveHandler(knownContainers(tokyoContainer), remover, broker)

		c, resp := httptestutil.Post(
			e, "/api/remove/",
			removeRequest(t, ops.RemoveRequest{Ids: []string{"container-aaaa-0001"}, Zone: "tokyo"}),
			httptestutil.ContentType("application/json"),
		)

		try.To0(handler(c)).OrFatal(t)

		// the status is committed before the workflow can fail.
		if resp.Code != http.StatusOK {
			t.Errorf("status: got %d", resp.Code)
		}
		line := map[string]string{}
		try.To0(json.Unmarshal([]byte(strings.TrimRight(resp.Body.String(), "\n")), &line)).OrFatal(t)
		if line["type"] != "error" || !strings.Contains(line["message"], "unreachable") {
			t.Errorf("line: got %+v", line)
		}
	})

	t.Run("a cross-zone target is a 400 before anything runs", func(t *testing.T) {
		remover := remmock.New()
		handler := handlers.RemoveHandler(knownContainers(tokyoContainer), remover, inmem.New())

		c, _ := httptestutil.Post(
			e, "/api/remove/",
			removeRequest(t, ops.RemoveRequest{Ids: []string{"container-aaaa-0001"}, Zone: "osaka"}),
			httptestutil.ContentType("application/json"),
		)

		err := handler(c)

		he := &echo.HTTPError{}
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Errorf("got %v, want 400", err)
		}
		if remover.Calls.Remove.Times() != 0 {
			t.Error("nothing should run")
		}
	})

	t.Run("empty ids and empty zone are bad requests", func(t *testing.T) {
		for name, req := range map[string]ops.RemoveRequest{
			"no ids":  {Zone: "tokyo"},
			"no zone": {Ids: []string{"container-aaaa-0001"}},
		} {
			t.Run(name, func(t *testing.T) {
				handler := handlers.RemoveHandler(
					knownContainers(tokyoContainer), remmock.New(), inmem.New(),
				)
				c, _ := httptestutil.Post(
					e, "/api/remove/", removeRequest(t, req),
					httptestutil.ContentType("application/json"),
				)

				err := handler(c)

				he := &echo.HTTPError{}
				if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
					t.Errorf("got %v, want 400", err)
				}
			})
		}
	})
}

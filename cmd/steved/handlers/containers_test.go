package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/cmd/steved/handlers"
	httptestutil "github.com/opst/stevedore/internal/testutils/http"
	"github.com/opst/stevedore/pkg/api/types/ops"
	"github.com/opst/stevedore/pkg/domain"
	contmock "github.com/opst/stevedore/pkg/domain/container/db/mock"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	"github.com/opst/stevedore/pkg/utils/try"
)

func knownContainers(known ...domain.Container) *contmock.ContainerInterface {
	containers := contmock.NewContainerInterface()
	containers.Impl.Get = func(ctx context.Context, idPrefix string) (domain.Container, error) {
		for _, c := range known {
			if c.ContainerId == idPrefix {
				return c, nil
			}
		}
		return domain.Container{}, dberrors.Missing{Table: "container", Identity: idPrefix}
	}
	containers.Impl.Find = func(ctx context.Context, query domain.ContainerFindQuery) ([]domain.Container, error) {
		found := []domain.Container{}
		for _, c := range known {
			if query.Appname != "" && c.Appname != query.Appname {
				continue
			}
			if query.Zone != "" && c.Zone != query.Zone {
				continue
			}
			found = append(found, c)
		}
		return found, nil
	}
	return containers
}

func TestFindContainerHandler(t *testing.T) {
	e := echo.New()
	containers := knownContainers(
		domain.Container{ContainerId: "container-aaaa-0001", Appname: "notes", Zone: "tokyo"},
		domain.Container{ContainerId: "container-bbbb-0001", Appname: "notes", Zone: "osaka"},
		domain.Container{ContainerId: "container-cccc-0001", Appname: "wiki", Zone: "tokyo"},
	)
	handler := handlers.FindContainerHandler(containers)

	c, resp := httptestutil.Get(e, "/api/containers/?appname=notes&zone=tokyo")
	try.To0(handler(c)).OrFatal(t)

	if resp.Code != http.StatusOK {
		t.Errorf("status: got %d", resp.Code)
	}
	found := []ops.ContainerDetail{}
	try.To0(json.Unmarshal(resp.Body.Bytes(), &found)).OrFatal(t)
	if len(found) != 1 || found[0].Id != "container-aaaa-0001" {
		t.Errorf("found: got %+v", found)
	}

	query := containers.Calls.Find[0]
	if query.Appname != "notes" || query.Zone != "tokyo" {
		t.Errorf("query: got %+v", query)
	}
}

func TestGetContainerHandler(t *testing.T) {
	e := echo.New()
	known := domain.Container{
		ContainerId: "container-aaaa-0001", Appname: "notes",
		Commit: "0123456789abcdef", EntrypointName: "web",
		Envname: "prod", Zone: "tokyo", Initialized: true,
		Health: domain.HealthInfo{
			Running: true, Healthy: true,
			Publish: map[string]string{"8080/tcp": "10.0.0.5:32768"},
		},
	}
	handler := handlers.GetContainerHandler(knownContainers(known), "id")

	t.Run("it shows the container", func(t *testing.T) {
		c, resp := httptestutil.Get(e, "/api/containers/container-aaaa-0001/")
		c.SetParamNames("id")
		c.SetParamValues("container-aaaa-0001")

		try.To0(handler(c)).OrFatal(t)

		if resp.Code != http.StatusOK {
			t.Errorf("status: got %d", resp.Code)
		}
		detail := ops.ContainerDetail{}
		try.To0(json.Unmarshal(resp.Body.Bytes(), &detail)).OrFatal(t)
		if detail.Id != known.ContainerId || detail.Appname != "notes" ||
			detail.Envname != "prod" || !detail.Initialized {
			t.Errorf("detail: got %+v", detail)
		}
		if detail.Publish["8080/tcp"] != "10.0.0.5:32768" {
			t.Errorf("publish: got %+v", detail.Publish)
		}
	})

	t.Run("an unknown id is a 404", func(t *testing.T) {
		c, _ := httptestutil.Get(e, "/api/containers/no-such/")
		c.SetParamNames("id")
		c.SetParamValues("no-such")

		err := handler(c)

		he := &echo.HTTPError{}
		if !errors.As(err, &he) || he.Code != http.StatusNotFound {
			t.Errorf("got %v, want 404", err)
		}
	})
}

func TestDebugHandler(t *testing.T) {
	e := echo.New()

	debugRequest := func(debug bool) *bytes.Reader {
		body, _ := json.Marshal(ops.DebugRequest{Debug: debug})
		return bytes.NewReader(body)
	}

	t.Run("it flips the debug override on", func(t *testing.T) {
		containers := knownContainers(domain.Container{
			ContainerId: "container-aaaa-0001", Appname: "notes", Zone: "tokyo", Revision: 5,
		})
		containers.Impl.SetOverrideStatus = func(context.Context, string, int, domain.OverrideStatus) error {
			return nil
		}
		handler := handlers.DebugHandler(containers, "id")

		c, resp := httptestutil.Post(
			e, "/api/containers/container-aaaa-0001/debug/", debugRequest(true),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("id")
		c.SetParamValues("container-aaaa-0001")

		try.To0(handler(c)).OrFatal(t)

		if resp.Code != http.StatusOK {
			t.Errorf("status: got %d", resp.Code)
		}
		set := containers.Calls.SetOverrideStatus
		if set.Times() != 1 || set[0].Status != domain.OverrideDebug || set[0].Revision != 5 {
			t.Errorf("override: got %+v", set)
		}
		detail := ops.ContainerDetail{}
		try.To0(json.Unmarshal(resp.Body.Bytes(), &detail)).OrFatal(t)
		if detail.Status != "debug" {
			t.Errorf("status: got %s", detail.Status)
		}
	})

	t.Run("flipping to the current state touches nothing", func(t *testing.T) {
		containers := knownContainers(domain.Container{
			ContainerId: "container-aaaa-0001", Appname: "notes", Zone: "tokyo",
		})
		handler := handlers.DebugHandler(containers, "id")

		c, resp := httptestutil.Post(
			e, "/api/containers/container-aaaa-0001/debug/", debugRequest(false),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("id")
		c.SetParamValues("container-aaaa-0001")

		try.To0(handler(c)).OrFatal(t)

		if resp.Code != http.StatusOK {
			t.Errorf("status: got %d", resp.Code)
		}
		if containers.Calls.SetOverrideStatus.Times() != 0 {
			t.Error("no override should be written")
		}
	})

	t.Run("a container being removed cannot enter debug", func(t *testing.T) {
		containers := knownContainers(domain.Container{
			ContainerId: "container-aaaa-0001", Appname: "notes", Zone: "tokyo",
			OverrideStatus: domain.OverrideRemoving,
		})
		handler := handlers.DebugHandler(containers, "id")

		c, _ := httptestutil.Post(
			e, "/api/containers/container-aaaa-0001/debug/", debugRequest(true),
			httptestutil.ContentType("application/json"),
		)
		c.SetParamNames("id")
		c.SetParamValues("container-aaaa-0001")

		err := handler(c)

		he := &echo.HTTPError{}
		if !errors.As(err, &he) || he.Code != http.StatusConflict {
			t.Errorf("got %v, want 409", err)
		}
	})
}

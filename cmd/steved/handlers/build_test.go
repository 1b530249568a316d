package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/cmd/steved/handlers"
	httptestutil "github.com/opst/stevedore/internal/testutils/http"
	"github.com/opst/stevedore/pkg/api/types/ops"
	"github.com/opst/stevedore/pkg/domain"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	relmock "github.com/opst/stevedore/pkg/domain/release/db/mock"
	"github.com/opst/stevedore/pkg/scm"
	scmmock "github.com/opst/stevedore/pkg/scm/mock"
	"github.com/opst/stevedore/pkg/utils/try"
)

func TestRegisterReleaseHandler(t *testing.T) {
	e := echo.New()

	postRelease := func(t *testing.T, handler echo.HandlerFunc, req ops.RegisterReleaseRequest) (echo.Context, *httptest.ResponseRecorder, error) {
		t.Helper()
		body := try.To(json.Marshal(req)).OrFatal(t)
		c, resp := httptestutil.Post(
			e, "/api/releases/", bytes.NewReader(body),
			httptestutil.ContentType("application/json"),
		)
		return c, resp, handler(c)
	}

	t.Run("a release with manifest text is stored as is", func(t *testing.T) {
		releases := relmock.NewReleaseInterface()
		releases.Impl.Register = func(ctx context.Context, appname, commit, manifest string) (domain.Release, error) {
			return domain.Release{Appname: appname, Commit: commit, ManifestText: manifest}, nil
		}
		handler := handlers.RegisterReleaseHandler(releases, scmmock.New())

		_, resp, err := postRelease(t, handler, ops.RegisterReleaseRequest{
			Appname: "notes", Commit: "0123abcd", Manifest: "appname: notes\n",
		})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Result().StatusCode != 201 {
			t.Errorf("unexpected status: %d", resp.Result().StatusCode)
		}
		if len(releases.Calls.Register) != 1 {
			t.Fatalf("register should be called once: %d", len(releases.Calls.Register))
		}
		if got := releases.Calls.Register[0]; got.Commit != "0123abcd" || got.Manifest != "appname: notes\n" {
			t.Errorf("unexpected register args: %+v", got)
		}
	})

	t.Run("without manifest text, app.yaml is read from the repository", func(t *testing.T) {
		releases := relmock.NewReleaseInterface()
		releases.Impl.GetApp = func(ctx context.Context, name string) (domain.App, error) {
			return domain.App{Name: name, Repo: "group/notes"}, nil
		}
		releases.Impl.Register = func(ctx context.Context, appname, commit, manifest string) (domain.Release, error) {
			return domain.Release{Appname: appname, Commit: commit, ManifestText: manifest}, nil
		}
		source := scmmock.New()
		source.Impl.GetCommit = func(ctx context.Context, project, ref string) (scm.Commit, error) {
			return scm.Commit{Sha: "0123abcdef0123abcdef0123abcdef0123abcdef"}, nil
		}
		source.Impl.GetFileContent = func(ctx context.Context, project, path, ref string) ([]byte, error) {
			return []byte("appname: notes\n"), nil
		}
		handler := handlers.RegisterReleaseHandler(releases, source)

		_, resp, err := postRelease(t, handler, ops.RegisterReleaseRequest{
			Appname: "notes", Commit: "main",
		})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Result().StatusCode != 201 {
			t.Errorf("unexpected status: %d", resp.Result().StatusCode)
		}

		if len(source.Calls.GetCommit) != 1 || source.Calls.GetCommit[0].Project != "group/notes" {
			t.Errorf("unexpected commit lookup: %+v", source.Calls.GetCommit)
		}
		if len(source.Calls.GetFileContent) != 1 {
			t.Fatalf("app.yaml should be read once: %d", len(source.Calls.GetFileContent))
		}
		if got := source.Calls.GetFileContent[0]; got.Path != "app.yaml" || !strings.HasPrefix(got.Ref, "0123abcdef") {
			t.Errorf("unexpected file lookup: %+v", got)
		}
		if len(releases.Calls.Register) != 1 {
			t.Fatalf("register should be called once: %d", len(releases.Calls.Register))
		}
		if got := releases.Calls.Register[0]; got.Commit != "0123abcdef0123abcdef0123abcdef0123abcdef" ||
			got.Manifest != "appname: notes\n" {
			t.Errorf("unexpected register args: %+v", got)
		}
	})

	t.Run("unknown app is a 404", func(t *testing.T) {
		releases := relmock.NewReleaseInterface()
		releases.Impl.GetApp = func(ctx context.Context, name string) (domain.App, error) {
			return domain.App{}, dberrors.ErrMissing
		}
		handler := handlers.RegisterReleaseHandler(releases, scmmock.New())

		_, _, err := postRelease(t, handler, ops.RegisterReleaseRequest{
			Appname: "ghost", Commit: "main",
		})
		he := &echo.HTTPError{}
		if !errors.As(err, &he) || he.Code != 404 {
			t.Errorf("unexpected error: %+v", err)
		}
	})

	t.Run("appname and commit are required", func(t *testing.T) {
		handler := handlers.RegisterReleaseHandler(relmock.NewReleaseInterface(), scmmock.New())

		_, _, err := postRelease(t, handler, ops.RegisterReleaseRequest{Appname: "notes"})
		he := &echo.HTTPError{}
		if !errors.As(err, &he) || he.Code != 400 {
			t.Errorf("unexpected error: %+v", err)
		}
	})
}

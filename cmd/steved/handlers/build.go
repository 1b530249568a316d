package handlers

import (
	"context"
	"encoding/json"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/pkg/api/binderr"
	"github.com/opst/stevedore/pkg/api/types/ops"
	reldb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/scm"
	"github.com/opst/stevedore/pkg/tasks/build"
)

// BuildHandler streams the build of a release's image.
func BuildHandler(
	releases reldb.ReleaseInterface,
	builder build.Interface,
	broker pubsub.Broker,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := ops.BuildRequest{}
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}

		reqctx := c.Request().Context()
		app, err := releases.GetApp(reqctx, req.Appname)
		if err != nil {
			return binderr.From(err)
		}
		rel, err := releases.GetByAppAndCommit(reqctx, req.Appname, req.Commit)
		if err != nil {
			return binderr.From(err)
		}

		actor := actorOf(c)
		return streamOperation(c, broker, func(ctx context.Context, operationId string) error {
			_, err := builder.Build(ctx, operationId, actor, app, rel)
			return err
		})
	}
}

// RegisterReleaseHandler stores a release with its manifest.
//
// When the request carries no manifest text, the app's repository is
// consulted instead: the commit (or branch/tag) is resolved and the
// app.yaml at that revision becomes the manifest.
func RegisterReleaseHandler(releases reldb.ReleaseInterface, source scm.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := ops.RegisterReleaseRequest{}
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if req.Appname == "" || req.Commit == "" {
			return binderr.BadRequest("appname and commit are required", nil)
		}

		reqctx := c.Request().Context()
		commit, manifest := req.Commit, req.Manifest
		if manifest == "" {
			app, err := releases.GetApp(reqctx, req.Appname)
			if err != nil {
				return binderr.From(err)
			}
			resolved, err := source.GetCommit(reqctx, app.Repo, req.Commit)
			if err != nil {
				return binderr.BadRequest("can not resolve "+req.Commit+" of "+app.Repo, err)
			}
			commit = resolved.Sha
			content, err := source.GetFileContent(reqctx, app.Repo, "app.yaml", commit)
			if err != nil {
				return binderr.BadRequest("can not read app.yaml of "+app.Repo+" @ "+commit, err)
			}
			manifest = string(content)
		}

		rel, err := releases.Register(reqctx, req.Appname, commit, manifest)
		if err != nil {
			return binderr.From(err)
		}
		return c.JSON(201, ops.ReleaseDetail{
			Appname: rel.Appname,
			Commit:  rel.Commit,
			Image:   rel.Image,
			Raw:     rel.Raw(),
		})
	}
}

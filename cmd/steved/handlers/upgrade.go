package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/pkg/api/binderr"
	"github.com/opst/stevedore/pkg/api/types/ops"
	reldb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/tasks/upgrade"
)

// UpgradeHandler streams the replacement of containers with replicas of
// the requested release.
func UpgradeHandler(
	releases reldb.ReleaseInterface,
	upgrader upgrade.Interface,
	broker pubsub.Broker,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := ops.UpgradeRequest{}
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if len(req.Ids) == 0 {
			return binderr.BadRequest("no container ids", nil)
		}

		rel, err := releases.GetByAppAndCommit(
			c.Request().Context(), req.Appname, req.Commit,
		)
		if err != nil {
			return binderr.From(err)
		}
		if rel.Image == "" {
			return binderr.BadRequest("the release has no image. build it first.", nil)
		}

		timeout := time.Duration(req.ErectionTimeout) * time.Second
		actor := actorOf(c)
		return streamOperation(c, broker, func(ctx context.Context, operationId string) error {
			_, err := upgrader.Upgrade(
				ctx, operationId, actor, rel, req.Ids, req.Envname, timeout,
			)
			return err
		})
	}
}

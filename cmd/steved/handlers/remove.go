package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/pkg/api/binderr"
	"github.com/opst/stevedore/pkg/api/types/ops"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/tasks/remove"
)

// RemoveHandler streams the teardown of the named containers.
//
// Zone membership is checked here, before the response status commits:
// a container of another zone is a 400, and nothing has been touched.
func RemoveHandler(
	containers contdb.ContainerInterface,
	remover remove.Interface,
	broker pubsub.Broker,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := ops.RemoveRequest{}
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if len(req.Ids) == 0 {
			return binderr.BadRequest("no container ids", nil)
		}
		if req.Zone == "" {
			return binderr.BadRequest("no zone", nil)
		}

		reqctx := c.Request().Context()
		for _, prefix := range req.Ids {
			found, err := containers.Get(reqctx, prefix)
			if err != nil {
				if errors.Is(err, dberrors.ErrMissing) {
					continue // the workflow logs and skips it
				}
				return binderr.From(err)
			}
			if found.Zone != req.Zone {
				return binderr.BadRequest(
					"container "+found.ShortId()+" is in zone "+found.Zone+", not "+req.Zone, nil,
				)
			}
		}

		actor := actorOf(c)
		return streamOperation(c, broker, func(ctx context.Context, operationId string) error {
			_, err := remover.Remove(ctx, operationId, actor, req.Zone, req.Ids)
			return err
		})
	}
}

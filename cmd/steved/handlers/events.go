package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/pkg/api/binderr"
	"github.com/opst/stevedore/pkg/domain"
	"github.com/opst/stevedore/pkg/pubsub"
)

// HealthEventHandler ingests health events from the watch agents and
// forwards them to the reconcile loop over the progress transport.
//
// Accepted events are acknowledged before being applied; the loop does
// the applying.
func HealthEventHandler(broker pubsub.Broker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ev := domain.HealthEvent{}
		if err := json.NewDecoder(c.Request().Body).Decode(&ev); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}
		if !ev.Complete() {
			return binderr.BadRequest("health event misses id, appname, alive or healthy", nil)
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		if err := broker.Publish(c.Request().Context(), pubsub.HealthTopic, payload); err != nil {
			return binderr.InternalServerError(err)
		}
		return c.NoContent(http.StatusAccepted)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/pkg/api/binderr"
	"github.com/opst/stevedore/pkg/pubsub"
)

var newline = []byte("\n")

// streamOperation runs a workflow in the background and relays its
// progress channel to the client as newline-delimited JSON, one message
// per line, until the terminal sentinel.
//
// The workflow runs detached from the request context: a client hanging
// up stops the relay, not the operation (the remote scheduler finishes
// server-side regardless).
//
// Failures of the workflow after the response status is committed are
// appended as an error line; they cannot change the status anymore.
func streamOperation(
	c echo.Context,
	broker pubsub.Broker,
	run func(ctx context.Context, operationId string) error,
) error {
	ctx := c.Request().Context()
	operationId := uuid.NewString()
	topic := pubsub.OperationTopic(operationId)

	// subscribe before the workflow starts, so no message is missed.
	ch, release, err := broker.Subscribe(ctx, topic)
	if err != nil {
		return binderr.InternalServerError(err)
	}
	defer release()

	detached := context.WithoutCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		defer broker.Publish(detached, topic, pubsub.Done(topic))
		errCh <- run(detached, operationId)
	}()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	resp.Header().Set("X-Operation-Id", operationId)
	resp.WriteHeader(http.StatusOK)

	for payload := range ch {
		if _, err := resp.Write(payload); err != nil {
			break
		}
		resp.Write(newline)
		resp.Flush()
	}

	if err := <-errCh; err != nil {
		line, _ := json.Marshal(map[string]string{
			"type":    "error",
			"message": err.Error(),
		})
		resp.Write(line)
		resp.Write(newline)
		resp.Flush()
		c.Logger().Error(err)
	}
	return nil
}

// actorOf names the requester for audit records.
func actorOf(c echo.Context) string {
	if user := c.Request().Header.Get("X-Stevedore-User"); user != "" {
		return user
	}
	return "anonymous"
}

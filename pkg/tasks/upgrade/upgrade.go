// Package upgrade replaces running containers with replicas of a newer
// release, one by one, rolling back replacements that never come up.
package upgrade

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/opst/stevedore/pkg/domain"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/tasks/deploy"
	"github.com/opst/stevedore/pkg/tasks/remove"
	"github.com/opst/stevedore/pkg/tasks/taskerr"
)

// Result tallies one upgrade run.
type Result struct {
	Upgraded int
	Failed   int
}

// NoWait asks Upgrade to promote replicas without any health wait,
// overriding the manifest's erection timeout. Respawn remediation uses
// it: the old container is already beyond saving.
const NoWait = time.Duration(-1)

type Interface interface {
	// Upgrade replaces each container matched by idPrefixes with one
	// replica of rel, waits for the replica to become healthy, then
	// removes the old container (promote) or the replica (rollback).
	//
	// envname names the environment profile for the replicas;
	// domain.EnvnameInherit (or empty) keeps each container's own.
	//
	// timeout bounds the health wait per container. Zero falls back to
	// the release manifest's erection_timeout; when that is zero too,
	// or when timeout is NoWait, the replica is promoted without
	// waiting.
	//
	// Returns a 400-class OperationError before any side effect when
	// rel has no image yet.
	Upgrade(
		ctx context.Context,
		operationId string,
		actor string,
		rel domain.Release,
		idPrefixes []string,
		envname string,
		timeout time.Duration,
	) (Result, error)
}

type task struct {
	containers contdb.ContainerInterface
	deployer   deploy.Interface
	remover    remove.Interface
	broker     pubsub.Broker
	logger     *log.Logger

	// health poll period of the erection wait.
	interval time.Duration
}

var _ Interface = &task{}

type Option func(*task)

// WithInterval overrides the health poll period. For tests.
func WithInterval(d time.Duration) Option {
	return func(t *task) { t.interval = d }
}

func New(
	containers contdb.ContainerInterface,
	deployer deploy.Interface,
	remover remove.Interface,
	broker pubsub.Broker,
	logger *log.Logger,
	options ...Option,
) *task {
	t := &task{
		containers: containers,
		deployer:   deployer,
		remover:    remover,
		broker:     broker,
		logger:     logger,
		interval:   2 * time.Second,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *task) Upgrade(
	ctx context.Context,
	operationId string,
	actor string,
	rel domain.Release,
	idPrefixes []string,
	envname string,
	timeout time.Duration,
) (Result, error) {
	result := Result{}

	if rel.Image == "" {
		return result, taskerr.BadRequest(
			"release %s@%s has no image. build it first.", rel.Appname, rel.ShortCommit(),
		)
	}
	if timeout == 0 {
		timeout = rel.ErectionTimeout()
	}
	if timeout < 0 {
		timeout = 0
	}

	topic := pubsub.OperationTopic(operationId)

	for _, prefix := range idPrefixes {
		old, err := t.containers.Get(ctx, prefix)
		if err != nil {
			if errors.Is(err, dberrors.ErrMissing) {
				t.publish(ctx, topic, pubsub.Note("container %s is not found. skipped.", prefix))
				continue
			}
			return result, err
		}
		if old.Appname != rel.Appname {
			return result, taskerr.BadRequest(
				"container %s belongs to %s, not %s", old.ShortId(), old.Appname, rel.Appname,
			)
		}

		if t.replace(ctx, operationId, actor, rel, old, envname, timeout) {
			result.Upgraded += 1
		} else {
			result.Failed += 1
		}
	}

	return result, nil
}

// replace performs one old-for-new swap. Returns true on promotion.
func (t *task) replace(
	ctx context.Context,
	operationId string,
	actor string,
	rel domain.Release,
	old domain.Container,
	envname string,
	timeout time.Duration,
) bool {
	topic := pubsub.OperationTopic(operationId)

	opts := domain.OptionsOf(old, rel.ManifestText)
	opts.Image = rel.Image
	if envname != "" && envname != domain.EnvnameInherit {
		opts.Envname = envname
	}

	dres, err := t.deployer.Deploy(ctx, operationId, actor, rel, opts)
	if err != nil || len(dres.Registered) == 0 {
		t.publish(ctx, topic, pubsub.Note(
			"upgrading %s failed: no replacement came up", old.ShortId(),
		))
		return false
	}
	replica := dres.Registered[0]

	if t.erected(ctx, replica.ContainerId, timeout) {
		t.publish(ctx, topic, pubsub.Note(
			"%s is up. removing %s.", replica.ShortId(), old.ShortId(),
		))
		if _, err := t.remover.Remove(
			ctx, operationId, actor, old.Zone, []string{old.ContainerId},
		); err != nil {
			t.logger.Printf("removing upgraded-away container %s failed: %s", old.ShortId(), err)
		}
		return true
	}

	// rollback. the old container keeps serving.
	t.publish(ctx, topic, pubsub.Note(
		"%s did not become healthy in %s. rolling back.", replica.ShortId(), timeout,
	))
	if _, err := t.remover.Remove(
		ctx, operationId, actor, replica.Zone, []string{replica.ContainerId},
	); err != nil {
		t.logger.Printf("rollback of %s failed: %s", replica.ShortId(), err)
	}
	return false
}

// erected waits until the container reports running and healthy.
//
// Health is re-read from the store on every tick; the reconcile loop
// writes it there independently of this wait.
func (t *task) erected(ctx context.Context, containerId string, timeout time.Duration) bool {
	if timeout == 0 {
		return true
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		h, err := t.containers.GetHealth(ctx, containerId)
		if err == nil && h.Running && h.Healthy {
			return true
		}
		if err != nil && !errors.Is(err, dberrors.ErrMissing) {
			t.logger.Printf("reading health of %s failed: %s", containerId, err)
		}

		if !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (t *task) publish(ctx context.Context, topic string, payload []byte) {
	if err := t.broker.Publish(ctx, topic, payload); err != nil {
		t.logger.Printf("publish on %s failed: %s", topic, err)
	}
}

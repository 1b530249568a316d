// Package remove tears containers down and reconciles their records.
package remove

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/opst/stevedore/pkg/core"
	"github.com/opst/stevedore/pkg/domain"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	opdb "github.com/opst/stevedore/pkg/domain/oplog/db"
	"github.com/opst/stevedore/pkg/elb"
	"github.com/opst/stevedore/pkg/notify"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/tasks/taskerr"
	"github.com/opst/stevedore/pkg/utils/slices"
)

// Result tallies one removal.
type Result struct {
	Good int
	Bad  int

	// container ids whose local record is gone now, whether the core
	// removed them or reported them gone already.
	Removed []string
}

type Interface interface {
	// Remove resolves idPrefixes to containers of zone, detaches them
	// from the balancer, and asks the zone's core to remove them.
	//
	// A prefix matching a container of another zone fails the whole call
	// with a 400-class OperationError before any side effect. A prefix
	// matching nothing is skipped with a log line.
	//
	// Like deploy, it never publishes the terminal sentinel; the caller
	// owning the operation topic does.
	Remove(ctx context.Context, operationId string, actor string, zone string, idPrefixes []string) (Result, error)
}

type task struct {
	cores      core.Dispatcher
	containers contdb.ContainerInterface
	oplog      opdb.OpLogInterface
	balancer   elb.Interface
	broker     pubsub.Broker
	notifier   notify.Interface
	opsChannel string
	logger     *log.Logger
}

var _ Interface = &task{}

func New(
	cores core.Dispatcher,
	containers contdb.ContainerInterface,
	oplog opdb.OpLogInterface,
	balancer elb.Interface,
	broker pubsub.Broker,
	notifier notify.Interface,
	opsChannel string,
	logger *log.Logger,
) *task {
	return &task{
		cores:      cores,
		containers: containers,
		oplog:      oplog,
		balancer:   balancer,
		broker:     broker,
		notifier:   notifier,
		opsChannel: opsChannel,
		logger:     logger,
	}
}

func (t *task) Remove(
	ctx context.Context,
	operationId string,
	actor string,
	zone string,
	idPrefixes []string,
) (Result, error) {
	topic := pubsub.OperationTopic(operationId)
	result := Result{}

	// resolve and validate everything before touching anything.
	targets := []domain.Container{}
	for _, prefix := range idPrefixes {
		c, err := t.containers.Get(ctx, prefix)
		if err != nil {
			if errors.Is(err, dberrors.ErrMissing) {
				t.logger.Printf("container %s is not found. skipped.", prefix)
				continue
			}
			return result, err
		}
		if c.Zone != zone {
			return result, taskerr.BadRequest(
				"container %s is in zone %s, not %s", c.ShortId(), c.Zone, zone,
			)
		}
		targets = append(targets, c)
	}
	if len(targets) == 0 {
		return result, nil
	}

	// mark before detaching, so the reconcile loop sees an expected
	// removal instead of a demotion while the balancer catches up.
	for _, c := range targets {
		err := t.containers.SetOverrideStatus(
			ctx, c.ContainerId, c.Revision, domain.OverrideRemoving,
		)
		if err != nil {
			// somebody else moved the container on. removal proceeds;
			// the flag is advisory.
			t.logger.Printf("mark %s removing failed: %s", c.ShortId(), err)
		}
	}
	if err := t.balancer.Detach(ctx, targets...); err != nil {
		t.logger.Printf("detach from balancer failed: %s", err)
	}

	c, err := t.cores.GetCore(zone)
	if err != nil {
		t.publish(ctx, topic, pubsub.Note("remove failed: %s", err))
		return result, err
	}
	ids := slices.Map(targets, func(c domain.Container) string { return c.ContainerId })
	stream, err := c.RemoveContainers(ctx, ids)
	if err != nil {
		t.publish(ctx, topic, pubsub.Note("remove failed: %s", err))
		return result, err
	}

	byId := map[string]domain.Container{}
	for _, target := range targets {
		byId[target.ContainerId] = target
	}

	for {
		m, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.publish(ctx, topic, pubsub.Note("remove interrupted: %s", err))
			return result, err
		}

		if payload, err := json.Marshal(m); err == nil {
			t.publish(ctx, topic, payload)
		}

		if m.Success {
			result.Good += 1
			if t.drop(ctx, topic, actor, byId[m.Id], m.Id) {
				result.Removed = append(result.Removed, m.Id)
			}
			continue
		}

		switch classify(m.Error) {
		case verdictAlreadyGone:
			// stale record. the core never knew it, or forgot it already.
			result.Good += 1
			if t.drop(ctx, topic, actor, byId[m.Id], m.Id) {
				result.Removed = append(result.Removed, m.Id)
			}
		case verdictMalformedId:
			t.logger.Printf("core rejected container id %s: %s", m.Id, m.Error)
		case verdictFailed:
			result.Bad += 1
			t.logger.Printf("remove container %s failed: %s", m.Id, m.Error)
			if err := t.notifier.Send(
				ctx,
				[]string{t.opsChannel},
				fmt.Sprintf("removing container %s of zone %s failed: %s", m.Id, zone, m.Error),
			); err != nil {
				t.logger.Printf("notify failed: %s", err)
			}
		}
	}

	return result, nil
}

// drop deletes the local record and audits the removal.
func (t *task) drop(ctx context.Context, topic string, actor string, c domain.Container, id string) bool {
	if err := t.containers.Delete(ctx, id); err != nil {
		t.logger.Printf("delete record of %s failed: %s", id, err)
		t.publish(ctx, topic, pubsub.Note("record of %s is left behind: %s", id, err))
		return false
	}
	t.audit(ctx, actor, c, id)
	return true
}

func (t *task) audit(ctx context.Context, actor string, c domain.Container, id string) {
	if err := t.oplog.Record(ctx, domain.OpLog{
		Actor:   actor,
		OpType:  domain.OpRemoveContainer,
		Appname: c.Appname,
		Commit:  c.Commit,
		Detail: map[string]interface{}{
			"containerId": id,
			"zone":        c.Zone,
		},
		At: time.Now(),
	}); err != nil {
		t.logger.Printf("record oplog failed: %s", err)
	}
}

func (t *task) publish(ctx context.Context, topic string, payload []byte) {
	if err := t.broker.Publish(ctx, topic, payload); err != nil {
		t.logger.Printf("publish on %s failed: %s", topic, err)
	}
}

func (r Result) String() string {
	return fmt.Sprintf("<removed %d, failed %d>", r.Good, r.Bad)
}

// Package reconcile applies health events reported by the watch agents
// to the registry, the load balancer and the people on call.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opst/stevedore/pkg/domain"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	healthdb "github.com/opst/stevedore/pkg/domain/health/db"
	reldb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/elb"
	"github.com/opst/stevedore/pkg/notify"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/tasks/remove"
	"github.com/opst/stevedore/pkg/utils/pointer"
)

type Reconciler struct {
	containers contdb.ContainerInterface
	releases   reldb.ReleaseInterface
	samples    healthdb.HealthSampleInterface
	balancer   elb.Interface
	remover    remove.Interface
	notifier   notify.Interface
	broker     pubsub.Broker

	opsChannel string
	logViewer  string

	// how much health history to keep per container.
	retention time.Duration

	logger *log.Logger
}

func New(
	containers contdb.ContainerInterface,
	releases reldb.ReleaseInterface,
	samples healthdb.HealthSampleInterface,
	balancer elb.Interface,
	remover remove.Interface,
	notifier notify.Interface,
	broker pubsub.Broker,
	opsChannel string,
	logViewer string,
	retention time.Duration,
	logger *log.Logger,
) *Reconciler {
	return &Reconciler{
		containers: containers,
		releases:   releases,
		samples:    samples,
		balancer:   balancer,
		remover:    remover,
		notifier:   notifier,
		broker:     broker,
		opsChannel: opsChannel,
		logViewer:  logViewer,
		retention:  retention,
		logger:     logger,
	}
}

// Run consumes health events until ctx ends.
func (r *Reconciler) Run(ctx context.Context) error {
	ch, release, err := r.broker.Subscribe(ctx, pubsub.HealthTopic)
	if err != nil {
		return err
	}
	defer release()

	for payload := range ch {
		ev := domain.HealthEvent{}
		if err := json.Unmarshal(payload, &ev); err != nil {
			r.logger.Printf("undecodable health event: %s", err)
			continue
		}
		if err := r.HandleEvent(ctx, ev); err != nil {
			r.logger.Printf("handling health event of %s failed: %s", ev.ContainerId, err)
		}
	}
	return ctx.Err()
}

// HandleEvent applies one event.
//
// Incomplete events are discarded. Events about containers the registry
// does not know are ignored; the agent also watches workloads this
// system never deployed.
func (r *Reconciler) HandleEvent(ctx context.Context, ev domain.HealthEvent) error {
	if !ev.Complete() {
		r.logger.Printf("incomplete health event discarded: %+v", ev)
		return nil
	}

	c, err := r.containers.Get(ctx, ev.ContainerId)
	if err != nil {
		if errors.Is(err, dberrors.ErrMissing) {
			return nil
		}
		return err
	}

	alive := pointer.SafeDeref(ev.Alive)
	healthy := pointer.SafeDeref(ev.Healthy)

	// the exit code arrives with the death report. It has to land on the
	// container before the dead branch reads it.
	if ev.ExitCode != nil {
		c.Health.ExitCode = ev.ExitCode
	}

	if err := r.samples.Append(ctx, domain.HealthSample{
		ContainerId: c.ContainerId,
		At:          time.Now(),
		Alive:       alive,
		Healthy:     healthy,
	}, r.retention); err != nil {
		r.logger.Printf("recording health sample of %s failed: %s", c.ShortId(), err)
	}

	switch {
	case !alive:
		err = r.dead(ctx, c)
	case healthy:
		err = r.up(ctx, c)
	default:
		err = r.sick(ctx, c)
	}
	if err != nil {
		return err
	}

	health := c.Health
	health.Running = alive
	health.Healthy = alive && healthy
	if err := r.containers.SetHealth(ctx, c.ContainerId, health); err != nil && !errors.Is(err, dberrors.ErrMissing) {
		return err
	}
	return nil
}

// dead containers leave the balancer. Cron jobs that exited clean are
// torn down; anything else that was not being removed is a page.
func (r *Reconciler) dead(ctx context.Context, c domain.Container) error {
	if err := r.balancer.Detach(ctx, c); err != nil {
		r.logger.Printf("detach of %s failed: %s", c.ShortId(), err)
	}

	exitedClean := c.Health.ExitCode != nil && *c.Health.ExitCode == 0

	rel, err := r.releases.GetByAppAndCommit(ctx, c.Appname, c.Commit)
	if err != nil {
		r.logger.Printf("release of %s is unknown: %s", c.ShortId(), err)
		rel = domain.Release{}
	}

	if exitedClean && rel.Manifest.IsCronEntrypoint(c.EntrypointName) {
		_, err := r.remover.Remove(
			ctx, uuid.NewString(), "reconcile", c.Zone, []string{c.ContainerId},
		)
		return err
	}

	if !exitedClean && !c.IsRemoving() {
		text := fmt.Sprintf(
			"container %s of %s died", c.ShortId(), c.Appname,
		)
		if c.Health.ExitCode != nil {
			text += fmt.Sprintf("\nexit code: %d", *c.Health.ExitCode)
		}
		if link := notify.LogLink(r.logViewer, c.Appname, c.ContainerId); link != "" {
			text += "\nlogs: " + link
		}
		if err := r.notifier.Send(ctx, rel.Subscribers(r.opsChannel), text); err != nil {
			r.logger.Printf("notify failed: %s", err)
		}
	}
	return nil
}

func (r *Reconciler) up(ctx context.Context, c domain.Container) error {
	if err := r.balancer.Attach(ctx, c); err != nil {
		return err
	}
	r.logger.Printf("%s of %s joined its backend", c.ShortId(), c.Appname)
	return r.containers.MarkInitialized(ctx, c.ContainerId)
}

// sick containers leave the balancer. The demotion is worth telling
// people about only once the container has ever been healthy; a
// container that was never up yet just sets its baseline.
func (r *Reconciler) sick(ctx context.Context, c domain.Container) error {
	if err := r.balancer.Detach(ctx, c); err != nil {
		r.logger.Printf("detach of %s failed: %s", c.ShortId(), err)
	}

	if c.Initialized && !c.IsRemoving() {
		rel, err := r.releases.GetByAppAndCommit(ctx, c.Appname, c.Commit)
		if err != nil {
			rel = domain.Release{}
		}
		text := fmt.Sprintf(
			"container %s of %s turned unhealthy and left its backend", c.ShortId(), c.Appname,
		)
		if err := r.notifier.Send(ctx, rel.Subscribers(r.opsChannel), text); err != nil {
			r.logger.Printf("notify failed: %s", err)
		}
		return nil
	}
	return r.containers.MarkInitialized(ctx, c.ContainerId)
}

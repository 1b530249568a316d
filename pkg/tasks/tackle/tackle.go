// Package tackle applies operator-declared remediation rules to sick
// containers.
package tackle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opst/stevedore/pkg/domain"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	cooldb "github.com/opst/stevedore/pkg/domain/cooldown/db"
	healthdb "github.com/opst/stevedore/pkg/domain/health/db"
	"github.com/opst/stevedore/pkg/domain/spec"
	"github.com/opst/stevedore/pkg/notify"
	"github.com/opst/stevedore/pkg/tasks/tackle/situation"
	"github.com/opst/stevedore/pkg/tasks/upgrade"
)

// Subject is what a strategy acts on: one container, with the release
// whose rules triggered.
type Subject struct {
	Container domain.Container
	Release   domain.Release
}

// Tools are the capabilities handed to strategies.
type Tools struct {
	Upgrader   upgrade.Interface
	Notifier   notify.Interface
	OpsChannel string
	Logger     *log.Logger
}

// Strategy remediates one subject. dangers lists the situation
// expressions that held.
type Strategy func(ctx context.Context, tools Tools, subject Subject, dangers []string, rule spec.TackleRule) error

// Registry maps strategy names to implementations. It is fixed at
// construction; rules naming an unknown strategy are skipped with a log
// line, never dispatched dynamically.
type Registry map[string]Strategy

// Builtin returns the stock strategy set.
//
//   - "respawn": replace the container in place with the same release,
//     skipping the health wait.
//   - "notify":  send a formatted warning to the release's subscribers.
func Builtin() Registry {
	return Registry{
		"respawn": Respawn,
		"notify":  Notify,
	}
}

func Respawn(ctx context.Context, tools Tools, subject Subject, dangers []string, rule spec.TackleRule) error {
	c := subject.Container
	if c.IsRemoving() {
		return nil
	}

	if rule.Kwarg("notify", "") == "true" {
		text := fmt.Sprintf(
			"*Container Respawn*\n```\nid: %s\ncommit: %s\nreason: %v\n```",
			c.ContainerId, c.ShortCommit(), dangers,
		)
		if err := tools.Notifier.Send(
			ctx, subject.Release.Subscribers(tools.OpsChannel), text,
		); err != nil {
			tools.Logger.Printf("notify failed: %s", err)
		}
	}

	_, err := tools.Upgrader.Upgrade(
		ctx, uuid.NewString(), "tackle",
		subject.Release, []string{c.ContainerId},
		domain.EnvnameInherit, upgrade.NoWait,
	)
	return err
}

func Notify(ctx context.Context, tools Tools, subject Subject, dangers []string, rule spec.TackleRule) error {
	c := subject.Container
	text := fmt.Sprintf(
		"*Warning*\nDangers:\n`%v`\nContainer:\n```\n%s (%s)\n```",
		dangers, c.String(), c.Status(),
	)
	return tools.Notifier.Send(ctx, subject.Release.Subscribers(tools.OpsChannel), text)
}

// Engine evaluates the tackle rules of one app and dispatches strategies.
type Engine struct {
	containers contdb.ContainerInterface
	samples    healthdb.HealthSampleInterface
	cooldowns  cooldb.CooldownInterface
	registry   Registry
	tools      Tools
	logger     *log.Logger

	now func() time.Time
}

func NewEngine(
	containers contdb.ContainerInterface,
	samples healthdb.HealthSampleInterface,
	cooldowns cooldb.CooldownInterface,
	registry Registry,
	tools Tools,
	logger *log.Logger,
) *Engine {
	return &Engine{
		containers: containers,
		samples:    samples,
		cooldowns:  cooldowns,
		registry:   registry,
		tools:      tools,
		logger:     logger,
		now:        time.Now,
	}
}

// TackleApp runs every container-scoped rule of rel against every
// container of the app.
//
// A strategy fires at most once per (container, strategy) within the
// rule's cooldown (kwarg "cooldown", default 1m): the cooldown key is
// armed before the strategy body runs, and an armed key skips the
// invocation entirely without re-arming.
func (e *Engine) TackleApp(ctx context.Context, rel domain.Release) error {
	rules := rel.Manifest.TackleRules.Container
	if len(rules) == 0 {
		return nil
	}

	containers, err := e.containers.Find(ctx, domain.ContainerFindQuery{Appname: rel.Appname})
	if err != nil {
		return err
	}

	for _, rule := range rules {
		exprs, err := situation.ParseAll(rule.Situations)
		if err != nil {
			e.logger.Printf("bad situation in rules of %s: %s", rel.Appname, err)
			continue
		}
		strategy, ok := e.registry[rule.Strategy]
		if !ok {
			e.logger.Printf("unknown strategy %s in rules of %s", rule.Strategy, rel.Appname)
			continue
		}

		for _, c := range containers {
			if c.IsRemoving() {
				continue
			}
			dangers, err := e.dangersOf(ctx, c, exprs)
			if err != nil {
				e.logger.Printf("evaluating %s failed: %s", c.ShortId(), err)
				continue
			}
			if len(dangers) == 0 {
				continue
			}

			e.logger.Printf(
				"%s container %s in danger: %v. strategy: %s",
				rel.Appname, c.ShortId(), dangers, rule.Strategy,
			)
			if !e.arm(ctx, c.ContainerId, rule) {
				continue
			}
			if err := strategy(ctx, e.tools, Subject{Container: c, Release: rel}, dangers, rule); err != nil {
				e.logger.Printf("strategy %s on %s failed: %s", rule.Strategy, c.ShortId(), err)
			}
		}
	}
	return nil
}

func (e *Engine) dangersOf(ctx context.Context, c domain.Container, exprs []situation.Expr) ([]string, error) {
	now := e.now()
	// one extra minute of history, so expressions can tell "window not
	// covered yet" from "covered and held".
	window, err := e.samples.Window(
		ctx, c.ContainerId, now.Add(-situation.MaxWindow(exprs)-time.Minute),
	)
	if err != nil {
		return nil, err
	}

	dangers := []string{}
	for _, expr := range exprs {
		if expr.Eval(now, window) {
			dangers = append(dangers, expr.String())
		}
	}
	return dangers, nil
}

// arm sets the cooldown key. False means the strategy fired recently.
func (e *Engine) arm(ctx context.Context, containerId string, rule spec.TackleRule) bool {
	ttl, err := time.ParseDuration(rule.Kwarg("cooldown", "1m"))
	if err != nil || ttl <= 0 {
		ttl = time.Minute
	}

	key := fmt.Sprintf("tackle.%s.%s", containerId, rule.Strategy)
	armed, err := e.cooldowns.SetNX(ctx, key, ttl)
	if err != nil {
		e.logger.Printf("arming cooldown %s failed: %s", key, err)
		return false
	}
	if !armed {
		e.logger.Printf("strategy %s on %s is cooling down. skipped.", rule.Strategy, containerId)
	}
	return armed
}

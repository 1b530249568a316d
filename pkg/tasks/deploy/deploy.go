// Package deploy creates containers for a release and records them.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/opst/stevedore/pkg/core"
	"github.com/opst/stevedore/pkg/domain"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	opdb "github.com/opst/stevedore/pkg/domain/oplog/db"
	"github.com/opst/stevedore/pkg/notify"
	"github.com/opst/stevedore/pkg/pubsub"
)

// Result tallies one deployment.
type Result struct {
	Good       int
	Bad        int
	Registered []domain.Container

	// error texts of the failed creates, for the notification.
	Failures []string
}

type Interface interface {
	// Deploy asks the core of opts.Zone to create containers, registers
	// each success, and publishes every result message on the operation
	// topic. It does not publish the terminal sentinel: the caller owns
	// the topic and closes it when the whole operation is over.
	//
	// The error return is for faults before the stream opens (unknown
	// zone, core unreachable); per-container failures are tallied in
	// Result, not returned.
	Deploy(ctx context.Context, operationId string, actor string, rel domain.Release, opts domain.DeployOptions) (Result, error)
}

type task struct {
	cores      core.Dispatcher
	containers contdb.ContainerInterface
	oplog      opdb.OpLogInterface
	broker     pubsub.Broker
	notifier   notify.Interface
	opsChannel string
	maintainer string
	logger     *log.Logger
}

var _ Interface = &task{}

func New(
	cores core.Dispatcher,
	containers contdb.ContainerInterface,
	oplog opdb.OpLogInterface,
	broker pubsub.Broker,
	notifier notify.Interface,
	opsChannel string,
	maintainer string,
	logger *log.Logger,
) *task {
	return &task{
		cores:      cores,
		containers: containers,
		oplog:      oplog,
		broker:     broker,
		notifier:   notifier,
		opsChannel: opsChannel,
		maintainer: maintainer,
		logger:     logger,
	}
}

func (t *task) Deploy(
	ctx context.Context,
	operationId string,
	actor string,
	rel domain.Release,
	opts domain.DeployOptions,
) (Result, error) {
	topic := pubsub.OperationTopic(operationId)
	result := Result{}

	c, err := t.cores.GetCore(opts.Zone)
	if err != nil {
		t.publish(ctx, topic, pubsub.Note("deploy failed: %s", err))
		return result, err
	}

	stream, err := c.CreateContainers(ctx, opts)
	if err != nil {
		t.publish(ctx, topic, pubsub.Note("deploy failed: %s", err))
		return result, err
	}

	for {
		m, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.publish(ctx, topic, pubsub.Note("deploy interrupted: %s", err))
			return result, err
		}

		if payload, err := json.Marshal(m); err == nil {
			t.publish(ctx, topic, payload)
		}

		if !m.Success {
			result.Bad += 1
			result.Failures = append(result.Failures, m.Error)
			t.logger.Printf(
				"create container failed: app=%s commit=%s error=%s",
				opts.Appname, rel.ShortCommit(), m.Error,
			)
			continue
		}

		registered, err := t.register(ctx, m, rel, opts)
		if err != nil {
			result.Bad += 1
			result.Failures = append(result.Failures, fmt.Sprintf("register %s failed: %s", m.Id, err))
			t.logger.Printf("register container %s failed: %s", m.Id, err)
			t.publish(ctx, topic, pubsub.Note("register %s failed: %s", m.Id, err))
			continue
		}
		result.Good += 1
		result.Registered = append(result.Registered, registered)

		if err := t.oplog.Record(ctx, domain.OpLog{
			Actor:   actor,
			OpType:  domain.OpCreateContainer,
			Appname: opts.Appname,
			Commit:  rel.Commit,
			Detail: map[string]interface{}{
				"containerId": registered.ContainerId,
				"zone":        opts.Zone,
				"entrypoint":  opts.Entrypoint,
			},
			At: time.Now(),
		}); err != nil {
			t.logger.Printf("record oplog failed: %s", err)
		}
	}

	t.report(ctx, rel, opts, result)
	return result, nil
}

func (t *task) register(
	ctx context.Context, m core.Message, rel domain.Release, opts domain.DeployOptions,
) (domain.Container, error) {
	status := domain.OverrideNone
	if opts.Debug {
		status = domain.OverrideDebug
	}
	envname := opts.Envname
	if envname == "" {
		if combo, ok := rel.Manifest.Combos[opts.ComboName]; ok {
			envname = combo.Envname
		}
	}
	return t.containers.Register(ctx, domain.Container{
		ContainerId:    m.Id,
		Appname:        opts.Appname,
		Commit:         rel.Commit,
		ComboName:      opts.ComboName,
		EntrypointName: opts.Entrypoint,
		Envname:        envname,
		CpuQuota:       opts.CpuQuota,
		Memory:         opts.Memory,
		Zone:           opts.Zone,
		Podname:        m.Podname,
		Nodename:       m.Nodename,
		OverrideStatus: status,
		Health:         domain.HealthInfo{Publish: m.Publish},
	})
}

func (t *task) report(ctx context.Context, rel domain.Release, opts domain.DeployOptions, result Result) {
	audiences := rel.Subscribers(t.opsChannel)

	lines := []string{
		fmt.Sprintf(
			"deployed %d container(s) of %s @ %s in zone %s",
			result.Good, opts.Appname, rel.ShortCommit(), opts.Zone,
		),
	}
	if len(result.Registered) != 0 {
		lines = append(lines, "*good news*:")
		for _, c := range result.Registered {
			lines = append(lines, fmt.Sprintf("  %s on %s", c.ContainerId, c.Nodename))
		}
	}
	if result.Bad != 0 {
		lines = append(lines, "*bad news*:")
		for _, failure := range result.Failures {
			lines = append(lines, "  "+failure)
		}
		lines = append(lines, fmt.Sprintf(
			"%d container(s) failed to start. %s please have a look.",
			result.Bad, notify.Mention(t.maintainer),
		))
	}

	if err := t.notifier.Send(ctx, audiences, strings.Join(lines, "\n")); err != nil {
		t.logger.Printf("notify failed: %s", err)
	}
}

func (t *task) publish(ctx context.Context, topic string, payload []byte) {
	if err := t.broker.Publish(ctx, topic, payload); err != nil {
		t.logger.Printf("publish on %s failed: %s", topic, err)
	}
}

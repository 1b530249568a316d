package main

import (
	"context"
	"log"
	"time"

	"github.com/opst/stevedore/cmd/loops/recurring"
	"github.com/opst/stevedore/cmd/loops/tasks/cronjob"
	"github.com/opst/stevedore/cmd/loops/tasks/reconcile"
	"github.com/opst/stevedore/cmd/loops/tasks/tackleloop"
	"github.com/opst/stevedore/pkg/configs/server"
	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/core"
	contpg "github.com/opst/stevedore/pkg/domain/container/db/postgres"
	coolpg "github.com/opst/stevedore/pkg/domain/cooldown/db/postgres"
	healthpg "github.com/opst/stevedore/pkg/domain/health/db/postgres"
	oplogpg "github.com/opst/stevedore/pkg/domain/oplog/db/postgres"
	relpg "github.com/opst/stevedore/pkg/domain/release/db/postgres"
	"github.com/opst/stevedore/pkg/elb"
	"github.com/opst/stevedore/pkg/loop"
	"github.com/opst/stevedore/pkg/notify"
	pgnotify "github.com/opst/stevedore/pkg/pubsub/postgres"
	"github.com/opst/stevedore/pkg/tasks/deploy"
	"github.com/opst/stevedore/pkg/tasks/remove"
	"github.com/opst/stevedore/pkg/tasks/tackle"
	"github.com/opst/stevedore/pkg/tasks/upgrade"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

// monitor logs start and end of each cycle of task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)
		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s",
				counter, time.Since(timestamp), next,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// workbench is the dependency set every loop draws from.
type workbench struct {
	conf  *server.Config
	pool  kpool.Pool
	cores core.Dispatcher
}

func (w workbench) deployer(logger *log.Logger) deploy.Interface {
	return deploy.New(
		w.cores,
		contpg.New(w.pool),
		oplogpg.New(w.pool),
		pgnotify.New(w.pool),
		notify.New(w.conf.Notify.Endpoint),
		w.conf.Notify.OpsChannel,
		w.conf.Notify.Maintainer,
		logger,
	)
}

func (w workbench) remover(logger *log.Logger) remove.Interface {
	return remove.New(
		w.cores,
		contpg.New(w.pool),
		oplogpg.New(w.pool),
		elb.New(w.conf.Elb),
		pgnotify.New(w.pool),
		notify.New(w.conf.Notify.Endpoint),
		w.conf.Notify.OpsChannel,
		logger,
	)
}

func (w workbench) upgrader(logger *log.Logger) upgrade.Interface {
	return upgrade.New(
		contpg.New(w.pool),
		w.deployer(logger),
		w.remover(logger),
		pgnotify.New(w.pool),
		logger,
	)
}

func StartLoop(
	ctx context.Context,
	logger *log.Logger,
	conf *server.Config,
	pool kpool.Pool,
	loopType LoopType,
	policy recurring.Policy,
) error {
	w := workbench{
		conf:  conf,
		pool:  pool,
		cores: core.NewDispatcher(conf.Zones),
	}

	switch loopType {
	case TackleLoop:
		return startTackleLoop(ctx, logger, w, policy)
	case CronLoop:
		return startCronLoop(ctx, logger, w, policy)
	case ReconcileLoop:
		return startReconcileLoop(ctx, logger, w)
	}
	return nil
}

func startTackleLoop(ctx context.Context, logger *log.Logger, w workbench, policy recurring.Policy) error {
	l := byLogger(logger, Copied(), WithPrefix("[tackle loop] "))

	engine := tackle.NewEngine(
		contpg.New(w.pool),
		healthpg.New(w.pool),
		coolpg.New(w.pool),
		tackle.Builtin(),
		tackle.Tools{
			Upgrader:   w.upgrader(l),
			Notifier:   notify.New(w.conf.Notify.Endpoint),
			OpsChannel: w.conf.Notify.OpsChannel,
			Logger:     l,
		},
		l,
	)

	_, err := loop.Start(
		ctx, tackleloop.Seed(),
		monitor(l, tackleloop.Task(relpg.New(w.pool), engine, l).Applied(policy)),
		loop.WithTimeout(5*time.Minute),
	)
	return err
}

func startCronLoop(ctx context.Context, logger *log.Logger, w workbench, policy recurring.Policy) error {
	l := byLogger(logger, Copied(), WithPrefix("[cron loop] "))

	_, err := loop.Start(
		ctx, cronjob.Seed(),
		monitor(l, cronjob.Task(
			relpg.New(w.pool),
			contpg.New(w.pool),
			w.deployer(l),
			notify.New(w.conf.Notify.Endpoint),
			w.conf.Notify.OpsChannel,
			l,
		).Applied(policy)),
		loop.WithTimeout(5*time.Minute),
	)
	return err
}

func startReconcileLoop(ctx context.Context, logger *log.Logger, w workbench) error {
	l := byLogger(logger, Copied(), WithPrefix("[reconcile loop] "))

	r := reconcile.New(
		contpg.New(w.pool),
		relpg.New(w.pool),
		healthpg.New(w.pool),
		elb.New(w.conf.Elb),
		w.remover(l),
		notify.New(w.conf.Notify.Endpoint),
		pgnotify.New(w.pool),
		w.conf.Notify.OpsChannel,
		w.conf.LogViewer,
		w.conf.Retention(),
		l,
	)
	return r.Run(ctx)
}

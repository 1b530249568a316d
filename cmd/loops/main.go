package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/opst/stevedore/cmd/loops/recurring"
	"github.com/opst/stevedore/pkg/configs/server"
	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/utils/args"
	"github.com/opst/stevedore/pkg/utils/filewatch"
	"github.com/opst/stevedore/pkg/utils/try"
)

type LoopType string

const (
	TackleLoop    LoopType = "tackle"
	CronLoop      LoopType = "cron"
	ReconcileLoop LoopType = "reconcile"
)

func (lt LoopType) String() string {
	return string(lt)
}

func AsLoopType(s string) (LoopType, error) {
	switch lt := LoopType(s); lt {
	case TackleLoop, CronLoop, ReconcileLoop:
		return lt, nil
	}
	return "", fmt.Errorf("unknown loop type: %s (should be one of -- tackle|cron|reconcile)", s)
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	pconfig := flag.String(
		"config", os.Getenv("STEVEDORE_CONFIG"), "path to config file",
	)
	loopType := args.Parser(AsLoopType)
	flag.Var(loopType, "type", "one of loop type (tackle|cron|reconcile)")
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as interval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	flag.Parse()

	if !loopType.IsSet() {
		logger.Fatal("--type is required")
	}

	{
		// restart (by the process supervisor) on config change
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(server.Load(*pconfig)).OrFatal(logger)
	pool := try.To(kpool.New(ctx, conf.Database)).OrFatal(logger)

	pol := recurring.Forever(0)
	if policy.IsSet() {
		pol = policy.Value()
	}

	logger.Printf(`start loop "%s" /w policy "%s"`, loopType.Value(), pol.String())

	err := StartLoop(ctx, logger, conf, pool, loopType.Value(), recurring.UntilError(pol))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Fatal(err, " (loop context is cancelled by: ", context.Cause(ctx), ")")
	}
	logger.Fatal(err)
}

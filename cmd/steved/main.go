package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/opst/stevedore/cmd/steved/handlers"
	"github.com/opst/stevedore/pkg/configs/server"
	kpool "github.com/opst/stevedore/pkg/conn/postgres/pool"
	"github.com/opst/stevedore/pkg/core"
	contpg "github.com/opst/stevedore/pkg/domain/container/db/postgres"
	oplogpg "github.com/opst/stevedore/pkg/domain/oplog/db/postgres"
	relpg "github.com/opst/stevedore/pkg/domain/release/db/postgres"
	"github.com/opst/stevedore/pkg/domain/schema"
	"github.com/opst/stevedore/pkg/elb"
	"github.com/opst/stevedore/pkg/notify"
	pgnotify "github.com/opst/stevedore/pkg/pubsub/postgres"
	"github.com/opst/stevedore/pkg/scm"
	"github.com/opst/stevedore/pkg/tasks/build"
	"github.com/opst/stevedore/pkg/tasks/deploy"
	"github.com/opst/stevedore/pkg/tasks/remove"
	"github.com/opst/stevedore/pkg/tasks/upgrade"
	"github.com/opst/stevedore/pkg/utils/echoutil"
	"github.com/opst/stevedore/pkg/utils/filewatch"
)

func main() {
	configPath := flag.String(
		"config-path", os.Getenv("STEVEDORE_CONFIG"), "server config path",
	)
	loglevel := flag.String("loglevel", "info", "log level. debug|info|warn|error|off")
	pcert := flag.String("cert", "", "certification file for TLS")
	pkey := flag.String("certkey", "", "key of certification file for TLS")
	flag.Parse()

	e := echo.New()
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, *loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	conf, err := server.Load(*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	{
		// restart (by the process supervisor) on config change
		wctx, cancel, err := filewatch.UntilModifyContext(context.Background(), *configPath)
		if err != nil {
			log.Fatalf("can not watch configuration: %s", err)
		}
		defer cancel()
		context.AfterFunc(wctx, func() {
			graceful, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := e.Shutdown(graceful); err != nil {
				log.Printf("error on shutdown by config update: %s", err)
			}
		})
	}

	ctx := context.Background()
	pool, err := kpool.New(ctx, conf.Database)
	if err != nil {
		log.Fatalf("can not connect to database: %s", err)
	}
	defer pool.Close()
	if err := schema.Apply(ctx, pool); err != nil {
		log.Fatalf("can not prepare database schema: %s", err)
	}

	containers := contpg.New(pool)
	releases := relpg.New(pool)
	oplog := oplogpg.New(pool)
	broker := pgnotify.New(pool)
	cores := core.NewDispatcher(conf.Zones)
	balancer := elb.New(conf.Elb)
	notifier := notify.New(conf.Notify.Endpoint)
	source := scm.New(conf.Scm)
	wlog := log.Default()

	deployer := deploy.New(
		cores, containers, oplog, broker, notifier,
		conf.Notify.OpsChannel, conf.Notify.Maintainer, wlog,
	)
	remover := remove.New(
		cores, containers, oplog, balancer, broker, notifier,
		conf.Notify.OpsChannel, wlog,
	)
	upgrader := upgrade.New(containers, deployer, remover, broker, wlog)
	builder := build.New(cores, releases, oplog, broker, conf.BuildZone, wlog)

	{
		e.POST("/api/releases/", handlers.RegisterReleaseHandler(releases, source))
		e.POST("/api/build/", handlers.BuildHandler(releases, builder, broker))
		e.POST("/api/deploy/", handlers.DeployHandler(releases, deployer, broker))
		e.POST("/api/remove/", handlers.RemoveHandler(containers, remover, broker))
		e.POST("/api/upgrade/", handlers.UpgradeHandler(releases, upgrader, broker))
	}
	{
		e.GET("/api/containers/", handlers.FindContainerHandler(containers))
		e.GET("/api/containers/:id/", handlers.GetContainerHandler(containers, "id"))
		e.POST("/api/containers/:id/debug/", handlers.DebugHandler(containers, "id"))
	}
	e.POST("/api/events/", handlers.HealthEventHandler(broker))

	log.Println("registered routes:")
	for _, r := range e.Routes() {
		log.Println(r.Method, r.Path)
	}

	addr := fmt.Sprintf(":%d", conf.Port)
	if cert, key := *pcert, *pkey; cert != "" && key != "" {
		e.Logger.Fatal(e.StartTLS(addr, cert, key))
	} else {
		e.Logger.Fatal(e.Start(addr))
	}
}

// Package cronjob fires scheduled combos of apps declaring a crontab.
package cronjob

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opst/stevedore/cmd/loops/recurring"
	"github.com/opst/stevedore/pkg/domain"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	reldb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/domain/spec"
	"github.com/opst/stevedore/pkg/notify"
	"github.com/opst/stevedore/pkg/tasks/deploy"
	"github.com/robfig/cron/v3"
)

// Seed starts the schedule cursor at now: ticks before the loop came up
// are not replayed.
func Seed() time.Time {
	return time.Now()
}

// Task fires every crontab entry whose schedule ticked since the cursor,
// then advances the cursor. Each tick fires exactly once no matter how
// often the loop cycles.
//
// An entry is skipped, and the app's subscribers told, when a container
// of its combo still exists: the previous job has not finished (or
// failed and was kept for inspection).
func Task(
	releases reldb.ReleaseInterface,
	containers contdb.ContainerInterface,
	deployer deploy.Interface,
	notifier notify.Interface,
	opsChannel string,
	logger *log.Logger,
) recurring.Task[time.Time] {
	return func(ctx context.Context, cursor time.Time) (time.Time, bool, error) {
		now := time.Now()

		rels, err := releases.AppsWithCrontab(ctx)
		if err != nil {
			return cursor, false, err
		}

		for _, rel := range rels {
			for _, entry := range rel.Manifest.Crontab {
				sched, err := cron.ParseStandard(entry.Schedule)
				if err != nil {
					logger.Printf("bad crontab of %s: %s", rel.Appname, err)
					continue
				}
				if sched.Next(cursor).After(now) {
					continue
				}
				fire(ctx, rel, entry, containers, deployer, notifier, opsChannel, logger)
			}
		}
		return now, false, nil
	}
}

func fire(
	ctx context.Context,
	rel domain.Release,
	entry spec.CronEntry,
	containers contdb.ContainerInterface,
	deployer deploy.Interface,
	notifier notify.Interface,
	opsChannel string,
	logger *log.Logger,
) {
	combo, ok := rel.Manifest.Combos[entry.Combo]
	if !ok {
		logger.Printf("crontab of %s names unknown combo %s", rel.Appname, entry.Combo)
		return
	}
	if rel.Image == "" {
		logger.Printf("crontab of %s skipped: release %s has no image", rel.Appname, rel.ShortCommit())
		return
	}

	leftover, err := containers.Find(ctx, domain.ContainerFindQuery{
		Appname:        rel.Appname,
		EntrypointName: combo.Entrypoint,
	})
	if err != nil {
		logger.Printf("listing containers of %s failed: %s", rel.Appname, err)
		return
	}
	if len(leftover) != 0 {
		text := fmt.Sprintf(
			"Cronjob %s of %s skipped because the last job's container is still around",
			entry.Combo, rel.Appname,
		)
		if err := notifier.Send(ctx, rel.Subscribers(opsChannel), text); err != nil {
			logger.Printf("notify failed: %s", err)
		}
		return
	}

	count := combo.Count
	if count == 0 {
		count = 1
	}
	_, err = deployer.Deploy(ctx, uuid.NewString(), "cron", rel, domain.DeployOptions{
		Appname:    rel.Appname,
		Image:      rel.Image,
		Podname:    combo.Podname,
		Entrypoint: combo.Entrypoint,
		ComboName:  entry.Combo,
		Envname:    combo.Envname,
		CpuQuota:   combo.CpuQuota,
		Memory:     combo.Memory,
		Count:      count,
		Zone:       combo.Zone,
		Manifest:   rel.ManifestText,
	})
	if err != nil {
		logger.Printf("cronjob %s of %s failed: %s", entry.Combo, rel.Appname, err)
	}
}

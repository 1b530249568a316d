// Package tackleloop periodically runs remediation rules of every app
// declaring them.
package tackleloop

import (
	"context"
	"log"

	"github.com/opst/stevedore/cmd/loops/recurring"
	reldb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/tasks/tackle"
)

func Seed() struct{} {
	return struct{}{}
}

// Task scans apps with tackle rules and lets the engine judge each one.
//
// The cycle never reports backlog; the policy's interval paces the scan.
func Task(
	releases reldb.ReleaseInterface,
	engine *tackle.Engine,
	logger *log.Logger,
) recurring.Task[struct{}] {
	return func(ctx context.Context, cursor struct{}) (struct{}, bool, error) {
		rels, err := releases.AppsWithTackleRules(ctx)
		if err != nil {
			return cursor, false, err
		}

		for _, rel := range rels {
			if err := engine.TackleApp(ctx, rel); err != nil {
				logger.Printf("tackling %s failed: %s", rel.Appname, err)
			}
		}
		return cursor, false, nil
	}
}

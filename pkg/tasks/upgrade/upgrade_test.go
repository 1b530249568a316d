package upgrade_test

import (
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/opst/stevedore/pkg/domain"
	contmock "github.com/opst/stevedore/pkg/domain/container/db/mock"
	"github.com/opst/stevedore/pkg/domain/errors/dberrors"
	"github.com/opst/stevedore/pkg/domain/spec"
	psmock "github.com/opst/stevedore/pkg/pubsub/mock"
	"github.com/opst/stevedore/pkg/tasks/deploy"
	depmock "github.com/opst/stevedore/pkg/tasks/deploy/mock"
	"github.com/opst/stevedore/pkg/tasks/remove"
	remmock "github.com/opst/stevedore/pkg/tasks/remove/mock"
	"github.com/opst/stevedore/pkg/tasks/taskerr"
	"github.com/opst/stevedore/pkg/tasks/upgrade"
	"github.com/opst/stevedore/pkg/utils/cmp"
	"github.com/opst/stevedore/pkg/utils/try"
)

func quiet() *log.Logger {
	return log.New(&strings.Builder{}, "", 0)
}

func testRelease() domain.Release {
	return domain.Release{
		ReleaseId: 42,
		Appname:   "notes",
		Commit:    "0123456789abcdef",
		Image:     "registry.example.com/notes:0123456",
		Manifest:  spec.Manifest{Appname: "notes", ErectionTimeout: 1},
		ManifestText: `appname: notes
erection_timeout: 1
`,
	}
}

func oldContainer() domain.Container {
	return domain.Container{
		ContainerId:    "container-old-0001",
		Appname:        "notes",
		Commit:         "fedcba9876543210",
		Zone:           "tokyo",
		Envname:        "prod",
		EntrypointName: "web",
		ComboName:      "prod-web",
		Revision:       2,
	}
}

type fixture struct {
	containers *contmock.ContainerInterface
	deployer   *depmock.Deployer
	remover    *remmock.Remover
	broker     *psmock.Broker
}

func (f *fixture) build(options ...upgrade.Option) upgrade.Interface {
	return upgrade.New(f.containers, f.deployer, f.remover, f.broker, quiet(), options...)
}

func newFixture(old domain.Container) *fixture {
	f := &fixture{
		containers: contmock.NewContainerInterface(),
		deployer:   depmock.New(),
		remover:    remmock.New(),
		broker:     psmock.New(),
	}
	f.containers.Impl.Get = func(ctx context.Context, idPrefix string) (domain.Container, error) {
		if strings.HasPrefix(old.ContainerId, idPrefix) {
			return old, nil
		}
		return domain.Container{}, dberrors.Missing{Table: "container", Identity: idPrefix}
	}
	f.deployer.Impl.Deploy = func(
		ctx context.Context, operationId string, actor string,
		rel domain.Release, opts domain.DeployOptions,
	) (deploy.Result, error) {
		return deploy.Result{
			Good: 1,
			Registered: []domain.Container{{
				ContainerId: "container-new-0001",
				Appname:     opts.Appname,
				Zone:        opts.Zone,
				Envname:     opts.Envname,
			}},
		}, nil
	}
	f.remover.Impl.Remove = func(
		ctx context.Context, operationId string, actor string,
		zone string, idPrefixes []string,
	) (remove.Result, error) {
		return remove.Result{Good: len(idPrefixes), Removed: idPrefixes}, nil
	}
	return f
}

func TestUpgrade(t *testing.T) {
	t.Run("a release without an image is rejected before any side effect", func(t *testing.T) {
		f := newFixture(oldContainer())
		rel := testRelease()
		rel.Image = ""

		_, err := f.build().Upgrade(
			context.Background(), "op-1", "alice", rel,
			[]string{"container-old"}, "", 0,
		)

		oe, ok := taskerr.As(err)
		if !ok || oe.Code != 400 {
			t.Fatalf("got %v, want a 400-class OperationError", err)
		}
		if f.deployer.Calls.Deploy.Times() != 0 || f.remover.Calls.Remove.Times() != 0 {
			t.Error("nothing should be deployed or removed")
		}
	})

	t.Run("a container of another app is rejected", func(t *testing.T) {
		old := oldContainer()
		old.Appname = "wiki"
		f := newFixture(old)

		_, err := f.build().Upgrade(
			context.Background(), "op-2", "alice", testRelease(),
			[]string{"container-old"}, "", 0,
		)

		oe, ok := taskerr.As(err)
		if !ok || oe.Code != 400 {
			t.Fatalf("got %v, want a 400-class OperationError", err)
		}
	})

	t.Run("a healthy replica is promoted and the old container removed", func(t *testing.T) {
		f := newFixture(oldContainer())
		f.containers.Impl.GetHealth = func(ctx context.Context, containerId string) (domain.HealthInfo, error) {
			return domain.HealthInfo{Running: true, Healthy: true}, nil
		}

		result := try.To(f.build(upgrade.WithInterval(time.Millisecond)).Upgrade(
			context.Background(), "op-3", "alice", testRelease(),
			[]string{"container-old"}, "", 0,
		)).OrFatal(t)

		if result.Upgraded != 1 || result.Failed != 0 {
			t.Errorf("tally: got %+v", result)
		}

		deployed := f.deployer.Calls.Deploy
		if deployed.Times() != 1 {
			t.Fatalf("deploys: got %d", deployed.Times())
		}
		opts := deployed[0].Options
		if opts.Image != "registry.example.com/notes:0123456" {
			t.Errorf("image: got %s", opts.Image)
		}
		if opts.Envname != "prod" {
			t.Errorf("envname should be inherited: got %s", opts.Envname)
		}
		if opts.Count != 1 || opts.Nodename != "" {
			t.Errorf("replacement options: got %+v", opts)
		}

		removed := f.remover.Calls.Remove
		if removed.Times() != 1 {
			t.Fatalf("removes: got %d", removed.Times())
		}
		if !cmp.SliceEq(removed[0].IdPrefixes, []string{"container-old-0001"}) ||
			removed[0].Zone != "tokyo" {
			t.Errorf("the old container should go: got %+v", removed[0])
		}
	})

	t.Run("an explicit envname overrides the old container's", func(t *testing.T) {
		f := newFixture(oldContainer())
		f.containers.Impl.GetHealth = func(ctx context.Context, containerId string) (domain.HealthInfo, error) {
			return domain.HealthInfo{Running: true, Healthy: true}, nil
		}

		try.To(f.build(upgrade.WithInterval(time.Millisecond)).Upgrade(
			context.Background(), "op-4", "alice", testRelease(),
			[]string{"container-old"}, "canary", 0,
		)).OrFatal(t)

		if got := f.deployer.Calls.Deploy[0].Options.Envname; got != "canary" {
			t.Errorf("envname: got %s", got)
		}
	})

	t.Run("a replica that never comes up is rolled back", func(t *testing.T) {
		f := newFixture(oldContainer())
		f.containers.Impl.GetHealth = func(ctx context.Context, containerId string) (domain.HealthInfo, error) {
			return domain.HealthInfo{Running: true, Healthy: false}, nil
		}

		result := try.To(f.build(upgrade.WithInterval(time.Millisecond)).Upgrade(
			context.Background(), "op-5", "alice", testRelease(),
			[]string{"container-old"}, "", 20*time.Millisecond,
		)).OrFatal(t)

		if result.Upgraded != 0 || result.Failed != 1 {
			t.Errorf("tally: got %+v", result)
		}

		removed := f.remover.Calls.Remove
		if removed.Times() != 1 {
			t.Fatalf("removes: got %d", removed.Times())
		}
		if !cmp.SliceEq(removed[0].IdPrefixes, []string{"container-new-0001"}) {
			t.Errorf("the replica should be rolled back: got %+v", removed[0])
		}
	})

	t.Run("NoWait promotes without consulting health", func(t *testing.T) {
		f := newFixture(oldContainer())
		// GetHealth stays unset: calling it would panic.

		result := try.To(f.build().Upgrade(
			context.Background(), "op-6", "alice", testRelease(),
			[]string{"container-old"}, "", upgrade.NoWait,
		)).OrFatal(t)

		if result.Upgraded != 1 {
			t.Errorf("tally: got %+v", result)
		}
		if !cmp.SliceEq(f.remover.Calls.Remove[0].IdPrefixes, []string{"container-old-0001"}) {
			t.Error("the old container should go")
		}
	})

	t.Run("an unknown prefix is skipped", func(t *testing.T) {
		f := newFixture(oldContainer())

		result := try.To(f.build().Upgrade(
			context.Background(), "op-7", "alice", testRelease(),
			[]string{"no-such"}, "", 0,
		)).OrFatal(t)

		if result.Upgraded != 0 || result.Failed != 0 {
			t.Errorf("tally: got %+v", result)
		}
		if f.deployer.Calls.Deploy.Times() != 0 {
			t.Error("nothing should be deployed")
		}
	})
}

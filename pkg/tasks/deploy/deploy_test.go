package deploy_test

import (
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/opst/stevedore/pkg/core"
	coremock "github.com/opst/stevedore/pkg/core/mock"
	"github.com/opst/stevedore/pkg/domain"
	contmock "github.com/opst/stevedore/pkg/domain/container/db/mock"
	oplogmock "github.com/opst/stevedore/pkg/domain/oplog/db/mock"
	"github.com/opst/stevedore/pkg/domain/spec"
	notifymock "github.com/opst/stevedore/pkg/notify/mock"
	psmock "github.com/opst/stevedore/pkg/pubsub/mock"
	"github.com/opst/stevedore/pkg/tasks/deploy"
	"github.com/opst/stevedore/pkg/utils/try"
)

func testRelease(t *testing.T) domain.Release {
	t.Helper()
	manifest := `
appname: notes
base: registry.example.com/notes:base
subscribers: ["#notes-dev"]
combos:
  prod-web:
    entrypoint: web
    envname: prod
`
	return domain.Release{
		ReleaseId:    1,
		Appname:      "notes",
		Commit:       "0123456789abcdef",
		Image:        "registry.example.com/notes:0123456",
		Manifest:     try.To(spec.Unmarshal([]byte(manifest))).OrFatal(t),
		ManifestText: manifest,
	}
}

func quiet() *log.Logger {
	return log.New(&strings.Builder{}, "", 0)
}

func TestDeploy(t *testing.T) {
	t.Run("it registers successes, tallies failures and reports both", func(t *testing.T) {
		coreClient := coremock.NewClient()
		coreClient.Impl.CreateContainers = func(ctx context.Context, opts domain.DeployOptions) (core.Stream, error) {
			return coremock.FixedStream(
				core.Message{Id: "container-aaaa", Success: true, Podname: "pod-1", Nodename: "node-1"},
				core.Message{Id: "container-bbbb", Success: true, Podname: "pod-1", Nodename: "node-2"},
				core.Message{Id: "", Success: false, Error: "no node has enough memory"},
			), nil
		}
		containers := contmock.NewContainerInterface()
		containers.Impl.Register = func(ctx context.Context, c domain.Container) (domain.Container, error) {
			c.Revision = 1
			return c, nil
		}
		oplog := oplogmock.NewOpLogInterface()
		broker := psmock.New()
		notifier := notifymock.New()

		task := deploy.New(
			&coremock.Dispatcher{Core: coreClient},
			containers, oplog, broker, notifier,
			"#platform", "oncall", quiet(),
		)

		rel := testRelease(t)
		result := try.To(task.Deploy(
			context.Background(), "op-1", "alice", rel,
			domain.DeployOptions{
				Appname: "notes", Image: rel.Image, ComboName: "prod-web",
				Entrypoint: "web", Count: 3, Zone: "tokyo",
			},
		)).OrFatal(t)

		if result.Good != 2 || result.Bad != 1 {
			t.Errorf("tally: got good=%d bad=%d, want 2/1", result.Good, result.Bad)
		}
		if len(containers.Calls.Register) != 2 {
			t.Fatalf("registered %d containers, want 2", containers.Calls.Register.Times())
		}
		registered := containers.Calls.Register[0]
		if registered.ContainerId != "container-aaaa" ||
			registered.Podname != "pod-1" || registered.Nodename != "node-1" ||
			registered.Commit != rel.Commit ||
			registered.OverrideStatus != domain.OverrideNone {
			t.Errorf("registered record: got %+v", registered)
		}
		if registered.Envname != "prod" {
			t.Errorf("envname should come from the combo: got %s", registered.Envname)
		}

		if oplog.Calls.Record.Times() != 2 {
			t.Errorf("audit entries: got %d, want 2", oplog.Calls.Record.Times())
		}

		// every stream message went to the operation topic.
		published := 0
		for _, p := range broker.Calls.Publish {
			if p.Topic == "op.op-1" {
				published += 1
			}
		}
		if published != 3 {
			t.Errorf("published messages: got %d, want 3", published)
		}

		if notifier.Calls.Send.Times() != 1 {
			t.Fatalf("notifications: got %d, want 1", notifier.Calls.Send.Times())
		}
		sent := notifier.Calls.Send[0]
		if len(sent.Audiences) != 1 || sent.Audiences[0] != "#notes-dev" {
			t.Errorf("audiences: got %v, want the release subscribers", sent.Audiences)
		}
		if !strings.Contains(sent.Text, "deployed 2 container(s)") {
			t.Errorf("good news is missing: %s", sent.Text)
		}
		for _, id := range []string{"container-aaaa", "container-bbbb"} {
			if !strings.Contains(sent.Text, id) {
				t.Errorf("every registered container should be listed: %s", sent.Text)
			}
		}
		if !strings.Contains(sent.Text, "no node has enough memory") {
			t.Errorf("the failure reason should be listed: %s", sent.Text)
		}
		if !strings.Contains(sent.Text, "@oncall") {
			t.Errorf("maintainer should be mentioned on failures: %s", sent.Text)
		}
	})

	t.Run("it marks debug deployments with the debug override", func(t *testing.T) {
		coreClient := coremock.NewClient()
		coreClient.Impl.CreateContainers = func(ctx context.Context, opts domain.DeployOptions) (core.Stream, error) {
			return coremock.FixedStream(
				core.Message{Id: "container-dddd", Success: true},
			), nil
		}
		containers := contmock.NewContainerInterface()
		containers.Impl.Register = func(ctx context.Context, c domain.Container) (domain.Container, error) {
			return c, nil
		}

		task := deploy.New(
			&coremock.Dispatcher{Core: coreClient},
			containers, oplogmock.NewOpLogInterface(), psmock.New(), notifymock.New(),
			"#platform", "oncall", quiet(),
		)

		rel := testRelease(t)
		try.To(task.Deploy(
			context.Background(), "op-2", "alice", rel,
			domain.DeployOptions{Appname: "notes", Zone: "tokyo", Debug: true},
		)).OrFatal(t)

		if got := containers.Calls.Register[0].OverrideStatus; got != domain.OverrideDebug {
			t.Errorf("override status: got %s, want debug", got)
		}
	})

	t.Run("a failed registration counts as bad news, not a fatal error", func(t *testing.T) {
		coreClient := coremock.NewClient()
		coreClient.Impl.CreateContainers = func(ctx context.Context, opts domain.DeployOptions) (core.Stream, error) {
			return coremock.FixedStream(
				core.Message{Id: "container-eeee", Success: true},
				core.Message{Id: "container-ffff", Success: true},
			), nil
		}
		containers := contmock.NewContainerInterface()
		containers.Impl.Register = func(ctx context.Context, c domain.Container) (domain.Container, error) {
			if c.ContainerId == "container-eeee" {
				return domain.Container{}, errors.New("duplicated id")
			}
			return c, nil
		}

		task := deploy.New(
			&coremock.Dispatcher{Core: coreClient},
			containers, oplogmock.NewOpLogInterface(), psmock.New(), notifymock.New(),
			"#platform", "oncall", quiet(),
		)

		result := try.To(task.Deploy(
			context.Background(), "op-3", "alice", testRelease(t),
			domain.DeployOptions{Appname: "notes", Zone: "tokyo"},
		)).OrFatal(t)

		if result.Good != 1 || result.Bad != 1 {
			t.Errorf("tally: got good=%d bad=%d, want 1/1", result.Good, result.Bad)
		}
		if len(result.Registered) != 1 || result.Registered[0].ContainerId != "container-ffff" {
			t.Errorf("registered: got %+v", result.Registered)
		}
	})
}

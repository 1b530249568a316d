// Package build turns a release into a runnable image.
package build

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/opst/stevedore/pkg/core"
	"github.com/opst/stevedore/pkg/domain"
	opdb "github.com/opst/stevedore/pkg/domain/oplog/db"
	reldb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/tasks/taskerr"
)

type Interface interface {
	// Build produces the image of rel and records it on the release.
	//
	// A raw release (manifest without a build clause) is resolved to its
	// base image without calling the core. Otherwise the build core
	// streams progress; every message is published on the operation
	// topic, and the finished message carries the image tag.
	//
	// Returns the image reference recorded.
	Build(ctx context.Context, operationId string, actor string, app domain.App, rel domain.Release) (string, error)
}

type task struct {
	cores    core.Dispatcher
	releases reldb.ReleaseInterface
	oplog    opdb.OpLogInterface
	broker   pubsub.Broker

	// zone whose core runs builds.
	buildZone string
	logger    *log.Logger
}

var _ Interface = &task{}

func New(
	cores core.Dispatcher,
	releases reldb.ReleaseInterface,
	oplog opdb.OpLogInterface,
	broker pubsub.Broker,
	buildZone string,
	logger *log.Logger,
) *task {
	return &task{
		cores:     cores,
		releases:  releases,
		oplog:     oplog,
		broker:    broker,
		buildZone: buildZone,
		logger:    logger,
	}
}

func (t *task) Build(
	ctx context.Context,
	operationId string,
	actor string,
	app domain.App,
	rel domain.Release,
) (string, error) {
	topic := pubsub.OperationTopic(operationId)

	if rel.Raw() {
		if rel.Manifest.Base == "" {
			return "", taskerr.BadRequest(
				"release %s@%s declares neither build nor base", rel.Appname, rel.ShortCommit(),
			)
		}
		if err := t.releases.SetImage(ctx, rel.ReleaseId, rel.Manifest.Base); err != nil {
			return "", err
		}
		t.publish(ctx, topic, pubsub.Note(
			"%s@%s is raw. using %s.", rel.Appname, rel.ShortCommit(), rel.Manifest.Base,
		))
		t.audit(ctx, actor, rel, rel.Manifest.Base)
		return rel.Manifest.Base, nil
	}

	c, err := t.cores.GetCore(t.buildZone)
	if err != nil {
		return "", err
	}
	stream, err := c.Build(ctx, core.BuildRequest{
		Repo:        app.Repo,
		Commit:      rel.Commit,
		RequesterId: actor,
	})
	if err != nil {
		t.publish(ctx, topic, pubsub.Note("build failed: %s", err))
		return "", err
	}

	image := ""
	for {
		m, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.publish(ctx, topic, pubsub.Note("build interrupted: %s", err))
			return "", err
		}

		if payload, err := json.Marshal(m); err == nil {
			t.publish(ctx, topic, payload)
		}

		switch m.Status {
		case core.StatusFinished:
			// the finished message carries the image tag as progress.
			image = m.Progress
		case core.StatusError:
			return "", taskerr.Internal(
				"building "+rel.Appname+"@"+rel.ShortCommit()+" failed: "+m.Error, nil,
			)
		}
	}
	if image == "" {
		return "", taskerr.Internal("build stream ended without an image", nil)
	}

	if err := t.releases.SetImage(ctx, rel.ReleaseId, image); err != nil {
		return "", err
	}
	t.audit(ctx, actor, rel, image)
	return image, nil
}

func (t *task) audit(ctx context.Context, actor string, rel domain.Release, image string) {
	if err := t.oplog.Record(ctx, domain.OpLog{
		Actor:   actor,
		OpType:  domain.OpBuildImage,
		Appname: rel.Appname,
		Commit:  rel.Commit,
		Detail:  map[string]interface{}{"image": image},
		At:      time.Now(),
	}); err != nil {
		t.logger.Printf("record oplog failed: %s", err)
	}
}

func (t *task) publish(ctx context.Context, topic string, payload []byte) {
	if err := t.broker.Publish(ctx, topic, payload); err != nil {
		t.logger.Printf("publish on %s failed: %s", topic, err)
	}
}

package handlers

import (
	"context"
	"encoding/json"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/pkg/api/binderr"
	"github.com/opst/stevedore/pkg/api/types/ops"
	"github.com/opst/stevedore/pkg/domain"
	reldb "github.com/opst/stevedore/pkg/domain/release/db"
	"github.com/opst/stevedore/pkg/domain/spec"
	"github.com/opst/stevedore/pkg/pubsub"
	"github.com/opst/stevedore/pkg/tasks/deploy"
)

// DeployHandler streams the creation of containers for one combo of a
// built release.
func DeployHandler(
	releases reldb.ReleaseInterface,
	deployer deploy.Interface,
	broker pubsub.Broker,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := ops.DeployRequest{}
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}

		rel, err := releases.GetByAppAndCommit(
			c.Request().Context(), req.Appname, req.Commit,
		)
		if err != nil {
			return binderr.From(err)
		}
		if rel.Image == "" {
			return binderr.BadRequest("the release has no image. build it first.", nil)
		}
		combo, ok := rel.Manifest.Combos[req.Combo]
		if !ok {
			return binderr.BadRequest("no such combo: "+req.Combo, nil)
		}

		opts := optionsFor(rel, req, combo)
		if opts.Zone == "" {
			return binderr.BadRequest("no zone: the combo declares none and the request names none", nil)
		}

		actor := actorOf(c)
		return streamOperation(c, broker, func(ctx context.Context, operationId string) error {
			_, err := deployer.Deploy(ctx, operationId, actor, rel, opts)
			return err
		})
	}
}

func optionsFor(rel domain.Release, req ops.DeployRequest, combo spec.Combo) domain.DeployOptions {
	count := req.Count
	if count == 0 {
		count = combo.Count
	}
	if count == 0 {
		count = 1
	}
	zone := req.Zone
	if zone == "" {
		zone = combo.Zone
	}
	envname := req.Envname
	if envname == "" {
		envname = combo.Envname
	}

	return domain.DeployOptions{
		Appname:    rel.Appname,
		Image:      rel.Image,
		Podname:    combo.Podname,
		Nodename:   req.Nodename,
		Entrypoint: combo.Entrypoint,
		ComboName:  req.Combo,
		Envname:    envname,
		CpuQuota:   combo.CpuQuota,
		Memory:     combo.Memory,
		Count:      count,
		Zone:       zone,
		Manifest:   rel.ManifestText,
		Raw:        rel.Raw(),
		Debug:      req.Debug,
		ExtraArgs:  req.ExtraArgs,
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/opst/stevedore/pkg/api/binderr"
	"github.com/opst/stevedore/pkg/api/types/ops"
	"github.com/opst/stevedore/pkg/domain"
	contdb "github.com/opst/stevedore/pkg/domain/container/db"
	"github.com/opst/stevedore/pkg/utils/slices"
)

func composeDetail(c domain.Container) ops.ContainerDetail {
	return ops.ContainerDetail{
		Id:          c.ContainerId,
		Appname:     c.Appname,
		Commit:      c.Commit,
		Combo:       c.ComboName,
		Entrypoint:  c.EntrypointName,
		Envname:     c.Envname,
		Zone:        c.Zone,
		Podname:     c.Podname,
		Nodename:    c.Nodename,
		CpuQuota:    c.CpuQuota,
		Memory:      c.Memory,
		Status:      c.Status(),
		Initialized: c.Initialized,
		Publish:     c.Health.Publish,
	}
}

// FindContainerHandler lists containers filtered by query parameters.
func FindContainerHandler(containers contdb.ContainerInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		found, err := containers.Find(c.Request().Context(), domain.ContainerFindQuery{
			Appname:        c.QueryParam("appname"),
			Commit:         c.QueryParam("commit"),
			EntrypointName: c.QueryParam("entrypoint"),
			Zone:           c.QueryParam("zone"),
		})
		if err != nil {
			return binderr.From(err)
		}
		return c.JSON(http.StatusOK, slices.Map(found, composeDetail))
	}
}

// GetContainerHandler shows one container by id or unique prefix.
func GetContainerHandler(containers contdb.ContainerInterface, paramId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		found, err := containers.Get(c.Request().Context(), c.Param(paramId))
		if err != nil {
			return binderr.From(err)
		}
		return c.JSON(http.StatusOK, composeDetail(found))
	}
}

// DebugHandler flips the debug override of a container. A debugging
// container stays out of load balancers until flipped back.
func DebugHandler(containers contdb.ContainerInterface, paramId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := ops.DebugRequest{}
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return binderr.BadRequest("can not understand the requested json", err)
		}

		ctx := c.Request().Context()
		found, err := containers.Get(ctx, c.Param(paramId))
		if err != nil {
			return binderr.From(err)
		}
		if found.OverrideStatus == domain.OverrideRemoving {
			return binderr.Conflict("the container is being removed")
		}

		status := domain.OverrideNone
		if req.Debug {
			status = domain.OverrideDebug
		}
		if status != found.OverrideStatus {
			if err := containers.SetOverrideStatus(
				ctx, found.ContainerId, found.Revision, status,
			); err != nil {
				return binderr.From(err)
			}
			found.OverrideStatus = status
		}
		return c.JSON(http.StatusOK, composeDetail(found))
	}
}

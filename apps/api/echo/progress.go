package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type progressApi struct {
	deps ServerDeps
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{deps: deps}

	g.POST("/lessons/:id/progress/toggle", api.toggle, jwt)
}

// toggle flips one inline item and returns the full rollup snapshot.
// Role, enrollment and input failures surface as {"error": ...} with the
// status the frontend matches on.
func (api *progressApi) toggle(ctx echo.Context) error {
	var data ToggleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}

	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.deps.ProgressSvc.ToggleItem(
		ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.Section, data.Index, data.Completed)
	if err != nil {
		return errors.Wrap(err, "toggling item progress")
	}
	return ctx.JSON(http.StatusOK, res)
}

// ToggleRequest carries the raw toggle inputs; index and completed are kept
// as strings and validated by the service.
type ToggleRequest struct {
	Section   string `json:"section" form:"section"`
	Index     string `json:"index" form:"index"`
	Completed string `json:"completed" form:"completed"`
}

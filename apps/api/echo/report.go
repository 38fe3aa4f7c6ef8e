package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type reportApi struct {
	deps ServerDeps
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{deps: deps}

	rg := g.Group("/reports", jwt)
	rg.GET("/me", api.studentOverall)
	rg.GET("/instructor", api.instructor)
	rg.GET("/courses/:id/students/:sid", api.studentCourse)
}

// Handlers

func (api *reportApi) studentOverall(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsStudent() {
		return errHTTPForbidden
	}

	rpt, err := api.deps.ProgressSvc.StudentOverallReport(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "building overall report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}

func (api *reportApi) instructor(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rpt, err := api.deps.ProgressSvc.InstructorReport(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "building instructor report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}

func (api *reportApi) studentCourse(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rpt, err := api.deps.ProgressSvc.StudentCourseReport(
		ctx.Request().Context(), ctxUsr, ctx.Param("id"), ctx.Param("sid"))
	if err != nil {
		return errors.Wrap(err, "building course report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}

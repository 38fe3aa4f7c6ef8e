package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

type courseApi struct {
	deps ServerDeps
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{deps: deps}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.GET("/mine", api.queryMine)
	cg.GET("/available", api.queryAvailable, studentMiddleware())
	cg.POST("", api.create, instructorMiddleware())

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, instructorMiddleware())
	dg.DELETE("", api.destroy, instructorMiddleware())
	dg.POST("/publish", api.publish, instructorMiddleware())
	dg.POST("/enroll", api.enroll, studentMiddleware())
	dg.GET("/lessons", api.queryLessons)
	dg.POST("/lessons", api.createLesson, instructorMiddleware())

	lg := g.Group("/lessons/:id", jwt)
	lg.GET("", api.retrieveLesson)
	lg.PUT("", api.updateLesson, instructorMiddleware())
	lg.DELETE("", api.destroyLesson, instructorMiddleware())
}

// ownedCourse fetches the course and enforces that the context user owns it
// (admins bypass the check).
func (api *courseApi) ownedCourse(ctx echo.Context, id string) (course.Course, user.User, error) {
	crs, err := api.deps.CourseSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return course.Course{}, user.User{}, errors.Wrapf(err, "getting course %s", id)
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return course.Course{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && crs.InstructorID != ctxUsr.ID {
		return course.Course{}, user.User{}, errHTTPForbidden
	}
	return crs, ctxUsr, nil
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := course.QueryFilter{}
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	switch {
	case ctxUsr.IsInstructor():
		filter.InstructorID = ctxUsr.ID
	case ctxUsr.IsStudent():
		filter.Status = course.StatusActive
		isDraft := false
		filter.IsDraft = &isDraft
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.deps.CourseSvc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) queryMine(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var courses []course.Course
	if ctxUsr.IsStudent() {
		courses, err = api.deps.CourseSvc.QueryEnrolled(ctx.Request().Context(), ctxUsr.ID)
	} else {
		courses, err = api.deps.CourseSvc.Query(ctx.Request().Context(), course.QueryFilter{InstructorID: ctxUsr.ID})
	}
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) queryAvailable(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	courses, err := api.deps.CourseSvc.QueryAvailable(ctx.Request().Context(), ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying available courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.deps.Validate, api.deps.CourseSvc); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	crs, err := api.deps.CourseSvc.Create(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.deps.CourseSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting course %s", ctx.Param("id"))
	}

	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	// students only see open courses
	if ctxUsr.IsStudent() && !crs.Active() {
		return errHTTPNotFound
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	crs, _, err := api.ownedCourse(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(crs, api.deps.Validate, api.deps.CourseSvc); err != nil {
		return err
	}

	crs, err = api.deps.CourseSvc.Update(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	crs, _, err := api.ownedCourse(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.deps.CourseSvc.Delete(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) publish(ctx echo.Context) error {
	crs, _, err := api.ownedCourse(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	crs, err = api.deps.CourseSvc.Publish(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "publishing course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.deps.CourseSvc.Enroll(ctx.Request().Context(), ctxUsr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, res)
}

func (api *courseApi) queryLessons(ctx echo.Context) error {
	crs, err := api.deps.CourseSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting course %s", ctx.Param("id"))
	}

	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsStudent() {
		enrolled, err := api.deps.CourseSvc.IsEnrolled(ctx.Request().Context(), ctxUsr.ID, crs.ID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			return errHTTPForbidden
		}
	}

	lessons, err := api.deps.CourseSvc.QueryLessons(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *courseApi) createLesson(ctx echo.Context) error {
	crs, _, err := api.ownedCourse(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data course.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err = data.Validate(crs.ID, api.deps.Validate, api.deps.CourseSvc); err != nil {
		return err
	}

	lsn, err := api.deps.CourseSvc.CreateLesson(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *courseApi) retrieveLesson(ctx echo.Context) error {
	lsn, err := api.deps.CourseSvc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting lesson %s", ctx.Param("id"))
	}

	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsStudent() {
		enrolled, err := api.deps.CourseSvc.IsEnrolled(ctx.Request().Context(), ctxUsr.ID, lsn.CourseID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		if !enrolled {
			return errHTTPForbidden
		}

		missing, err := api.deps.CourseSvc.MissingPrerequisites(ctx.Request().Context(), ctxUsr.ID, lsn)
		if err != nil {
			return errors.Wrap(err, "checking prerequisites")
		}
		if len(missing) > 0 {
			labels := make([]string, 0, len(missing))
			for _, m := range missing {
				label := m.LessonCode
				if label == "" {
					label = m.Title
				}
				labels = append(labels, label)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("Complete the prerequisite lessons first: %s", strings.Join(labels, ", ")))
		}
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *courseApi) updateLesson(ctx echo.Context) error {
	lsn, err := api.deps.CourseSvc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting lesson %s", ctx.Param("id"))
	}
	if _, _, err = api.ownedCourse(ctx, lsn.CourseID); err != nil {
		return err
	}

	var data course.UpdateLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err = data.Validate(lsn, api.deps.Validate, api.deps.CourseSvc); err != nil {
		return err
	}

	lsn, err = api.deps.CourseSvc.UpdateLesson(ctx.Request().Context(), lsn.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *courseApi) destroyLesson(ctx echo.Context) error {
	lsn, err := api.deps.CourseSvc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting lesson %s", ctx.Param("id"))
	}
	if _, _, err = api.ownedCourse(ctx, lsn.CourseID); err != nil {
		return err
	}

	if err = api.deps.CourseSvc.DeleteLesson(ctx.Request().Context(), lsn.ID); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

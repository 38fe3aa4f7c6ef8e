package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
)

type classroomApi struct {
	deps ServerDeps
}

func registerClassroomAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := classroomApi{deps: deps}

	cg := g.Group("/classrooms", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, instructorMiddleware())

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, instructorMiddleware())
	dg.DELETE("", api.destroy, instructorMiddleware())
	dg.GET("/schedules", api.querySchedules)
	dg.POST("/schedules", api.addSchedule, instructorMiddleware())

	sg := g.Group("/schedules/:id", jwt)
	sg.DELETE("", api.destroySchedule, instructorMiddleware())
	sg.POST("/enroll", api.enrollSchedule, studentMiddleware())
	sg.DELETE("/enroll", api.unenrollSchedule, studentMiddleware())
}

// manageableClassroom fetches the classroom and enforces that the context
// user owns the course, supervises the classroom or is an admin.
func (api *classroomApi) manageableClassroom(ctx echo.Context, id string) (classroom.Classroom, user.User, error) {
	room, err := api.deps.ClassroomSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return classroom.Classroom{}, user.User{}, errors.Wrapf(err, "getting classroom %s", id)
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return classroom.Classroom{}, user.User{}, errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsAdmin() || room.SupervisorID.String == ctxUsr.ID {
		return room, ctxUsr, nil
	}
	crs, err := api.deps.CourseSvc.GetByID(ctx.Request().Context(), room.CourseID)
	if err != nil {
		return classroom.Classroom{}, user.User{}, errors.Wrapf(err, "getting course %s", room.CourseID)
	}
	if crs.InstructorID != ctxUsr.ID {
		return classroom.Classroom{}, user.User{}, errHTTPForbidden
	}
	return room, ctxUsr, nil
}

// Handlers

func (api *classroomApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := classroom.QueryFilter{}
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []classroom.Classroom{})
	}
	switch {
	case ctxUsr.IsInstructor():
		filter.InstructorID = ctxUsr.ID
	case ctxUsr.IsStudent():
		filter.StudentID = ctxUsr.ID
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	rooms, err := api.deps.ClassroomSvc.Query(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if rooms == nil {
		rooms = []classroom.Classroom{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *classroomApi) create(ctx echo.Context) error {
	var data classroom.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	if err := data.Validate(api.deps.Validate, api.deps.ClassroomSvc); err != nil {
		return err
	}

	// the classroom hangs off a course the instructor owns
	crs, err := api.deps.CourseSvc.GetByID(ctx.Request().Context(), data.CourseID)
	if err != nil {
		return errors.Wrapf(err, "getting course %s", data.CourseID)
	}
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && crs.InstructorID != ctxUsr.ID {
		return errHTTPForbidden
	}

	room, err := api.deps.ClassroomSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	room, err := api.deps.ClassroomSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting classroom %s", ctx.Param("id"))
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) update(ctx echo.Context) error {
	room, _, err := api.manageableClassroom(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data classroom.UpdateClassroom
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClassroom")
	}
	if err = data.Validate(room, api.deps.Validate, api.deps.ClassroomSvc); err != nil {
		return err
	}

	room, err = api.deps.ClassroomSvc.Update(ctx.Request().Context(), room.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	room, _, err := api.manageableClassroom(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if err = api.deps.ClassroomSvc.Delete(ctx.Request().Context(), room.ID); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) querySchedules(ctx echo.Context) error {
	room, err := api.deps.ClassroomSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting classroom %s", ctx.Param("id"))
	}

	scheds, err := api.deps.ClassroomSvc.QuerySchedules(ctx.Request().Context(), room.ID)
	if err != nil {
		return errors.Wrap(err, "querying schedules")
	}
	if scheds == nil {
		scheds = []classroom.Schedule{}
	}
	return ctx.JSON(http.StatusOK, scheds)
}

func (api *classroomApi) addSchedule(ctx echo.Context) error {
	room, _, err := api.manageableClassroom(ctx, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data classroom.NewSchedule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}
	if err = data.Validate(api.deps.Validate); err != nil {
		return err
	}

	sched, err := api.deps.ClassroomSvc.AddSchedule(ctx.Request().Context(), room.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding schedule")
	}
	return ctx.JSON(http.StatusCreated, sched)
}

func (api *classroomApi) destroySchedule(ctx echo.Context) error {
	sched, err := api.deps.ClassroomSvc.GetSchedule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrapf(err, "getting schedule %s", ctx.Param("id"))
	}
	if _, _, err = api.manageableClassroom(ctx, sched.ClassroomID); err != nil {
		return err
	}

	if err = api.deps.ClassroomSvc.DeleteSchedule(ctx.Request().Context(), sched.ID); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) enrollSchedule(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sched, err := api.deps.ClassroomSvc.EnrollSchedule(ctx.Request().Context(), ctxUsr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "enrolling in schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (api *classroomApi) unenrollSchedule(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.deps.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sched, err := api.deps.ClassroomSvc.UnenrollSchedule(ctx.Request().Context(), ctxUsr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unenrolling from schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

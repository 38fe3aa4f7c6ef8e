package classroom

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

var (
	ErrNotFound           = errors.New("classroom not found")
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrEnrollmentNotFound = errors.New("schedule enrollment not found")
	ErrClassCodeExists    = errors.New("a classroom with this access code exists")

	errEndBeforeStart = errors.New("end time must be after start time")
)

type (
	QueryFilter struct {
		CourseID string `query:"course_id"`

		// InstructorID scopes to classrooms the instructor owns (via the
		// course) or supervises.
		InstructorID string `query:"-"`

		// StudentID scopes to classrooms of courses the student is
		// enrolled in.
		StudentID string `query:"-"`
	}

	Repository interface {
		CreateClassroom(ctx context.Context, room *Classroom) error
		GetClassroom(ctx context.Context, id string) (Classroom, error)
		QueryClassrooms(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Classroom, error)
		UpdateClassroom(ctx context.Context, room Classroom) error
		DeleteClassroomsByID(ctx context.Context, ids ...string) error
		CheckClassCodeUniqueness(ctx context.Context, code string, exclRooms ...Classroom) error

		CreateSchedule(ctx context.Context, sched *Schedule) error
		GetSchedule(ctx context.Context, id string) (Schedule, error)
		QuerySchedules(ctx context.Context, classroomID string) ([]Schedule, error)
		QueryLessonSchedules(ctx context.Context, lessonID string) ([]Schedule, error)
		UpdateSchedule(ctx context.Context, sched Schedule) error
		DeleteSchedulesByID(ctx context.Context, ids ...string) error

		GetScheduleEnrollment(ctx context.Context, studentID, scheduleID string) (ScheduleEnrollment, error)
		CreateScheduleEnrollment(ctx context.Context, enr *ScheduleEnrollment) error
		DeleteScheduleEnrollment(ctx context.Context, studentID, scheduleID string) error
		GetStudentLessonSchedule(ctx context.Context, studentID, lessonID string) (Schedule, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewClassroom) (Classroom, error)
		GetByID(ctx context.Context, id string) (Classroom, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Classroom, error)
		Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error)
		Delete(ctx context.Context, ids ...string) error
		CheckClassCodeUniqueness(code string, exclRooms ...Classroom) error

		AddSchedule(ctx context.Context, classroomID string, ns NewSchedule) (Schedule, error)
		GetSchedule(ctx context.Context, id string) (Schedule, error)
		QuerySchedules(ctx context.Context, classroomID string) ([]Schedule, error)
		QueryLessonSchedules(ctx context.Context, lessonID string) ([]Schedule, error)
		DeleteSchedule(ctx context.Context, ids ...string) error

		EnrollSchedule(ctx context.Context, studentID, scheduleID string) (Schedule, error)
		UnenrollSchedule(ctx context.Context, studentID, scheduleID string) (Schedule, error)
		StudentLessonSchedule(ctx context.Context, studentID, lessonID string) (Schedule, bool, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nc NewClassroom) (Classroom, error) {
	now := time.Now().UTC()
	room := Classroom{
		ID:            uuid.New().String(),
		Name:          nc.Name,
		CourseID:      nc.CourseID,
		SupervisorID:  null.NewString(nc.SupervisorID, nc.SupervisorID != ""),
		DurationWeeks: nc.DurationWeeks,
		Description:   nc.Description,
		MeetingLink:   nc.MeetingLink,
		ClassCode:     null.NewString(nc.ClassCode, nc.ClassCode != ""),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := svc.repo.CreateClassroom(ctx, &room); err != nil {
		return Classroom{}, errors.Wrap(err, "creating classroom")
	}
	return room, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Classroom, error) {
	room, err := svc.repo.GetClassroom(ctx, id)
	if err != nil {
		return Classroom{}, errors.Wrapf(err, "getting classroom %s", id)
	}
	return room, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Classroom, error) {
	rooms, err := svc.repo.QueryClassrooms(ctx, filter, ordering...)
	if err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	return rooms, nil
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error) {
	room, err := svc.repo.GetClassroom(ctx, id)
	if err != nil {
		return Classroom{}, errors.Wrapf(err, "getting classroom %s", id)
	}

	if uc.Name != "" {
		room.Name = uc.Name
	}
	if uc.SupervisorID != nil {
		room.SupervisorID = null.NewString(*uc.SupervisorID, *uc.SupervisorID != "")
	}
	if uc.DurationWeeks > 0 {
		room.DurationWeeks = uc.DurationWeeks
	}
	if uc.Description != "" {
		room.Description = uc.Description
	}
	if uc.MeetingLink != "" {
		room.MeetingLink = uc.MeetingLink
	}
	if uc.ClassCode != "" {
		room.ClassCode = null.StringFrom(uc.ClassCode)
	}
	room.UpdatedAt = time.Now().UTC()
	if err = svc.repo.UpdateClassroom(ctx, room); err != nil {
		return Classroom{}, errors.Wrapf(err, "updating classroom %s", id)
	}
	return room, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return errors.Wrap(svc.repo.DeleteClassroomsByID(ctx, ids...), "deleting classrooms")
}

func (svc *service) CheckClassCodeUniqueness(code string, exclRooms ...Classroom) error {
	if code == "" {
		return nil
	}
	if err := svc.repo.CheckClassCodeUniqueness(context.Background(), code, exclRooms...); err != nil {
		if errors.Cause(err) == ErrClassCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "class_code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) AddSchedule(ctx context.Context, classroomID string, ns NewSchedule) (Schedule, error) {
	if _, err := svc.repo.GetClassroom(ctx, classroomID); err != nil {
		return Schedule{}, errors.Wrapf(err, "getting classroom %s", classroomID)
	}
	sched := Schedule{
		ID:          uuid.New().String(),
		ClassroomID: classroomID,
		Day:         ns.Day,
		LessonID:    ns.LessonID,
		StartTime:   ns.StartTime,
		EndTime:     ns.EndTime,
	}
	if err := svc.repo.CreateSchedule(ctx, &sched); err != nil {
		return Schedule{}, errors.Wrap(err, "creating schedule")
	}
	return sched, nil
}

func (svc *service) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	sched, err := svc.repo.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, errors.Wrapf(err, "getting schedule %s", id)
	}
	return sched, nil
}

func (svc *service) QuerySchedules(ctx context.Context, classroomID string) ([]Schedule, error) {
	scheds, err := svc.repo.QuerySchedules(ctx, classroomID)
	if err != nil {
		return nil, errors.Wrapf(err, "querying schedules of classroom %s", classroomID)
	}
	return scheds, nil
}

func (svc *service) QueryLessonSchedules(ctx context.Context, lessonID string) ([]Schedule, error) {
	scheds, err := svc.repo.QueryLessonSchedules(ctx, lessonID)
	if err != nil {
		return nil, errors.Wrapf(err, "querying schedules of lesson %s", lessonID)
	}
	return scheds, nil
}

func (svc *service) DeleteSchedule(ctx context.Context, ids ...string) error {
	return errors.Wrap(svc.repo.DeleteSchedulesByID(ctx, ids...), "deleting schedules")
}

// EnrollSchedule enrolls the student in the schedule. Enrolling twice is a
// no-op; the unique (student, schedule) constraint is the backstop for
// concurrent attempts.
func (svc *service) EnrollSchedule(ctx context.Context, studentID, scheduleID string) (Schedule, error) {
	sched, err := svc.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Schedule{}, errors.Wrapf(err, "getting schedule %s", scheduleID)
	}

	if _, err = svc.repo.GetScheduleEnrollment(ctx, studentID, scheduleID); err == nil {
		return sched, nil
	} else if errors.Cause(err) != ErrEnrollmentNotFound {
		return Schedule{}, errors.Wrap(err, "getting schedule enrollment")
	}

	enr := ScheduleEnrollment{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		ScheduleID: scheduleID,
		EnrolledAt: time.Now().UTC(),
	}
	if err = svc.repo.CreateScheduleEnrollment(ctx, &enr); err != nil {
		if _, gerr := svc.repo.GetScheduleEnrollment(ctx, studentID, scheduleID); gerr == nil {
			return sched, nil
		}
		return Schedule{}, errors.Wrap(err, "creating schedule enrollment")
	}
	return sched, nil
}

func (svc *service) UnenrollSchedule(ctx context.Context, studentID, scheduleID string) (Schedule, error) {
	sched, err := svc.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return Schedule{}, errors.Wrapf(err, "getting schedule %s", scheduleID)
	}
	if err = svc.repo.DeleteScheduleEnrollment(ctx, studentID, scheduleID); err != nil {
		return Schedule{}, errors.Wrap(err, "deleting schedule enrollment")
	}
	return sched, nil
}

func (svc *service) StudentLessonSchedule(ctx context.Context, studentID, lessonID string) (Schedule, bool, error) {
	sched, err := svc.repo.GetStudentLessonSchedule(ctx, studentID, lessonID)
	if err != nil {
		if errors.Cause(err) == ErrScheduleNotFound {
			return Schedule{}, false, nil
		}
		return Schedule{}, false, errors.Wrap(err, "getting student lesson schedule")
	}
	return sched, true, nil
}

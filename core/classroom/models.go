package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

const timeLayout = "15:04"

var (
	DurationChoices = []int{2, 3, 4}

	WeekdayChoices = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
)

type Classroom struct {
	ID            string
	Name          string
	CourseID      string
	SupervisorID  null.String
	DurationWeeks int
	Description   string
	MeetingLink   string
	ClassCode     null.String
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EndDate is the classroom's last day, derived from its creation date and
// duration.
func (c *Classroom) EndDate() time.Time { return c.CreatedAt.AddDate(0, 0, 7*c.DurationWeeks) }

// Schedule is a weekly meeting slot of a classroom covering one lesson.
// Start and end times are wall-clock strings in "15:04" layout.
type Schedule struct {
	ID          string
	ClassroomID string
	Day         string
	LessonID    string
	StartTime   string
	EndTime     string
}

type ScheduleEnrollment struct {
	ID         string
	StudentID  string
	ScheduleID string
	EnrolledAt time.Time
}

type NewClassroom struct {
	Name          string `json:"name" validate:"required"`
	CourseID      string `json:"course_id" validate:"required"`
	SupervisorID  string `json:"supervisor_id"`
	DurationWeeks int    `json:"duration_weeks" validate:"oneof=2 3 4"`
	Description   string `json:"description"`
	MeetingLink   string `json:"meeting_link" validate:"omitempty,url"`
	ClassCode     string `json:"class_code"`
}

func (nc *NewClassroom) Validate(validate *validator.Validate, svc Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.MeetingLink = core.CleanString(nc.MeetingLink)
	nc.ClassCode = core.CleanString(nc.ClassCode)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckClassCodeUniqueness(nc.ClassCode)
}

type UpdateClassroom struct {
	Name          string  `json:"name"`
	SupervisorID  *string `json:"supervisor_id"`
	DurationWeeks int     `json:"duration_weeks" validate:"omitempty,oneof=2 3 4"`
	Description   string  `json:"description"`
	MeetingLink   string  `json:"meeting_link" validate:"omitempty,url"`
	ClassCode     string  `json:"class_code"`
}

func (uc *UpdateClassroom) Validate(origRoom Classroom, validate *validator.Validate, svc Service) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Description = core.CleanString(uc.Description)
	uc.MeetingLink = core.CleanString(uc.MeetingLink)
	uc.ClassCode = core.CleanString(uc.ClassCode)

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.ClassCode != "" && uc.ClassCode != origRoom.ClassCode.String {
		return svc.CheckClassCodeUniqueness(uc.ClassCode, origRoom)
	}
	return nil
}

type NewSchedule struct {
	Day       string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday"`
	LessonID  string `json:"lesson_id" validate:"required"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

func (ns *NewSchedule) Validate(validate *validator.Validate) error {
	ns.Day = core.CleanString(ns.Day, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return checkTimeRange(ns.StartTime, ns.EndTime)
}

// checkTimeRange enforces end after start. Both values are already known to
// parse in the "15:04" layout.
func checkTimeRange(start, end string) error {
	startT, _ := time.Parse(timeLayout, start)
	endT, _ := time.Parse(timeLayout, end)
	if !endT.After(startT) {
		err := errEndBeforeStart
		return core.NewValidationError(err, core.FieldError{Field: "end_time", Error: err.Error()})
	}
	return nil
}

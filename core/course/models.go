package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	// CreditPoints is the fixed per-course credit budget. Every save
	// normalizes the course total to this value no matter what a caller
	// requests; lessons share the budget between themselves.
	CreditPoints = 30

	// MaxActiveEnrollments caps how many active courses a student may be
	// enrolled in at once. Enrolling past the cap is a no-op, not an error.
	MaxActiveEnrollments = 4
)

var StatusChoices = []string{StatusActive, StatusInactive}

type Course struct {
	ID            string
	InstructorID  string
	Title         string
	CourseCode    null.String
	Description   string
	CreditPoints  int
	Status        string
	DurationWeeks int
	MaxStudents   int
	IsDraft       bool
	PublishedAt   null.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether students may see and enroll in this course.
func (c *Course) Active() bool { return c.Status == StatusActive && !c.IsDraft }

type Lesson struct {
	ID                 string
	CourseID           string
	Title              string
	LessonCode         string
	Description        string
	LearningObjectives string
	ReadingList        string
	Assignments        string
	DurationHours      int
	CreditPoints       int
	Order              int
	PrerequisiteIDs    []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ReadingItems returns the addressable reading items: the non-blank lines of
// the reading list, in order.
func (l *Lesson) ReadingItems() []string { return core.SplitLines(l.ReadingList) }

// AssignmentItems returns the addressable assignment items.
func (l *Lesson) AssignmentItems() []string { return core.SplitLines(l.Assignments) }

// TotalItems is the count of addressable items across both sections.
func (l *Lesson) TotalItems() int { return len(l.ReadingItems()) + len(l.AssignmentItems()) }

type Enrollment struct {
	ID        string
	StudentID string
	CourseID  string
	CreatedAt time.Time
}

// EnrollResult reports the outcome of an enrollment attempt. An attempt past
// the cap or on an existing enrollment is not an error; Enrolled is false and
// Message says why.
type EnrollResult struct {
	Enrollment Enrollment `json:"-"`
	Enrolled   bool       `json:"enrolled"`
	Created    bool       `json:"created"`
	Message    string     `json:"message,omitempty"`
}

type NewCourse struct {
	Title         string `json:"title" validate:"required"`
	CourseCode    string `json:"course_code"`
	Description   string `json:"description"`
	CreditPoints  int    `json:"credit_points"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
	DurationWeeks int    `json:"duration_weeks" validate:"omitempty,gte=1"`
	MaxStudents   int    `json:"max_students" validate:"omitempty,gte=1"`
	IsDraft       bool   `json:"is_draft"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc Service) error {
	nc.Title = core.CleanString(nc.Title)
	nc.CourseCode = core.CleanString(nc.CourseCode)
	nc.Description = core.CleanString(nc.Description)
	if nc.Status == "" {
		nc.Status = StatusActive
	}

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(nc.CourseCode)
}

type UpdateCourse struct {
	Title         string `json:"title"`
	CourseCode    string `json:"course_code"`
	Description   string `json:"description"`
	CreditPoints  int    `json:"credit_points"`
	Status        string `json:"status" validate:"omitempty,oneof=active inactive"`
	DurationWeeks int    `json:"duration_weeks" validate:"omitempty,gte=1"`
	MaxStudents   int    `json:"max_students" validate:"omitempty,gte=1"`
	IsDraft       *bool  `json:"is_draft"`
}

func (uc *UpdateCourse) Validate(origCourse Course, validate *validator.Validate, svc Service) error {
	uc.Title = core.CleanString(uc.Title)
	uc.CourseCode = core.CleanString(uc.CourseCode)
	uc.Description = core.CleanString(uc.Description)

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.CourseCode != "" && uc.CourseCode != origCourse.CourseCode.String {
		return svc.CheckCodeUniqueness(uc.CourseCode, origCourse)
	}
	return nil
}

type NewLesson struct {
	Title              string   `json:"title" validate:"required"`
	LessonCode         string   `json:"lesson_code" validate:"required"`
	Description        string   `json:"description"`
	LearningObjectives string   `json:"learning_objectives"`
	ReadingList        string   `json:"reading_list"`
	Assignments        string   `json:"assignments"`
	DurationHours      int      `json:"duration_hours" validate:"omitempty,gte=1"`
	CreditPoints       int      `json:"credit_points" validate:"gte=0"`
	Order              int      `json:"order" validate:"omitempty,gte=0"`
	PrerequisiteIDs    []string `json:"prerequisite_ids"`
}

func (nl *NewLesson) Validate(courseID string, validate *validator.Validate, svc Service) error {
	nl.Title = core.CleanString(nl.Title)
	nl.LessonCode = core.CleanString(nl.LessonCode)
	nl.Description = core.CleanString(nl.Description)
	nl.LearningObjectives = core.CleanString(nl.LearningObjectives)

	if err := validate.Struct(nl); err != nil {
		return err
	}
	return svc.CheckLessonCreditBudget(courseID, nl.CreditPoints)
}

type UpdateLesson struct {
	Title              string   `json:"title"`
	LessonCode         string   `json:"lesson_code"`
	Description        string   `json:"description"`
	LearningObjectives string   `json:"learning_objectives"`
	ReadingList        string   `json:"reading_list"`
	Assignments        string   `json:"assignments"`
	DurationHours      int      `json:"duration_hours" validate:"omitempty,gte=1"`
	CreditPoints       *int     `json:"credit_points" validate:"omitempty,gte=0"`
	Order              *int     `json:"order" validate:"omitempty,gte=0"`
	PrerequisiteIDs    []string `json:"prerequisite_ids"`
}

func (ul *UpdateLesson) Validate(origLesson Lesson, validate *validator.Validate, svc Service) error {
	ul.Title = core.CleanString(ul.Title)
	ul.LessonCode = core.CleanString(ul.LessonCode)
	ul.Description = core.CleanString(ul.Description)
	ul.LearningObjectives = core.CleanString(ul.LearningObjectives)

	if err := validate.Struct(ul); err != nil {
		return err
	}
	if ul.CreditPoints != nil && *ul.CreditPoints != origLesson.CreditPoints {
		return svc.CheckLessonCreditBudget(origLesson.CourseID, *ul.CreditPoints, origLesson)
	}
	return nil
}

type QueryFilter struct {
	Search       string `query:"search"`
	Status       string `query:"status"`
	InstructorID string `query:"instructor_id"`
	IsDraft      *bool  `query:"is_draft"`
}

func (f QueryFilter) IsEmpty() bool {
	return f.Search == "" && f.Status == "" && f.InstructorID == "" && f.IsDraft == nil
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

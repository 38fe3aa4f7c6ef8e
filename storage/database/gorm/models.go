package gormrepos

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
)

// Row models mirror the migration schema; conversions keep the core types
// storage-agnostic.

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Title        null.String
	FirstName    string
	LastName     string
	Email        string `gorm:"uniqueIndex"`
	Username     string
	Role         string
	StudentID    null.String `gorm:"uniqueIndex"`
	IsStaff      bool
	IsSuperuser  bool
	IsActive     null.Bool
	PasswordHash []byte
	LastLogin    null.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func rowFromUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Title:        usr.Title,
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		Email:        usr.Email,
		Username:     usr.Username,
		Role:         string(usr.Role),
		StudentID:    usr.StudentID,
		IsStaff:      usr.IsStaff,
		IsSuperuser:  usr.IsSuperuser,
		IsActive:     null.BoolFromPtr(usr.IsActive),
		PasswordHash: usr.PasswordHash,
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Title:        r.Title,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Username:     r.Username,
		Role:         user.Role(r.Role),
		StudentID:    r.StudentID,
		IsStaff:      r.IsStaff,
		IsSuperuser:  r.IsSuperuser,
		IsActive:     r.IsActive.Ptr(),
		PasswordHash: r.PasswordHash,
		LastLogin:    r.LastLogin.Time,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type courseRow struct {
	ID            string `gorm:"primaryKey"`
	InstructorID  string
	Title         string
	CourseCode    null.String `gorm:"uniqueIndex"`
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

func (courseRow) TableName() string { return "courses" }

func rowFromCourse(crs course.Course) courseRow {
	return courseRow{
		ID:            crs.ID,
		InstructorID:  crs.InstructorID,
		Title:         crs.Title,
		CourseCode:    crs.CourseCode,
		Description:   crs.Description,
		CreditPoints:  crs.CreditPoints,
		Status:        crs.Status,
		DurationWeeks: crs.DurationWeeks,
		MaxStudents:   crs.MaxStudents,
		IsDraft:       crs.IsDraft,
		PublishedAt:   crs.PublishedAt,
		CreatedAt:     crs.CreatedAt.UTC(),
		UpdatedAt:     crs.UpdatedAt.UTC(),
	}
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:            r.ID,
		InstructorID:  r.InstructorID,
		Title:         r.Title,
		CourseCode:    r.CourseCode,
		Description:   r.Description,
		CreditPoints:  r.CreditPoints,
		Status:        r.Status,
		DurationWeeks: r.DurationWeeks,
		MaxStudents:   r.MaxStudents,
		IsDraft:       r.IsDraft,
		PublishedAt:   r.PublishedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type lessonRow struct {
	ID                 string `gorm:"primaryKey"`
	CourseID           string
	Title              string
	LessonCode         string
	Description        string
	LearningObjectives string
	ReadingList        string
	Assignments        string
	DurationHours      int
	CreditPoints       int
	Order              int `gorm:"column:order"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (lessonRow) TableName() string { return "lessons" }

type lessonPrerequisiteRow struct {
	LessonID       string `gorm:"primaryKey"`
	PrerequisiteID string `gorm:"primaryKey"`
}

func (lessonPrerequisiteRow) TableName() string { return "lesson_prerequisites" }

func rowFromLesson(lsn course.Lesson) lessonRow {
	return lessonRow{
		ID:                 lsn.ID,
		CourseID:           lsn.CourseID,
		Title:              lsn.Title,
		LessonCode:         lsn.LessonCode,
		Description:        lsn.Description,
		LearningObjectives: lsn.LearningObjectives,
		ReadingList:        lsn.ReadingList,
		Assignments:        lsn.Assignments,
		DurationHours:      lsn.DurationHours,
		CreditPoints:       lsn.CreditPoints,
		Order:              lsn.Order,
		CreatedAt:          lsn.CreatedAt.UTC(),
		UpdatedAt:          lsn.UpdatedAt.UTC(),
	}
}

func (r lessonRow) toLesson(prerequisiteIDs []string) course.Lesson {
	return course.Lesson{
		ID:                 r.ID,
		CourseID:           r.CourseID,
		Title:              r.Title,
		LessonCode:         r.LessonCode,
		Description:        r.Description,
		LearningObjectives: r.LearningObjectives,
		ReadingList:        r.ReadingList,
		Assignments:        r.Assignments,
		DurationHours:      r.DurationHours,
		CreditPoints:       r.CreditPoints,
		Order:              r.Order,
		PrerequisiteIDs:    prerequisiteIDs,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type enrollmentRow struct {
	ID        string `gorm:"primaryKey"`
	StudentID string
	CourseID  string
	CreatedAt time.Time
}

func (enrollmentRow) TableName() string { return "enrollments" }

func (r enrollmentRow) toEnrollment() course.Enrollment {
	return course.Enrollment{ID: r.ID, StudentID: r.StudentID, CourseID: r.CourseID, CreatedAt: r.CreatedAt}
}

type classroomRow struct {
	ID            string `gorm:"primaryKey"`
	Name          string
	CourseID      string
	SupervisorID  null.String
	DurationWeeks int
	Description   string
	MeetingLink   string
	ClassCode     null.String `gorm:"uniqueIndex"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (classroomRow) TableName() string { return "classrooms" }

func rowFromClassroom(room classroom.Classroom) classroomRow {
	return classroomRow{
		ID:            room.ID,
		Name:          room.Name,
		CourseID:      room.CourseID,
		SupervisorID:  room.SupervisorID,
		DurationWeeks: room.DurationWeeks,
		Description:   room.Description,
		MeetingLink:   room.MeetingLink,
		ClassCode:     room.ClassCode,
		CreatedAt:     room.CreatedAt.UTC(),
		UpdatedAt:     room.UpdatedAt.UTC(),
	}
}

func (r classroomRow) toClassroom() classroom.Classroom {
	return classroom.Classroom{
		ID:            r.ID,
		Name:          r.Name,
		CourseID:      r.CourseID,
		SupervisorID:  r.SupervisorID,
		DurationWeeks: r.DurationWeeks,
		Description:   r.Description,
		MeetingLink:   r.MeetingLink,
		ClassCode:     r.ClassCode,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type scheduleRow struct {
	ID          string `gorm:"primaryKey"`
	ClassroomID string
	Day         string
	LessonID    string
	StartTime   string
	EndTime     string
}

func (scheduleRow) TableName() string { return "schedules" }

func (r scheduleRow) toSchedule() classroom.Schedule {
	return classroom.Schedule{
		ID:          r.ID,
		ClassroomID: r.ClassroomID,
		Day:         r.Day,
		LessonID:    r.LessonID,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
	}
}

type scheduleEnrollmentRow struct {
	ID         string `gorm:"primaryKey"`
	StudentID  string
	ScheduleID string
	EnrolledAt time.Time
}

func (scheduleEnrollmentRow) TableName() string { return "schedule_enrollments" }

type itemProgressRow struct {
	ID        string `gorm:"primaryKey"`
	StudentID string
	LessonID  string
	Section   string
	ItemIndex int
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (itemProgressRow) TableName() string { return "lesson_item_progress" }

func rowFromItemProgress(ip progress.ItemProgress) itemProgressRow {
	return itemProgressRow(ip)
}

func (r itemProgressRow) toItemProgress() progress.ItemProgress {
	return progress.ItemProgress(r)
}

type lessonProgressRow struct {
	ID        string `gorm:"primaryKey"`
	StudentID string
	LessonID  string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (lessonProgressRow) TableName() string { return "lesson_progress" }

type creditTransactionRow struct {
	ID        string `gorm:"primaryKey"`
	StudentID string
	LessonID  string
	Credits   int
	CreatedAt time.Time
}

func (creditTransactionRow) TableName() string { return "credit_transactions" }

// isUniqueViolation reports whether err is a postgres unique constraint
// violation, optionally on one of the named constraints.
func isUniqueViolation(err error, constraints ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pqErr.Constraint == c {
			return true
		}
	}
	return false
}

// isNotFound maps GORM's missing-record error.
func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

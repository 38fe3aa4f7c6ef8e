package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
)

// NewConfig returns a minimal test configuration. No config files or env
// vars are consulted.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:                     true,
		TestMode:                  true,
		Env:                       "TEST",
		AppName:                   "Academia",
		SecretKey:                 "secret",
		FrontendBaseURL:           "http://localhost:8080",
		DefaultFromEmail:          mail.Address{Name: "Academia", Address: "noreply@academia.test"},
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        7 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func OpenDB(t *testing.T) *dummydb.DB {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	firstName, lastName, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Username:  email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if role == user.RoleStudent {
		usr.StudentID.SetValid(fmt.Sprintf("%s%04d", user.StudentIDPrefix, nextStudentIDNum()))
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

var studentIDNum int

func nextStudentIDNum() int {
	studentIDNum++
	return studentIDNum
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	instructorID, title, code string,
	isDraft bool,
) course.Course {
	now := time.Now().UTC()
	crs := course.Course{
		ID:           uuid.New().String(),
		InstructorID: instructorID,
		Title:        title,
		CreditPoints: course.CreditPoints,
		Status:       course.StatusActive,
		IsDraft:      isDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if code != "" {
		crs.CourseCode.SetValid(code)
	}
	if !isDraft {
		crs.PublishedAt.SetValid(now)
	}
	if err := repo.CreateCourse(context.Background(), &crs); err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateLesson(
	t *testing.T,
	repo course.Repository,
	courseID, title, code string,
	credits, order int,
	readingList, assignments string,
	prereqIDs ...string,
) course.Lesson {
	now := time.Now().UTC()
	lsn := course.Lesson{
		ID:              uuid.New().String(),
		CourseID:        courseID,
		Title:           title,
		LessonCode:      code,
		ReadingList:     readingList,
		Assignments:     assignments,
		CreditPoints:    credits,
		Order:           order,
		PrerequisiteIDs: prereqIDs,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := repo.CreateLesson(context.Background(), &lsn); err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return lsn
}

func Enroll(t *testing.T, repo course.Repository, studentID, courseID string) course.Enrollment {
	enr := course.Enrollment{
		ID:        uuid.New().String(),
		StudentID: studentID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateEnrollment(context.Background(), &enr); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

func CreateClassroom(
	t *testing.T,
	repo classroom.Repository,
	courseID, name, supervisorID string,
) classroom.Classroom {
	now := time.Now().UTC()
	room := classroom.Classroom{
		ID:            uuid.New().String(),
		Name:          name,
		CourseID:      courseID,
		DurationWeeks: 2,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if supervisorID != "" {
		room.SupervisorID.SetValid(supervisorID)
	}
	if err := repo.CreateClassroom(context.Background(), &room); err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	return room
}

func CreateSchedule(
	t *testing.T,
	repo classroom.Repository,
	classroomID, lessonID, day, start, end string,
) classroom.Schedule {
	sched := classroom.Schedule{
		ID:          uuid.New().String(),
		ClassroomID: classroomID,
		Day:         day,
		LessonID:    lessonID,
		StartTime:   start,
		EndTime:     end,
	}
	if err := repo.CreateSchedule(context.Background(), &sched); err != nil {
		t.Fatalf("CreateSchedule() failed: %v", err)
	}
	return sched
}

func EnrollSchedule(t *testing.T, repo classroom.Repository, studentID, scheduleID string) classroom.ScheduleEnrollment {
	enr := classroom.ScheduleEnrollment{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		ScheduleID: scheduleID,
		EnrolledAt: time.Now().UTC(),
	}
	if err := repo.CreateScheduleEnrollment(context.Background(), &enr); err != nil {
		t.Fatalf("EnrollSchedule() failed: %v", err)
	}
	return enr
}

package progress_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

type reportEnv struct {
	*testEnv
	classRepo classroom.Repository
}

func reportSetup(t *testing.T) *reportEnv {
	db := testutil.OpenDB(t)
	usrRepo := dummydb.NewUserRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	progRepo := dummydb.NewProgressRepository(db)
	reportRepo := dummydb.NewReportRepository(db)

	progSvc := progress.NewService(progRepo, courseRepo, reportRepo, usrRepo)
	return &reportEnv{
		testEnv: &testEnv{
			usrRepo:    usrRepo,
			courseRepo: courseRepo,
			progSvc:    progSvc,
			courseSvc:  course.NewService(courseRepo, progSvc),
		},
		classRepo: dummydb.NewClassroomRepository(db),
	}
}

func Test_service_StudentCourseReport(t *testing.T) {
	env := reportSetup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	other := testutil.CreateUser(t, env.usrRepo, "Jack", "Sparrow", "jack@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	peer := testutil.CreateUser(t, env.usrRepo, "Pat", "Peer", "pat@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	l1 := testutil.CreateLesson(t, env.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A", "")
	testutil.CreateLesson(t, env.courseRepo, crs.ID, "Maps", "L2", 10, 2, "A", "")
	testutil.Enroll(t, env.courseRepo, student.ID, crs.ID)
	testutil.Enroll(t, env.courseRepo, peer.ID, crs.ID)

	room := testutil.CreateClassroom(t, env.classRepo, crs.ID, "Room A", teacher.ID)
	sched := testutil.CreateSchedule(t, env.classRepo, room.ID, l1.ID, "monday", "09:00", "11:00")
	testutil.EnrollSchedule(t, env.classRepo, student.ID, sched.ID)

	if _, err := env.progSvc.ToggleItem(ctx, student, l1.ID, progress.SectionReading, "0", "true"); err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}

	// access control
	accessTests := []struct {
		name    string
		viewer  user.User
		student string
		wantErr error
	}{
		{name: "instructor owns course", viewer: teacher, student: student.ID},
		{name: "instructor of another course", viewer: other, student: student.ID, wantErr: progress.ErrOwnCoursesOnly},
		{name: "student views own", viewer: student, student: student.ID},
		{name: "student views peer", viewer: student, student: peer.ID, wantErr: progress.ErrOwnReportOnly},
		{name: "target is not a student", viewer: teacher, student: other.ID, wantErr: progress.ErrStudentReportsOnly},
	}
	for _, tt := range accessTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.progSvc.StudentCourseReport(ctx, tt.viewer, crs.ID, tt.student)
			if errors.Cause(err) != tt.wantErr {
				t.Errorf("StudentCourseReport() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	rpt, err := env.progSvc.StudentCourseReport(ctx, teacher, crs.ID, student.ID)
	if err != nil {
		t.Fatalf("StudentCourseReport() failed: %v", err)
	}
	if rpt.LessonsTotal != 2 || rpt.CompletedLessons != 1 || rpt.RemainingLessons != 1 {
		t.Errorf("lesson counts = %d/%d/%d; want 2/1/1", rpt.LessonsTotal, rpt.CompletedLessons, rpt.RemainingLessons)
	}
	if rpt.CompletionPercent != 50 {
		t.Errorf("CompletionPercent = %d; want 50", rpt.CompletionPercent)
	}
	if rpt.CreditsEarned != 10 {
		t.Errorf("CreditsEarned = %d; want 10", rpt.CreditsEarned)
	}
	if rpt.StudentsTotal != 2 {
		t.Errorf("StudentsTotal = %d; want 2", rpt.StudentsTotal)
	}
	if len(rpt.CompletedList) != 1 || rpt.CompletedList[0].Code != "L1" {
		t.Errorf("CompletedList = %+v; want single L1 row", rpt.CompletedList)
	}
	if len(rpt.ClassroomCards) != 1 {
		t.Fatalf("ClassroomCards = %+v; want 1 card", rpt.ClassroomCards)
	}
	if rpt.ClassroomCards[0].Schedule != "Mon 09:00 - 11:00" {
		t.Errorf("card schedule = %q; want %q", rpt.ClassroomCards[0].Schedule, "Mon 09:00 - 11:00")
	}
}

func Test_service_StudentOverallReport(t *testing.T) {
	env := reportSetup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	l1 := testutil.CreateLesson(t, env.courseRepo, crs.ID, "Sets", "L1", 30, 1, "A", "")
	testutil.CreateLesson(t, env.courseRepo, crs.ID, "Maps", "L2", 0, 2, "A", "")
	testutil.Enroll(t, env.courseRepo, student.ID, crs.ID)

	if _, err := env.progSvc.ToggleItem(ctx, student, l1.ID, progress.SectionReading, "0", "true"); err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}

	rpt, err := env.progSvc.StudentOverallReport(ctx, student)
	if err != nil {
		t.Fatalf("StudentOverallReport() failed: %v", err)
	}
	if rpt.TotalCredits != 30 {
		t.Errorf("TotalCredits = %d; want 30", rpt.TotalCredits)
	}
	// 30 credits against the fixed overall denominator of 120
	if rpt.OverallProgress != 25 {
		t.Errorf("OverallProgress = %v; want 25", rpt.OverallProgress)
	}
	if rpt.ActiveCourses != 1 || rpt.LessonsCompleted != 1 || rpt.TotalLessons != 2 {
		t.Errorf("counts = %d/%d/%d; want 1/1/2", rpt.ActiveCourses, rpt.LessonsCompleted, rpt.TotalLessons)
	}
	if len(rpt.Courses) != 1 {
		t.Fatalf("Courses = %+v; want 1 row", rpt.Courses)
	}
	row := rpt.Courses[0]
	if row.Status != "In Progress" || row.Progress != 50 {
		t.Errorf("course row = %+v; want In Progress at 50", row)
	}
	if rpt.ProgressCircumference <= 0 || rpt.ProgressOffset >= rpt.ProgressCircumference {
		t.Errorf("circle geometry = %v/%v", rpt.ProgressCircumference, rpt.ProgressOffset)
	}
}

func Test_service_InstructorReport(t *testing.T) {
	env := reportSetup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	peer := testutil.CreateUser(t, env.usrRepo, "Pat", "Peer", "pat@test.cd", "pwd", user.RoleStudent, true)
	crs1 := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	crs2 := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Geometry", "MATH102", false)
	l1 := testutil.CreateLesson(t, env.courseRepo, crs1.ID, "Sets", "L1", 12, 1, "A", "")
	testutil.Enroll(t, env.courseRepo, student.ID, crs1.ID)
	testutil.Enroll(t, env.courseRepo, student.ID, crs2.ID)
	testutil.Enroll(t, env.courseRepo, peer.ID, crs1.ID)

	if _, err := env.progSvc.InstructorReport(ctx, student); errors.Cause(err) != progress.ErrInstructorRequired {
		t.Errorf("InstructorReport() error = %v, wantErr %v", err, progress.ErrInstructorRequired)
	}

	if _, err := env.progSvc.ToggleItem(ctx, student, l1.ID, progress.SectionReading, "0", "true"); err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}

	rpt, err := env.progSvc.InstructorReport(ctx, teacher)
	if err != nil {
		t.Fatalf("InstructorReport() failed: %v", err)
	}
	if rpt.Summary.TotalStudents != 2 || rpt.Summary.CoursesTaught != 2 {
		t.Errorf("summary = %+v; want 2 students over 2 courses", rpt.Summary)
	}
	if len(rpt.AllStudents) != 2 {
		t.Fatalf("AllStudents = %+v; want 2", rpt.AllStudents)
	}
	// sorted by name: Joe Blow before Pat Peer
	if rpt.AllStudents[0].ID != student.ID {
		t.Errorf("AllStudents[0] = %+v; want %s first", rpt.AllStudents[0], student.ID)
	}
	if rpt.AllStudents[0].Credits != 12 {
		t.Errorf("student credits = %d; want 12", rpt.AllStudents[0].Credits)
	}
	if rpt.AllStudents[0].CoursesCount != 2 {
		t.Errorf("CoursesCount = %d; want 2", rpt.AllStudents[0].CoursesCount)
	}
	if rpt.AllStudents[0].ProgressPercent != 10 {
		t.Errorf("ProgressPercent = %v; want 10", rpt.AllStudents[0].ProgressPercent)
	}
}

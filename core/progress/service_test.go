package progress_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

type testEnv struct {
	usrRepo    user.Repository
	courseRepo course.Repository
	progSvc    progress.Service
	courseSvc  course.Service
}

func setup(t *testing.T) *testEnv {
	db := testutil.OpenDB(t)
	usrRepo := dummydb.NewUserRepository(db)
	courseRepo := dummydb.NewCourseRepository(db)
	progRepo := dummydb.NewProgressRepository(db)
	reportRepo := dummydb.NewReportRepository(db)

	progSvc := progress.NewService(progRepo, courseRepo, reportRepo, usrRepo)
	return &testEnv{
		usrRepo:    usrRepo,
		courseRepo: courseRepo,
		progSvc:    progSvc,
		courseSvc:  course.NewService(courseRepo, progSvc),
	}
}

func Test_service_ToggleItem_rollup(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	lsn := testutil.CreateLesson(t, env.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A\nB", "")
	testutil.Enroll(t, env.courseRepo, student.ID, crs.ID)

	// first item done: lesson half complete, no credits yet
	res, err := env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "0", "true")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if res.LessonCompleted {
		t.Error("lesson should not be completed yet")
	}
	if res.LessonMaterialsPercent != 50 {
		t.Errorf("LessonMaterialsPercent = %v; want 50", res.LessonMaterialsPercent)
	}
	if res.CreditsAwardedNow != 0 || res.StudentTotalCredits != 0 {
		t.Errorf("credits awarded too early: now=%d total=%d", res.CreditsAwardedNow, res.StudentTotalCredits)
	}

	// second item done: lesson completes, credits awarded once
	res, err = env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "1", "1")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if !res.LessonCompleted {
		t.Error("lesson should be completed")
	}
	if res.CreditsAwardedNow != 10 {
		t.Errorf("CreditsAwardedNow = %d; want 10", res.CreditsAwardedNow)
	}
	if res.StudentTotalCredits != 10 || res.CourseTotalCredits != 10 {
		t.Errorf("credit totals = %d/%d; want 10/10", res.StudentTotalCredits, res.CourseTotalCredits)
	}
	if res.PercentCourseComplete != 100 {
		t.Errorf("PercentCourseComplete = %v; want 100", res.PercentCourseComplete)
	}

	// re-marking a completed item is a no-op on credits
	res, err = env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "1", "yes")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if res.CreditsAwardedNow != 0 {
		t.Errorf("CreditsAwardedNow = %d; want 0 on repeat toggle", res.CreditsAwardedNow)
	}
	if res.StudentTotalCredits != 10 {
		t.Errorf("StudentTotalCredits = %d; want 10 after repeat toggle", res.StudentTotalCredits)
	}

	// revoking an item revokes the lesson and its credits
	res, err = env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "1", "false")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if res.LessonCompleted {
		t.Error("lesson should no longer be completed")
	}
	if res.StudentTotalCredits != 0 {
		t.Errorf("StudentTotalCredits = %d; want 0 after revocation", res.StudentTotalCredits)
	}

	// completing again re-awards
	res, err = env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "1", "on")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if res.CreditsAwardedNow != 10 || res.StudentTotalCredits != 10 {
		t.Errorf("re-award failed: now=%d total=%d; want 10/10", res.CreditsAwardedNow, res.StudentTotalCredits)
	}
}

func Test_service_ToggleItem_staleCreditRefresh(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	lsn := testutil.CreateLesson(t, env.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A", "")
	testutil.Enroll(t, env.courseRepo, student.ID, crs.ID)

	res, err := env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "0", "true")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if res.CreditsAwardedNow != 10 || res.StudentTotalCredits != 10 {
		t.Fatalf("award failed: now=%d total=%d; want 10/10", res.CreditsAwardedNow, res.StudentTotalCredits)
	}

	// the lesson's credit value changes after the award
	lsn.CreditPoints = 15
	if err := env.courseRepo.UpdateLesson(ctx, lsn); err != nil {
		t.Fatalf("UpdateLesson() failed: %v", err)
	}

	// a no-op re-toggle refreshes the stale amount without a fresh award
	res, err = env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "0", "true")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if !res.LessonCompleted {
		t.Error("lesson should remain completed")
	}
	if res.CreditsAwardedNow != 0 {
		t.Errorf("CreditsAwardedNow = %d; want 0 on refresh", res.CreditsAwardedNow)
	}
	if res.StudentTotalCredits != 15 {
		t.Errorf("StudentTotalCredits = %d; want 15 after refresh", res.StudentTotalCredits)
	}
}

func Test_service_ToggleItem_guards(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	outsider := testutil.CreateUser(t, env.usrRepo, "Out", "Sider", "out@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	lsn := testutil.CreateLesson(t, env.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A", "B")
	testutil.Enroll(t, env.courseRepo, student.ID, crs.ID)

	tests := []struct {
		name      string
		usr       user.User
		lessonID  string
		section   string
		index     string
		completed string
		wantErr   error
	}{
		{name: "unknown lesson", usr: student, lessonID: "nope", section: progress.SectionReading, index: "0", completed: "true", wantErr: course.ErrLessonNotFound},
		{name: "instructor cannot mark", usr: teacher, lessonID: lsn.ID, section: progress.SectionReading, index: "0", completed: "true", wantErr: progress.ErrNotStudent},
		{name: "not enrolled", usr: outsider, lessonID: lsn.ID, section: progress.SectionReading, index: "0", completed: "true", wantErr: progress.ErrNotEnrolled},
		{name: "invalid section", usr: student, lessonID: lsn.ID, section: "quiz", index: "0", completed: "true", wantErr: progress.ErrInvalidSection},
		{name: "non-integer index", usr: student, lessonID: lsn.ID, section: progress.SectionReading, index: "abc", completed: "true", wantErr: progress.ErrInvalidIndex},
		{name: "negative index", usr: student, lessonID: lsn.ID, section: progress.SectionAssignment, index: "-1", completed: "true", wantErr: progress.ErrInvalidIndex},
		{name: "valid toggle", usr: student, lessonID: lsn.ID, section: progress.SectionAssignment, index: "0", completed: "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.progSvc.ToggleItem(ctx, tt.usr, tt.lessonID, tt.section, tt.index, tt.completed)
			if errors.Cause(err) != tt.wantErr {
				t.Errorf("ToggleItem() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// an out-of-range index creates a dangling row that never contributes to
// completion of a fully-addressed lesson
func Test_service_ToggleItem_indexNotBoundsChecked(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	lsn := testutil.CreateLesson(t, env.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A", "")
	testutil.Enroll(t, env.courseRepo, student.ID, crs.ID)

	res, err := env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "99", "true")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if res.LessonCompleted {
		t.Error("lesson should not complete off an out-of-range item")
	}
	// the dangling row inflates the completed count past the single
	// addressable item, so "all items done" never holds
	res, err = env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "0", "true")
	if err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if res.LessonCompleted {
		t.Error("lesson should stay incomplete while the dangling row is counted")
	}
	if res.Counts.Completed != 2 || res.Counts.Total != 1 {
		t.Errorf("counts = %d/%d; want 2/1", res.Counts.Completed, res.Counts.Total)
	}
	if res.PercentCourseComplete > 100 {
		t.Errorf("PercentCourseComplete = %v; must be clamped to 100", res.PercentCourseComplete)
	}
}

func Test_service_LessonCompleted(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, env.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, env.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, env.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	lsn := testutil.CreateLesson(t, env.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A", "")
	testutil.Enroll(t, env.courseRepo, student.ID, crs.ID)

	done, err := env.progSvc.LessonCompleted(ctx, student.ID, lsn.ID)
	if err != nil {
		t.Fatalf("LessonCompleted() failed: %v", err)
	}
	if done {
		t.Error("lesson should not be completed before any toggle")
	}

	if _, err = env.progSvc.ToggleItem(ctx, student, lsn.ID, progress.SectionReading, "0", "true"); err != nil {
		t.Fatalf("ToggleItem() failed: %v", err)
	}
	if done, err = env.progSvc.LessonCompleted(ctx, student.ID, lsn.ID); err != nil {
		t.Fatalf("LessonCompleted() failed: %v", err)
	}
	if !done {
		t.Error("lesson should be completed")
	}
}

func TestPercentHelpers(t *testing.T) {
	if got := progress.MaterialsPercent(0, 0); got != 0 {
		t.Errorf("MaterialsPercent(0, 0) = %v; want 0", got)
	}
	if got := progress.MaterialsPercent(1, 3); got != 33.33 {
		t.Errorf("MaterialsPercent(1, 3) = %v; want 33.33", got)
	}
	if got := progress.CoursePercent(0, 0); got != 0 {
		t.Errorf("CoursePercent(0, 0) = %v; want 0", got)
	}
	if got := progress.CoursePercent(5, 4); got != 100 {
		t.Errorf("CoursePercent(5, 4) = %v; want clamp to 100", got)
	}
	if got := progress.OverallPercent(0); got != 0 {
		t.Errorf("OverallPercent(0) = %v; want 0", got)
	}
	if got := progress.OverallPercent(30); got != 25 {
		t.Errorf("OverallPercent(30) = %v; want 25", got)
	}
	if got := progress.OverallPercent(500); got != 100 {
		t.Errorf("OverallPercent(500) = %v; want clamp to 100", got)
	}
}

package progress

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/user"
)

var (
	ErrOwnCoursesOnly     = errors.New("You can only view reports for your own courses.")
	ErrOwnReportOnly      = errors.New("You can only view your own report.")
	ErrStudentReportsOnly = errors.New("Only student reports are available.")
	ErrInstructorRequired = errors.New("Instructor role required")
	ErrReportAccessDenied = errors.New("Access denied.")
)

// circleRadius drives the circular progress bar geometry of the student
// overall report.
const circleRadius = 60

type (
	// CompletedLessonRow is one completed lesson line of the per-course
	// report, most recently completed first.
	CompletedLessonRow struct {
		Code        string    `db:"code" json:"code"`
		Title       string    `db:"title" json:"title"`
		CompletedOn time.Time `db:"completed_on" json:"completed_on"`
	}

	// ClassroomCardRow is one classroom card of the per-course report:
	// a classroom the student holds a schedule enrollment in, with its
	// meeting slots pre-ordered by day then start time.
	ClassroomCardRow struct {
		Name           string   `json:"name"`
		Code           string   `json:"code,omitempty"`
		SupervisorName string   `json:"supervisor,omitempty"`
		ScheduleSlots  []string `json:"-"`
		Schedule       string   `json:"schedule"`
	}

	// CourseReportRow aggregates one enrolled course of a student.
	CourseReportRow struct {
		CourseID         string `db:"course_id"`
		CourseCode       string `db:"course_code"`
		CourseTitle      string `db:"course_title"`
		LessonsTotal     int    `db:"lessons_total"`
		CompletedLessons int    `db:"completed_lessons"`
		CreditsEarned    int    `db:"credits_earned"`
		CourseCredits    int    `db:"course_credits"`
	}

	// RosterRow is one (course, student) pair of an instructor's roster.
	RosterRow struct {
		CourseID     string `db:"course_id"`
		CourseTitle  string `db:"course_title"`
		StudentID    string `db:"student_id"`
		StudentName  string `db:"student_name"`
		StudentEmail string `db:"student_email"`
	}

	// ReportRepository serves the aggregate read paths behind the reports.
	ReportRepository interface {
		StudentCourseRows(ctx context.Context, studentID string) ([]CourseReportRow, error)
		CompletedLessonRows(ctx context.Context, studentID, courseID string) ([]CompletedLessonRow, error)
		ClassroomCardRows(ctx context.Context, studentID, courseID string) ([]ClassroomCardRow, error)
		RosterRows(ctx context.Context, instructorID string) ([]RosterRow, error)
		StudentCreditTotals(ctx context.Context, studentIDs ...string) (map[string]int, error)
		CountCourseStudents(ctx context.Context, courseID string) (int, error)
	}
)

// CourseReport is the per-student per-course report.
type CourseReport struct {
	CourseID          string               `json:"course_id"`
	CourseTitle       string               `json:"course_title"`
	StudentID         string               `json:"student_id"`
	StudentName       string               `json:"student_name"`
	LessonsTotal      int                  `json:"lessons_total"`
	CompletedLessons  int                  `json:"completed_lessons"`
	CompletionPercent int                  `json:"completion_percent"`
	CreditsEarned     int                  `json:"credits_earned"`
	RemainingLessons  int                  `json:"remaining_lessons"`
	StudentsTotal     int                  `json:"students_total"`
	CompletedList     []CompletedLessonRow `json:"completed_lessons_list"`
	ClassroomCards    []ClassroomCardRow   `json:"classroom_cards"`
}

// OverallCourseRow is one course line of a student's overall report.
type OverallCourseRow struct {
	ID               string  `json:"id"`
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Status           string  `json:"status"`
	CompletedLessons int     `json:"completed_lessons"`
	TotalLessons     int     `json:"total_lessons"`
	CreditsEarned    int     `json:"credits_earned"`
	TotalCredits     int     `json:"total_credits"`
	Progress         float64 `json:"progress"`
}

// OverallReport is a student's cross-course report, with the circular
// progress bar geometry precomputed for the presentation layer.
type OverallReport struct {
	OverallProgress       float64            `json:"overall_progress"`
	TotalCredits          int                `json:"total_credits"`
	LessonsCompleted      int                `json:"lessons_completed"`
	TotalLessons          int                `json:"total_lessons"`
	ActiveCourses         int                `json:"active_courses"`
	LessonsRemaining      int                `json:"lessons_remaining"`
	Courses               []OverallCourseRow `json:"courses"`
	ProgressCircumference float64            `json:"progress_circumference"`
	ProgressOffset        float64            `json:"progress_offset"`
	LastUpdated           time.Time          `json:"last_updated"`
}

// RosterStudent is one student line of the instructor report.
type RosterStudent struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Credits         int      `json:"credits"`
	ProgressPercent float64  `json:"progress_percent"`
	Courses         []string `json:"courses,omitempty"`
	CoursesCount    int      `json:"courses_count,omitempty"`
}

// CourseRoster is one course block of the instructor report.
type CourseRoster struct {
	CourseID    string          `json:"course_id"`
	CourseTitle string          `json:"course_title"`
	Students    []RosterStudent `json:"students"`
}

// InstructorReport is the instructor-wide roster with per-student aggregated
// credits and progress.
type InstructorReport struct {
	CourseReports []CourseRoster  `json:"course_reports"`
	AllStudents   []RosterStudent `json:"all_students"`
	Summary       struct {
		TotalStudents int     `json:"total_students"`
		CoursesTaught int     `json:"courses_taught"`
		AvgProgress   float64 `json:"avg_progress"`
	} `json:"summary"`
}

// StudentCourseReport builds the per-student per-course report. Instructors
// may only view reports of their own courses; students only their own.
func (svc *service) StudentCourseReport(ctx context.Context, viewer user.User, courseID, studentID string) (CourseReport, error) {
	crs, err := svc.courseRepo.GetCourse(ctx, courseID)
	if err != nil {
		return CourseReport{}, errors.Wrapf(err, "getting course %s", courseID)
	}
	student, err := svc.userRepo.GetUser(ctx, user.GetFilter{ID: studentID})
	if err != nil {
		return CourseReport{}, errors.Wrapf(err, "getting student %s", studentID)
	}

	switch {
	case viewer.IsInstructor():
		if crs.InstructorID != viewer.ID {
			return CourseReport{}, ErrOwnCoursesOnly
		}
	case viewer.IsStudent():
		if student.ID != viewer.ID {
			return CourseReport{}, ErrOwnReportOnly
		}
	default:
		return CourseReport{}, ErrReportAccessDenied
	}
	if !student.IsStudent() {
		return CourseReport{}, ErrStudentReportsOnly
	}

	if _, err = svc.courseRepo.GetEnrollment(ctx, student.ID, crs.ID); err != nil {
		return CourseReport{}, errors.Wrap(err, "getting enrollment")
	}

	lessonsTotal, err := svc.courseRepo.CountLessons(ctx, crs.ID)
	if err != nil {
		return CourseReport{}, errors.Wrap(err, "counting lessons")
	}
	completedList, err := svc.reportRepo.CompletedLessonRows(ctx, student.ID, crs.ID)
	if err != nil {
		return CourseReport{}, errors.Wrap(err, "querying completed lessons")
	}
	creditsEarned, err := svc.repo.SumCourseCredits(ctx, student.ID, crs.ID)
	if err != nil {
		return CourseReport{}, errors.Wrap(err, "summing course credits")
	}
	cards, err := svc.reportRepo.ClassroomCardRows(ctx, student.ID, crs.ID)
	if err != nil {
		return CourseReport{}, errors.Wrap(err, "querying classroom cards")
	}
	for i := range cards {
		cards[i].Schedule = scheduleLabel(cards[i].ScheduleSlots)
	}
	studentsTotal, err := svc.reportRepo.CountCourseStudents(ctx, crs.ID)
	if err != nil {
		return CourseReport{}, errors.Wrap(err, "counting course students")
	}

	completedCount := len(completedList)
	completionPercent := 0
	if lessonsTotal > 0 {
		completionPercent = int(math.Round(float64(completedCount) / float64(lessonsTotal) * 100))
	}

	return CourseReport{
		CourseID:          crs.ID,
		CourseTitle:       crs.Title,
		StudentID:         student.ID,
		StudentName:       student.FullName(),
		LessonsTotal:      lessonsTotal,
		CompletedLessons:  completedCount,
		CompletionPercent: completionPercent,
		CreditsEarned:     creditsEarned,
		RemainingLessons:  max(lessonsTotal-completedCount, 0),
		StudentsTotal:     studentsTotal,
		CompletedList:     completedList,
		ClassroomCards:    cards,
	}, nil
}

// StudentOverallReport builds the student's cross-course report with the
// fixed 120-credit overall percentage and the progress circle geometry.
func (svc *service) StudentOverallReport(ctx context.Context, student user.User) (OverallReport, error) {
	rows, err := svc.reportRepo.StudentCourseRows(ctx, student.ID)
	if err != nil {
		return OverallReport{}, errors.Wrap(err, "querying student course rows")
	}

	var (
		courses                                    []OverallCourseRow
		totalLessons, totalCompleted, totalCredits int
	)
	for _, row := range rows {
		prog := coursePercent1(row.CompletedLessons, row.LessonsTotal)
		status := "In Progress"
		if prog >= 100 {
			status = "Completed"
		}
		courses = append(courses, OverallCourseRow{
			ID:               row.CourseID,
			Code:             row.CourseCode,
			Name:             row.CourseTitle,
			Status:           status,
			CompletedLessons: row.CompletedLessons,
			TotalLessons:     row.LessonsTotal,
			CreditsEarned:    row.CreditsEarned,
			TotalCredits:     row.CourseCredits,
			Progress:         prog,
		})
		totalLessons += row.LessonsTotal
		totalCompleted += row.CompletedLessons
		totalCredits += row.CreditsEarned
	}

	overall := OverallPercent(totalCredits)
	circumference := round2(2 * math.Pi * circleRadius)
	offset := round2(circumference * (1 - overall/100))

	return OverallReport{
		OverallProgress:       overall,
		TotalCredits:          totalCredits,
		LessonsCompleted:      totalCompleted,
		TotalLessons:          totalLessons,
		ActiveCourses:         len(courses),
		LessonsRemaining:      totalLessons - totalCompleted,
		Courses:               courses,
		ProgressCircumference: circumference,
		ProgressOffset:        offset,
		LastUpdated:           time.Now().UTC(),
	}, nil
}

// InstructorReport builds the instructor-wide roster: per-course student
// lists plus a deduplicated cross-course student summary.
func (svc *service) InstructorReport(ctx context.Context, instructor user.User) (InstructorReport, error) {
	if !instructor.IsInstructor() {
		return InstructorReport{}, ErrInstructorRequired
	}

	rows, err := svc.reportRepo.RosterRows(ctx, instructor.ID)
	if err != nil {
		return InstructorReport{}, errors.Wrap(err, "querying roster rows")
	}

	studentIDs := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if !seen[row.StudentID] {
			seen[row.StudentID] = true
			studentIDs = append(studentIDs, row.StudentID)
		}
	}
	creditTotals, err := svc.reportRepo.StudentCreditTotals(ctx, studentIDs...)
	if err != nil {
		return InstructorReport{}, errors.Wrap(err, "querying student credit totals")
	}

	var rpt InstructorReport
	courseIdx := make(map[string]int)
	studentMap := make(map[string]*RosterStudent)
	studentCourses := make(map[string]map[string]bool)

	for _, row := range rows {
		credits := creditTotals[row.StudentID]
		prog := clamp(round1(float64(credits) / OverallCreditDenominator * 100))

		name := row.StudentName
		if strings.TrimSpace(name) == "" {
			name = row.StudentEmail
		}
		entry := RosterStudent{
			ID:              row.StudentID,
			Name:            name,
			Email:           row.StudentEmail,
			Credits:         credits,
			ProgressPercent: prog,
		}

		idx, ok := courseIdx[row.CourseID]
		if !ok {
			idx = len(rpt.CourseReports)
			courseIdx[row.CourseID] = idx
			rpt.CourseReports = append(rpt.CourseReports, CourseRoster{
				CourseID:    row.CourseID,
				CourseTitle: row.CourseTitle,
			})
		}
		rpt.CourseReports[idx].Students = append(rpt.CourseReports[idx].Students, entry)

		if _, ok = studentMap[row.StudentID]; !ok {
			cp := entry
			studentMap[row.StudentID] = &cp
			studentCourses[row.StudentID] = make(map[string]bool)
		}
		studentCourses[row.StudentID][row.CourseTitle] = true
	}

	var progressSum float64
	for id, st := range studentMap {
		titles := make([]string, 0, len(studentCourses[id]))
		for title := range studentCourses[id] {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		st.Courses = titles
		st.CoursesCount = len(titles)
		progressSum += st.ProgressPercent
		rpt.AllStudents = append(rpt.AllStudents, *st)
	}
	sort.Slice(rpt.AllStudents, func(i, j int) bool {
		return strings.ToLower(rpt.AllStudents[i].Name) < strings.ToLower(rpt.AllStudents[j].Name)
	})

	rpt.Summary.TotalStudents = len(studentMap)
	rpt.Summary.CoursesTaught = len(rpt.CourseReports)
	if n := len(studentMap); n > 0 {
		rpt.Summary.AvgProgress = clamp(round1(progressSum / float64(n)))
	}
	return rpt, nil
}

// coursePercent1 is the overall-report flavor of the course percentage,
// rounded to 1 decimal place.
func coursePercent1(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(completed) / float64(total) * 100)
}

// scheduleLabel collapses a classroom's meeting slots into one display label.
func scheduleLabel(slots []string) string {
	if len(slots) == 0 {
		return "Schedule not set"
	}
	label := slots[0]
	if len(slots) > 1 {
		label = fmt.Sprintf("%s (+%d more)", label, len(slots)-1)
	}
	return label
}

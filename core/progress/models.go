package progress

import (
	"math"
	"time"

	"github.com/trezcool/academia/core/course"
)

const (
	SectionReading    = "reading"
	SectionAssignment = "assignment"

	// OverallCreditDenominator is the fixed policy denominator for a
	// student's cross-course percentage: a full load of 4 courses at the
	// fixed course budget. It is not derived from actual enrollments.
	OverallCreditDenominator = course.MaxActiveEnrollments * course.CreditPoints
)

// ItemProgress is the finest-grained progress unit: one non-blank line of a
// lesson's reading list or assignments, addressed by zero-based index.
// Rows are created on first toggle and updated in place, never deleted.
type ItemProgress struct {
	ID        string
	StudentID string
	LessonID  string
	Section   string
	ItemIndex int
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LessonProgress is the derived per-lesson mirror of "all items done".
type LessonProgress struct {
	ID        string
	StudentID string
	LessonID  string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreditTransaction records a one-time credit award for completing a lesson.
// Its presence is the source of truth for "has this student been credited for
// this lesson"; it is deleted when completion is revoked.
type CreditTransaction struct {
	ID        string
	StudentID string
	LessonID  string
	Credits   int
	CreatedAt time.Time
}

type Counts struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	ReadingsTotal        int `json:"readings_total"`
	ReadingsCompleted    int `json:"readings_completed"`
	AssignmentsTotal     int `json:"assignments_total"`
	AssignmentsCompleted int `json:"assignments_completed"`
}

// ToggleResult is the toggle endpoint's success payload.
type ToggleResult struct {
	Section                string  `json:"section"`
	Index                  int     `json:"index"`
	InlineCompleted        bool    `json:"inline_completed"`
	LessonCompleted        bool    `json:"lesson_completed"`
	LessonMaterialsPercent float64 `json:"lesson_materials_percent"`
	CourseCompletedLessons int     `json:"course_completed_lessons"`
	CourseTotalLessons     int     `json:"course_total_lessons"`
	PercentCourseComplete  float64 `json:"percent_course_complete"`
	CreditsAwardedNow      int     `json:"credits_awarded_now"`
	StudentTotalCredits    int     `json:"student_total_credits"`
	CourseTotalCredits     int     `json:"course_total_credits"`
	Counts                 Counts  `json:"counts"`
}

// MaterialsPercent is the per-lesson item completion percentage, rounded to
// 2 decimal places; 0 when there are no items.
func MaterialsPercent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(completed) / float64(total) * 100)
}

// CoursePercent is the per-course lesson completion percentage, rounded to
// 2 decimal places and clamped to [0, 100]; 0 when the course has no lessons.
func CoursePercent(completedLessons, totalLessons int) float64 {
	if totalLessons == 0 {
		return 0
	}
	return clamp(round2(float64(completedLessons) / float64(totalLessons) * 100))
}

// OverallPercent is the cross-course percentage of a student's total credits
// against the fixed 120-credit denominator, rounded to 1 decimal place and
// clamped to [0, 100].
func OverallPercent(totalCredits int) float64 {
	if totalCredits == 0 {
		return 0
	}
	return clamp(round1(float64(totalCredits) / OverallCreditDenominator * 100))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }

func clamp(v float64) float64 { return math.Max(0, math.Min(v, 100)) }

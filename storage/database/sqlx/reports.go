package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/progress"
)

// reportRepository serves the aggregate report reads with raw SQL; the
// row-by-row ORM paths are too chatty for these surfaces.
type reportRepository struct {
	db *sqlx.DB
}

var _ progress.ReportRepository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *sqlx.DB) progress.ReportRepository {
	return &reportRepository{db: db}
}

const studentCourseRowsQuery = `
SELECT c.id                        AS course_id,
       COALESCE(c.course_code, '') AS course_code,
       c.title                     AS course_title,
       c.credit_points             AS course_credits,
       (SELECT COUNT(*)
        FROM lessons l
        WHERE l.course_id = c.id)  AS lessons_total,
       (SELECT COUNT(*)
        FROM lesson_progress lp
                 JOIN lessons l ON l.id = lp.lesson_id
        WHERE lp.student_id = e.student_id
          AND l.course_id = c.id
          AND lp.completed)        AS completed_lessons,
       (SELECT COALESCE(SUM(ct.credits), 0)
        FROM credit_transactions ct
                 JOIN lessons l ON l.id = ct.lesson_id
        WHERE ct.student_id = e.student_id
          AND l.course_id = c.id)  AS credits_earned
FROM courses c
         JOIN enrollments e ON e.course_id = c.id
WHERE e.student_id = $1
ORDER BY c.title`

func (repo *reportRepository) StudentCourseRows(ctx context.Context, studentID string) ([]progress.CourseReportRow, error) {
	rows := make([]progress.CourseReportRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, studentCourseRowsQuery, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student course rows")
	}
	return rows, nil
}

const completedLessonRowsQuery = `
SELECT COALESCE(NULLIF(l.lesson_code, ''), l.id) AS code,
       l.title                                   AS title,
       lp.updated_at                             AS completed_on
FROM lesson_progress lp
         JOIN lessons l ON l.id = lp.lesson_id
WHERE lp.student_id = $1
  AND l.course_id = $2
  AND lp.completed
ORDER BY lp.updated_at DESC`

func (repo *reportRepository) CompletedLessonRows(ctx context.Context, studentID, courseID string) ([]progress.CompletedLessonRow, error) {
	rows := make([]progress.CompletedLessonRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, completedLessonRowsQuery, studentID, courseID); err != nil {
		return nil, errors.Wrap(err, "querying completed lessons")
	}
	return rows, nil
}

const classroomCardRowsQuery = `
SELECT cl.id                                                AS classroom_id,
       cl.name                                              AS name,
       COALESCE(cl.class_code, '')                          AS code,
       COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') AS supervisor_name,
       s.day                                                AS day,
       s.start_time                                         AS start_time,
       s.end_time                                           AS end_time
FROM classrooms cl
         JOIN schedules s ON s.classroom_id = cl.id
         JOIN schedule_enrollments se ON se.schedule_id = s.id AND se.student_id = $1
         LEFT JOIN users u ON u.id = cl.supervisor_id
WHERE cl.course_id = $2
ORDER BY cl.name, s.day, s.start_time`

type classroomCardRow struct {
	ClassroomID    string `db:"classroom_id"`
	Name           string `db:"name"`
	Code           string `db:"code"`
	SupervisorName string `db:"supervisor_name"`
	Day            string `db:"day"`
	StartTime      string `db:"start_time"`
	EndTime        string `db:"end_time"`
}

func (repo *reportRepository) ClassroomCardRows(ctx context.Context, studentID, courseID string) ([]progress.ClassroomCardRow, error) {
	var rows []classroomCardRow
	if err := repo.db.SelectContext(ctx, &rows, classroomCardRowsQuery, studentID, courseID); err != nil {
		return nil, errors.Wrap(err, "querying classroom cards")
	}

	// one card per classroom, slots kept in query order
	cards := make([]progress.ClassroomCardRow, 0)
	idx := make(map[string]int)
	for _, row := range rows {
		slot := fmt.Sprintf("%s %s - %s", dayAbbrev(row.Day), row.StartTime, row.EndTime)
		if i, ok := idx[row.ClassroomID]; ok {
			cards[i].ScheduleSlots = append(cards[i].ScheduleSlots, slot)
			continue
		}
		idx[row.ClassroomID] = len(cards)
		cards = append(cards, progress.ClassroomCardRow{
			Name:           row.Name,
			Code:           row.Code,
			SupervisorName: row.SupervisorName,
			ScheduleSlots:  []string{slot},
		})
	}
	return cards, nil
}

const rosterRowsQuery = `
SELECT c.id                                      AS course_id,
       c.title                                   AS course_title,
       u.id                                      AS student_id,
       TRIM(u.first_name || ' ' || u.last_name)  AS student_name,
       u.email                                   AS student_email
FROM courses c
         JOIN enrollments e ON e.course_id = c.id
         JOIN users u ON u.id = e.student_id
WHERE c.instructor_id = $1
ORDER BY c.title, u.first_name, u.last_name, u.email`

func (repo *reportRepository) RosterRows(ctx context.Context, instructorID string) ([]progress.RosterRow, error) {
	rows := make([]progress.RosterRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, rosterRowsQuery, instructorID); err != nil {
		return nil, errors.Wrap(err, "querying roster rows")
	}
	return rows, nil
}

func (repo *reportRepository) StudentCreditTotals(ctx context.Context, studentIDs ...string) (map[string]int, error) {
	totals := make(map[string]int, len(studentIDs))
	if len(studentIDs) == 0 {
		return totals, nil
	}

	query, args, err := sqlx.In(
		"SELECT student_id, COALESCE(SUM(credits), 0) AS total FROM credit_transactions WHERE student_id IN (?) GROUP BY student_id",
		studentIDs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "building credit totals query")
	}

	var rows []struct {
		StudentID string `db:"student_id"`
		Total     int    `db:"total"`
	}
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying credit totals")
	}
	for _, row := range rows {
		totals[row.StudentID] = row.Total
	}
	return totals, nil
}

func (repo *reportRepository) CountCourseStudents(ctx context.Context, courseID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM enrollments WHERE course_id = $1", courseID)
	if err != nil {
		return 0, errors.Wrap(err, "counting course students")
	}
	return count, nil
}

// dayAbbrev shortens a weekday name to its 3-letter display form.
func dayAbbrev(day string) string {
	if len(day) > 3 {
		day = day[:3]
	}
	if day == "" {
		return day
	}
	return strings.ToUpper(day[:1]) + day[1:]
}

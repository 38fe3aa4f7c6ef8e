package dummydb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/trezcool/academia/core/progress"
)

type reportRepository struct {
	db *DB
}

var _ progress.ReportRepository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) progress.ReportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) StudentCourseRows(ctx context.Context, studentID string) ([]progress.CourseReportRow, error) {
	courseRepo := &courseRepository{db: repo.db.course}
	progressRepo := &progressRepository{db: repo.db.progress, courseDB: repo.db.course}

	enrolled, err := courseRepo.QueryEnrolledCourses(ctx, studentID)
	if err != nil {
		return nil, err
	}

	rows := make([]progress.CourseReportRow, 0, len(enrolled))
	for _, crs := range enrolled {
		lessonsTotal, _ := courseRepo.CountLessons(ctx, crs.ID)
		completed, _ := progressRepo.CountCompletedLessons(ctx, studentID, crs.ID)
		earned, _ := progressRepo.SumCourseCredits(ctx, studentID, crs.ID)
		rows = append(rows, progress.CourseReportRow{
			CourseID:         crs.ID,
			CourseCode:       crs.CourseCode.String,
			CourseTitle:      crs.Title,
			LessonsTotal:     lessonsTotal,
			CompletedLessons: completed,
			CreditsEarned:    earned,
			CourseCredits:    crs.CreditPoints,
		})
	}
	return rows, nil
}

func (repo *reportRepository) CompletedLessonRows(ctx context.Context, studentID, courseID string) ([]progress.CompletedLessonRow, error) {
	progressRepo := &progressRepository{db: repo.db.progress, courseDB: repo.db.course}
	completed, err := progressRepo.QueryCompletedLessons(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}

	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	rows := make([]progress.CompletedLessonRow, 0, len(completed))
	for _, lp := range completed {
		lsn, ok := repo.db.course.lessons[lp.LessonID]
		if !ok {
			continue
		}
		code := lsn.LessonCode
		if code == "" {
			code = lsn.ID
		}
		rows = append(rows, progress.CompletedLessonRow{
			Code:        code,
			Title:       lsn.Title,
			CompletedOn: lp.UpdatedAt,
		})
	}
	return rows, nil
}

func (repo *reportRepository) ClassroomCardRows(_ context.Context, studentID, courseID string) ([]progress.ClassroomCardRow, error) {
	repo.db.classroom.RLock()
	defer repo.db.classroom.RUnlock()

	enrolledScheds := make(map[string]bool)
	for _, enr := range repo.db.classroom.enrollments {
		if enr.StudentID == studentID {
			enrolledScheds[enr.ScheduleID] = true
		}
	}

	type roomSlots struct {
		slots []string
	}
	slotsByRoom := make(map[string]*roomSlots)
	for _, sched := range repo.db.classroom.schedules {
		if !enrolledScheds[sched.ID] {
			continue
		}
		room, ok := repo.db.classroom.classrooms[sched.ClassroomID]
		if !ok || room.CourseID != courseID {
			continue
		}
		rs, ok := slotsByRoom[room.ID]
		if !ok {
			rs = &roomSlots{}
			slotsByRoom[room.ID] = rs
		}
		rs.slots = append(rs.slots, fmt.Sprintf("%s %s - %s", dayAbbrev(sched.Day), sched.StartTime, sched.EndTime))
	}

	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	roomIDs := make([]string, 0, len(slotsByRoom))
	for id := range slotsByRoom {
		roomIDs = append(roomIDs, id)
	}
	sort.Strings(roomIDs)

	rows := make([]progress.ClassroomCardRow, 0, len(roomIDs))
	for _, id := range roomIDs {
		room := repo.db.classroom.classrooms[id]
		var supervisor string
		if room.SupervisorID.Valid {
			if usr, ok := repo.db.user.table[room.SupervisorID.String]; ok {
				supervisor = usr.FullName()
			}
		}
		slots := slotsByRoom[id].slots
		sort.Strings(slots)
		rows = append(rows, progress.ClassroomCardRow{
			Name:           room.Name,
			Code:           room.ClassCode.String,
			SupervisorName: supervisor,
			ScheduleSlots:  slots,
		})
	}
	return rows, nil
}

func (repo *reportRepository) RosterRows(_ context.Context, instructorID string) ([]progress.RosterRow, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	taught := make(map[string]string) // course id -> title
	for _, crs := range repo.db.course.courses {
		if crs.InstructorID == instructorID {
			taught[crs.ID] = crs.Title
		}
	}

	rows := make([]progress.RosterRow, 0)
	for _, enr := range repo.db.course.enrollments {
		title, ok := taught[enr.CourseID]
		if !ok {
			continue
		}
		usr, ok := repo.db.user.table[enr.StudentID]
		if !ok {
			continue
		}
		rows = append(rows, progress.RosterRow{
			CourseID:     enr.CourseID,
			CourseTitle:  title,
			StudentID:    usr.ID,
			StudentName:  strings.TrimSpace(usr.FirstName + " " + usr.LastName),
			StudentEmail: usr.Email,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CourseTitle != rows[j].CourseTitle {
			return rows[i].CourseTitle < rows[j].CourseTitle
		}
		return rows[i].StudentName < rows[j].StudentName
	})
	return rows, nil
}

func (repo *reportRepository) StudentCreditTotals(_ context.Context, studentIDs ...string) (map[string]int, error) {
	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	wanted := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	totals := make(map[string]int, len(studentIDs))
	for _, txn := range repo.db.progress.credits {
		if wanted[txn.StudentID] {
			totals[txn.StudentID] += txn.Credits
		}
	}
	return totals, nil
}

func (repo *reportRepository) CountCourseStudents(_ context.Context, courseID string) (int, error) {
	repo.db.course.RLock()
	defer repo.db.course.RUnlock()

	var count int
	for _, enr := range repo.db.course.enrollments {
		if enr.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func dayAbbrev(day string) string {
	if len(day) < 3 {
		return day
	}
	abbr := day[:3]
	return strings.ToUpper(abbr[:1]) + strings.ToLower(abbr[1:])
}

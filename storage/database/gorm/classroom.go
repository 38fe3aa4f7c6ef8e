package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/classroom"
)

type classroomRepository struct {
	db *gorm.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *gorm.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, room *classroom.Classroom) error {
	row := rowFromClassroom(*room)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err, "classrooms_class_code_key") {
			return classroom.ErrClassCodeExists
		}
		return errors.Wrap(err, "inserting classroom")
	}
	return nil
}

func (repo *classroomRepository) GetClassroom(ctx context.Context, id string) (classroom.Classroom, error) {
	var row classroomRow
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if isNotFound(err) {
			return classroom.Classroom{}, classroom.ErrNotFound
		}
		return classroom.Classroom{}, errors.Wrap(err, "finding classroom")
	}
	return row.toClassroom(), nil
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context, filter classroom.QueryFilter, ordering ...core.DBOrdering) ([]classroom.Classroom, error) {
	q := repo.db.WithContext(ctx).Model(&classroomRow{})

	if filter.CourseID != "" {
		q = q.Where("course_id = ?", filter.CourseID)
	}
	if filter.InstructorID != "" {
		q = q.Where(
			"supervisor_id = ? OR course_id IN (SELECT id FROM courses WHERE instructor_id = ?)",
			filter.InstructorID, filter.InstructorID,
		)
	}
	if filter.StudentID != "" {
		q = q.Where(
			"course_id IN (SELECT course_id FROM enrollments WHERE student_id = ?)",
			filter.StudentID,
		)
	}
	if len(ordering) == 0 {
		q = q.Order("name")
	}
	for _, ord := range ordering {
		q = q.Order(ord.String())
	}

	var rows []classroomRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	rooms := make([]classroom.Classroom, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.toClassroom())
	}
	return rooms, nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, room classroom.Classroom) error {
	row := rowFromClassroom(room)
	if err := repo.db.WithContext(ctx).Save(&row).Error; err != nil {
		if isUniqueViolation(err, "classrooms_class_code_key") {
			return classroom.ErrClassCodeExists
		}
		return errors.Wrap(err, "updating classroom")
	}
	return nil
}

func (repo *classroomRepository) DeleteClassroomsByID(ctx context.Context, ids ...string) error {
	err := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&classroomRow{}).Error
	return errors.Wrap(err, "deleting classrooms")
}

func (repo *classroomRepository) CheckClassCodeUniqueness(ctx context.Context, code string, exclRooms ...classroom.Classroom) error {
	q := repo.db.WithContext(ctx).Model(&classroomRow{}).Where("class_code = ?", code)
	if len(exclRooms) > 0 {
		ids := make([]string, 0, len(exclRooms))
		for _, r := range exclRooms {
			ids = append(ids, r.ID)
		}
		q = q.Where("id NOT IN ?", ids)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking class code uniqueness")
	}
	if count > 0 {
		return classroom.ErrClassCodeExists
	}
	return nil
}

func (repo *classroomRepository) CreateSchedule(ctx context.Context, sched *classroom.Schedule) error {
	row := scheduleRow(*sched)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "inserting schedule")
	}
	return nil
}

func (repo *classroomRepository) GetSchedule(ctx context.Context, id string) (classroom.Schedule, error) {
	var row scheduleRow
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if isNotFound(err) {
			return classroom.Schedule{}, classroom.ErrScheduleNotFound
		}
		return classroom.Schedule{}, errors.Wrap(err, "finding schedule")
	}
	return row.toSchedule(), nil
}

func (repo *classroomRepository) QuerySchedules(ctx context.Context, classroomID string) ([]classroom.Schedule, error) {
	var rows []scheduleRow
	err := repo.db.WithContext(ctx).
		Where("classroom_id = ?", classroomID).
		Order("day, start_time").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	return schedulesFromRows(rows), nil
}

func (repo *classroomRepository) QueryLessonSchedules(ctx context.Context, lessonID string) ([]classroom.Schedule, error) {
	var rows []scheduleRow
	err := repo.db.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("day, start_time").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying lesson schedules")
	}
	return schedulesFromRows(rows), nil
}

func (repo *classroomRepository) UpdateSchedule(ctx context.Context, sched classroom.Schedule) error {
	row := scheduleRow(sched)
	return errors.Wrap(repo.db.WithContext(ctx).Save(&row).Error, "updating schedule")
}

func (repo *classroomRepository) DeleteSchedulesByID(ctx context.Context, ids ...string) error {
	err := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&scheduleRow{}).Error
	return errors.Wrap(err, "deleting schedules")
}

func (repo *classroomRepository) GetScheduleEnrollment(ctx context.Context, studentID, scheduleID string) (classroom.ScheduleEnrollment, error) {
	var row scheduleEnrollmentRow
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND schedule_id = ?", studentID, scheduleID).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return classroom.ScheduleEnrollment{}, classroom.ErrEnrollmentNotFound
		}
		return classroom.ScheduleEnrollment{}, errors.Wrap(err, "finding schedule enrollment")
	}
	return classroom.ScheduleEnrollment(row), nil
}

func (repo *classroomRepository) CreateScheduleEnrollment(ctx context.Context, enr *classroom.ScheduleEnrollment) error {
	row := scheduleEnrollmentRow(*enr)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "inserting schedule enrollment")
	}
	return nil
}

func (repo *classroomRepository) DeleteScheduleEnrollment(ctx context.Context, studentID, scheduleID string) error {
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND schedule_id = ?", studentID, scheduleID).
		Delete(&scheduleEnrollmentRow{}).Error
	return errors.Wrap(err, "deleting schedule enrollment")
}

func (repo *classroomRepository) GetStudentLessonSchedule(ctx context.Context, studentID, lessonID string) (classroom.Schedule, error) {
	var row scheduleRow
	err := repo.db.WithContext(ctx).
		Joins("JOIN schedule_enrollments ON schedule_enrollments.schedule_id = schedules.id").
		Where("schedule_enrollments.student_id = ? AND schedules.lesson_id = ?", studentID, lessonID).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return classroom.Schedule{}, classroom.ErrScheduleNotFound
		}
		return classroom.Schedule{}, errors.Wrap(err, "finding student lesson schedule")
	}
	return row.toSchedule(), nil
}

func schedulesFromRows(rows []scheduleRow) []classroom.Schedule {
	scheds := make([]classroom.Schedule, 0, len(rows))
	for _, row := range rows {
		scheds = append(scheds, row.toSchedule())
	}
	return scheds
}

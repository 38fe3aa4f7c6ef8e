package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *gorm.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *gorm.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs *course.Course) error {
	row := rowFromCourse(*crs)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err, "courses_course_code_key") {
			return course.ErrCourseCodeExists
		}
		return errors.Wrap(err, "inserting course")
	}
	return nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if isNotFound(err) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	q := repo.db.WithContext(ctx).Model(&courseRow{})

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q = q.Where("title ILIKE ? OR course_code ILIKE ?", val, val)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.InstructorID != "" {
		q = q.Where("instructor_id = ?", filter.InstructorID)
	}
	if filter.IsDraft != nil {
		q = q.Where("is_draft = ?", *filter.IsDraft)
	}
	for _, ord := range ordering {
		q = q.Order(ord.String())
	}

	var rows []courseRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return coursesFromRows(rows), nil
}

func (repo *courseRepository) QueryEnrolledCourses(ctx context.Context, studentID string) ([]course.Course, error) {
	var rows []courseRow
	err := repo.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.student_id = ?", studentID).
		Order("courses.title").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled courses")
	}
	return coursesFromRows(rows), nil
}

func (repo *courseRepository) QueryAvailableCourses(ctx context.Context, studentID string) ([]course.Course, error) {
	var rows []courseRow
	err := repo.db.WithContext(ctx).
		Where("status = ? AND is_draft = false", course.StatusActive).
		Where("id NOT IN (SELECT course_id FROM enrollments WHERE student_id = ?)", studentID).
		Order("title").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying available courses")
	}
	return coursesFromRows(rows), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) error {
	row := rowFromCourse(crs)
	if err := repo.db.WithContext(ctx).Save(&row).Error; err != nil {
		if isUniqueViolation(err, "courses_course_code_key") {
			return course.ErrCourseCodeExists
		}
		return errors.Wrap(err, "updating course")
	}
	return nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	err := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&courseRow{}).Error
	return errors.Wrap(err, "deleting courses")
}

func (repo *courseRepository) CheckCourseCodeUniqueness(ctx context.Context, code string, exclCourses ...course.Course) error {
	q := repo.db.WithContext(ctx).Model(&courseRow{}).Where("course_code = ?", code)
	if len(exclCourses) > 0 {
		ids := make([]string, 0, len(exclCourses))
		for _, c := range exclCourses {
			ids = append(ids, c.ID)
		}
		q = q.Where("id NOT IN ?", ids)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if count > 0 {
		return course.ErrCourseCodeExists
	}
	return nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn *course.Lesson) error {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := rowFromLesson(*lsn)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err, "lessons_course_id_lesson_code_key") {
				return course.ErrLessonCodeExists
			}
			return errors.Wrap(err, "inserting lesson")
		}
		return savePrerequisites(tx, lsn.ID, lsn.PrerequisiteIDs)
	})
	return err
}

func (repo *courseRepository) GetLesson(ctx context.Context, id string) (course.Lesson, error) {
	var row lessonRow
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if isNotFound(err) {
			return course.Lesson{}, course.ErrLessonNotFound
		}
		return course.Lesson{}, errors.Wrap(err, "finding lesson")
	}
	prereqs, err := repo.prerequisiteIDs(ctx, id)
	if err != nil {
		return course.Lesson{}, err
	}
	return row.toLesson(prereqs), nil
}

func (repo *courseRepository) QueryLessons(ctx context.Context, courseID string) ([]course.Lesson, error) {
	var rows []lessonRow
	err := repo.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order(`"order", created_at`).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}

	lessons := make([]course.Lesson, 0, len(rows))
	for _, row := range rows {
		prereqs, err := repo.prerequisiteIDs(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, row.toLesson(prereqs))
	}
	return lessons, nil
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson) error {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := rowFromLesson(lsn)
		if err := tx.Save(&row).Error; err != nil {
			if isUniqueViolation(err, "lessons_course_id_lesson_code_key") {
				return course.ErrLessonCodeExists
			}
			return errors.Wrap(err, "updating lesson")
		}
		if err := tx.Where("lesson_id = ?", lsn.ID).Delete(&lessonPrerequisiteRow{}).Error; err != nil {
			return errors.Wrap(err, "clearing prerequisites")
		}
		return savePrerequisites(tx, lsn.ID, lsn.PrerequisiteIDs)
	})
	return err
}

func (repo *courseRepository) DeleteLessonsByID(ctx context.Context, ids ...string) error {
	err := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&lessonRow{}).Error
	return errors.Wrap(err, "deleting lessons")
}

func (repo *courseRepository) CountLessons(ctx context.Context, courseID string) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&lessonRow{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting lessons")
	}
	return int(count), nil
}

func (repo *courseRepository) SumLessonCredits(ctx context.Context, courseID string, exclLessons ...course.Lesson) (int, error) {
	q := repo.db.WithContext(ctx).
		Model(&lessonRow{}).
		Where("course_id = ?", courseID)
	if len(exclLessons) > 0 {
		ids := make([]string, 0, len(exclLessons))
		for _, l := range exclLessons {
			ids = append(ids, l.ID)
		}
		q = q.Where("id NOT IN ?", ids)
	}

	var sum int64
	err := q.Select("COALESCE(SUM(credit_points), 0)").Scan(&sum).Error
	if err != nil {
		return 0, errors.Wrap(err, "summing lesson credits")
	}
	return int(sum), nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, studentID, courseID string) (course.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return course.Enrollment{}, course.ErrEnrollmentNotFound
		}
		return course.Enrollment{}, errors.Wrap(err, "finding enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr *course.Enrollment) error {
	row := enrollmentRow{ID: enr.ID, StudentID: enr.StudentID, CourseID: enr.CourseID, CreatedAt: enr.CreatedAt.UTC()}
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "inserting enrollment")
	}
	return nil
}

func (repo *courseRepository) QueryStudentEnrollments(ctx context.Context, studentID string) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollmentsFromRows(rows), nil
}

func (repo *courseRepository) QueryCourseEnrollments(ctx context.Context, courseID string) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return enrollmentsFromRows(rows), nil
}

func (repo *courseRepository) CountActiveEnrollments(ctx context.Context, studentID string) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&enrollmentRow{}).
		Joins("JOIN courses ON courses.id = enrollments.course_id").
		Where("enrollments.student_id = ? AND courses.status = ?", studentID, course.StatusActive).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting active enrollments")
	}
	return int(count), nil
}

func (repo *courseRepository) DeleteCourseEnrollments(ctx context.Context, courseID string) error {
	err := repo.db.WithContext(ctx).Where("course_id = ?", courseID).Delete(&enrollmentRow{}).Error
	return errors.Wrap(err, "deleting course enrollments")
}

func (repo *courseRepository) prerequisiteIDs(ctx context.Context, lessonID string) ([]string, error) {
	var ids []string
	err := repo.db.WithContext(ctx).
		Model(&lessonPrerequisiteRow{}).
		Where("lesson_id = ?", lessonID).
		Pluck("prerequisite_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying prerequisites")
	}
	return ids, nil
}

func savePrerequisites(tx *gorm.DB, lessonID string, prerequisiteIDs []string) error {
	if len(prerequisiteIDs) == 0 {
		return nil
	}
	rows := make([]lessonPrerequisiteRow, 0, len(prerequisiteIDs))
	for _, id := range prerequisiteIDs {
		rows = append(rows, lessonPrerequisiteRow{LessonID: lessonID, PrerequisiteID: id})
	}
	return errors.Wrap(tx.Create(&rows).Error, "inserting prerequisites")
}

func coursesFromRows(rows []courseRow) []course.Course {
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses
}

func enrollmentsFromRows(rows []enrollmentRow) []course.Enrollment {
	enrollments := make([]course.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.toEnrollment())
	}
	return enrollments
}

package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) queryCourses() []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) queryLessons() []course.Lesson {
	lessons := make([]course.Lesson, 0, len(repo.db.lessons))
	for _, lsn := range repo.db.lessons {
		lessons = append(lessons, *lsn)
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].Order != lessons[j].Order {
			return lessons[i].Order < lessons[j].Order
		}
		return lessons[i].CreatedAt.Before(lessons[j].CreatedAt)
	})
	return lessons
}

func (repo *courseRepository) queryEnrollments() []course.Enrollment {
	enrollments := make([]course.Enrollment, 0, len(repo.db.enrollments))
	for _, enr := range repo.db.enrollments {
		enrollments = append(enrollments, *enr)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].CreatedAt.Before(enrollments[j].CreatedAt) })
	return enrollments
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs *course.Course) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if crs.CourseCode.Valid && crs.CourseCode.String != "" {
		for _, existing := range repo.db.courses {
			if existing.CourseCode.String == crs.CourseCode.String {
				return course.ErrCourseCodeExists
			}
		}
	}
	c := *crs
	repo.db.courses[c.ID] = &c
	return nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, _ ...core.DBOrdering) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.queryCourses() {
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(crs.Title), filter.Search) &&
			!strings.Contains(strings.ToLower(crs.CourseCode.String), filter.Search) {
			continue
		}
		if filter.Status != "" && crs.Status != filter.Status {
			continue
		}
		if filter.InstructorID != "" && crs.InstructorID != filter.InstructorID {
			continue
		}
		if filter.IsDraft != nil && crs.IsDraft != *filter.IsDraft {
			continue
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

func (repo *courseRepository) QueryEnrolledCourses(_ context.Context, studentID string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrolled := make(map[string]bool)
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			enrolled[enr.CourseID] = true
		}
	}
	courses := make([]course.Course, 0)
	for _, crs := range repo.queryCourses() {
		if enrolled[crs.ID] {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) QueryAvailableCourses(_ context.Context, studentID string) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrolled := make(map[string]bool)
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			enrolled[enr.CourseID] = true
		}
	}
	courses := make([]course.Course, 0)
	for _, crs := range repo.queryCourses() {
		if crs.Active() && !enrolled[crs.ID] {
			courses = append(courses, crs)
		}
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return nil
}

func (repo *courseRepository) DeleteCoursesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.courses, id)
		for lid, lsn := range repo.db.lessons {
			if lsn.CourseID == id {
				delete(repo.db.lessons, lid)
			}
		}
		for eid, enr := range repo.db.enrollments {
			if enr.CourseID == id {
				delete(repo.db.enrollments, eid)
			}
		}
	}
	return nil
}

func (repo *courseRepository) CheckCourseCodeUniqueness(_ context.Context, code string, exclCourses ...course.Course) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, crs := range repo.queryCourses() {
		if crs.CourseCode.String != code {
			continue
		}
		excluded := false
		for _, excl := range exclCourses {
			if crs.ID == excl.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return course.ErrCourseCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateLesson(_ context.Context, lsn *course.Lesson) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.lessons {
		if existing.CourseID == lsn.CourseID && existing.LessonCode == lsn.LessonCode {
			return course.ErrLessonCodeExists
		}
	}
	l := *lsn
	repo.db.lessons[l.ID] = &l
	return nil
}

func (repo *courseRepository) GetLesson(_ context.Context, id string) (course.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return course.Lesson{}, course.ErrLessonNotFound
}

func (repo *courseRepository) QueryLessons(_ context.Context, courseID string) ([]course.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lessons := make([]course.Lesson, 0)
	for _, lsn := range repo.queryLessons() {
		if lsn.CourseID == courseID {
			lessons = append(lessons, lsn)
		}
	}
	return lessons, nil
}

func (repo *courseRepository) UpdateLesson(_ context.Context, lsn course.Lesson) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessons[lsn.ID]; !ok {
		return course.ErrLessonNotFound
	}
	repo.db.lessons[lsn.ID] = &lsn
	return nil
}

func (repo *courseRepository) DeleteLessonsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.lessons, id)
	}
	return nil
}

func (repo *courseRepository) CountLessons(_ context.Context, courseID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (repo *courseRepository) SumLessonCredits(_ context.Context, courseID string, exclLessons ...course.Lesson) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sum int
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID != courseID {
			continue
		}
		excluded := false
		for _, excl := range exclLessons {
			if lsn.ID == excl.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			sum += lsn.CreditPoints
		}
	}
	return sum, nil
}

func (repo *courseRepository) GetEnrollment(_ context.Context, studentID, courseID string) (course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.CourseID == courseID {
			return *enr, nil
		}
	}
	return course.Enrollment{}, course.ErrEnrollmentNotFound
}

func (repo *courseRepository) CreateEnrollment(_ context.Context, enr *course.Enrollment) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	e := *enr
	repo.db.enrollments[e.ID] = &e
	return nil
}

func (repo *courseRepository) QueryStudentEnrollments(_ context.Context, studentID string) ([]course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, enr := range repo.queryEnrollments() {
		if enr.StudentID == studentID {
			enrollments = append(enrollments, enr)
		}
	}
	return enrollments, nil
}

func (repo *courseRepository) QueryCourseEnrollments(_ context.Context, courseID string) ([]course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]course.Enrollment, 0)
	for _, enr := range repo.queryEnrollments() {
		if enr.CourseID == courseID {
			enrollments = append(enrollments, enr)
		}
	}
	return enrollments, nil
}

func (repo *courseRepository) CountActiveEnrollments(_ context.Context, studentID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, enr := range repo.db.enrollments {
		if enr.StudentID != studentID {
			continue
		}
		if crs, ok := repo.db.courses[enr.CourseID]; ok && crs.Status == course.StatusActive {
			count++
		}
	}
	return count, nil
}

func (repo *courseRepository) DeleteCourseEnrollments(_ context.Context, courseID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, enr := range repo.db.enrollments {
		if enr.CourseID == courseID {
			delete(repo.db.enrollments, id)
		}
	}
	return nil
}

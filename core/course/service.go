package course

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

var (
	ErrNotFound           = errors.New("course not found")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrCourseCodeExists   = errors.New("a course with this code exists")
	ErrLessonCodeExists   = errors.New("a lesson with this code exists in this course")
)

type (
	// Repository persists courses, lessons and enrollments.
	Repository interface {
		CreateCourse(ctx context.Context, crs *Course) error
		GetCourse(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		QueryEnrolledCourses(ctx context.Context, studentID string) ([]Course, error)
		QueryAvailableCourses(ctx context.Context, studentID string) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) error
		DeleteCoursesByID(ctx context.Context, ids ...string) error
		CheckCourseCodeUniqueness(ctx context.Context, code string, exclCourses ...Course) error

		CreateLesson(ctx context.Context, lsn *Lesson) error
		GetLesson(ctx context.Context, id string) (Lesson, error)
		QueryLessons(ctx context.Context, courseID string) ([]Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson) error
		DeleteLessonsByID(ctx context.Context, ids ...string) error
		CountLessons(ctx context.Context, courseID string) (int, error)
		SumLessonCredits(ctx context.Context, courseID string, exclLessons ...Lesson) (int, error)

		GetEnrollment(ctx context.Context, studentID, courseID string) (Enrollment, error)
		CreateEnrollment(ctx context.Context, enr *Enrollment) error
		QueryStudentEnrollments(ctx context.Context, studentID string) ([]Enrollment, error)
		QueryCourseEnrollments(ctx context.Context, courseID string) ([]Enrollment, error)
		CountActiveEnrollments(ctx context.Context, studentID string) (int, error)
		DeleteCourseEnrollments(ctx context.Context, courseID string) error
	}

	// ProgressChecker reports whether a student has completed a lesson. It is
	// implemented by the progress service.
	ProgressChecker interface {
		LessonCompleted(ctx context.Context, studentID, lessonID string) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, instructorID string, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error)
		QueryEnrolled(ctx context.Context, studentID string) ([]Course, error)
		QueryAvailable(ctx context.Context, studentID string) ([]Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Publish(ctx context.Context, id string) (Course, error)
		Delete(ctx context.Context, ids ...string) error
		CheckCodeUniqueness(code string, exclCourses ...Course) error

		CreateLesson(ctx context.Context, courseID string, nl NewLesson) (Lesson, error)
		GetLesson(ctx context.Context, id string) (Lesson, error)
		QueryLessons(ctx context.Context, courseID string) ([]Lesson, error)
		UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, ids ...string) error
		CheckLessonCreditBudget(courseID string, credits int, exclLessons ...Lesson) error
		MissingPrerequisites(ctx context.Context, studentID string, lsn Lesson) ([]Lesson, error)

		Enroll(ctx context.Context, studentID, courseID string) (EnrollResult, error)
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	}

	service struct {
		repo     Repository
		progress ProgressChecker
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, progress ProgressChecker) Service {
	return &service{
		repo:     repo,
		progress: progress,
	}
}

func (svc *service) Create(ctx context.Context, instructorID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		ID:            uuid.New().String(),
		InstructorID:  instructorID,
		Title:         nc.Title,
		CourseCode:    null.NewString(nc.CourseCode, nc.CourseCode != ""),
		Description:   nc.Description,
		CreditPoints:  CreditPoints,
		Status:        nc.Status,
		DurationWeeks: nc.DurationWeeks,
		MaxStudents:   nc.MaxStudents,
		IsDraft:       nc.IsDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !crs.IsDraft {
		crs.PublishedAt = null.TimeFrom(now)
	}
	if err := svc.repo.CreateCourse(ctx, &crs); err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	return crs, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, errors.Wrapf(err, "getting course %s", id)
	}
	return crs, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Course, error) {
	filter.Clean()
	courses, err := svc.repo.QueryCourses(ctx, filter, ordering...)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (svc *service) QueryEnrolled(ctx context.Context, studentID string) ([]Course, error) {
	courses, err := svc.repo.QueryEnrolledCourses(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled courses")
	}
	return courses, nil
}

func (svc *service) QueryAvailable(ctx context.Context, studentID string) ([]Course, error) {
	courses, err := svc.repo.QueryAvailableCourses(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying available courses")
	}
	return courses, nil
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, errors.Wrapf(err, "getting course %s", id)
	}

	if uc.Title != "" {
		crs.Title = uc.Title
	}
	if uc.CourseCode != "" {
		crs.CourseCode = null.StringFrom(uc.CourseCode)
	}
	if uc.Description != "" {
		crs.Description = uc.Description
	}
	if uc.Status != "" {
		crs.Status = uc.Status
	}
	if uc.DurationWeeks > 0 {
		crs.DurationWeeks = uc.DurationWeeks
	}
	if uc.MaxStudents > 0 {
		crs.MaxStudents = uc.MaxStudents
	}
	if uc.IsDraft != nil {
		crs.IsDraft = *uc.IsDraft
	}
	if err = svc.save(ctx, &crs); err != nil {
		return Course{}, err
	}
	return crs, nil
}

// save applies the invariant-bearing course save rules:
// - the credit budget is always forced back to the fixed total;
// - saving an inactive course deletes its enrollments.
func (svc *service) save(ctx context.Context, crs *Course) error {
	crs.CreditPoints = CreditPoints
	crs.UpdatedAt = time.Now().UTC()
	if err := svc.repo.UpdateCourse(ctx, *crs); err != nil {
		return errors.Wrapf(err, "updating course %s", crs.ID)
	}
	if crs.Status == StatusInactive {
		if err := svc.repo.DeleteCourseEnrollments(ctx, crs.ID); err != nil {
			return errors.Wrapf(err, "deleting enrollments of inactive course %s", crs.ID)
		}
	}
	return nil
}

func (svc *service) Publish(ctx context.Context, id string) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, errors.Wrapf(err, "getting course %s", id)
	}
	if crs.IsDraft {
		crs.IsDraft = false
		crs.PublishedAt = null.TimeFrom(time.Now().UTC())
		if err = svc.save(ctx, &crs); err != nil {
			return Course{}, err
		}
	}
	return crs, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return errors.Wrap(svc.repo.DeleteCoursesByID(ctx, ids...), "deleting courses")
}

func (svc *service) CheckCodeUniqueness(code string, exclCourses ...Course) error {
	if code == "" {
		return nil
	}
	if err := svc.repo.CheckCourseCodeUniqueness(context.Background(), code, exclCourses...); err != nil {
		if errors.Cause(err) == ErrCourseCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "course_code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) CreateLesson(ctx context.Context, courseID string, nl NewLesson) (Lesson, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return Lesson{}, errors.Wrapf(err, "getting course %s", courseID)
	}
	now := time.Now().UTC()
	lsn := Lesson{
		ID:                 uuid.New().String(),
		CourseID:           courseID,
		Title:              nl.Title,
		LessonCode:         nl.LessonCode,
		Description:        nl.Description,
		LearningObjectives: nl.LearningObjectives,
		ReadingList:        nl.ReadingList,
		Assignments:        nl.Assignments,
		DurationHours:      nl.DurationHours,
		CreditPoints:       nl.CreditPoints,
		Order:              nl.Order,
		PrerequisiteIDs:    nl.PrerequisiteIDs,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := svc.repo.CreateLesson(ctx, &lsn); err != nil {
		return Lesson{}, errors.Wrap(err, "creating lesson")
	}
	return lsn, nil
}

func (svc *service) GetLesson(ctx context.Context, id string) (Lesson, error) {
	lsn, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, errors.Wrapf(err, "getting lesson %s", id)
	}
	return lsn, nil
}

func (svc *service) QueryLessons(ctx context.Context, courseID string) ([]Lesson, error) {
	lessons, err := svc.repo.QueryLessons(ctx, courseID)
	if err != nil {
		return nil, errors.Wrapf(err, "querying lessons of course %s", courseID)
	}
	return lessons, nil
}

func (svc *service) UpdateLesson(ctx context.Context, id string, ul UpdateLesson) (Lesson, error) {
	lsn, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, errors.Wrapf(err, "getting lesson %s", id)
	}

	if ul.Title != "" {
		lsn.Title = ul.Title
	}
	if ul.LessonCode != "" {
		lsn.LessonCode = ul.LessonCode
	}
	if ul.Description != "" {
		lsn.Description = ul.Description
	}
	if ul.LearningObjectives != "" {
		lsn.LearningObjectives = ul.LearningObjectives
	}
	if ul.ReadingList != "" {
		lsn.ReadingList = ul.ReadingList
	}
	if ul.Assignments != "" {
		lsn.Assignments = ul.Assignments
	}
	if ul.DurationHours > 0 {
		lsn.DurationHours = ul.DurationHours
	}
	if ul.CreditPoints != nil {
		lsn.CreditPoints = *ul.CreditPoints
	}
	if ul.Order != nil {
		lsn.Order = *ul.Order
	}
	if ul.PrerequisiteIDs != nil {
		lsn.PrerequisiteIDs = ul.PrerequisiteIDs
	}
	lsn.UpdatedAt = time.Now().UTC()
	if err = svc.repo.UpdateLesson(ctx, lsn); err != nil {
		return Lesson{}, errors.Wrapf(err, "updating lesson %s", id)
	}
	return lsn, nil
}

func (svc *service) DeleteLesson(ctx context.Context, ids ...string) error {
	return errors.Wrap(svc.repo.DeleteLessonsByID(ctx, ids...), "deleting lessons")
}

func (svc *service) CheckLessonCreditBudget(courseID string, credits int, exclLessons ...Lesson) error {
	sum, err := svc.repo.SumLessonCredits(context.Background(), courseID, exclLessons...)
	if err != nil {
		return errors.Wrapf(err, "summing lesson credits of course %s", courseID)
	}
	if sum+credits > CreditPoints {
		err = fmt.Errorf("lesson credits exceed the course budget of %d (%d allocated)", CreditPoints, sum)
		return core.NewValidationError(err, core.FieldError{Field: "credit_points", Error: err.Error()})
	}
	return nil
}

// MissingPrerequisites walks the prerequisite graph of lsn and returns the
// lessons the student has not completed yet. The graph is not required to be
// acyclic; traversal is guarded by a visited set.
func (svc *service) MissingPrerequisites(ctx context.Context, studentID string, lsn Lesson) ([]Lesson, error) {
	var missing []Lesson
	visited := map[string]bool{lsn.ID: true}
	queue := append([]string(nil), lsn.PrerequisiteIDs...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		prereq, err := svc.repo.GetLesson(ctx, id)
		if err != nil {
			if errors.Cause(err) == ErrLessonNotFound {
				continue
			}
			return nil, errors.Wrapf(err, "getting prerequisite lesson %s", id)
		}
		done, err := svc.progress.LessonCompleted(ctx, studentID, prereq.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "checking completion of lesson %s", prereq.ID)
		}
		if !done {
			missing = append(missing, prereq)
		}
		queue = append(queue, prereq.PrerequisiteIDs...)
	}
	return missing, nil
}

func (svc *service) Enroll(ctx context.Context, studentID, courseID string) (EnrollResult, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return EnrollResult{}, errors.Wrapf(err, "getting course %s", courseID)
	}
	if !crs.Active() {
		return EnrollResult{}, errors.Wrapf(ErrNotFound, "course %s is not open for enrollment", courseID)
	}

	if enr, err := svc.repo.GetEnrollment(ctx, studentID, courseID); err == nil {
		return EnrollResult{Enrollment: enr, Enrolled: true, Message: "You are already enrolled in this course."}, nil
	} else if errors.Cause(err) != ErrEnrollmentNotFound {
		return EnrollResult{}, errors.Wrap(err, "getting enrollment")
	}

	count, err := svc.repo.CountActiveEnrollments(ctx, studentID)
	if err != nil {
		return EnrollResult{}, errors.Wrap(err, "counting enrollments")
	}
	if count >= MaxActiveEnrollments {
		return EnrollResult{
			Message: fmt.Sprintf("You have reached the maximum of %d active course enrollments.", MaxActiveEnrollments),
		}, nil
	}

	enr := Enrollment{
		ID:        uuid.New().String(),
		StudentID: studentID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	}
	if err = svc.repo.CreateEnrollment(ctx, &enr); err != nil {
		// benign race with a concurrent enroll for the same pair
		if existing, gerr := svc.repo.GetEnrollment(ctx, studentID, courseID); gerr == nil {
			return EnrollResult{Enrollment: existing, Enrolled: true, Message: "You are already enrolled in this course."}, nil
		}
		return EnrollResult{}, errors.Wrap(err, "creating enrollment")
	}
	return EnrollResult{Enrollment: enr, Enrolled: true, Created: true, Message: "Enrollment successful."}, nil
}

func (svc *service) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, studentID, courseID); err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "getting enrollment")
	}
	return true, nil
}

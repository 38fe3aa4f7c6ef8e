package progress

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

var (
	ErrNotStudent     = errors.New("Only students may mark progress")
	ErrNotEnrolled    = errors.New("Student not enrolled in course")
	ErrInvalidSection = errors.New("invalid section")
	ErrInvalidIndex   = errors.New("index must be an integer")

	ErrItemNotFound           = errors.New("item progress not found")
	ErrLessonProgressNotFound = errors.New("lesson progress not found")
	ErrCreditNotFound         = errors.New("credit transaction not found")
)

type (
	// Repository persists the progress and credit rows.
	Repository interface {
		GetItemProgress(ctx context.Context, studentID, lessonID, section string, index int) (ItemProgress, error)
		CreateItemProgress(ctx context.Context, ip *ItemProgress) error
		UpdateItemProgress(ctx context.Context, ip ItemProgress) error
		CountCompletedItems(ctx context.Context, studentID, lessonID, section string) (int, error)

		GetLessonProgress(ctx context.Context, studentID, lessonID string) (LessonProgress, error)
		CreateLessonProgress(ctx context.Context, lp *LessonProgress) error
		UpdateLessonProgress(ctx context.Context, lp LessonProgress) error
		CountCompletedLessons(ctx context.Context, studentID, courseID string) (int, error)
		QueryCompletedLessons(ctx context.Context, studentID, courseID string) ([]LessonProgress, error)

		GetCreditTransaction(ctx context.Context, studentID, lessonID string) (CreditTransaction, error)
		CreateCreditTransaction(ctx context.Context, txn *CreditTransaction) error
		UpdateCreditTransaction(ctx context.Context, txn CreditTransaction) error
		DeleteCreditTransaction(ctx context.Context, studentID, lessonID string) error
		SumStudentCredits(ctx context.Context, studentID string) (int, error)
		SumCourseCredits(ctx context.Context, studentID, courseID string) (int, error)
	}

	Service interface {
		ToggleItem(ctx context.Context, usr user.User, lessonID, section, rawIndex, rawCompleted string) (ToggleResult, error)
		LessonCompleted(ctx context.Context, studentID, lessonID string) (bool, error)
		LessonCounts(ctx context.Context, studentID string, lsn course.Lesson) (Counts, error)

		StudentCourseReport(ctx context.Context, viewer user.User, courseID, studentID string) (CourseReport, error)
		StudentOverallReport(ctx context.Context, student user.User) (OverallReport, error)
		InstructorReport(ctx context.Context, instructor user.User) (InstructorReport, error)
	}

	service struct {
		repo       Repository
		courseRepo course.Repository
		reportRepo ReportRepository
		userRepo   user.Repository
	}
)

var _ Service = (*service)(nil)
var _ course.ProgressChecker = (*service)(nil)

func NewService(repo Repository, courseRepo course.Repository, reportRepo ReportRepository, userRepo user.Repository) Service {
	return &service{
		repo:       repo,
		courseRepo: courseRepo,
		reportRepo: reportRepo,
		userRepo:   userRepo,
	}
}

// ToggleItem toggles completion of a single inline item (reading/assignment)
// by section + index, then rolls the change up: recompute lesson completion,
// mirror it to the lesson progress row, and keep the credit transaction in
// sync (awarded once on completion, deleted on revocation).
//
// rawCompleted is truthy for "1"/"true"/"yes"/"on" (case-insensitive), false
// otherwise. rawIndex must parse as a non-negative integer; it is not bounds
// checked against the actual line count.
func (svc *service) ToggleItem(ctx context.Context, usr user.User, lessonID, section, rawIndex, rawCompleted string) (ToggleResult, error) {
	lsn, err := svc.courseRepo.GetLesson(ctx, lessonID)
	if err != nil {
		return ToggleResult{}, errors.Wrapf(err, "getting lesson %s", lessonID)
	}

	if !usr.IsStudent() {
		return ToggleResult{}, ErrNotStudent
	}
	if _, err = svc.courseRepo.GetEnrollment(ctx, usr.ID, lsn.CourseID); err != nil {
		if errors.Cause(err) == course.ErrEnrollmentNotFound {
			return ToggleResult{}, ErrNotEnrolled
		}
		return ToggleResult{}, errors.Wrap(err, "getting enrollment")
	}

	if section != SectionReading && section != SectionAssignment {
		return ToggleResult{}, ErrInvalidSection
	}
	idx, err := strconv.Atoi(strings.TrimSpace(rawIndex))
	if err != nil || idx < 0 {
		return ToggleResult{}, ErrInvalidIndex
	}
	completedFlag := core.ParseBoolish(rawCompleted)

	ip, err := svc.getOrCreateItem(ctx, usr.ID, lsn.ID, section, idx)
	if err != nil {
		return ToggleResult{}, err
	}
	ip.Completed = completedFlag
	ip.UpdatedAt = time.Now().UTC()
	if err = svc.repo.UpdateItemProgress(ctx, ip); err != nil {
		return ToggleResult{}, errors.Wrap(err, "updating item progress")
	}

	counts, err := svc.LessonCounts(ctx, usr.ID, lsn)
	if err != nil {
		return ToggleResult{}, err
	}
	allDone := counts.Total > 0 && counts.Completed == counts.Total

	lp, err := svc.getOrCreateLessonProgress(ctx, usr.ID, lsn.ID)
	if err != nil {
		return ToggleResult{}, err
	}
	previouslyCompleted := lp.Completed
	if lp.Completed != allDone {
		lp.Completed = allDone
		lp.UpdatedAt = time.Now().UTC()
		if err = svc.repo.UpdateLessonProgress(ctx, lp); err != nil {
			return ToggleResult{}, errors.Wrap(err, "updating lesson progress")
		}
	}

	creditsAwardedNow, err := svc.syncCredits(ctx, usr.ID, lsn, allDone, previouslyCompleted)
	if err != nil {
		return ToggleResult{}, err
	}

	studentTotal, err := svc.repo.SumStudentCredits(ctx, usr.ID)
	if err != nil {
		return ToggleResult{}, errors.Wrap(err, "summing student credits")
	}
	courseTotal, err := svc.repo.SumCourseCredits(ctx, usr.ID, lsn.CourseID)
	if err != nil {
		return ToggleResult{}, errors.Wrap(err, "summing course credits")
	}

	totalLessons, err := svc.courseRepo.CountLessons(ctx, lsn.CourseID)
	if err != nil {
		return ToggleResult{}, errors.Wrap(err, "counting lessons")
	}
	var completedLessons int
	if totalLessons > 0 {
		if completedLessons, err = svc.repo.CountCompletedLessons(ctx, usr.ID, lsn.CourseID); err != nil {
			return ToggleResult{}, errors.Wrap(err, "counting completed lessons")
		}
	}

	return ToggleResult{
		Section:                section,
		Index:                  idx,
		InlineCompleted:        ip.Completed,
		LessonCompleted:        allDone,
		LessonMaterialsPercent: MaterialsPercent(counts.Completed, counts.Total),
		CourseCompletedLessons: completedLessons,
		CourseTotalLessons:     totalLessons,
		PercentCourseComplete:  CoursePercent(completedLessons, totalLessons),
		CreditsAwardedNow:      creditsAwardedNow,
		StudentTotalCredits:    studentTotal,
		CourseTotalCredits:     courseTotal,
		Counts:                 counts,
	}, nil
}

// LessonCounts recomputes the addressable item totals of lsn and the
// student's completed counts per section.
func (svc *service) LessonCounts(ctx context.Context, studentID string, lsn course.Lesson) (Counts, error) {
	readingsCount := len(lsn.ReadingItems())
	assignmentsCount := len(lsn.AssignmentItems())

	completedReadings, err := svc.repo.CountCompletedItems(ctx, studentID, lsn.ID, SectionReading)
	if err != nil {
		return Counts{}, errors.Wrap(err, "counting completed readings")
	}
	completedAssignments, err := svc.repo.CountCompletedItems(ctx, studentID, lsn.ID, SectionAssignment)
	if err != nil {
		return Counts{}, errors.Wrap(err, "counting completed assignments")
	}

	return Counts{
		Total:                readingsCount + assignmentsCount,
		Completed:            completedReadings + completedAssignments,
		ReadingsTotal:        readingsCount,
		ReadingsCompleted:    completedReadings,
		AssignmentsTotal:     assignmentsCount,
		AssignmentsCompleted: completedAssignments,
	}, nil
}

// LessonCompleted reports whether the student's lesson progress mirror is
// currently completed. A missing row counts as not completed.
func (svc *service) LessonCompleted(ctx context.Context, studentID, lessonID string) (bool, error) {
	lp, err := svc.repo.GetLessonProgress(ctx, studentID, lessonID)
	if err != nil {
		if errors.Cause(err) == ErrLessonProgressNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "getting lesson progress")
	}
	return lp.Completed, nil
}

// syncCredits keeps the credit transaction strictly synchronized with lesson
// completion. A fresh award only happens when no transaction currently
// exists; an existing one with a stale amount is refreshed; revocation
// deletes it.
func (svc *service) syncCredits(ctx context.Context, studentID string, lsn course.Lesson, allDone, previouslyCompleted bool) (creditsAwardedNow int, err error) {
	if allDone {
		txn, err := svc.repo.GetCreditTransaction(ctx, studentID, lsn.ID)
		if err == nil {
			if txn.Credits != lsn.CreditPoints {
				txn.Credits = lsn.CreditPoints
				if err = svc.repo.UpdateCreditTransaction(ctx, txn); err != nil {
					return 0, errors.Wrap(err, "updating credit transaction")
				}
			}
			return 0, nil
		}
		if errors.Cause(err) != ErrCreditNotFound {
			return 0, errors.Wrap(err, "getting credit transaction")
		}

		txn = CreditTransaction{
			ID:        uuid.New().String(),
			StudentID: studentID,
			LessonID:  lsn.ID,
			Credits:   lsn.CreditPoints,
			CreatedAt: time.Now().UTC(),
		}
		if err = svc.repo.CreateCreditTransaction(ctx, &txn); err != nil {
			// benign race; the concurrent toggle already awarded
			if _, gerr := svc.repo.GetCreditTransaction(ctx, studentID, lsn.ID); gerr == nil {
				return 0, nil
			}
			return 0, errors.Wrap(err, "creating credit transaction")
		}
		return lsn.CreditPoints, nil
	}

	if previouslyCompleted {
		if err := svc.repo.DeleteCreditTransaction(ctx, studentID, lsn.ID); err != nil {
			if errors.Cause(err) != ErrCreditNotFound {
				return 0, errors.Wrap(err, "deleting credit transaction")
			}
		}
	}
	return 0, nil
}

func (svc *service) getOrCreateItem(ctx context.Context, studentID, lessonID, section string, idx int) (ItemProgress, error) {
	ip, err := svc.repo.GetItemProgress(ctx, studentID, lessonID, section, idx)
	if err == nil {
		return ip, nil
	}
	if errors.Cause(err) != ErrItemNotFound {
		return ItemProgress{}, errors.Wrap(err, "getting item progress")
	}

	now := time.Now().UTC()
	ip = ItemProgress{
		ID:        uuid.New().String(),
		StudentID: studentID,
		LessonID:  lessonID,
		Section:   section,
		ItemIndex: idx,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = svc.repo.CreateItemProgress(ctx, &ip); err != nil {
		// benign race: re-fetch the row the concurrent toggle created
		if existing, gerr := svc.repo.GetItemProgress(ctx, studentID, lessonID, section, idx); gerr == nil {
			return existing, nil
		}
		return ItemProgress{}, errors.Wrap(err, "creating item progress")
	}
	return ip, nil
}

func (svc *service) getOrCreateLessonProgress(ctx context.Context, studentID, lessonID string) (LessonProgress, error) {
	lp, err := svc.repo.GetLessonProgress(ctx, studentID, lessonID)
	if err == nil {
		return lp, nil
	}
	if errors.Cause(err) != ErrLessonProgressNotFound {
		return LessonProgress{}, errors.Wrap(err, "getting lesson progress")
	}

	now := time.Now().UTC()
	lp = LessonProgress{
		ID:        uuid.New().String(),
		StudentID: studentID,
		LessonID:  lessonID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = svc.repo.CreateLessonProgress(ctx, &lp); err != nil {
		if existing, gerr := svc.repo.GetLessonProgress(ctx, studentID, lessonID); gerr == nil {
			return existing, nil
		}
		return LessonProgress{}, errors.Wrap(err, "creating lesson progress")
	}
	return lp, nil
}

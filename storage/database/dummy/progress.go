package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/progress"
)

type progressRepository struct {
	db       *progressTable
	courseDB *courseTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress, courseDB: db.course}
}

// courseLessons resolves the lesson ids of a course; lock ordering is always
// progress then course.
func (repo *progressRepository) courseLessons(courseID string) map[string]bool {
	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()

	ids := make(map[string]bool)
	for _, lsn := range repo.courseDB.lessons {
		if lsn.CourseID == courseID {
			ids[lsn.ID] = true
		}
	}
	return ids
}

func (repo *progressRepository) GetItemProgress(_ context.Context, studentID, lessonID, section string, index int) (progress.ItemProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ip := range repo.db.items {
		if ip.StudentID == studentID && ip.LessonID == lessonID && ip.Section == section && ip.ItemIndex == index {
			return *ip, nil
		}
	}
	return progress.ItemProgress{}, progress.ErrItemNotFound
}

func (repo *progressRepository) CreateItemProgress(_ context.Context, ip *progress.ItemProgress) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p := *ip
	repo.db.items[p.ID] = &p
	return nil
}

func (repo *progressRepository) UpdateItemProgress(_ context.Context, ip progress.ItemProgress) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.items[ip.ID]; !ok {
		return progress.ErrItemNotFound
	}
	repo.db.items[ip.ID] = &ip
	return nil
}

func (repo *progressRepository) CountCompletedItems(_ context.Context, studentID, lessonID, section string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, ip := range repo.db.items {
		if ip.StudentID == studentID && ip.LessonID == lessonID && ip.Section == section && ip.Completed {
			count++
		}
	}
	return count, nil
}

func (repo *progressRepository) GetLessonProgress(_ context.Context, studentID, lessonID string) (progress.LessonProgress, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, lp := range repo.db.lessons {
		if lp.StudentID == studentID && lp.LessonID == lessonID {
			return *lp, nil
		}
	}
	return progress.LessonProgress{}, progress.ErrLessonProgressNotFound
}

func (repo *progressRepository) CreateLessonProgress(_ context.Context, lp *progress.LessonProgress) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	p := *lp
	repo.db.lessons[p.ID] = &p
	return nil
}

func (repo *progressRepository) UpdateLessonProgress(_ context.Context, lp progress.LessonProgress) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessons[lp.ID]; !ok {
		return progress.ErrLessonProgressNotFound
	}
	repo.db.lessons[lp.ID] = &lp
	return nil
}

func (repo *progressRepository) CountCompletedLessons(_ context.Context, studentID, courseID string) (int, error) {
	lessonIDs := repo.courseLessons(courseID)

	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, lp := range repo.db.lessons {
		if lp.StudentID == studentID && lp.Completed && lessonIDs[lp.LessonID] {
			count++
		}
	}
	return count, nil
}

func (repo *progressRepository) QueryCompletedLessons(_ context.Context, studentID, courseID string) ([]progress.LessonProgress, error) {
	lessonIDs := repo.courseLessons(courseID)

	repo.db.RLock()
	defer repo.db.RUnlock()

	completed := make([]progress.LessonProgress, 0)
	for _, lp := range repo.db.lessons {
		if lp.StudentID == studentID && lp.Completed && lessonIDs[lp.LessonID] {
			completed = append(completed, *lp)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].UpdatedAt.After(completed[j].UpdatedAt) })
	return completed, nil
}

func (repo *progressRepository) GetCreditTransaction(_ context.Context, studentID, lessonID string) (progress.CreditTransaction, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, txn := range repo.db.credits {
		if txn.StudentID == studentID && txn.LessonID == lessonID {
			return *txn, nil
		}
	}
	return progress.CreditTransaction{}, progress.ErrCreditNotFound
}

func (repo *progressRepository) CreateCreditTransaction(_ context.Context, txn *progress.CreditTransaction) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t := *txn
	repo.db.credits[t.ID] = &t
	return nil
}

func (repo *progressRepository) UpdateCreditTransaction(_ context.Context, txn progress.CreditTransaction) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.credits[txn.ID]; !ok {
		return progress.ErrCreditNotFound
	}
	repo.db.credits[txn.ID] = &txn
	return nil
}

func (repo *progressRepository) DeleteCreditTransaction(_ context.Context, studentID, lessonID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, txn := range repo.db.credits {
		if txn.StudentID == studentID && txn.LessonID == lessonID {
			delete(repo.db.credits, id)
			return nil
		}
	}
	return progress.ErrCreditNotFound
}

func (repo *progressRepository) SumStudentCredits(_ context.Context, studentID string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var sum int
	for _, txn := range repo.db.credits {
		if txn.StudentID == studentID {
			sum += txn.Credits
		}
	}
	return sum, nil
}

func (repo *progressRepository) SumCourseCredits(_ context.Context, studentID, courseID string) (int, error) {
	lessonIDs := repo.courseLessons(courseID)

	repo.db.RLock()
	defer repo.db.RUnlock()

	var sum int
	for _, txn := range repo.db.credits {
		if txn.StudentID == studentID && lessonIDs[txn.LessonID] {
			sum += txn.Credits
		}
	}
	return sum, nil
}

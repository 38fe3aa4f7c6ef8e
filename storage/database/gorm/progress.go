package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/academia/core/progress"
)

type progressRepository struct {
	db *gorm.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *gorm.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetItemProgress(ctx context.Context, studentID, lessonID, section string, index int) (progress.ItemProgress, error) {
	var row itemProgressRow
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id = ? AND section = ? AND item_index = ?", studentID, lessonID, section, index).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return progress.ItemProgress{}, progress.ErrItemNotFound
		}
		return progress.ItemProgress{}, errors.Wrap(err, "finding item progress")
	}
	return row.toItemProgress(), nil
}

func (repo *progressRepository) CreateItemProgress(ctx context.Context, ip *progress.ItemProgress) error {
	row := rowFromItemProgress(*ip)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "inserting item progress")
	}
	return nil
}

func (repo *progressRepository) UpdateItemProgress(ctx context.Context, ip progress.ItemProgress) error {
	row := rowFromItemProgress(ip)
	return errors.Wrap(repo.db.WithContext(ctx).Save(&row).Error, "updating item progress")
}

func (repo *progressRepository) CountCompletedItems(ctx context.Context, studentID, lessonID, section string) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&itemProgressRow{}).
		Where("student_id = ? AND lesson_id = ? AND section = ? AND completed = true", studentID, lessonID, section).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting completed items")
	}
	return int(count), nil
}

func (repo *progressRepository) GetLessonProgress(ctx context.Context, studentID, lessonID string) (progress.LessonProgress, error) {
	var row lessonProgressRow
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return progress.LessonProgress{}, progress.ErrLessonProgressNotFound
		}
		return progress.LessonProgress{}, errors.Wrap(err, "finding lesson progress")
	}
	return progress.LessonProgress(row), nil
}

func (repo *progressRepository) CreateLessonProgress(ctx context.Context, lp *progress.LessonProgress) error {
	row := lessonProgressRow(*lp)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "inserting lesson progress")
	}
	return nil
}

func (repo *progressRepository) UpdateLessonProgress(ctx context.Context, lp progress.LessonProgress) error {
	row := lessonProgressRow(lp)
	return errors.Wrap(repo.db.WithContext(ctx).Save(&row).Error, "updating lesson progress")
}

func (repo *progressRepository) CountCompletedLessons(ctx context.Context, studentID, courseID string) (int, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&lessonProgressRow{}).
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Where("lesson_progress.student_id = ? AND lessons.course_id = ? AND lesson_progress.completed = true", studentID, courseID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting completed lessons")
	}
	return int(count), nil
}

func (repo *progressRepository) QueryCompletedLessons(ctx context.Context, studentID, courseID string) ([]progress.LessonProgress, error) {
	var rows []lessonProgressRow
	err := repo.db.WithContext(ctx).
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Where("lesson_progress.student_id = ? AND lessons.course_id = ? AND lesson_progress.completed = true", studentID, courseID).
		Order("lesson_progress.updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying completed lessons")
	}
	lps := make([]progress.LessonProgress, 0, len(rows))
	for _, row := range rows {
		lps = append(lps, progress.LessonProgress(row))
	}
	return lps, nil
}

func (repo *progressRepository) GetCreditTransaction(ctx context.Context, studentID, lessonID string) (progress.CreditTransaction, error) {
	var row creditTransactionRow
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		First(&row).Error
	if err != nil {
		if isNotFound(err) {
			return progress.CreditTransaction{}, progress.ErrCreditNotFound
		}
		return progress.CreditTransaction{}, errors.Wrap(err, "finding credit transaction")
	}
	return progress.CreditTransaction(row), nil
}

func (repo *progressRepository) CreateCreditTransaction(ctx context.Context, txn *progress.CreditTransaction) error {
	row := creditTransactionRow(*txn)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "inserting credit transaction")
	}
	return nil
}

func (repo *progressRepository) UpdateCreditTransaction(ctx context.Context, txn progress.CreditTransaction) error {
	row := creditTransactionRow(txn)
	return errors.Wrap(repo.db.WithContext(ctx).Save(&row).Error, "updating credit transaction")
}

func (repo *progressRepository) DeleteCreditTransaction(ctx context.Context, studentID, lessonID string) error {
	err := repo.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		Delete(&creditTransactionRow{}).Error
	return errors.Wrap(err, "deleting credit transaction")
}

func (repo *progressRepository) SumStudentCredits(ctx context.Context, studentID string) (int, error) {
	var sum int64
	err := repo.db.WithContext(ctx).
		Model(&creditTransactionRow{}).
		Where("student_id = ?", studentID).
		Select("COALESCE(SUM(credits), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, errors.Wrap(err, "summing student credits")
	}
	return int(sum), nil
}

func (repo *progressRepository) SumCourseCredits(ctx context.Context, studentID, courseID string) (int, error) {
	var sum int64
	err := repo.db.WithContext(ctx).
		Model(&creditTransactionRow{}).
		Joins("JOIN lessons ON lessons.id = credit_transactions.lesson_id").
		Where("credit_transactions.student_id = ? AND lessons.course_id = ?", studentID, courseID).
		Select("COALESCE(SUM(credit_transactions.credits), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, errors.Wrap(err, "summing course credits")
	}
	return int(sum), nil
}

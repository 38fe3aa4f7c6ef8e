package gormrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepository{db: db}
}

// trapSaveErr maps unique constraint violations to their domain errors.
func (repo *userRepository) trapSaveErr(err error, msg string) error {
	switch {
	case isUniqueViolation(err, "users_email_key"):
		return user.ErrEmailExists
	case isUniqueViolation(err, "users_student_id_key"):
		return user.ErrStudentIDTaken
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	q := repo.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where("id NOT IN ?", ids)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := rowFromUser(usr)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return user.User{}, repo.trapSaveErr(err, "inserting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := repo.db.WithContext(ctx)

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = q.Where("id = ?", filter.ID)
	case filter.Email != "":
		q = q.Where("email = ?", filter.Email)
	case filter.StudentID != "":
		q = q.Where("student_id = ?", filter.StudentID)
	case filter.UsernameOrEmail != nil:
		var email string
		uname := filter.UsernameOrEmail[0]
		if len(filter.UsernameOrEmail) == 2 {
			email = filter.UsernameOrEmail[1]
		}
		if email == "" {
			email = uname
		} else if uname == "" {
			uname = email
		}
		q = q.Where("username = ? OR email = ?", uname, email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := q.First(&row).Error; err != nil {
		if isNotFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := repo.db.WithContext(ctx).Model(&userRow{})

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(
				"first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ? OR student_id ILIKE ?",
				val, val, val, val,
			)
		}
		if filter.Role != "" {
			q = q.Where("role = ?", string(filter.Role))
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			q = q.Where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			q = q.Where("created_at <= ?", filter.CreatedTo.UTC())
		}
	}
	for _, ord := range ordering {
		q = q.Order(ord.String())
	}

	var rows []userRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := rowFromUser(usr)
	if err := repo.db.WithContext(ctx).Save(&row).Error; err != nil {
		return user.User{}, repo.trapSaveErr(err, "updating user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	res := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&userRow{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "deleting users")
	}
	return int(res.RowsAffected), nil
}

func (repo *userRepository) QueryStudentIDs(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	err := repo.db.WithContext(ctx).
		Model(&userRow{}).
		Where("student_id LIKE ?", prefix+"%").
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying student ids")
	}
	return ids, nil
}

func (repo *userRepository) StudentIDExists(ctx context.Context, studentID string) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&userRow{}).
		Where("student_id = ?", studentID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "checking student id")
	}
	return count > 0, nil
}

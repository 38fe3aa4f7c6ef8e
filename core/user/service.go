package user

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrStudentIDTaken = errors.New("student id already taken")
	ErrNotInstructor  = errors.New("user is not an instructor")
)

// maxStudentIDProbes bounds the retry loop on student-id uniqueness races.
const maxStudentIDProbes = 3

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// FirstName, LastName, Email or StudentID.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string) (int, error)
		// QueryStudentIDs returns every assigned student id starting with prefix.
		QueryStudentIDs(ctx context.Context, prefix string) ([]string, error)
		StudentIDExists(ctx context.Context, studentID string) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		CreateStudent(ctx context.Context, ss StudentSignup) (User, error)
		CreateInstructor(ctx context.Context, ni NewInstructor) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetInstructorStatus(ctx context.Context, id string, active bool) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		CheckUniqueness(email string, exclUsers ...User) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// prepareSave applies the invariant-bearing save rules:
// - username always mirrors the lowered email;
// - a superuser/staff account is force-set to ADMIN. This runs before the
//   student-id check, so an admin-flagged account never receives a student id;
// - a STUDENT with no student id is lazily assigned the next unused one.
func (svc *service) prepareSave(ctx context.Context, usr *User) error {
	usr.Email = core.CleanString(usr.Email, true /* lower */)
	usr.Username = usr.Email

	if usr.IsSuperuser || usr.IsStaff {
		usr.Role = RoleAdmin
	}

	if usr.Role == RoleStudent && !usr.StudentID.Valid {
		sid, err := svc.generateStudentID(ctx)
		if err != nil {
			return errors.Wrap(err, "generating student id")
		}
		usr.StudentID.SetValid(sid)
	}
	return nil
}

// generateStudentID scans all assigned ids sharing StudentIDPrefix, parses
// their numeric suffixes, and returns prefix + (max+1) zero-padded to
// StudentIDWidth, probing upward on collision. The storage-layer uniqueness
// constraint is the final backstop under concurrent creation.
func (svc *service) generateStudentID(ctx context.Context) (string, error) {
	ids, err := svc.repo.QueryStudentIDs(ctx, StudentIDPrefix)
	if err != nil {
		return "", err
	}

	var maxNum int
	for _, sid := range ids {
		suffix := sid[len(StudentIDPrefix):]
		// digits only; Atoi alone would also take signed suffixes
		if !isDigits(suffix) {
			continue
		}
		if num, err := strconv.Atoi(suffix); err == nil && num > maxNum {
			maxNum = num
		}
	}

	next := maxNum + 1
	candidate := fmt.Sprintf("%s%0*d", StudentIDPrefix, StudentIDWidth, next)
	for {
		exists, err := svc.repo.StudentIDExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		next++
		candidate = fmt.Sprintf("%s%0*d", StudentIDPrefix, StudentIDWidth, next)
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// createUser persists a prepared user, retrying student-id generation when a
// concurrent creation won the race to the uniqueness constraint.
func (svc *service) createUser(ctx context.Context, usr User) (User, error) {
	var err error
	for attempt := 0; attempt < maxStudentIDProbes; attempt++ {
		if err = svc.prepareSave(ctx, &usr); err != nil {
			return User{}, err
		}
		var created User
		if created, err = svc.repo.CreateUser(ctx, usr); err == nil {
			return created, nil
		}
		if errors.Cause(err) != ErrStudentIDTaken {
			return User{}, err
		}
		usr.StudentID.Valid = false // benign race; regenerate and retry
	}
	return User{}, err
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.Title != "" {
		usr.Title.SetValid(nu.Title)
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.createUser(ctx, usr)
}

func (svc *service) CreateStudent(ctx context.Context, ss StudentSignup) (User, error) {
	return svc.Create(ctx, NewUser{
		Title:     ss.Title,
		FirstName: ss.FirstName,
		LastName:  ss.LastName,
		Email:     ss.Email,
		Role:      RoleStudent,
		Password:  ss.Password,
	})
}

func (svc *service) CreateInstructor(ctx context.Context, ni NewInstructor) (User, error) {
	return svc.Create(ctx, NewUser{
		Title:     ni.Title,
		FirstName: ni.FirstName,
		LastName:  ni.LastName,
		Email:     ni.Email,
		Role:      RoleInstructor,
		Password:  ni.Password,
	})
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname, uname}})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}

	if uu.Title != "" {
		usr.Title.SetValid(uu.Title)
	}
	if uu.FirstName != "" {
		usr.FirstName = uu.FirstName
	}
	if uu.LastName != "" {
		usr.LastName = uu.LastName
	}
	usr.Email = uu.Email
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.IsActive != nil {
		usr.IsActive = uu.IsActive
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()

	if err = svc.prepareSave(ctx, &usr); err != nil {
		return User{}, err
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetInstructorStatus(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if !usr.IsInstructor() {
		return User{}, ErrNotInstructor
	}
	usr.SetActive(active)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr, svc.conf)
	if err != nil {
		return
	}
	url := fmt.Sprintf("%s/password-reset?uid=%s&token=%s", strings.TrimRight(svc.conf.FrontendBaseURL, "/"), EncodeUID(usr), token)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: core.ContextData{FrontendBaseURL: svc.conf.FrontendBaseURL, Data: map[string]string{"URL": url, "Name": usr.FullName()}},
	})
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: uid})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token, svc.conf); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating password")
	}
	return nil
}

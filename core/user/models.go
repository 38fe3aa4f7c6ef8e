package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

// Role is the closed set of account roles. It is authoritative: it is
// re-derived on every save (a superuser/staff account is always ADMIN).
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
	RoleStudent    Role = "STUDENT"
)

var AllRoles = []Role{RoleAdmin, RoleInstructor, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// RoleChoice is the JSON representation of a selectable role.
type RoleChoice struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

var Roles = []RoleChoice{
	{Name: "Student", Value: RoleStudent},
	{Name: "Instructor", Value: RoleInstructor},
	{Name: "Admin", Value: RoleAdmin},
}

// Titles
var TitleChoices = []string{"MR", "MRS", "MS", "DR"}

// Student ID format: "stu" + zero-padded numeric suffix, eg. "stu0042".
const (
	StudentIDPrefix = "stu"
	StudentIDWidth  = 4
)

type User struct {
	ID           string      `json:"id"`
	Title        null.String `json:"title"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Email        string      `json:"email"`
	Username     string      `json:"username"` // always mirrors Email, lowered
	Role         Role        `json:"role"`
	StudentID    null.String `json:"student_id"`
	IsStaff      bool        `json:"is_staff"`
	IsSuperuser  bool        `json:"is_superuser"`
	IsActive     *bool       `json:"is_active"`
	PasswordHash []byte      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at"` // UTC
	LastLogin    time.Time   `json:"last_login"` // UTC
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsInstructor() bool { return u.Role == RoleInstructor }
func (u *User) IsStudent() bool    { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User (admin registration).
type NewUser struct {
	Title           string `json:"title" validate:"omitempty,title"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            Role   `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Title = core.CleanString(nu.Title, true /* lower */)
	nu.Title = strings.ToUpper(nu.Title)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// StudentSignup is the self-service student registration payload.
// The role is always forced to STUDENT.
type StudentSignup struct {
	Title           string `json:"title" validate:"omitempty,title"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ss *StudentSignup) Validate(validate *validator.Validate, svc Service) error {
	ss.Title = strings.ToUpper(core.CleanString(ss.Title))
	ss.FirstName = core.CleanString(ss.FirstName)
	ss.LastName = core.CleanString(ss.LastName)
	ss.Email = core.CleanString(ss.Email, true /* lower */)

	if err := validate.Struct(ss); err != nil {
		return err
	}
	return svc.CheckUniqueness(ss.Email)
}

// NewInstructor is the admin-only instructor creation payload.
type NewInstructor struct {
	Title           string `json:"title" validate:"omitempty,title"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ni *NewInstructor) Validate(validate *validator.Validate, svc Service) error {
	ni.Title = strings.ToUpper(core.CleanString(ni.Title))
	ni.FirstName = core.CleanString(ni.FirstName)
	ni.LastName = core.CleanString(ni.LastName)
	ni.Email = core.CleanString(ni.Email, true /* lower */)

	if err := validate.Struct(ni); err != nil {
		return err
	}
	return svc.CheckUniqueness(ni.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Title           string `json:"title" validate:"omitempty,title"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            Role   `json:"role" validate:"omitempty,role"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc Service) error {
	uu.Title = strings.ToUpper(core.CleanString(uu.Title))
	uu.FirstName = core.CleanString(uu.FirstName)
	uu.LastName = core.CleanString(uu.LastName)

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Role        Role      `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects a single user by one of its unique attributes.
type GetFilter struct {
	ID              string
	Email           string
	StudentID       string
	UsernameOrEmail []string
}

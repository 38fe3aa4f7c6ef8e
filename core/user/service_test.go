package user_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

func TestMain(m *testing.M) {
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), testutil.NewConfig())
	logger.Enable(false)
	core.ParseEmailTemplates(logger, appfs.FS)
	os.Exit(m.Run())
}

func setup(t *testing.T) (user.Service, user.Repository) {
	db := testutil.OpenDB(t)
	repo := dummydb.NewUserRepository(db)
	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	return user.NewServiceMock(repo, mailSvc, conf), repo
}

func Test_service_Create_studentID(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	// students get sequential zero-padded ids
	students := make([]user.User, 0, 3)
	for i := 1; i <= 3; i++ {
		usr, err := svc.Create(ctx, user.NewUser{
			FirstName: "Stu",
			LastName:  fmt.Sprintf("Dent%d", i),
			Email:     fmt.Sprintf("stu%d@test.cd", i),
			Role:      user.RoleStudent,
			Password:  "LeetP4ss!",
		})
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		want := fmt.Sprintf("stu%04d", i)
		if usr.StudentID.String != want {
			t.Errorf("StudentID = %q; want %q", usr.StudentID.String, want)
		}
		if usr.Username != usr.Email {
			t.Errorf("Username = %q; must mirror email %q", usr.Username, usr.Email)
		}
		students = append(students, usr)
	}

	// a freed id is never reused while a higher one exists
	if _, err := repo.DeleteUsersByID(ctx, []string{students[1].ID}); err != nil {
		t.Fatalf("DeleteUsersByID() failed: %v", err)
	}
	usr, err := svc.Create(ctx, user.NewUser{
		FirstName: "Stu",
		LastName:  "Dent4",
		Email:     "stu4@test.cd",
		Role:      user.RoleStudent,
		Password:  "LeetP4ss!",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if usr.StudentID.String != "stu0004" {
		t.Errorf("StudentID = %q; want %q", usr.StudentID.String, "stu0004")
	}

	// non-students never get one
	teacher, err := svc.Create(ctx, user.NewUser{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@test.cd",
		Role:      user.RoleInstructor,
		Password:  "LeetP4ss!",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if teacher.StudentID.Valid {
		t.Errorf("instructor StudentID = %q; want none", teacher.StudentID.String)
	}
}

func Test_service_Create_studentID_ignoresMalformed(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	// a hand-edited id with a signed suffix must not seed the sequence,
	// even though Atoi would happily parse it
	rogue := user.User{
		FirstName: "Rogue",
		LastName:  "Id",
		Username:  "rogue@test.cd",
		Email:     "rogue@test.cd",
		Role:      user.RoleStudent,
	}
	rogue.StudentID.SetValid("stu+0099")
	rogue.SetActive(true)
	_ = rogue.SetPassword("LeetP4ss!")
	if _, err := repo.CreateUser(ctx, rogue); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	usr, err := svc.Create(ctx, user.NewUser{
		FirstName: "Stu",
		LastName:  "Dent",
		Email:     "stu@test.cd",
		Role:      user.RoleStudent,
		Password:  "LeetP4ss!",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if usr.StudentID.String != "stu0001" {
		t.Errorf("StudentID = %q; want %q", usr.StudentID.String, "stu0001")
	}
}

func Test_service_Create_adminDerivation(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	// a staff-flagged account is force-set to ADMIN on save, even when
	// created as a student, and receives no student id
	usr := user.User{
		FirstName:   "Super",
		LastName:    "User",
		Email:       "root@test.cd",
		Role:        user.RoleStudent,
		IsSuperuser: true,
	}
	usr.SetActive(true)
	_ = usr.SetPassword("LeetP4ss!")
	created, err := repo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	saved, err := svc.Update(ctx, created.ID, user.UpdateUser{Email: created.Email, FirstName: "Root"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if saved.Role != user.RoleAdmin {
		t.Errorf("Role = %q; superuser must be forced to %q", saved.Role, user.RoleAdmin)
	}
	if saved.StudentID.Valid {
		t.Errorf("StudentID = %q; admin must not get one", saved.StudentID.String)
	}
}

func Test_service_SetInstructorStatus(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, repo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, repo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)

	usr, err := svc.SetInstructorStatus(ctx, teacher.ID, false)
	if err != nil {
		t.Fatalf("SetInstructorStatus() failed: %v", err)
	}
	if usr.Active() {
		t.Error("instructor should be deactivated")
	}
	if usr, err = svc.SetInstructorStatus(ctx, teacher.ID, true); err != nil {
		t.Fatalf("SetInstructorStatus() failed: %v", err)
	}
	if !usr.Active() {
		t.Error("instructor should be reactivated")
	}

	if _, err = svc.SetInstructorStatus(ctx, student.ID, false); errors.Cause(err) != user.ErrNotInstructor {
		t.Errorf("SetInstructorStatus() error = %v, wantErr %v", err, user.ErrNotInstructor)
	}
	if _, err = svc.SetInstructorStatus(ctx, "nope", false); errors.Cause(err) != user.ErrNotFound {
		t.Errorf("SetInstructorStatus() error = %v, wantErr %v", err, user.ErrNotFound)
	}
}

func Test_service_Query_filters(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, repo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, repo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	testutil.CreateUser(t, repo, "Inna", "Active", "inna@test.cd", "pwd", user.RoleStudent, false)

	tests := []struct {
		name   string
		filter *user.QueryFilter
		want   int
	}{
		{name: "all", filter: nil, want: 3},
		{name: "search by name", filter: &user.QueryFilter{Search: "blow"}, want: 1},
		{name: "search by student id", filter: &user.QueryFilter{Search: student.StudentID.String}, want: 1},
		{name: "by role", filter: &user.QueryFilter{Role: user.RoleInstructor}, want: 1},
		{name: "active only", filter: &user.QueryFilter{IsActive: boolPtr(true)}, want: 2},
		{name: "inactive only", filter: &user.QueryFilter{IsActive: boolPtr(false)}, want: 1},
		{name: "no match", filter: &user.QueryFilter{Search: "zzz"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.Query(ctx, tt.filter, nil)
			if err != nil {
				t.Fatalf("Query() failed: %v", err)
			}
			if len(users) != tt.want {
				t.Errorf("Query() = %d users; want %d", len(users), tt.want)
			}
		})
	}
}

func Test_service_passwordReset(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "Joe", "Blow", "joe@test.cd", "OldP4ss!", user.RoleStudent, true)

	emailsvc.ClearSentMessages()
	if err := svc.RequestPasswordReset(ctx, "unknown@test.cd"); errors.Cause(err) != user.ErrNotFound {
		t.Errorf("RequestPasswordReset() error = %v, wantErr %v", err, user.ErrNotFound)
	}
	if err := svc.RequestPasswordReset(ctx, usr.Email); err != nil {
		t.Fatalf("RequestPasswordReset() failed: %v", err)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent %d messages; want 1", len(emailsvc.SentMessages))
	}

	conf := testutil.NewConfig()
	token, err := user.MakeToken(usr, conf)
	if err != nil {
		t.Fatalf("MakeToken() failed: %v", err)
	}
	if err = svc.ResetPassword(ctx, user.ResetUserPassword{
		UID:      user.EncodeUID(usr),
		Token:    token,
		Password: "NewP4ss!",
	}); err != nil {
		t.Fatalf("ResetPassword() failed: %v", err)
	}

	refreshed, err := svc.GetByID(ctx, usr.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if err = refreshed.CheckPassword("NewP4ss!"); err != nil {
		t.Error("new password does not verify")
	}

	// the password change invalidates the token
	if err = svc.ResetPassword(ctx, user.ResetUserPassword{
		UID:      user.EncodeUID(usr),
		Token:    token,
		Password: "YetAnother1!",
	}); err == nil {
		t.Error("ResetPassword() with a stale token should fail")
	}
}

func boolPtr(b bool) *bool { return &b }

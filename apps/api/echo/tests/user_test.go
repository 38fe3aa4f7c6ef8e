package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/academia/core/user"
	testutil "github.com/trezcool/academia/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "LeetP4ss!", user.RoleStudent, true)
	testutil.CreateUser(t, app.usrRepo, "Inna", "Active", "inna@test.cd", "LeetP4ss!", user.RoleStudent, false)

	tests := []httpTest{
		{
			name:     "valid credentials",
			body:     []byte(`{"username": "joe@test.cd", "password": "LeetP4ss!"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "login with email is case-insensitive",
			body:     []byte(`{"username": "Joe@Test.CD", "password": "LeetP4ss!"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     []byte(`{"username": "joe@test.cd", "password": "nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "ghost@test.cd", "password": "LeetP4ss!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     []byte(`{"username": "inna@test.cd", "password": "LeetP4ss!"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.server.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			var data struct {
				Token string `json:"token"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
				t.Fatalf("unmarshalling response failed: %v", err)
			}
			if data.Token == "" {
				t.Error("login should return a token")
			}
		})
	}
	_ = usr
}

func Test_userApi_signup(t *testing.T) {
	app := setup(t)

	body := []byte(`{
		"first_name": "Joe",
		"last_name": "Blow",
		"email": "joe@test.cd",
		"password": "LeetP4ss!",
		"password_confirm": "LeetP4ss!"
	}`)
	req, rec := newRequest(http.MethodPost, "/v1/users/signup", body)
	app.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var usr user.User
	if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
		t.Fatalf("unmarshalling response failed: %v", err)
	}
	if usr.Role != user.RoleStudent {
		t.Errorf("Role = %q; signup always creates a %q", usr.Role, user.RoleStudent)
	}
	if usr.StudentID.String != "stu0001" {
		t.Errorf("StudentID = %q; want stu0001", usr.StudentID.String)
	}

	// duplicate email is a field error
	req, rec = newRequest(http.MethodPost, "/v1/users/signup", body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %v on duplicate email; want %v", rec.Code, http.StatusBadRequest)
	}
}

func Test_userApi_guards(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	teacher := testutil.CreateUser(t, app.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Big", "Boss", "boss@test.cd", "pwd", user.RoleAdmin, true)

	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "query users: no token", method: http.MethodGet, path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "query users: student", method: http.MethodGet, path: "/v1/users", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "query users: instructor", method: http.MethodGet, path: "/v1/users", token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "query instructors: student", method: http.MethodGet, path: "/v1/users/instructors", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "register: student", method: http.MethodPost, path: "/v1/users/register", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "roles: student", method: http.MethodGet, path: "/v1/users/roles", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "roles: admin", method: http.MethodGet, path: "/v1/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
		{name: "create course: student", method: http.MethodPost, path: "/v1/courses", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "available courses: instructor", method: http.MethodGet, path: "/v1/courses/available", token: teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "instructor report: no token", method: http.MethodGet, path: "/v1/reports/instructor", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	peer := testutil.CreateUser(t, app.usrRepo, "Pat", "Peer", "pat@test.cd", "pwd", user.RoleStudent, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Big", "Boss", "boss@test.cd", "pwd", user.RoleAdmin, true)

	tests := []httpTest{
		{name: "own profile", path: "/v1/users/" + student.ID, token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallObj(t, student)},
		{name: "peer profile denied", path: "/v1/users/" + peer.ID, token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin reads anyone", path: "/v1/users/" + peer.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, peer)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_destroy_noSelfDelete(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.usrRepo, "Big", "Boss", "boss@test.cd", "pwd", user.RoleAdmin, true)
	victim := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	adminToken := getToken(t, admin)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("self delete code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodDelete, "/v1/users/"+victim.ID, adminToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete code = %v; want %v; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
	}
}

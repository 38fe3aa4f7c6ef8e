package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
	testutil "github.com/trezcool/academia/tests"
)

func Test_progressApi_toggle(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	outsider := testutil.CreateUser(t, app.usrRepo, "Out", "Sider", "out@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	lsn := testutil.CreateLesson(t, app.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A\nB", "")
	testutil.Enroll(t, app.courseRepo, student.ID, crs.ID)

	studentToken := getToken(t, student)
	togglePath := fmt.Sprintf("/v1/lessons/%s/progress/toggle", lsn.ID)

	tests := []httpTest{
		{
			name:     "no token",
			path:     togglePath,
			body:     []byte(`{"section": "reading", "index": "0", "completed": "true"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "instructor may not mark",
			path:     togglePath,
			token:    getToken(t, teacher),
			body:     []byte(`{"section": "reading", "index": "0", "completed": "true"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "Only students may mark progress"}),
		},
		{
			name:     "not enrolled",
			path:     togglePath,
			token:    getToken(t, outsider),
			body:     []byte(`{"section": "reading", "index": "0", "completed": "true"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "Student not enrolled in course"}),
		},
		{
			name:     "invalid section",
			path:     togglePath,
			token:    studentToken,
			body:     []byte(`{"section": "quiz", "index": "0", "completed": "true"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid section"}),
		},
		{
			name:     "non-integer index",
			path:     togglePath,
			token:    studentToken,
			body:     []byte(`{"section": "reading", "index": "abc", "completed": "true"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "index must be an integer"}),
		},
		{
			name:     "unknown lesson",
			path:     "/v1/lessons/nope/progress/toggle",
			token:    studentToken,
			body:     []byte(`{"section": "reading", "index": "0", "completed": "true"}`),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "lesson not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// full rollup over the endpoint
	toggle := func(index, completed string) progress.ToggleResult {
		t.Helper()
		body := []byte(fmt.Sprintf(`{"section": "reading", "index": %q, "completed": %q}`, index, completed))
		req, rec := newAuthRequest(http.MethodPost, togglePath, studentToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res progress.ToggleResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling ToggleResult failed: %v", err)
		}
		return res
	}

	res := toggle("0", "true")
	if res.LessonCompleted || res.LessonMaterialsPercent != 50 {
		t.Errorf("after first item: %+v; want 50%% and incomplete", res)
	}
	res = toggle("1", "true")
	if !res.LessonCompleted || res.CreditsAwardedNow != 10 || res.StudentTotalCredits != 10 {
		t.Errorf("after second item: %+v; want completion and 10 credits", res)
	}
	res = toggle("1", "false")
	if res.LessonCompleted || res.StudentTotalCredits != 0 {
		t.Errorf("after revocation: %+v; want no completion and no credits", res)
	}
}

func Test_reportApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	testutil.CreateLesson(t, app.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A", "")
	testutil.Enroll(t, app.courseRepo, student.ID, crs.ID)

	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)

	// /reports/me is student-only
	req, rec := newAuthRequest(http.MethodGet, "/v1/reports/me", teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("/reports/me as instructor code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/reports/me", studentToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/reports/me code = %v; body %s", rec.Code, rec.Body.String())
	}
	var overall progress.OverallReport
	if err := json.Unmarshal(rec.Body.Bytes(), &overall); err != nil {
		t.Fatalf("unmarshalling OverallReport failed: %v", err)
	}
	if overall.ActiveCourses != 1 || overall.TotalLessons != 1 {
		t.Errorf("overall = %+v; want 1 course with 1 lesson", overall)
	}

	// /reports/instructor rejects students at the service layer
	req, rec = newAuthRequest(http.MethodGet, "/v1/reports/instructor", studentToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("/reports/instructor as student code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/reports/instructor", teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/reports/instructor code = %v; body %s", rec.Code, rec.Body.String())
	}

	// per-course student report, viewed by the owning instructor
	path := fmt.Sprintf("/v1/reports/courses/%s/students/%s", crs.ID, student.ID)
	req, rec = newAuthRequest(http.MethodGet, path, teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("course report code = %v; body %s", rec.Code, rec.Body.String())
	}
	var rpt progress.CourseReport
	if err := json.Unmarshal(rec.Body.Bytes(), &rpt); err != nil {
		t.Fatalf("unmarshalling CourseReport failed: %v", err)
	}
	if rpt.StudentID != student.ID || rpt.LessonsTotal != 1 {
		t.Errorf("report = %+v; want %s over 1 lesson", rpt, student.ID)
	}
}

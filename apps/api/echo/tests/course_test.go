package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	testutil "github.com/trezcool/academia/tests"
)

func Test_courseApi_enroll(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	token := getToken(t, student)

	live := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	draft := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Geometry", "MATH102", true)

	enroll := func(courseID string) (*http.Response, course.EnrollResult) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/courses/%s/enroll", courseID), token)
		app.server.ServeHTTP(rec, req)
		var res course.EnrollResult
		if rec.Code < 300 {
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatalf("unmarshalling EnrollResult failed: %v", err)
			}
		}
		return rec.Result(), res
	}

	// drafts are invisible to students
	resp, _ := enroll(draft.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("enroll(draft) code = %v; want %v", resp.StatusCode, http.StatusNotFound)
	}

	resp, res := enroll(live.ID)
	if resp.StatusCode != http.StatusCreated || !res.Created || !res.Enrolled {
		t.Errorf("enroll(live) = %v %+v; want fresh enrollment", resp.StatusCode, res)
	}

	// idempotent repeat
	resp, res = enroll(live.ID)
	if resp.StatusCode != http.StatusOK || res.Created || !res.Enrolled {
		t.Errorf("enroll(live) again = %v %+v; want existing enrollment", resp.StatusCode, res)
	}

	// fill up to the cap, then get turned away politely
	for i := 0; i < course.MaxActiveEnrollments-1; i++ {
		crs := testutil.CreateCourse(t, app.courseRepo, teacher.ID, fmt.Sprintf("Extra %d", i), fmt.Sprintf("EXT%d", i), false)
		if resp, res = enroll(crs.ID); resp.StatusCode != http.StatusCreated {
			t.Fatalf("enroll(extra %d) code = %v", i, resp.StatusCode)
		}
	}
	over := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "One Too Many", "OVR1", false)
	resp, res = enroll(over.ID)
	if resp.StatusCode != http.StatusOK || res.Enrolled || res.Message == "" {
		t.Errorf("enroll past cap = %v %+v; want refusal with message", resp.StatusCode, res)
	}
}

func Test_courseApi_lessonPrerequisites(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	intro := testutil.CreateLesson(t, app.courseRepo, crs.ID, "Intro", "L1", 10, 1, "A", "")
	advanced := testutil.CreateLesson(t, app.courseRepo, crs.ID, "Advanced", "L2", 10, 2, "B", "", intro.ID)
	testutil.Enroll(t, app.courseRepo, student.ID, crs.ID)

	token := getToken(t, student)
	path := "/v1/lessons/" + advanced.ID

	req, rec := newAuthRequest(http.MethodGet, path, token)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("gated lesson code = %v; want %v", rec.Code, http.StatusForbidden)
	}
	wantErr := marchallObj(t, httpErr{Error: "Complete the prerequisite lessons first: L1"})
	if eq, err := jsonBytesEqual(t, rec.Body.Bytes(), wantErr); err != nil || !eq {
		t.Errorf("gated lesson body = %s; want %s", rec.Body.String(), wantErr)
	}

	// instructors are never gated
	req, rec = newAuthRequest(http.MethodGet, path, getToken(t, teacher))
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("instructor lesson code = %v; want %v", rec.Code, http.StatusOK)
	}

	// completing the prerequisite unlocks it
	if _, err := app.progressSvc.ToggleItem(context.Background(), student, intro.ID, "reading", "0", "true"); err != nil {
		t.Fatalf("completing prerequisite failed: %v", err)
	}
	req, rec = newAuthRequest(http.MethodGet, path, token)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("unlocked lesson code = %v; body %s", rec.Code, rec.Body.String())
	}
}

func Test_courseApi_studentVisibility(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	live := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Geometry", "MATH102", true) // draft

	inactive := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Latin", "LAT101", false)
	inactive.Status = course.StatusInactive
	if err := app.courseRepo.UpdateCourse(context.Background(), inactive); err != nil {
		t.Fatalf("deactivating course failed: %v", err)
	}

	token := getToken(t, student)

	listCourses := func(path string) []course.Course {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s code = %v; body %s", path, rec.Code, rec.Body.String())
		}
		var courses []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &courses); err != nil {
			t.Fatalf("unmarshalling courses failed: %v", err)
		}
		return courses
	}

	if courses := listCourses("/v1/courses"); len(courses) != 1 || courses[0].ID != live.ID {
		t.Errorf("student course list = %+v; want only the published active course", courses)
	}
	if courses := listCourses("/v1/courses/available"); len(courses) != 1 || courses[0].ID != live.ID {
		t.Errorf("available courses = %+v; want only the published active course", courses)
	}

	testutil.Enroll(t, app.courseRepo, student.ID, live.ID)
	if courses := listCourses("/v1/courses/mine"); len(courses) != 1 || courses[0].ID != live.ID {
		t.Errorf("my courses = %+v; want the enrolled course", courses)
	}
	if courses := listCourses("/v1/courses/available"); len(courses) != 0 {
		t.Errorf("available after enrolling = %+v; want none", courses)
	}
}

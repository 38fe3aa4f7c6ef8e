package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
	testutil "github.com/trezcool/academia/tests"
)

func Test_classroomApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.usrRepo, "Jane", "Doe", "jane@test.cd", "pwd", user.RoleInstructor, true)
	rival := testutil.CreateUser(t, app.usrRepo, "Riva", "Lry", "rival@test.cd", "pwd", user.RoleInstructor, true)
	student := testutil.CreateUser(t, app.usrRepo, "Joe", "Blow", "joe@test.cd", "pwd", user.RoleStudent, true)
	crs := testutil.CreateCourse(t, app.courseRepo, teacher.ID, "Algebra", "MATH101", false)
	lsn := testutil.CreateLesson(t, app.courseRepo, crs.ID, "Sets", "L1", 10, 1, "A", "")
	testutil.Enroll(t, app.courseRepo, student.ID, crs.ID)

	teacherToken := getToken(t, teacher)
	roomBody := []byte(fmt.Sprintf(`{"name": "Group A", "course_id": %q, "duration_weeks": 2}`, crs.ID))

	// only the owning instructor may hang a classroom off the course
	req, rec := newAuthRequest(http.MethodPost, "/v1/classrooms", getToken(t, rival), roomBody)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("create by rival code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/classrooms", teacherToken, roomBody)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %v; body %s", rec.Code, rec.Body.String())
	}
	var room classroom.Classroom
	if err := json.Unmarshal(rec.Body.Bytes(), &room); err != nil {
		t.Fatalf("unmarshalling Classroom failed: %v", err)
	}

	schedPath := fmt.Sprintf("/v1/classrooms/%s/schedules", room.ID)

	// end before start never passes validation
	badSched := []byte(fmt.Sprintf(`{"day": "monday", "lesson_id": %q, "start_time": "11:00", "end_time": "09:00"}`, lsn.ID))
	req, rec = newAuthRequest(http.MethodPost, schedPath, teacherToken, badSched)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad schedule code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	goodSched := []byte(fmt.Sprintf(`{"day": "monday", "lesson_id": %q, "start_time": "09:00", "end_time": "11:00"}`, lsn.ID))
	req, rec = newAuthRequest(http.MethodPost, schedPath, teacherToken, goodSched)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add schedule code = %v; body %s", rec.Code, rec.Body.String())
	}
	var sched classroom.Schedule
	if err := json.Unmarshal(rec.Body.Bytes(), &sched); err != nil {
		t.Fatalf("unmarshalling Schedule failed: %v", err)
	}

	// students pick a weekly slot
	studentToken := getToken(t, student)
	enrollPath := fmt.Sprintf("/v1/schedules/%s/enroll", sched.ID)

	req, rec = newAuthRequest(http.MethodPost, enrollPath, teacherToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("schedule enroll as instructor code = %v; want %v", rec.Code, http.StatusForbidden)
	}

	req, rec = newAuthRequest(http.MethodPost, enrollPath, studentToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule enroll code = %v; body %s", rec.Code, rec.Body.String())
	}

	// the picked slot now shows on the classroom list for the student
	req, rec = newAuthRequest(http.MethodGet, "/v1/classrooms", studentToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("classroom list code = %v; body %s", rec.Code, rec.Body.String())
	}
	var rooms []classroom.Classroom
	if err := json.Unmarshal(rec.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("unmarshalling classrooms failed: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != room.ID {
		t.Errorf("student classrooms = %+v; want the enrolled course's room", rooms)
	}

	req, rec = newAuthRequest(http.MethodDelete, enrollPath, studentToken)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("schedule unenroll code = %v; body %s", rec.Code, rec.Body.String())
	}
}

package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/classroom"
)

type classroomRepository struct {
	db       *classroomTable
	courseDB *courseTable
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db.classroom, courseDB: db.course}
}

func (repo *classroomRepository) queryClassrooms() []classroom.Classroom {
	rooms := make([]classroom.Classroom, 0, len(repo.db.classrooms))
	for _, room := range repo.db.classrooms {
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return rooms
}

func (repo *classroomRepository) querySchedules() []classroom.Schedule {
	scheds := make([]classroom.Schedule, 0, len(repo.db.schedules))
	for _, sched := range repo.db.schedules {
		scheds = append(scheds, *sched)
	}
	sort.Slice(scheds, func(i, j int) bool {
		if scheds[i].Day != scheds[j].Day {
			return scheds[i].Day < scheds[j].Day
		}
		return scheds[i].StartTime < scheds[j].StartTime
	})
	return scheds
}

func (repo *classroomRepository) CreateClassroom(_ context.Context, room *classroom.Classroom) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if room.ClassCode.Valid && room.ClassCode.String != "" {
		for _, existing := range repo.db.classrooms {
			if existing.ClassCode.String == room.ClassCode.String {
				return classroom.ErrClassCodeExists
			}
		}
	}
	r := *room
	repo.db.classrooms[r.ID] = &r
	return nil
}

func (repo *classroomRepository) GetClassroom(_ context.Context, id string) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if room, ok := repo.db.classrooms[id]; ok {
		return *room, nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

// instructorCourses and studentCourses read the course table to resolve the
// role-scoped filters; lock ordering is always classroom then course.
func (repo *classroomRepository) instructorCourses(instructorID string) map[string]bool {
	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()

	ids := make(map[string]bool)
	for _, crs := range repo.courseDB.courses {
		if crs.InstructorID == instructorID {
			ids[crs.ID] = true
		}
	}
	return ids
}

func (repo *classroomRepository) studentCourses(studentID string) map[string]bool {
	repo.courseDB.RLock()
	defer repo.courseDB.RUnlock()

	ids := make(map[string]bool)
	for _, enr := range repo.courseDB.enrollments {
		if enr.StudentID == studentID {
			ids[enr.CourseID] = true
		}
	}
	return ids
}

func (repo *classroomRepository) QueryClassrooms(_ context.Context, filter classroom.QueryFilter, _ ...core.DBOrdering) ([]classroom.Classroom, error) {
	var ownedCourses, enrolledCourses map[string]bool
	if filter.InstructorID != "" {
		ownedCourses = repo.instructorCourses(filter.InstructorID)
	}
	if filter.StudentID != "" {
		enrolledCourses = repo.studentCourses(filter.StudentID)
	}

	repo.db.RLock()
	defer repo.db.RUnlock()

	rooms := make([]classroom.Classroom, 0)
	for _, room := range repo.queryClassrooms() {
		if filter.CourseID != "" && room.CourseID != filter.CourseID {
			continue
		}
		if filter.InstructorID != "" &&
			room.SupervisorID.String != filter.InstructorID && !ownedCourses[room.CourseID] {
			continue
		}
		if filter.StudentID != "" && !enrolledCourses[room.CourseID] {
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (repo *classroomRepository) UpdateClassroom(_ context.Context, room classroom.Classroom) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classrooms[room.ID]; !ok {
		return classroom.ErrNotFound
	}
	repo.db.classrooms[room.ID] = &room
	return nil
}

func (repo *classroomRepository) DeleteClassroomsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.classrooms, id)
		for sid, sched := range repo.db.schedules {
			if sched.ClassroomID == id {
				delete(repo.db.schedules, sid)
				for eid, enr := range repo.db.enrollments {
					if enr.ScheduleID == sid {
						delete(repo.db.enrollments, eid)
					}
				}
			}
		}
	}
	return nil
}

func (repo *classroomRepository) CheckClassCodeUniqueness(_ context.Context, code string, exclRooms ...classroom.Classroom) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, room := range repo.queryClassrooms() {
		if room.ClassCode.String != code {
			continue
		}
		excluded := false
		for _, excl := range exclRooms {
			if room.ID == excl.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return classroom.ErrClassCodeExists
		}
	}
	return nil
}

func (repo *classroomRepository) CreateSchedule(_ context.Context, sched *classroom.Schedule) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	s := *sched
	repo.db.schedules[s.ID] = &s
	return nil
}

func (repo *classroomRepository) GetSchedule(_ context.Context, id string) (classroom.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sched, ok := repo.db.schedules[id]; ok {
		return *sched, nil
	}
	return classroom.Schedule{}, classroom.ErrScheduleNotFound
}

func (repo *classroomRepository) QuerySchedules(_ context.Context, classroomID string) ([]classroom.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	scheds := make([]classroom.Schedule, 0)
	for _, sched := range repo.querySchedules() {
		if sched.ClassroomID == classroomID {
			scheds = append(scheds, sched)
		}
	}
	return scheds, nil
}

func (repo *classroomRepository) QueryLessonSchedules(_ context.Context, lessonID string) ([]classroom.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	scheds := make([]classroom.Schedule, 0)
	for _, sched := range repo.querySchedules() {
		if sched.LessonID == lessonID {
			scheds = append(scheds, sched)
		}
	}
	return scheds, nil
}

func (repo *classroomRepository) UpdateSchedule(_ context.Context, sched classroom.Schedule) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.schedules[sched.ID]; !ok {
		return classroom.ErrScheduleNotFound
	}
	repo.db.schedules[sched.ID] = &sched
	return nil
}

func (repo *classroomRepository) DeleteSchedulesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.schedules, id)
		for eid, enr := range repo.db.enrollments {
			if enr.ScheduleID == id {
				delete(repo.db.enrollments, eid)
			}
		}
	}
	return nil
}

func (repo *classroomRepository) GetScheduleEnrollment(_ context.Context, studentID, scheduleID string) (classroom.ScheduleEnrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.ScheduleID == scheduleID {
			return *enr, nil
		}
	}
	return classroom.ScheduleEnrollment{}, classroom.ErrEnrollmentNotFound
}

func (repo *classroomRepository) CreateScheduleEnrollment(_ context.Context, enr *classroom.ScheduleEnrollment) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	e := *enr
	repo.db.enrollments[e.ID] = &e
	return nil
}

func (repo *classroomRepository) DeleteScheduleEnrollment(_ context.Context, studentID, scheduleID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.ScheduleID == scheduleID {
			delete(repo.db.enrollments, id)
		}
	}
	return nil
}

func (repo *classroomRepository) GetStudentLessonSchedule(_ context.Context, studentID, lessonID string) (classroom.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sched := range repo.querySchedules() {
		if sched.LessonID != lessonID {
			continue
		}
		for _, enr := range repo.db.enrollments {
			if enr.StudentID == studentID && enr.ScheduleID == sched.ID {
				return sched, nil
			}
		}
	}
	return classroom.Schedule{}, classroom.ErrScheduleNotFound
}

// Package dummydb provides in-memory repositories so service and API suites
// can run without a postgres instance.
package dummydb

import (
	"sync"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		user      *userTable
		course    *courseTable
		classroom *classroomTable
		progress  *progressTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		courses     map[string]*course.Course
		lessons     map[string]*course.Lesson
		enrollments map[string]*course.Enrollment
	}

	classroomTable struct {
		sync.RWMutex
		classrooms  map[string]*classroom.Classroom
		schedules   map[string]*classroom.Schedule
		enrollments map[string]*classroom.ScheduleEnrollment
	}

	progressTable struct {
		sync.RWMutex
		items   map[string]*progress.ItemProgress
		lessons map[string]*progress.LessonProgress
		credits map[string]*progress.CreditTransaction
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		course: &courseTable{
			courses:     make(map[string]*course.Course),
			lessons:     make(map[string]*course.Lesson),
			enrollments: make(map[string]*course.Enrollment),
		},
		classroom: &classroomTable{
			classrooms:  make(map[string]*classroom.Classroom),
			schedules:   make(map[string]*classroom.Schedule),
			enrollments: make(map[string]*classroom.ScheduleEnrollment),
		},
		progress: &progressTable{
			items:   make(map[string]*progress.ItemProgress),
			lessons: make(map[string]*progress.LessonProgress),
			credits: make(map[string]*progress.CreditTransaction),
		},
	}
	return db, nil
}

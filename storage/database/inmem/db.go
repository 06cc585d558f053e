package inmemdb

import (
	"sync"

	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
)

// DB holds all the tables behind one lock, so multi-table writes are atomic.
type DB struct {
	mutex    sync.RWMutex
	users    map[string]*user.User
	schools  map[string]*school.School
	profiles map[string]*student.Profile
}

func Open() *DB {
	return &DB{
		users:    make(map[string]*user.User),
		schools:  make(map[string]*school.School),
		profiles: make(map[string]*student.Profile),
	}
}

// Flush empties all the tables.
func (db *DB) Flush() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.schools = make(map[string]*school.School)
	db.profiles = make(map[string]*student.Profile)
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

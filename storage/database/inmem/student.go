package inmemdb

import (
	"context"

	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
)

type studentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CompleteProfile(_ context.Context, p student.Profile, usr user.User) (student.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return student.Profile{}, user.ErrNotFound
	}
	if _, ok := repo.db.profiles[p.ID]; ok {
		return student.Profile{}, student.ErrProfileExists
	}
	if err := repo.db.checkUserUniqueness(usr.Username, usr.Email, usr); err != nil {
		return student.Profile{}, err
	}

	repo.db.putUser(usr)
	p.Subjects = copyStrings(p.Subjects)
	repo.db.profiles[p.ID] = &p
	return cloneProfile(p), nil
}

func (repo *studentRepository) GetProfile(_ context.Context, userID string) (student.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.profiles[userID]; ok {
		return cloneProfile(*p), nil
	}
	return student.Profile{}, student.ErrNotFound
}

func cloneProfile(p student.Profile) student.Profile {
	p.Subjects = copyStrings(p.Subjects)
	p.Interests = copyStrings(p.Interests)
	if p.SchoolID != nil {
		id := *p.SchoolID
		p.SchoolID = &id
	}
	return p
}

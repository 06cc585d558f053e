package inmemdb

import (
	"context"
	"sort"

	"github.com/studentpakistan/backend/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.checkUserUniqueness(username, email, excludedUsers...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.checkUserUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	return repo.db.putUser(usr), nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return cloneUser(*usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	return repo.find(func(usr *user.User) bool { return usr.Username == username })
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, username string) (user.User, error) {
	return repo.find(func(usr *user.User) bool { return usr.Username == username || usr.Email == username })
}

func (repo *userRepository) find(match func(*user.User) bool) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if match(usr) {
			return cloneUser(*usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.db.checkUserUniqueness(usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}
	return repo.db.putUser(usr), nil
}

// QueryAllUsers returns the users ordered by username.
func (repo *userRepository) QueryAllUsers() []user.User {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		users = append(users, cloneUser(*usr))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// checkUserUniqueness must be called with the lock held.
func (db *DB) checkUserUniqueness(username, email string, excludedUsers ...user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}
	for _, usr := range db.users {
		if excluded[usr.ID] {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

// putUser must be called with the write lock held.
func (db *DB) putUser(usr user.User) user.User {
	usr = cloneUser(usr)
	db.users[usr.ID] = &usr
	return cloneUser(usr)
}

func cloneUser(usr user.User) user.User {
	usr.Roles = copyStrings(usr.Roles)
	usr.Interests = copyStrings(usr.Interests)
	usr.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	usr.SecurityAnswerHash = append([]byte(nil), usr.SecurityAnswerHash...)
	if usr.SchoolID != nil {
		id := *usr.SchoolID
		usr.SchoolID = &id
	}
	return usr
}

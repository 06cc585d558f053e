package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/user"
)

const userColumns = `id, name, username, email, phone, city, gender, date_of_birth, security_question,
	security_answer_hash, bio, interests, avatar_url, school_id, is_active, roles, password_hash,
	created_at, updated_at, last_login`

type userRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Username           string         `db:"username"`
	Email              string         `db:"email"`
	Phone              string         `db:"phone"`
	City               string         `db:"city"`
	Gender             string         `db:"gender"`
	DateOfBirth        *time.Time     `db:"date_of_birth"`
	SecurityQuestion   string         `db:"security_question"`
	SecurityAnswerHash []byte         `db:"security_answer_hash"`
	Bio                string         `db:"bio"`
	Interests          pq.StringArray `db:"interests"`
	AvatarURL          string         `db:"avatar_url"`
	SchoolID           sql.NullString `db:"school_id"`
	IsActive           bool           `db:"is_active"`
	Roles              pq.StringArray `db:"roles"`
	PasswordHash       []byte         `db:"password_hash"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	LastLogin          *time.Time     `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:                 usr.ID,
		Name:               usr.Name,
		Username:           usr.Username,
		Email:              usr.Email,
		Phone:              usr.Phone,
		City:               usr.City,
		Gender:             usr.Gender,
		DateOfBirth:        usr.DateOfBirth,
		SecurityQuestion:   usr.SecurityQuestion,
		SecurityAnswerHash: usr.SecurityAnswerHash,
		Bio:                usr.Bio,
		Interests:          stringArray(usr.Interests),
		AvatarURL:          usr.AvatarURL,
		SchoolID:           nullString(usr.SchoolID),
		IsActive:           usr.IsActive,
		Roles:              stringArray(usr.Roles),
		PasswordHash:       usr.PasswordHash,
		CreatedAt:          usr.CreatedAt,
		UpdatedAt:          usr.UpdatedAt,
		LastLogin:          usr.LastLogin,
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:                 r.ID,
		Name:               r.Name,
		Username:           r.Username,
		Email:              r.Email,
		Phone:              r.Phone,
		City:               r.City,
		Gender:             r.Gender,
		DateOfBirth:        r.DateOfBirth,
		SecurityQuestion:   r.SecurityQuestion,
		SecurityAnswerHash: r.SecurityAnswerHash,
		Bio:                r.Bio,
		Interests:          r.Interests,
		AvatarURL:          r.AvatarURL,
		SchoolID:           stringPtr(r.SchoolID),
		IsActive:           r.IsActive,
		Roles:              r.Roles,
		PasswordHash:       r.PasswordHash,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		LastLogin:          r.LastLogin,
	}
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		ids = append(ids, usr.ID)
	}

	var row struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	err := repo.db.GetContext(ctx, &row, `
		SELECT username, email FROM users
		WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3::uuid[]))
		LIMIT 1`, username, email, pq.Array(ids))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return errors.Wrap(err, "checking username uniqueness")
	case row.Username == username:
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := insertUser(ctx, repo.db, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.get(ctx, "id::text = $1", id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.get(ctx, "username = $1", username)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.get(ctx, "username = $1 OR email = $1", username)
}

func (repo *userRepository) get(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...); err != nil {
		return user.User{}, errors.Wrap(trapNoRowsErr(err, user.ErrNotFound), "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := updateUser(ctx, repo.db, usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func insertUser(ctx context.Context, db sqlx.ExtContext, usr user.User) error {
	_, err := sqlx.NamedExecContext(ctx, db, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :phone, :city, :gender, :date_of_birth, :security_question,
			:security_answer_hash, :bio, :interests, :avatar_url, :school_id, :is_active, :roles, :password_hash,
			:created_at, :updated_at, :last_login)`, toUserRow(usr))
	return errors.Wrap(uniqueErr(err), "inserting user")
}

// updateUser saves every column but the creation date.
func updateUser(ctx context.Context, db sqlx.ExtContext, usr user.User) error {
	res, err := sqlx.NamedExecContext(ctx, db, `
		UPDATE users SET
			name = :name, username = :username, email = :email, phone = :phone, city = :city, gender = :gender,
			date_of_birth = :date_of_birth, security_question = :security_question,
			security_answer_hash = :security_answer_hash, bio = :bio, interests = :interests,
			avatar_url = :avatar_url, school_id = :school_id, is_active = :is_active, roles = :roles,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, toUserRow(usr))
	if err != nil {
		return errors.Wrap(uniqueErr(err), "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

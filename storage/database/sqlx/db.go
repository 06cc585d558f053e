// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/storage/database"
)

// unique constraints
const (
	usersUsernameKey          = "users_username_key"
	usersEmailKey             = "users_email_key"
	schoolsCodeKey            = "schools_code_key"
	schoolsRegistrationNumKey = "schools_registration_number_key"
	studentProfilesPrimaryKey = "student_profiles_pkey"
)

// uniqueErr maps a unique violation to the domain error of its constraint.
func uniqueErr(err error) error {
	constraint, ok := database.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case usersUsernameKey:
		return user.ErrUsernameExists
	case usersEmailKey:
		return user.ErrEmailExists
	case schoolsCodeKey:
		return school.ErrCodeExists
	case schoolsRegistrationNumKey:
		return school.ErrRegistrationNumberExists
	case studentProfilesPrimaryKey:
		return student.ErrProfileExists
	}
	return err
}

func trapNoRowsErr(err, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func stringArray(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return s
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/storage/database"
)

const schoolColumns = `id, code, name, registration_number, established_year, principal_name, email, contact_number,
	address, city, website, education_level, gender_type, registration_proof, logo, is_verified,
	COALESCE(admin_id::text, '') AS admin_id, created_at, updated_at`

type schoolRepository struct {
	db *sqlx.DB
}

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) RegisterSchool(ctx context.Context, sch school.School, admin user.User) (school.School, error) {
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var schoolID sql.NullString
		err := tx.GetContext(ctx, &schoolID, "SELECT school_id FROM users WHERE id = $1 FOR UPDATE", admin.ID)
		if err != nil {
			return errors.Wrap(trapNoRowsErr(err, user.ErrNotFound), "locking admin")
		}
		if schoolID.Valid {
			return school.ErrAdminHasSchool
		}

		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO schools (id, code, name, registration_number, established_year, principal_name, email,
				contact_number, address, city, website, education_level, gender_type, registration_proof, logo,
				is_verified, admin_id, created_at, updated_at)
			VALUES (:id, :code, :name, :registration_number, :established_year, :principal_name, :email,
				:contact_number, :address, :city, :website, :education_level, :gender_type, :registration_proof, :logo,
				:is_verified, :admin_id, :created_at, :updated_at)`, sch)
		if err != nil {
			return errors.Wrap(uniqueErr(err), "inserting school")
		}
		return updateUser(ctx, tx, admin)
	})
	if err != nil {
		return school.School{}, err
	}
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	return repo.get(ctx, "id::text = $1", id)
}

func (repo *schoolRepository) GetSchoolByCode(ctx context.Context, code string) (school.School, error) {
	return repo.get(ctx, "code = $1", code)
}

func (repo *schoolRepository) get(ctx context.Context, where string, args ...interface{}) (school.School, error) {
	var sch school.School
	if err := repo.db.GetContext(ctx, &sch, "SELECT "+schoolColumns+" FROM schools WHERE "+where, args...); err != nil {
		return school.School{}, errors.Wrap(trapNoRowsErr(err, school.ErrNotFound), "getting school")
	}
	return sch, nil
}

func (repo *schoolRepository) SearchSchools(ctx context.Context, query, city string, limit int) ([]school.School, error) {
	schools := make([]school.School, 0)
	err := repo.db.SelectContext(ctx, &schools, `
		SELECT `+schoolColumns+` FROM schools
		WHERE name ILIKE $1 AND ($2 = '' OR city ILIKE $3)
		ORDER BY LOWER(name)
		LIMIT $4`, likePattern(query), city, likePattern(city), limit)
	if err != nil {
		return nil, errors.Wrap(err, "searching schools")
	}
	return schools, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches values containing `s`.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/storage/database"
)

type profileRow struct {
	ID            string         `db:"id"`
	EducationType string         `db:"education_type"`
	BoardID       string         `db:"board_id"`
	ClassGrade    string         `db:"class_grade"`
	SchoolType    string         `db:"school_type"`
	SchoolID      sql.NullString `db:"school_id"`
	SchoolName    string         `db:"school_name"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type studentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CompleteProfile(ctx context.Context, p student.Profile, usr user.User) (student.Profile, error) {
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := updateUser(ctx, tx, usr); err != nil {
			return err
		}
		row := profileRow{
			ID:            p.ID,
			EducationType: p.EducationType,
			BoardID:       p.BoardID,
			ClassGrade:    p.ClassGrade,
			SchoolType:    p.SchoolType,
			SchoolID:      nullString(p.SchoolID),
			SchoolName:    p.SchoolName,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO student_profiles (id, education_type, board_id, class_grade, school_type, school_id,
				school_name, created_at, updated_at)
			VALUES (:id, :education_type, :board_id, :class_grade, :school_type, :school_id,
				:school_name, :created_at, :updated_at)`, row)
		if err != nil {
			return errors.Wrap(uniqueErr(err), "inserting student profile")
		}
		for _, subject := range p.Subjects {
			if _, err = tx.ExecContext(ctx,
				"INSERT INTO student_subjects (student_id, subject_id) VALUES ($1, $2)", p.ID, subject,
			); err != nil {
				return errors.Wrap(err, "inserting student subject")
			}
		}
		return nil
	})
	if err != nil {
		return student.Profile{}, err
	}
	return p, nil
}

func (repo *studentRepository) GetProfile(ctx context.Context, userID string) (student.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT id, education_type, board_id, class_grade, school_type, school_id::text AS school_id, school_name,
			created_at, updated_at
		FROM student_profiles WHERE id::text = $1`, userID)
	if err != nil {
		return student.Profile{}, errors.Wrap(trapNoRowsErr(err, student.ErrNotFound), "getting student profile")
	}

	subjects := make([]string, 0)
	if err = repo.db.SelectContext(ctx, &subjects,
		"SELECT subject_id FROM student_subjects WHERE student_id = $1 ORDER BY subject_id", row.ID,
	); err != nil {
		return student.Profile{}, errors.Wrap(err, "getting student subjects")
	}

	return student.Profile{
		ID:            row.ID,
		EducationType: row.EducationType,
		BoardID:       row.BoardID,
		ClassGrade:    row.ClassGrade,
		SchoolType:    row.SchoolType,
		SchoolID:      stringPtr(row.SchoolID),
		SchoolName:    row.SchoolName,
		Subjects:      subjects,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

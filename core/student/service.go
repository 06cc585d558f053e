package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/upload"
	"github.com/studentpakistan/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound      = errors.New("student profile not found")
	ErrProfileExists = errors.New("student profile already completed")

	schoolNotFoundText = "School not found"
)

type (
	Repository interface {
		// CompleteProfile saves `usr` and inserts `p` with its subjects in the same transaction.
		CompleteProfile(ctx context.Context, p Profile, usr user.User) (Profile, error)
		GetProfile(ctx context.Context, userID string) (Profile, error)
	}

	SchoolFinder interface {
		GetByID(ctx context.Context, id string) (school.School, error)
	}

	Service struct {
		repo          Repository
		users         *user.Service
		schools       SchoolFinder
		files         upload.Store
		maxUploadSize int64
	}
)

func NewService(repo Repository, users *user.Service, schools SchoolFinder, files upload.Store) *Service {
	return &Service{
		repo:          repo,
		users:         users,
		schools:       schools,
		files:         files,
		maxUploadSize: core.Conf.Upload.MaxSize,
	}
}

// Validate checks the profile fields and the optional picture, and returns every failure in one *core.ValidationError.
func (svc *Service) Validate(data CompleteProfile, picture *upload.File) error {
	fldErrs := make(map[string]string)
	if err := data.Validate(); err != nil {
		errs := core.FieldErrors(err)
		if errs == nil {
			return errors.Wrap(err, "validating profile")
		}
		fldErrs = errs
	}
	if picture != nil {
		if msg := picture.Message(svc.maxUploadSize); msg != "" {
			fldErrs["profileImage"] = msg
		}
	}
	return core.ValidationErrorFromMap(fldErrs)
}

// Complete saves the onboarding data of `usr` and makes them a student.
func (svc *Service) Complete(ctx context.Context, usr user.User, data CompleteProfile, picture *upload.File) (Profile, error) {
	data.Clean()
	data.Subjects = uniqueStrings(data.Subjects)
	if err := svc.Validate(data, picture); err != nil {
		return Profile{}, err
	}

	switch _, err := svc.repo.GetProfile(ctx, usr.ID); errors.Cause(err) {
	case nil:
		return Profile{}, ErrProfileExists
	case ErrNotFound:
	default:
		return Profile{}, errors.Wrap(err, "finding student profile")
	}

	if err := svc.users.CheckUniqueness(ctx, data.Username, data.Email, usr); err != nil {
		return Profile{}, err
	}

	var schoolID *string
	if data.SchoolType == SchoolRegistered {
		sch, err := svc.schools.GetByID(ctx, data.SchoolID)
		if err != nil {
			if errors.Cause(err) == school.ErrNotFound {
				return Profile{}, core.NewValidationError(err, core.FieldError{Field: "schoolId", Error: schoolNotFoundText})
			}
			return Profile{}, errors.Wrap(err, "finding school")
		}
		schoolID = &sch.ID
	}

	now := NowFunc().UTC()
	if err := data.Identity.Apply(&usr); err != nil {
		return Profile{}, errors.Wrap(err, "applying identity")
	}
	usr.AddRoles(user.StudentRoles...)
	if schoolID != nil {
		usr.SchoolID = schoolID
	}
	usr.UpdatedAt = now

	p := Profile{
		ID:            usr.ID,
		EducationType: data.EducationType,
		BoardID:       data.BoardID,
		ClassGrade:    data.ClassGrade,
		SchoolType:    data.SchoolType,
		SchoolID:      schoolID,
		SchoolName:    data.SchoolName,
		Subjects:      data.Subjects,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if picture != nil {
		url, err := svc.files.Save(ctx, *picture)
		if err != nil {
			return Profile{}, errors.Wrap(err, "saving profile picture")
		}
		usr.AvatarURL = url
	}

	p, err := svc.repo.CompleteProfile(ctx, p, usr)
	if err != nil {
		if picture != nil {
			_ = svc.files.Delete(ctx, usr.AvatarURL)
		}
		if errors.Cause(err) == ErrProfileExists {
			return Profile{}, err
		}
		return Profile{}, errors.Wrap(user.UniquenessError(err), "completing student profile")
	}
	return p.WithUser(usr), nil
}

func (svc *Service) GetProfile(ctx context.Context, usr user.User) (Profile, error) {
	p, err := svc.repo.GetProfile(ctx, usr.ID)
	if err != nil {
		return Profile{}, err
	}
	return p.WithUser(usr), nil
}

func uniqueStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	unique := make([]string, 0, len(ss))
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}
	return unique
}

package student_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/upload"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/services/filestore"
	"github.com/studentpakistan/backend/services/logger"
	"github.com/studentpakistan/backend/storage/database/inmem"
	"github.com/studentpakistan/backend/tests"
)

const pwd = "Sup3r$ecret!"

func identity(uname, email string) user.Identity {
	return user.Identity{
		Name:        "Ali Khan",
		Username:    uname,
		Email:       email,
		DateOfBirth: "2008-05-01",
		Gender:      "male",
		City:        "Lahore",
		Phone:       "03001234567",
		Bio:         "I like maths",
	}
}

func TestService_Complete(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	schRepo := inmemdb.NewSchoolRepository(db)
	files := filestore.NewMemoryStore("http://test.local/uploads")
	usrSvc := user.NewService(usrRepo, nil)
	schSvc := school.NewService(schRepo, usrSvc, files, nil, logsvc.NewNopLogger())
	svc := student.NewService(inmemdb.NewStudentRepository(db), usrSvc, schSvc, files)

	owner := testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.pk", pwd, nil, true)
	sch := testutil.CreateSchool(t, schRepo, owner, "Beaconhouse", "BH-1", "Lahore", "AAAAAA")
	testutil.CreateUser(t, usrRepo, "Sara", "sara", "sara@test.pk", pwd, nil, true)

	valid := func(uname, email string) student.CompleteProfile {
		return student.CompleteProfile{
			Identity:      identity(uname, email),
			EducationType: "Matric",
			BoardID:       "BISE-Lahore",
			ClassGrade:    "grade-9",
			SchoolType:    student.SchoolRegistered,
			SchoolID:      sch.ID,
			SchoolName:    "dropped",
			Subjects:      []string{"matric-physics", "matric-mathematics", "matric-physics"},
		}
	}

	tests := []struct {
		name     string
		uname    string
		edit     func(cp *student.CompleteProfile)
		picture  *upload.File
		wantErr  error
		wantErrs map[string]string
	}{
		{
			name:  "invalid education",
			uname: "ali",
			edit: func(cp *student.CompleteProfile) {
				cp.BoardID = "cambridge-o-levels"
				cp.ClassGrade = "o1"
				cp.Subjects = []string{"matric-physics", "o_level-physics"}
			},
			wantErrs: map[string]string{
				"boardId":    "select a board offering this education type",
				"classGrade": "select a valid class/grade",
				"subjects":   "invalid subject for this education type",
			},
		},
		{
			name:  "missing school",
			uname: "ali",
			edit: func(cp *student.CompleteProfile) {
				cp.SchoolType = student.SchoolNotListed
				cp.SchoolName = ""
				cp.Subjects = nil
			},
			wantErrs: map[string]string{
				"schoolName": "This field is required",
				"subjects":   "Select at least one subject",
			},
		},
		{
			name:     "invalid picture",
			uname:    "ali",
			picture:  &upload.File{Kind: upload.KindImage, Filename: "me.pdf", Bytes: testutil.PDF},
			wantErrs: map[string]string{"profileImage": "file must be a JPEG, PNG, GIF or WebP image"},
		},
		{
			name:     "unknown school",
			uname:    "ali",
			edit:     func(cp *student.CompleteProfile) { cp.SchoolID = "nope" },
			wantErrs: map[string]string{"schoolId": "School not found"},
		},
		{
			name:     "username taken",
			uname:    "sara",
			wantErrs: map[string]string{"username": "Username already exists"},
		},
		{
			name:    "success",
			uname:   "ali",
			picture: &upload.File{Kind: upload.KindImage, Filename: "me.png", Bytes: testutil.PNG},
		},
		{
			name:    "already completed",
			uname:   "ali",
			wantErr: student.ErrProfileExists,
		},
	}

	usr := testutil.CreateUser(t, usrRepo, "Ali", "ali", "ali@test.pk", pwd, nil, true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := valid(tt.uname, "ali@test.pk")
			if tt.edit != nil {
				tt.edit(&cp)
			}
			p, err := svc.Complete(context.Background(), usr, cp, tt.picture)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			case tt.wantErrs != nil:
				assert.Equal(t, tt.wantErrs, core.FieldErrors(err))
				return
			}
			require.NoError(t, err)

			assert.Equal(t, usr.ID, p.ID)
			assert.Equal(t, "matric", p.EducationType)
			assert.Equal(t, "bise-lahore", p.BoardID)
			require.NotNil(t, p.SchoolID)
			assert.Equal(t, sch.ID, *p.SchoolID)
			assert.Empty(t, p.SchoolName)
			assert.Equal(t, []string{"matric-physics", "matric-mathematics"}, p.Subjects)
			assert.Equal(t, "I like maths", p.Bio)
			assert.NotEmpty(t, p.AvatarURL)

			updated, err := usrRepo.GetUserByID(context.Background(), usr.ID)
			require.NoError(t, err)
			assert.Equal(t, "Ali Khan", updated.Name)
			assert.True(t, updated.IsStudent())
			require.NotNil(t, updated.SchoolID)
			assert.Equal(t, sch.ID, *updated.SchoolID)

			got, err := svc.GetProfile(context.Background(), updated)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

// racedRepo loses every CompleteProfile race.
type racedRepo struct {
	student.Repository
}

func (racedRepo) CompleteProfile(context.Context, student.Profile, user.User) (student.Profile, error) {
	return student.Profile{}, student.ErrProfileExists
}

func TestService_Complete_repositoryFailure(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	files := filestore.NewMemoryStore("http://test.local/uploads")
	usrSvc := user.NewService(usrRepo, nil)
	schSvc := school.NewService(inmemdb.NewSchoolRepository(db), usrSvc, files, nil, logsvc.NewNopLogger())
	svc := student.NewService(racedRepo{inmemdb.NewStudentRepository(db)}, usrSvc, schSvc, files)

	usr := testutil.CreateUser(t, usrRepo, "Ali", "ali", "ali@test.pk", pwd, nil, true)
	cp := student.CompleteProfile{
		Identity:      identity("ali", "ali@test.pk"),
		EducationType: "matric",
		BoardID:       "bise-lahore",
		ClassGrade:    "grade-9",
		SchoolType:    student.SchoolLater,
		Subjects:      []string{"matric-physics"},
	}
	picture := upload.File{Kind: upload.KindImage, Filename: "me.png", Bytes: testutil.PNG}

	_, err := svc.Complete(context.Background(), usr, cp, &picture)
	assert.Equal(t, student.ErrProfileExists, errors.Cause(err))
	assert.Zero(t, files.Len(), "the saved picture must be removed")
}

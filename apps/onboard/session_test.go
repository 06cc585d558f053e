package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentpakistan/backend/apps/api/echo"
	"github.com/studentpakistan/backend/core/onboarding"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/services/apiclient"
	"github.com/studentpakistan/backend/services/email"
	"github.com/studentpakistan/backend/services/filestore"
	"github.com/studentpakistan/backend/services/logger"
	"github.com/studentpakistan/backend/storage/database/inmem"
	"github.com/studentpakistan/backend/tests"
)

const pwd = "Sup3r$ecret!"

type testAPI struct {
	srv      *httptest.Server
	usrRepo  user.Repository
	schRepo  school.Repository
	stdRepo  student.Repository
	files    *filestore.MemoryStore
	mailSvc  *emailsvc.ServiceMock
	logger   *logsvc.Logger
	tokenFor func(user.User) string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db := inmemdb.Open()
	api := &testAPI{
		usrRepo: inmemdb.NewUserRepository(db),
		schRepo: inmemdb.NewSchoolRepository(db),
		stdRepo: inmemdb.NewStudentRepository(db),
		files:   filestore.NewMemoryStore("http://test.local/uploads"),
		mailSvc: emailsvc.NewServiceMock(),
		logger:  logsvc.NewNopLogger(),
	}
	usrSvc := user.NewService(api.usrRepo, api.mailSvc)
	schSvc := school.NewService(api.schRepo, usrSvc, api.files, api.mailSvc, api.logger)
	app := echoapi.NewServer(
		&echoapi.Options{DisableReqLogs: true},
		&echoapi.Deps{
			Logger:     api.logger,
			UserSvc:    usrSvc,
			SchoolSvc:  schSvc,
			StudentSvc: student.NewService(api.stdRepo, usrSvc, schSvc, api.files),
			Catalog:    reference.Default(),
		},
	)
	api.srv = httptest.NewServer(app)
	t.Cleanup(api.srv.Close)

	api.tokenFor = func(usr user.User) string {
		token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr))
		require.NoError(t, err)
		return token
	}
	return api
}

func (api *testAPI) session(t onboarding.UserType, token, input string) (*session, *bytes.Buffer) {
	var out bytes.Buffer
	client := apiclient.New(api.srv.URL, token, api.logger)
	return newSession(t, client, api.logger, strings.NewReader(input), &out), &out
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, content, 0o600))
	return path
}

func Test_session_studentAnswers(t *testing.T) {
	api := newTestAPI(t)
	usr := testutil.CreateUser(t, api.usrRepo, "Ali", "ali", "ali@test.pk", pwd, nil, true)

	dir := t.TempDir()
	writeFile(t, dir, "me.png", testutil.PNG)
	answers := writeFile(t, dir, "answers.yaml", []byte(`
fullName: Ali Khan
username: ali
email: ali@test.pk
password: "`+pwd+`"
dateOfBirth: "2008-05-01"
gender: male
city: Lahore
phoneNumber: "03001234567"
educationType: matric
boardId: bise-lahore
classGrade: grade-9
schoolType: later
subjects: [matric-mathematics, matric-physics]
profilePicture: me.png
bio: I like maths
interests:
  - chess
`))

	s, out := api.session(onboarding.Student, api.tokenFor(usr), "")
	require.NoError(t, s.loadAnswers(answers))
	require.NoError(t, s.run(context.Background()), out.String())

	assert.True(t, s.wizard.Done)
	assert.Contains(t, out.String(), "Onboarding completed! Continue on /dashboard")

	profile, err := api.stdRepo.GetProfile(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"matric-mathematics", "matric-physics"}, profile.Subjects)
	assert.Equal(t, 1, api.files.Len())

	updated, err := api.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ali Khan", updated.Name)
	assert.Equal(t, []string{"chess"}, updated.Interests)
	assert.NotEmpty(t, updated.AvatarURL)
}

func Test_session_invalidAnswers(t *testing.T) {
	api := newTestAPI(t)
	usr := testutil.CreateUser(t, api.usrRepo, "Ali", "ali", "ali@test.pk", pwd, nil, true)

	answers := writeFile(t, t.TempDir(), "answers.yaml", []byte(`
fullName: Ali Khan
username: ali
email: not-an-email
password: "`+pwd+`"
confirmPassword: other
`))

	s, out := api.session(onboarding.Student, api.tokenFor(usr), "")
	require.NoError(t, s.loadAnswers(answers))
	err := s.run(context.Background())
	assert.Equal(t, onboarding.ErrStepInvalid, errors.Cause(err))
	assert.Equal(t, 1, s.wizard.Step)
	assert.Contains(t, out.String(), "confirmPassword: Passwords do not match")
	assert.Contains(t, out.String(), "dateOfBirth: This field is required")
	assert.Contains(t, s.wizard.Errors, "email")
}

func Test_session_schoolInteractive(t *testing.T) {
	api := newTestAPI(t)
	testutil.CreateUser(t, api.usrRepo, "Taken", "taken", "taken@test.pk", pwd, nil, true)
	usr := testutil.CreateUser(t, api.usrRepo, "Nasreen", "nasreen", "nasreen@test.pk", pwd, nil, true)

	dir := t.TempDir()
	proof := writeFile(t, dir, "proof.pdf", testutil.PDF)

	input := strings.Join([]string{
		// step 1
		"Nasreen Shah",      // fullName
		"taken",             // username
		"nasreen@lgs.pk",    // email
		pwd,                 // password
		"typo",              // confirmPassword
		"1970-01-15",        // dateOfBirth
		"2",                 // gender: female
		"Lahore",            // city
		"03211234567",       // phoneNumber
		"",                  // securityQuestion
		"",                  // securityAnswer
		pwd,                 // confirmPassword (fixed)
		// step 2
		"Lahore Grammar School",   // name
		"LGS-1979",                // registrationNumber
		"1979",                    // establishedYear
		"Mrs. Nasreen",            // principalName
		"",                        // email
		"042-35761234",            // contactNumber
		"55 Main Gulberg, Lahore", // address
		"Lahore",                  // city
		"",                        // website
		"",                        // educationLevel
		"3",                       // genderType: co_education
		proof,                     // registrationProof
		"",                        // logo
		// back to step 1: the username is taken
		"nasreen", // username
	}, "\n") + "\n" + strings.Repeat("\n", 13) // step 2 again, every value is kept

	s, out := api.session(onboarding.School, api.tokenFor(usr), input)
	require.NoError(t, s.run(context.Background()), out.String())

	output := out.String()
	assert.Contains(t, output, `username "taken" is already taken`)
	assert.Contains(t, output, "confirmPassword: Passwords do not match")
	assert.Contains(t, output, "username: Username already exists")
	assert.Contains(t, output, "Onboarding completed! Continue on /school/dashboard")

	admin, err := api.usrRepo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	require.NotNil(t, admin.SchoolID)
	assert.True(t, admin.IsAdmin())
	sch, err := api.schRepo.GetSchoolByID(context.Background(), *admin.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, "Lahore Grammar School", sch.Name)
	assert.Equal(t, school.GenderCoEducation, sch.GenderType)
	assert.Equal(t, reference.Both, sch.EducationLevel)
}

func Test_login(t *testing.T) {
	api := newTestAPI(t)
	testutil.CreateUser(t, api.usrRepo, "Ali", "ali", "ali@test.pk", pwd, nil, true)

	s, _ := api.session(onboarding.Student, "", pwd+"\n")
	assert.Equal(t, errNoCredentials, login(context.Background(), s, " "))

	require.NoError(t, login(context.Background(), s, "ali"))
	assert.NotEmpty(t, s.client.Token())

	s, _ = api.session(onboarding.Student, "", "wrong\n")
	err := login(context.Background(), s, "ali")
	var apiErr *apiclient.APIError
	require.True(t, errors.As(err, &apiErr), "%v", err)
	assert.Equal(t, "invalid credentials", apiErr.Message)
}

func Test_choose(t *testing.T) {
	options := []onboarding.Option{{Value: "male", Label: "Male"}, {Value: "female", Label: "Female"}}
	assert.Equal(t, "female", choose(options, "2"))
	assert.Equal(t, "male", choose(options, " MALE "))
	assert.Equal(t, "", choose(options, "3"))
	assert.Equal(t, "", choose(options, "robot"))
}

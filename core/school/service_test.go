package school_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/upload"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/services/email"
	"github.com/studentpakistan/backend/services/filestore"
	"github.com/studentpakistan/backend/services/logger"
	"github.com/studentpakistan/backend/storage/database/inmem"
	"github.com/studentpakistan/backend/tests"
)

const pwd = "Sup3r$ecret!"

type fixture struct {
	svc     *school.Service
	usrRepo user.Repository
	schRepo school.Repository
	files   *filestore.MemoryStore
	mailSvc *emailsvc.ServiceMock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	f := fixture{
		usrRepo: inmemdb.NewUserRepository(db),
		schRepo: inmemdb.NewSchoolRepository(db),
		files:   filestore.NewMemoryStore("http://test.local/uploads"),
		mailSvc: emailsvc.NewServiceMock(),
	}
	f.svc = school.NewService(f.schRepo, user.NewService(f.usrRepo, f.mailSvc), f.files, f.mailSvc, logsvc.NewNopLogger())
	return f
}

func validRegistration() school.Registration {
	return school.Registration{
		School: school.NewSchool{
			Name:               "Lahore Grammar School",
			RegistrationNumber: "LGS-1979",
			PrincipalName:      "Mrs. Nasreen",
			ContactNumber:      "042-35761234",
			Address:            "55 Main Gulberg, Lahore",
			City:               "Lahore",
		},
		RegistrationProof: upload.New(upload.KindDocument, "proof.pdf", testutil.PDF, "application/pdf"),
	}
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)
	owner := testutil.CreateUser(t, f.usrRepo, "Owner", "owner", "owner@test.pk", pwd, nil, true)
	testutil.CreateSchool(t, f.schRepo, owner, "Beaconhouse", "BH-1", "Lahore", "AAAAAA")
	testutil.CreateUser(t, f.usrRepo, "Taken", "taken", "taken@test.pk", pwd, nil, true)
	admin := testutil.CreateUser(t, f.usrRepo, "Nasreen", "nasreen", "nasreen@test.pk", pwd, nil, true)

	t.Run("invalid", func(t *testing.T) {
		reg := validRegistration()
		reg.School.Address = ""
		reg.School.GenderType = "mixed"
		reg.RegistrationProof = upload.File{}
		logo := upload.New(upload.KindImage, "logo.pdf", testutil.PDF, "")
		reg.Logo = &logo
		reg.Admin = &user.Identity{Username: "x"}

		_, err := f.svc.Register(context.Background(), admin, reg)
		errs := core.FieldErrors(err)
		assert.Equal(t, "This field is required", errs["address"])
		assert.Equal(t, "genderType must be one of [boys girls co_education]", errs["genderType"])
		assert.Equal(t, "This field is required", errs["registrationProof"])
		assert.Equal(t, "file must be a JPEG, PNG, GIF or WebP image", errs["logo"])
		assert.Equal(t, "This field is required", errs["user_fullName"])
		assert.Contains(t, errs, "user_username")
		assert.Zero(t, f.files.Len())
	})

	t.Run("registration number taken", func(t *testing.T) {
		reg := validRegistration()
		reg.School.RegistrationNumber = "bh-1"
		logo := upload.New(upload.KindImage, "logo.png", testutil.PNG, "")
		reg.Logo = &logo
		_, err := f.svc.Register(context.Background(), admin, reg)
		assert.Equal(t, map[string]string{"registrationNumber": "A school with this registration number already exists"}, core.FieldErrors(err))
		assert.Zero(t, f.files.Len(), "uploaded files must be removed")
	})

	t.Run("admin username taken", func(t *testing.T) {
		reg := validRegistration()
		reg.Admin = &user.Identity{
			Name:        "Nasreen Shah",
			Username:    "taken",
			Email:       "nasreen@lgs.pk",
			DateOfBirth: "1970-01-15",
			Gender:      "female",
			City:        "Lahore",
			Phone:       "03211234567",
		}
		_, err := f.svc.Register(context.Background(), admin, reg)
		assert.Equal(t, map[string]string{"user_username": "Username already exists"}, core.FieldErrors(err))
	})

	t.Run("success after a code collision", func(t *testing.T) {
		codes := []string{"AAAAAA", "BCDEFG"}
		reset := school.SetGenerateCode(func() (string, error) {
			code := codes[0]
			codes = codes[1:]
			return code, nil
		})
		defer reset()

		f.mailSvc.Reset()
		stored := f.files.Len()
		sch, err := f.svc.Register(context.Background(), admin, validRegistration())
		require.NoError(t, err)
		assert.Equal(t, "BCDEFG", sch.Code)
		assert.Equal(t, "both", sch.EducationLevel)
		assert.Equal(t, school.GenderCoEducation, sch.GenderType)
		assert.Equal(t, admin.ID, sch.AdminID)
		assert.NotEmpty(t, sch.RegistrationProof)
		assert.Equal(t, stored+1, f.files.Len())

		updated, err := f.usrRepo.GetUserByID(context.Background(), admin.ID)
		require.NoError(t, err)
		assert.True(t, updated.IsAdmin())
		require.NotNil(t, updated.SchoolID)
		assert.Equal(t, sch.ID, *updated.SchoolID)

		sent := f.mailSvc.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "school_registered", sent[0].TemplateName)
		require.Len(t, sent[0].Attachments, 1)
		assert.Equal(t, "registration-proof.pdf", sent[0].Attachments[0].Filename)
		assert.Equal(t, "application/pdf", sent[0].Attachments[0].ContentType)

		found, err := f.svc.GetByCode(context.Background(), " bcdefg ")
		require.NoError(t, err)
		assert.Equal(t, sch.ID, found.ID)

		_, err = f.svc.Register(context.Background(), updated, validRegistration())
		assert.Equal(t, school.ErrAdminHasSchool, errors.Cause(err))

		stored = f.files.Len()
		reg := validRegistration()
		reg.School.RegistrationNumber = "LGS-2000"
		_, err = f.svc.Register(context.Background(), admin, reg) // admin loaded before the registration
		assert.Equal(t, school.ErrAdminHasSchool, errors.Cause(err))
		assert.Equal(t, stored, f.files.Len())
	})
}

func TestService_Register_concurrentAdmin(t *testing.T) {
	f := newFixture(t)
	admin := testutil.CreateUser(t, f.usrRepo, "Nasreen", "nasreen", "nasreen@test.pk", pwd, nil, true)

	regNums := []string{"LGS-1", "LGS-2", "LGS-3", "LGS-4"}
	errs := make([]error, len(regNums))
	var wg sync.WaitGroup
	for i, num := range regNums {
		wg.Add(1)
		go func(i int, num string) {
			defer wg.Done()
			reg := validRegistration()
			reg.School.RegistrationNumber = num
			_, errs[i] = f.svc.Register(context.Background(), admin, reg)
		}(i, num)
	}
	wg.Wait()

	var registered int
	for _, err := range errs {
		if err == nil {
			registered++
			continue
		}
		assert.Equal(t, school.ErrAdminHasSchool, errors.Cause(err))
	}
	assert.Equal(t, 1, registered)
	assert.Equal(t, 1, f.files.Len())
}

func TestService_GetByCode(t *testing.T) {
	f := newFixture(t)
	for _, code := range []string{"", "ABC", "ABCDEFG", "ZZZZZZ"} {
		_, err := f.svc.GetByCode(context.Background(), code)
		assert.Equal(t, school.ErrNotFound, errors.Cause(err), code)
	}
}

// mapCache is a SearchCache counting its hits.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]school.School
	hits    int
}

func (c *mapCache) GetSchools(_ context.Context, key string) ([]school.School, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	schools, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return schools, ok, nil
}

func (c *mapCache) SetSchools(_ context.Context, key string, schools []school.School) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = schools
	return nil
}

func (c *mapCache) InvalidateSchools(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]school.School)
	return nil
}

func TestService_Search(t *testing.T) {
	f := newFixture(t)
	cache := &mapCache{entries: make(map[string][]school.School)}
	f.svc.UseCache(cache)

	for i, name := range []string{"The City School", "Beaconhouse Gulberg", "beaconhouse Defence"} {
		admin := testutil.CreateUser(t, f.usrRepo, name, "admin"+string(rune('a'+i)), string(rune('a'+i))+"@test.pk", pwd, nil, true)
		testutil.CreateSchool(t, f.schRepo, admin, name, "REG-"+string(rune('A'+i)), "Lahore", "CODE2"+string(rune('A'+i)))
	}

	_, err := f.svc.Search(context.Background(), "  ", "")
	assert.Equal(t, school.ErrQueryRequired, err)

	schools, err := f.svc.Search(context.Background(), "BEACON", "")
	require.NoError(t, err)
	require.Len(t, schools, 2)
	assert.Equal(t, "beaconhouse Defence", schools[0].Name)
	assert.Equal(t, "Beaconhouse Gulberg", schools[1].Name)
	assert.Zero(t, cache.hits)

	schools, err = f.svc.Search(context.Background(), "beacon", "")
	require.NoError(t, err)
	assert.Len(t, schools, 2)
	assert.Equal(t, 1, cache.hits)

	schools, err = f.svc.Search(context.Background(), "school", "karachi")
	require.NoError(t, err)
	assert.Empty(t, schools)

	// registering invalidates the cached searches
	admin := testutil.CreateUser(t, f.usrRepo, "New", "newadmin", "new@test.pk", pwd, nil, true)
	reg := validRegistration()
	reg.School.Name = "Beaconhouse Johar Town"
	_, err = f.svc.Register(context.Background(), admin, reg)
	require.NoError(t, err)

	schools, err = f.svc.Search(context.Background(), "beacon", "")
	require.NoError(t, err)
	assert.Len(t, schools, 3)
	assert.Equal(t, 1, cache.hits)
}

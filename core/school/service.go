package school

import (
	"bytes"
	"context"
	"crypto/rand"
	"math/big"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/upload"
	"github.com/studentpakistan/backend/core/user"
)

const (
	CodeLength  = 6
	SearchLimit = 10

	// AdminFieldPrefix prefixes the admin identity fields of a registration form.
	AdminFieldPrefix = "user_"

	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O nor 1/I
	maxCodeAttempts = 5
)

var (
	// errors
	ErrNotFound                 = errors.New("school not found")
	ErrCodeExists               = errors.New("school code already exists")
	ErrRegistrationNumberExists = errors.New("a school with this registration number already exists")
	ErrAdminHasSchool           = errors.New("user already administers a school")
	ErrQueryRequired            = errors.New("search query is required")

	registrationNumberExistsText = "A school with this registration number already exists"
	requiredText                 = "This field is required"

	generateCode = randomCode // mockable
)

type (
	Repository interface {
		// RegisterSchool inserts `sch` and saves `admin` in the same transaction.
		// ErrAdminHasSchool is returned when the stored admin already has a school.
		RegisterSchool(ctx context.Context, sch School, admin user.User) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		GetSchoolByCode(ctx context.Context, code string) (School, error)
		// SearchSchools matches `query` and `city` case-insensitively; results are ordered by name.
		SearchSchools(ctx context.Context, query, city string, limit int) ([]School, error)
	}

	// SearchCache stores school search results.
	SearchCache interface {
		GetSchools(ctx context.Context, key string) ([]School, bool, error)
		SetSchools(ctx context.Context, key string, schools []School) error
		InvalidateSchools(ctx context.Context) error
	}

	// Registration is a school registration request.
	Registration struct {
		School            NewSchool
		Admin             *user.Identity // applied to the admin account when set
		RegistrationProof upload.File
		Logo              *upload.File
	}

	Service struct {
		repo          Repository
		users         *user.Service
		files         upload.Store
		mailSvc       core.EmailService
		logger        core.Logger
		cache         SearchCache
		searches      singleflight.Group
		maxUploadSize int64
	}
)

func NewService(repo Repository, users *user.Service, files upload.Store, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:          repo,
		users:         users,
		files:         files,
		mailSvc:       mailSvc,
		logger:        logger,
		maxUploadSize: core.Conf.Upload.MaxSize,
	}
}

// UseCache caches the search results in `c`.
func (svc *Service) UseCache(c SearchCache) *Service {
	svc.cache = c
	return svc
}

// Validate checks the school fields, the admin identity and the documents,
// and returns every failure in one *core.ValidationError. Admin identity errors are prefixed with AdminFieldPrefix.
func (svc *Service) Validate(reg Registration) error {
	fldErrs := make(map[string]string)
	if err := reg.School.Validate(); err != nil {
		errs := core.FieldErrors(err)
		if errs == nil {
			return errors.Wrap(err, "validating school")
		}
		fldErrs = errs
	}
	if reg.Admin != nil {
		if err := core.Validate.Struct(reg.Admin); err != nil {
			errs := core.FieldErrors(err)
			if errs == nil {
				return errors.Wrap(err, "validating admin identity")
			}
			for fld, msg := range errs {
				fldErrs[AdminFieldPrefix+fld] = msg
			}
		}
	}
	if reg.RegistrationProof.IsZero() {
		fldErrs["registrationProof"] = requiredText
	} else if msg := reg.RegistrationProof.Message(svc.maxUploadSize); msg != "" {
		fldErrs["registrationProof"] = msg
	}
	if reg.Logo != nil {
		if msg := reg.Logo.Message(svc.maxUploadSize); msg != "" {
			fldErrs["logo"] = msg
		}
	}
	return core.ValidationErrorFromMap(fldErrs)
}

// Register creates a school administered by `admin`, who gets the admin roles.
func (svc *Service) Register(ctx context.Context, admin user.User, reg Registration) (School, error) {
	reg.School.Clean()
	if reg.Admin != nil {
		reg.Admin.Clean()
	}
	if err := svc.Validate(reg); err != nil {
		return School{}, err
	}
	if admin.SchoolID != nil {
		return School{}, ErrAdminHasSchool
	}
	if reg.Admin != nil {
		err := svc.users.CheckUniqueness(ctx, reg.Admin.Username, reg.Admin.Email, admin)
		if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
			for i := range vErr.Fields {
				vErr.Fields[i].Field = AdminFieldPrefix + vErr.Fields[i].Field
			}
		}
		if err != nil {
			return School{}, err
		}
	}

	proofURL, err := svc.files.Save(ctx, reg.RegistrationProof)
	if err != nil {
		return School{}, errors.Wrap(err, "saving registration proof")
	}
	var logoURL string
	// the saved files are removed when the school is not registered
	fail := func(err error) (School, error) {
		svc.deleteFiles(ctx, proofURL, logoURL)
		return School{}, err
	}
	if reg.Logo != nil {
		if logoURL, err = svc.files.Save(ctx, *reg.Logo); err != nil {
			return fail(errors.Wrap(err, "saving logo"))
		}
	}

	ns := reg.School.withDefaults()
	now := NowFunc().UTC()
	sch := School{
		ID:                 uuid.New().String(),
		Name:               ns.Name,
		RegistrationNumber: ns.RegistrationNumber,
		EstablishedYear:    ns.EstablishedYear,
		PrincipalName:      ns.PrincipalName,
		Email:              ns.Email,
		ContactNumber:      ns.ContactNumber,
		Address:            ns.Address,
		City:               ns.City,
		Website:            ns.Website,
		EducationLevel:     ns.EducationLevel,
		GenderType:         ns.GenderType,
		RegistrationProof:  proofURL,
		Logo:               logoURL,
		AdminID:            admin.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if reg.Admin != nil {
		if err := reg.Admin.Apply(&admin); err != nil {
			return fail(errors.Wrap(err, "applying admin identity"))
		}
	}
	admin.AddRoles(user.AdminRoles...)
	admin.SchoolID = &sch.ID
	admin.UpdatedAt = now

	for attempt := 1; ; attempt++ {
		if sch.Code, err = generateCode(); err != nil {
			return fail(errors.Wrap(err, "generating school code"))
		}
		created, err := svc.repo.RegisterSchool(ctx, sch, admin)
		if err == nil {
			sch = created
			break
		}
		switch errors.Cause(err) {
		case ErrCodeExists:
			if attempt < maxCodeAttempts {
				continue
			}
		case ErrRegistrationNumberExists:
			return fail(core.NewValidationError(err, core.FieldError{
				Field: "registrationNumber",
				Error: registrationNumberExistsText,
			}))
		case user.ErrUsernameExists, user.ErrEmailExists:
			return fail(user.UniquenessError(err))
		case ErrAdminHasSchool:
			return fail(err)
		}
		return fail(errors.Wrap(err, "registering school"))
	}

	svc.invalidateSearches(ctx)
	svc.sendRegisteredEmail(admin, sch, reg.RegistrationProof)
	return sch, nil
}

func (svc *Service) deleteFiles(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := svc.files.Delete(ctx, url); err != nil {
			svc.logger.Warn("deleting uploaded file", err, map[string]interface{}{"url": url})
		}
	}
}

// sendRegisteredEmail sends the school code to the admin, with a copy of the registration proof.
func (svc *Service) sendRegisteredEmail(admin user.User, sch School, proof upload.File) {
	if svc.mailSvc == nil {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: admin.Name, Address: admin.Email}},
		Subject:      "Your school is registered",
		TemplateName: "school_registered",
		TemplateData: struct{ Name, Code string }{sch.Name, sch.Code},
	}
	if err := msg.Attach(bytes.NewReader(proof.Bytes), "registration-proof"+proof.Ext(), proof.MIME()); err != nil {
		svc.logger.Warn("attaching registration proof", err)
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

// GetByCode finds a school by its join code, case-insensitively.
func (svc *Service) GetByCode(ctx context.Context, code string) (School, error) {
	code = strings.ToUpper(core.CleanString(code))
	if len(code) != CodeLength {
		return School{}, ErrNotFound
	}
	return svc.repo.GetSchoolByCode(ctx, code)
}

// Search returns the first SearchLimit schools whose name contains `query` (and city contains `city` when set).
// Identical concurrent searches share one repository call.
func (svc *Service) Search(ctx context.Context, query, city string) ([]School, error) {
	query, city = core.CleanString(query), core.CleanString(city)
	if query == "" {
		return nil, ErrQueryRequired
	}
	key := strings.ToLower(query) + "|" + strings.ToLower(city)

	if svc.cache != nil {
		schools, ok, err := svc.cache.GetSchools(ctx, key)
		if err != nil {
			svc.logger.Warn("reading school search cache", err)
		} else if ok {
			return schools, nil
		}
	}

	res, err, _ := svc.searches.Do(key, func() (interface{}, error) {
		schools, err := svc.repo.SearchSchools(ctx, query, city, SearchLimit)
		if err != nil {
			return nil, err
		}
		if svc.cache != nil {
			if err := svc.cache.SetSchools(ctx, key, schools); err != nil {
				svc.logger.Warn("writing school search cache", err)
			}
		}
		return schools, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "searching schools")
	}
	return res.([]School), nil
}

func (svc *Service) invalidateSearches(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.InvalidateSchools(ctx); err != nil {
		svc.logger.Warn("invalidating school search cache", err)
	}
}

func randomCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// Package onboarding implements the signup wizard of students and school admins:
// the accumulated form data, step navigation and validation, and the final submission.
package onboarding

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/upload"
)

type UserType string

const (
	Unset   UserType = ""
	Student UserType = "student"
	School  UserType = "school"

	StudentRedirect = "/dashboard"
	SchoolRedirect  = "/school/dashboard"

	schoolPrefix = "schoolData."
)

var (
	ErrNoUserType      = errors.New("user type not selected")
	ErrInvalidUserType = errors.New("invalid user type")
	ErrStepInvalid     = errors.New("current step has invalid fields")
	ErrSubmitting      = errors.New("a submission is in progress")
	ErrCompleted       = errors.New("onboarding already completed")
)

func ParseUserType(s string) (UserType, error) {
	switch t := UserType(strings.ToLower(strings.TrimSpace(s))); t {
	case Student, School:
		return t, nil
	}
	return Unset, ErrInvalidUserType
}

// Steps returns the number of steps of the path, 0 when unset.
func (t UserType) Steps() int {
	switch t {
	case Student:
		return 3
	case School:
		return 2
	}
	return 0
}

func (t UserType) Redirect() string {
	if t == School {
		return SchoolRedirect
	}
	return StudentRedirect
}

// ValidationErrors maps a field path to its error message. An empty map means success.
type ValidationErrors map[string]string

type (
	Identity struct {
		FullName         string `json:"fullName" validate:"required,max=100"`
		Username         string `json:"username" validate:"required,min=3,max=50,alphanum_"`
		Email            string `json:"email" validate:"required,email"`
		Password         string `json:"password" validate:"required,min=8"`
		ConfirmPassword  string `json:"confirmPassword" validate:"eqfield=Password"`
		DateOfBirth      string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
		Gender           string `json:"gender" validate:"required,oneof=male female other"`
		City             string `json:"city" validate:"required"`
		PhoneNumber      string `json:"phoneNumber" validate:"required,phone"`
		SecurityQuestion string `json:"securityQuestion"`
		SecurityAnswer   string `json:"securityAnswer"`
	}

	Education struct {
		EducationType string   `json:"educationType" validate:"required,oneof=matric o_level"`
		BoardID       string   `json:"boardId" validate:"required"`
		ClassGrade    string   `json:"classGrade" validate:"required"`
		SchoolType    string   `json:"schoolType" validate:"required,oneof=registered not_listed later"`
		SchoolID      string   `json:"schoolId"`
		SchoolName    string   `json:"schoolName"`
		Subjects      []string `json:"subjects"`
	}

	Profile struct {
		Picture   *upload.File `json:"profilePicture"`
		Bio       string       `json:"bio" validate:"max=500"`
		Interests []string     `json:"interests"`
	}

	SchoolInfo struct {
		school.NewSchool
		RegistrationProof *upload.File `json:"registrationProof"`
		Logo              *upload.File `json:"logo"`
	}

	// FormData accumulates the answers of every step.
	FormData struct {
		Identity  Identity
		Education Education
		Profile   Profile
		School    SchoolInfo
	}

	// Submitter sends the assembled payload, once per completed wizard.
	Submitter interface {
		Submit(ctx context.Context, p Payload) error
	}

	// Lookup serves the as-you-type checks of the wizard.
	Lookup interface {
		CheckUsername(ctx context.Context, username string) (bool, error)
		SearchSchools(ctx context.Context, query, city string) ([]school.School, error)
	}

	Deps struct {
		Submitter Submitter
		Lookup    Lookup
	}

	// Wizard holds the state of one onboarding session. It is driven by a single caller;
	// only the lookups and the busy flag are safe for concurrent use.
	Wizard struct {
		Step     int
		UserType UserType
		Data     FormData
		Errors   ValidationErrors
		Done     bool
		Redirect string

		submitter Submitter
		lookup    Lookup
		busy      atomic.Bool
		usernames Latest
		searches  Latest
	}
)

func New(t UserType, deps Deps) *Wizard {
	w := &Wizard{
		Step:      1,
		UserType:  t,
		Errors:    ValidationErrors{},
		submitter: deps.Submitter,
		lookup:    deps.Lookup,
	}
	w.Data.School.EducationLevel = reference.Both
	w.Data.School.GenderType = school.GenderCoEducation
	return w
}

// SetUserType chooses the signup path and restarts the wizard from its first step.
func (w *Wizard) SetUserType(t UserType) error {
	if t != Unset && t.Steps() == 0 {
		return ErrInvalidUserType
	}
	w.UserType = t
	w.Step = 1
	w.Errors = ValidationErrors{}
	return nil
}

func (w *Wizard) UpdateIdentity(fn func(*Identity)) {
	before := w.Data.Identity
	fn(&w.Data.Identity)
	w.clearChanged("", before, w.Data.Identity)
}

func (w *Wizard) UpdateEducation(fn func(*Education)) {
	before := w.Data.Education
	before.Subjects = append([]string(nil), before.Subjects...)
	fn(&w.Data.Education)
	w.clearChanged("", before, w.Data.Education)
}

func (w *Wizard) UpdateProfile(fn func(*Profile)) {
	before := w.Data.Profile
	before.Interests = append([]string(nil), before.Interests...)
	before.Picture = cloneFile(before.Picture)
	fn(&w.Data.Profile)
	w.clearChanged("", before, w.Data.Profile)
}

func (w *Wizard) UpdateSchool(fn func(*SchoolInfo)) {
	before := w.Data.School
	before.RegistrationProof = cloneFile(before.RegistrationProof)
	before.Logo = cloneFile(before.Logo)
	fn(&w.Data.School)
	w.clearChanged(schoolPrefix, before, w.Data.School)
}

// cloneFile copies `f` so that in-place edits of the original are seen as changes.
func cloneFile(f *upload.File) *upload.File {
	if f == nil {
		return nil
	}
	c := *f
	c.Bytes = append(f.Bytes[:0:0], f.Bytes...)
	return &c
}

// ToggleSubject adds the subject when missing, removes it otherwise.
func (w *Wizard) ToggleSubject(id string) {
	w.UpdateEducation(func(e *Education) {
		for i, s := range e.Subjects {
			if s == id {
				e.Subjects = append(e.Subjects[:i:i], e.Subjects[i+1:]...)
				return
			}
		}
		e.Subjects = append(e.Subjects, id)
	})
}

// clearChanged drops the errors of the fields that differ between `before` and `after`.
func (w *Wizard) clearChanged(prefix string, before, after interface{}) {
	if len(w.Errors) == 0 {
		return
	}
	for _, key := range changedFields(reflect.ValueOf(before), reflect.ValueOf(after)) {
		delete(w.Errors, prefix+key)
	}
}

// changedFields lists the JSON names of the fields that differ, embedded structs are flattened.
func changedFields(before, after reflect.Value) []string {
	var keys []string
	typ := before.Type()
	for i := 0; i < typ.NumField(); i++ {
		fld := typ.Field(i)
		if fld.Anonymous && fld.Type.Kind() == reflect.Struct {
			keys = append(keys, changedFields(before.Field(i), after.Field(i))...)
			continue
		}
		if !reflect.DeepEqual(before.Field(i).Interface(), after.Field(i).Interface()) {
			keys = append(keys, strings.SplitN(fld.Tag.Get("json"), ",", 2)[0])
		}
	}
	return keys
}

// Retreat goes back one step, without validation. It never goes below the first step.
func (w *Wizard) Retreat() {
	if w.Step > 1 {
		w.Step--
		w.Errors = ValidationErrors{}
	}
}

// Advance validates the current step and moves to the next one.
// On the last step, the form data is submitted instead: the wizard is Done on success,
// and left untouched on failure so that the submission can be retried.
func (w *Wizard) Advance(ctx context.Context) error {
	if w.UserType == Unset {
		return ErrNoUserType
	}
	if w.Done {
		return ErrCompleted
	}
	if !w.busy.CompareAndSwap(false, true) {
		return ErrSubmitting
	}
	defer w.busy.Store(false)

	if errs := Validate(w.UserType, w.Step, w.Data); len(errs) > 0 {
		w.Errors = errs
		return ErrStepInvalid
	}
	if w.Step < w.UserType.Steps() {
		w.Step++
		w.Errors = ValidationErrors{}
		return nil
	}

	payload, err := Assemble(w.UserType, w.Data)
	if err != nil {
		return errors.Wrap(err, "assembling payload")
	}
	if err := w.submitter.Submit(ctx, payload); err != nil {
		return errors.Wrap(err, "submitting onboarding")
	}
	w.Errors = ValidationErrors{}
	w.Done = true
	w.Redirect = w.UserType.Redirect()
	return nil
}

// Submitting reports whether an Advance is running.
func (w *Wizard) Submitting() bool {
	return w.busy.Load()
}

// CheckUsername reports whether `username` is available. ErrStale is returned when a newer check was issued meanwhile.
func (w *Wizard) CheckUsername(ctx context.Context, username string) (bool, error) {
	ticket := w.usernames.Begin()
	available, err := w.lookup.CheckUsername(ctx, username)
	if !w.usernames.Current(ticket) {
		return false, ErrStale
	}
	return available, err
}

// SearchSchools searches the registered schools. ErrStale is returned when a newer search was issued meanwhile.
func (w *Wizard) SearchSchools(ctx context.Context, query, city string) ([]school.School, error) {
	ticket := w.searches.Begin()
	schools, err := w.lookup.SearchSchools(ctx, query, city)
	if !w.searches.Current(ticket) {
		return nil, ErrStale
	}
	return schools, err
}

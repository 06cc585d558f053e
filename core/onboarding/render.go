package onboarding

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/upload"
)

type FieldKind string

const (
	KindText        FieldKind = "text"
	KindEmail       FieldKind = "email"
	KindPassword    FieldKind = "password"
	KindDate        FieldKind = "date"
	KindNumber      FieldKind = "number"
	KindSelect      FieldKind = "select"
	KindMultiSelect FieldKind = "multiselect"
	KindFile        FieldKind = "file"
	KindTextarea    FieldKind = "textarea"
)

// Option sources of the select fields whose choices come from the API.
const (
	SourceBoards      = "boards"
	SourceGradeLevels = "gradeLevels"
	SourceSubjects    = "subjects"
	SourceSchools     = "schools"
)

var ErrUnknownField = errors.New("unknown field")

type (
	Option struct {
		Value string
		Label string
	}

	// Field describes an input shown on a step. Key is the path used by ValidationErrors.
	Field struct {
		Key      string
		Label    string
		Kind     FieldKind
		Required bool
		Options  []Option
		Source   string // dynamic options
		FileKind upload.Kind
	}

	stepKey struct {
		t    UserType
		step int
	}
)

var (
	identityFields = []Field{
		{Key: "fullName", Label: "Full name", Kind: KindText, Required: true},
		{Key: "username", Label: "Username", Kind: KindText, Required: true},
		{Key: "email", Label: "Email", Kind: KindEmail, Required: true},
		{Key: "password", Label: "Password", Kind: KindPassword, Required: true},
		{Key: "confirmPassword", Label: "Confirm password", Kind: KindPassword},
		{Key: "dateOfBirth", Label: "Date of birth (YYYY-MM-DD)", Kind: KindDate, Required: true},
		{Key: "gender", Label: "Gender", Kind: KindSelect, Required: true, Options: []Option{
			{"male", "Male"}, {"female", "Female"}, {"other", "Other"},
		}},
		{Key: "city", Label: "City", Kind: KindText, Required: true},
		{Key: "phoneNumber", Label: "Phone number", Kind: KindText, Required: true},
		{Key: "securityQuestion", Label: "Security question", Kind: KindText},
		{Key: "securityAnswer", Label: "Security answer", Kind: KindText},
	}

	stepFields = map[stepKey][]Field{
		{Student, 1}: identityFields,
		{Student, 2}: {
			{Key: "educationType", Label: "Education type", Kind: KindSelect, Required: true, Options: []Option{
				{"matric", "Matric"}, {"o_level", "O Level"},
			}},
			{Key: "boardId", Label: "Board", Kind: KindSelect, Required: true, Source: SourceBoards},
			{Key: "classGrade", Label: "Class / grade", Kind: KindSelect, Required: true, Source: SourceGradeLevels},
			{Key: "schoolType", Label: "School", Kind: KindSelect, Required: true, Options: []Option{
				{"registered", "My school is registered"},
				{"not_listed", "My school is not listed"},
				{"later", "I will add it later"},
			}},
			{Key: "schoolId", Label: "Registered school", Kind: KindSelect, Source: SourceSchools},
			{Key: "schoolName", Label: "School name", Kind: KindText},
		},
		{Student, 3}: {
			{Key: "subjects", Label: "Subjects", Kind: KindMultiSelect, Required: true, Source: SourceSubjects},
			{Key: "profilePicture", Label: "Profile picture", Kind: KindFile, FileKind: upload.KindImage},
			{Key: "bio", Label: "Bio", Kind: KindTextarea},
			{Key: "interests", Label: "Interests", Kind: KindMultiSelect},
		},
		{School, 1}: identityFields,
		{School, 2}: {
			{Key: "schoolData.name", Label: "School name", Kind: KindText, Required: true},
			{Key: "schoolData.registrationNumber", Label: "Registration number", Kind: KindText, Required: true},
			{Key: "schoolData.establishedYear", Label: "Established year", Kind: KindNumber},
			{Key: "schoolData.principalName", Label: "Principal name", Kind: KindText, Required: true},
			{Key: "schoolData.email", Label: "School email", Kind: KindEmail},
			{Key: "schoolData.contactNumber", Label: "Contact number", Kind: KindText, Required: true},
			{Key: "schoolData.address", Label: "Address", Kind: KindTextarea, Required: true},
			{Key: "schoolData.city", Label: "City", Kind: KindText},
			{Key: "schoolData.website", Label: "Website", Kind: KindText},
			{Key: "schoolData.educationLevel", Label: "Education level", Kind: KindSelect, Options: []Option{
				{"matric", "Matric"}, {"o_level", "O Level"}, {"both", "Both"},
			}},
			{Key: "schoolData.genderType", Label: "Gender type", Kind: KindSelect, Options: []Option{
				{"boys", "Boys"}, {"girls", "Girls"}, {"co_education", "Co-education"},
			}},
			{Key: "schoolData.registrationProof", Label: "Registration proof (PDF, JPEG or PNG)", Kind: KindFile,
				Required: true, FileKind: upload.KindDocument},
			{Key: "schoolData.logo", Label: "Logo", Kind: KindFile, FileKind: upload.KindImage},
		},
	}

	stepTitles = map[stepKey]string{
		{Student, 1}: "Basic information",
		{Student, 2}: "Education",
		{Student, 3}: "Subjects & profile",
		{School, 1}:  "Administrator account",
		{School, 2}:  "School information & documents",
	}
)

// Fields returns the inputs shown on `step` of the `t` path, nil for unknown steps.
func Fields(t UserType, step int) []Field {
	fields := stepFields[stepKey{t, step}]
	if fields == nil {
		return nil
	}
	return append([]Field{}, fields...)
}

func Title(t UserType, step int) string {
	return stepTitles[stepKey{t, step}]
}

// Set stores the text `value` of the field `key` through the matching updater.
// Multi-select values are comma separated; toggling a subject is done with ToggleSubject.
func (w *Wizard) Set(key, value string) error {
	if strings.HasPrefix(key, schoolPrefix) {
		return w.setSchool(strings.TrimPrefix(key, schoolPrefix), value)
	}

	switch key {
	case "fullName", "username", "email", "password", "confirmPassword", "dateOfBirth", "gender", "city",
		"phoneNumber", "securityQuestion", "securityAnswer":
		w.UpdateIdentity(func(id *Identity) {
			switch key {
			case "fullName":
				id.FullName = value
			case "username":
				id.Username = value
			case "email":
				id.Email = value
			case "password":
				id.Password = value
			case "confirmPassword":
				id.ConfirmPassword = value
			case "dateOfBirth":
				id.DateOfBirth = value
			case "gender":
				id.Gender = value
			case "city":
				id.City = value
			case "phoneNumber":
				id.PhoneNumber = value
			case "securityQuestion":
				id.SecurityQuestion = value
			case "securityAnswer":
				id.SecurityAnswer = value
			}
		})
	case "educationType", "boardId", "classGrade", "schoolType", "schoolId", "schoolName", "subjects":
		w.UpdateEducation(func(e *Education) {
			switch key {
			case "educationType":
				e.EducationType = value
			case "boardId":
				e.BoardID = value
			case "classGrade":
				e.ClassGrade = value
			case "schoolType":
				e.SchoolType = value
			case "schoolId":
				e.SchoolID = value
			case "schoolName":
				e.SchoolName = value
			case "subjects":
				e.Subjects = splitList(value)
			}
		})
	case "bio", "interests":
		w.UpdateProfile(func(p *Profile) {
			if key == "bio" {
				p.Bio = value
			} else {
				p.Interests = splitList(value)
			}
		})
	default:
		return errors.Wrap(ErrUnknownField, key)
	}
	return nil
}

func (w *Wizard) setSchool(key, value string) error {
	var year int
	if key == "establishedYear" && value != "" {
		var err error
		if year, err = strconv.Atoi(value); err != nil {
			return errors.Wrap(err, "parsing established year")
		}
	}

	known := true
	w.UpdateSchool(func(s *SchoolInfo) {
		switch key {
		case "name":
			s.Name = value
		case "registrationNumber":
			s.RegistrationNumber = value
		case "establishedYear":
			s.EstablishedYear = year
		case "principalName":
			s.PrincipalName = value
		case "email":
			s.Email = value
		case "contactNumber":
			s.ContactNumber = value
		case "address":
			s.Address = value
		case "city":
			s.City = value
		case "website":
			s.Website = value
		case "educationLevel":
			s.EducationLevel = value
		case "genderType":
			s.GenderType = value
		default:
			known = false
		}
	})
	if !known {
		return errors.Wrap(ErrUnknownField, schoolPrefix+key)
	}
	return nil
}

// SetFile attaches `f` to the file field `key`, a nil file removes it.
func (w *Wizard) SetFile(key string, f *upload.File) error {
	switch key {
	case "profilePicture":
		w.UpdateProfile(func(p *Profile) { p.Picture = f })
	case schoolPrefix + "registrationProof":
		w.UpdateSchool(func(s *SchoolInfo) { s.RegistrationProof = f })
	case schoolPrefix + "logo":
		w.UpdateSchool(func(s *SchoolInfo) { s.Logo = f })
	default:
		return errors.Wrap(ErrUnknownField, key)
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

package onboarding

import (
	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/upload"
)

var (
	requiredText        = "This field is required"
	subjectsMinText     = "Select at least one subject"
	MaxUploadSize int64 = upload.DefaultMaxSize
)

// Validate returns the errors of the fields shown on `step` of the `t` path.
func Validate(t UserType, step int, data FormData) ValidationErrors {
	switch {
	case step == 1 && t.Steps() > 0:
		return validateIdentity(data.Identity)
	case t == Student && step == 2:
		return validateEducation(data.Education)
	case t == Student && step == 3:
		return validateSubjectsAndProfile(data.Education, data.Profile)
	case t == School && step == 2:
		return validateSchool(data.School)
	}
	return ValidationErrors{}
}

func validateIdentity(id Identity) ValidationErrors {
	return structErrors(id)
}

func validateEducation(edu Education) ValidationErrors {
	errs := structErrors(edu)
	switch edu.SchoolType {
	case "registered":
		if edu.SchoolID == "" {
			errs["schoolId"] = requiredText
		}
	case "not_listed":
		if edu.SchoolName == "" {
			errs["schoolName"] = requiredText
		}
	}
	return errs
}

func validateSubjectsAndProfile(edu Education, prof Profile) ValidationErrors {
	errs := structErrors(prof)
	if len(edu.Subjects) == 0 {
		errs["subjects"] = subjectsMinText
	}
	if msg := fileMessage(prof.Picture, upload.KindImage); msg != "" {
		errs["profilePicture"] = msg
	}
	return errs
}

func validateSchool(info SchoolInfo) ValidationErrors {
	errs := ValidationErrors{}
	for fld, msg := range structErrors(info.NewSchool) {
		errs[schoolPrefix+fld] = msg
	}
	if info.RegistrationProof == nil {
		errs[schoolPrefix+"registrationProof"] = requiredText
	} else if msg := fileMessage(info.RegistrationProof, upload.KindDocument); msg != "" {
		errs[schoolPrefix+"registrationProof"] = msg
	}
	if msg := fileMessage(info.Logo, upload.KindImage); msg != "" {
		errs[schoolPrefix+"logo"] = msg
	}
	return errs
}

// fileMessage validates an optional file as `kind`, whatever kind it was created with.
func fileMessage(f *upload.File, kind upload.Kind) string {
	if f == nil {
		return ""
	}
	file := *f
	file.Kind = kind
	return file.Message(MaxUploadSize)
}

func structErrors(s interface{}) ValidationErrors {
	errs := ValidationErrors{}
	if err := core.Validate.Struct(s); err != nil {
		for fld, msg := range core.FieldErrors(err) {
			errs[fld] = msg
		}
	}
	return errs
}

package student

import (
	"time"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/user"
)

// School types
const (
	SchoolRegistered = "registered"
	SchoolNotListed  = "not_listed"
	SchoolLater      = "later"
)

// Profile is the education profile of a student. Its ID is the student's user ID.
type Profile struct {
	ID            string    `json:"id" db:"id"`
	EducationType string    `json:"educationType" db:"education_type"`
	BoardID       string    `json:"boardId" db:"board_id"`
	ClassGrade    string    `json:"classGrade" db:"class_grade"`
	SchoolType    string    `json:"schoolType" db:"school_type"`
	SchoolID      *string   `json:"schoolId,omitempty" db:"school_id"`
	SchoolName    string    `json:"schoolName,omitempty" db:"school_name"`
	Subjects      []string  `json:"subjects" db:"-"`
	Bio           string    `json:"bio,omitempty" db:"-"`
	Interests     []string  `json:"interests,omitempty" db:"-"`
	AvatarURL     string    `json:"avatarUrl,omitempty" db:"-"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"` // UTC
}

// WithUser copies the profile fields stored on the user.
func (p Profile) WithUser(usr user.User) Profile {
	p.Bio = usr.Bio
	p.Interests = usr.Interests
	p.AvatarURL = usr.AvatarURL
	return p
}

// CompleteProfile contains the information collected by the student onboarding.
type CompleteProfile struct {
	user.Identity

	EducationType string   `json:"educationType" form:"educationType" validate:"required,oneof=matric o_level"`
	BoardID       string   `json:"boardId" form:"boardId" validate:"required"`
	ClassGrade    string   `json:"classGrade" form:"classGrade" validate:"required"`
	SchoolType    string   `json:"schoolType" form:"schoolType" validate:"required,oneof=registered not_listed later"`
	SchoolID      string   `json:"schoolId,omitempty" form:"schoolId"`
	SchoolName    string   `json:"schoolName,omitempty" form:"schoolName" validate:"max=255"`
	Subjects      []string `json:"subjects" form:"subjects"`
}

func (cp *CompleteProfile) Clean() {
	cp.Identity.Clean()
	cp.EducationType = core.CleanString(cp.EducationType, true /* lower */)
	cp.BoardID = core.CleanString(cp.BoardID, true /* lower */)
	cp.ClassGrade = core.CleanString(cp.ClassGrade, true /* lower */)
	cp.SchoolType = core.CleanString(cp.SchoolType, true /* lower */)
	cp.SchoolID = core.CleanString(cp.SchoolID)
	cp.SchoolName = core.CleanString(cp.SchoolName)
	cp.Subjects = core.CleanStrings(cp.Subjects)

	switch cp.SchoolType {
	case SchoolRegistered:
		cp.SchoolName = ""
	case SchoolNotListed:
		cp.SchoolID = ""
	case SchoolLater:
		cp.SchoolID, cp.SchoolName = "", ""
	}
}

func (cp CompleteProfile) Validate() error {
	return core.Validate.Struct(cp)
}

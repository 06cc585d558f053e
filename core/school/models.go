package school

import (
	"time"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/reference"
)

// Gender types
const (
	GenderBoys        = "boys"
	GenderGirls       = "girls"
	GenderCoEducation = "co_education"
)

type School struct {
	ID                 string    `json:"id" db:"id"`
	Code               string    `json:"code" db:"code"` // students join a school with it
	Name               string    `json:"name" db:"name"`
	RegistrationNumber string    `json:"registrationNumber" db:"registration_number"`
	EstablishedYear    int       `json:"establishedYear,omitempty" db:"established_year"`
	PrincipalName      string    `json:"principalName" db:"principal_name"`
	Email              string    `json:"email,omitempty" db:"email"`
	ContactNumber      string    `json:"contactNumber" db:"contact_number"`
	Address            string    `json:"address" db:"address"`
	City               string    `json:"city,omitempty" db:"city"`
	Website            string    `json:"website,omitempty" db:"website"`
	EducationLevel     string    `json:"educationLevel" db:"education_level"`
	GenderType         string    `json:"genderType" db:"gender_type"`
	RegistrationProof  string    `json:"registrationProof" db:"registration_proof"` // URL
	Logo               string    `json:"logo,omitempty" db:"logo"`                  // URL
	AdminID            string    `json:"adminId" db:"admin_id"`
	IsVerified         bool      `json:"isVerified" db:"is_verified"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"` // UTC
}

// NewSchool contains the information needed to register a School.
type NewSchool struct {
	Name               string `json:"name" form:"name" validate:"required,min=3,max=255"`
	RegistrationNumber string `json:"registrationNumber" form:"registrationNumber" validate:"required,min=3,max=50"`
	EstablishedYear    int    `json:"establishedYear,omitempty" form:"establishedYear" validate:"omitempty,min=1900"`
	PrincipalName      string `json:"principalName" form:"principalName" validate:"required,max=100"`
	Email              string `json:"email,omitempty" form:"email" validate:"omitempty,email"`
	ContactNumber      string `json:"contactNumber" form:"contactNumber" validate:"required,phone"`
	Address            string `json:"address" form:"address" validate:"required,min=5"`
	City               string `json:"city,omitempty" form:"city" validate:"max=100"`
	Website            string `json:"website,omitempty" form:"website" validate:"omitempty,url"`
	EducationLevel     string `json:"educationLevel,omitempty" form:"educationLevel" validate:"omitempty,oneof=matric o_level both"`
	GenderType         string `json:"genderType,omitempty" form:"genderType" validate:"omitempty,oneof=boys girls co_education"`
}

func (ns *NewSchool) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.RegistrationNumber = core.CleanString(ns.RegistrationNumber)
	ns.PrincipalName = core.CleanString(ns.PrincipalName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.ContactNumber = core.CleanString(ns.ContactNumber)
	ns.Address = core.CleanString(ns.Address)
	ns.City = core.CleanString(ns.City)
	ns.Website = core.CleanString(ns.Website)
	ns.EducationLevel = core.CleanString(ns.EducationLevel, true /* lower */)
	ns.GenderType = core.CleanString(ns.GenderType, true /* lower */)
}

func (ns NewSchool) Validate() error {
	return core.Validate.Struct(ns)
}

// withDefaults fills the classification the same way the registration form does.
func (ns NewSchool) withDefaults() NewSchool {
	if ns.EducationLevel == "" {
		ns.EducationLevel = reference.Both
	}
	if ns.GenderType == "" {
		ns.GenderType = GenderCoEducation
	}
	return ns
}

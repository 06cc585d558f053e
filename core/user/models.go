package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/studentpakistan/backend/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner" // registered a school

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner}
	StudentRoles = []string{RoleStudent}
	AllRoles     = append(append([]string{}, AdminRoles...), StudentRoles...)
)

// Genders accepted on profiles.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

type User struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone,omitempty"`
	City               string     `json:"city,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	DateOfBirth        *time.Time `json:"dateOfBirth,omitempty"`
	SecurityQuestion   string     `json:"-"`
	SecurityAnswerHash []byte     `json:"-"`
	Bio                string     `json:"bio,omitempty"`
	Interests          []string   `json:"interests,omitempty"`
	AvatarURL          string     `json:"avatarUrl,omitempty"`
	SchoolID           *string    `json:"schoolId,omitempty"`
	IsActive           bool       `json:"isActive"`
	Roles              []string   `json:"roles"`
	PasswordHash       []byte     `json:"-"`
	CreatedAt          time.Time  `json:"createdAt"` // UTC
	UpdatedAt          time.Time  `json:"updatedAt"` // UTC
	LastLogin          *time.Time `json:"lastLogin,omitempty"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// SetSecurityAnswer hashes the answer to the security question; answers are compared case-insensitively.
func (u *User) SetSecurityAnswer(question, answer string) error {
	question, answer = core.CleanString(question), core.CleanString(answer, true /* lower */)
	if question == "" || answer == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(answer), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.SecurityQuestion = question
	u.SecurityAnswerHash = hash
	return nil
}

// CheckSecurityAnswer compares `answer` with the stored one, ignoring case and surrounding spaces.
func (u *User) CheckSecurityAnswer(answer string) error {
	if len(u.SecurityAnswerHash) == 0 {
		return ErrNoSecurityQuestion
	}
	return bcrypt.CompareHashAndPassword(u.SecurityAnswerHash, []byte(core.CleanString(answer, true /* lower */)))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AddRoles appends the roles the user does not have yet.
func (u *User) AddRoles(roles ...string) {
	for _, role := range roles {
		if !u.HasRole(role) {
			u.Roles = append(u.Roles, role)
		}
	}
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"fullName" validate:"required,max=100"`
	Username        string `json:"username" validate:"required,min=3,max=50,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"confirmPassword" validate:"omitempty,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

// Identity holds the account fields collected on the first onboarding step.
// Empty optional fields leave the current values untouched.
type Identity struct {
	Name             string   `json:"fullName" form:"fullName" validate:"required,max=100"`
	Username         string   `json:"username" form:"username" validate:"required,min=3,max=50,alphanum_"`
	Email            string   `json:"email" form:"email" validate:"required,email"`
	Password         string   `json:"password,omitempty" form:"password" validate:"omitempty,min=8"`
	DateOfBirth      string   `json:"dateOfBirth" form:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Gender           string   `json:"gender" form:"gender" validate:"required,oneof=male female other"`
	City             string   `json:"city" form:"city" validate:"required,max=100"`
	Phone            string   `json:"phoneNumber" form:"phoneNumber" validate:"required,phone"`
	SecurityQuestion string   `json:"securityQuestion,omitempty" form:"securityQuestion" validate:"required_with=SecurityAnswer"`
	SecurityAnswer   string   `json:"securityAnswer,omitempty" form:"securityAnswer" validate:"required_with=SecurityQuestion"`
	Bio              string   `json:"bio,omitempty" form:"bio" validate:"max=500"`
	Interests        []string `json:"interests,omitempty" form:"interests"`
}

func (id *Identity) Clean() {
	id.Name = core.CleanString(id.Name)
	id.Username = core.CleanString(id.Username, true /* lower */)
	id.Email = core.CleanString(id.Email, true /* lower */)
	id.DateOfBirth = core.CleanString(id.DateOfBirth)
	id.Gender = core.CleanString(id.Gender, true /* lower */)
	id.City = core.CleanString(id.City)
	id.Phone = core.CleanString(id.Phone)
	id.SecurityQuestion = core.CleanString(id.SecurityQuestion)
	id.Bio = core.CleanString(id.Bio)
	id.Interests = core.CleanStrings(id.Interests)
}

// Apply copies the identity onto `usr`, hashing the password and security answer when set.
func (id Identity) Apply(usr *User) error {
	usr.Name = id.Name
	usr.Username = id.Username
	usr.Email = id.Email
	usr.Gender = id.Gender
	usr.City = id.City
	usr.Phone = id.Phone
	if id.Bio != "" {
		usr.Bio = id.Bio
	}
	if len(id.Interests) > 0 {
		usr.Interests = id.Interests
	}
	if dob, err := time.Parse("2006-01-02", id.DateOfBirth); err == nil {
		dob = dob.UTC()
		usr.DateOfBirth = &dob
	}
	if id.Password != "" {
		if err := usr.SetPassword(id.Password); err != nil {
			return err
		}
	}
	return usr.SetSecurityAnswer(id.SecurityQuestion, id.SecurityAnswer)
}

// ResetPassword resets a forgotten password with the answer to the security question.
type ResetPassword struct {
	Username        string `json:"username" validate:"required"`
	SecurityAnswer  string `json:"securityAnswer" validate:"required"`
	Password        string `json:"newPassword" validate:"required"`
	PasswordConfirm string `json:"confirmNewPassword" validate:"required,eqfield=Password"`
}

func (rp ResetPassword) Validate() error {
	return core.Validate.Struct(rp)
}

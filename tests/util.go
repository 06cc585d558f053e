package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/user"
)

// Files content, sniffed as PNG and PDF.
var (
	PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	PDF = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateSchool stores a verified-looking school administered by `admin`.
func CreateSchool(t *testing.T, repo school.Repository, admin user.User, name, regNumber, city, code string) school.School {
	now := time.Now().UTC()
	sch := school.School{
		ID:                 uuid.New().String(),
		Code:               code,
		Name:               name,
		RegistrationNumber: regNumber,
		PrincipalName:      "Principal " + name,
		ContactNumber:      "+923001234567",
		Address:            "1 Mall Road, " + city,
		City:               city,
		EducationLevel:     "both",
		GenderType:         school.GenderCoEducation,
		RegistrationProof:  "http://localhost/uploads/" + code + ".pdf",
		AdminID:            admin.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	admin.AddRoles(user.AdminRoles...)
	admin.SchoolID = &sch.ID

	sch, err := repo.RegisterSchool(context.Background(), sch, admin)
	if err != nil {
		t.Fatalf("createSchool() failed: %v", err)
	}
	return sch
}

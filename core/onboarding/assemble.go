package onboarding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/upload"
	"github.com/studentpakistan/backend/core/user"
)

const (
	StudentProfilePath = "/api/onboarding/student/profile"
	SchoolRegisterPath = "/api/onboarding/school/register"

	ContentTypeJSON = "application/json"

	ProfileImageField      = "profileImage"
	RegistrationProofField = "registrationProof"
	LogoField              = "logo"
)

var (
	ErrMissingRegistrationProof = errors.New("registration proof is required")

	quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
)

// Payload is the request body of a completed wizard.
type Payload struct {
	Path        string
	contentType string
	body        []byte
}

func (p Payload) ContentType() string {
	return p.contentType
}

func (p Payload) Body() (io.Reader, error) {
	return bytes.NewReader(p.body), nil
}

func (p Payload) IsMultipart() bool {
	return p.contentType != ContentTypeJSON
}

// Assemble packages the form data of the `t` path into one payload.
// The student payload is JSON unless a picture is attached, the school payload is always multipart.
func Assemble(t UserType, data FormData) (Payload, error) {
	switch t {
	case Student:
		return assembleStudent(data)
	case School:
		return assembleSchool(data)
	}
	return Payload{}, ErrNoUserType
}

func studentProfile(data FormData) student.CompleteProfile {
	return student.CompleteProfile{
		Identity:      userIdentity(data.Identity, data.Profile),
		EducationType: data.Education.EducationType,
		BoardID:       data.Education.BoardID,
		ClassGrade:    data.Education.ClassGrade,
		SchoolType:    data.Education.SchoolType,
		SchoolID:      data.Education.SchoolID,
		SchoolName:    data.Education.SchoolName,
		Subjects:      data.Education.Subjects,
	}
}

func userIdentity(id Identity, prof Profile) user.Identity {
	return user.Identity{
		Name:             id.FullName,
		Username:         id.Username,
		Email:            id.Email,
		Password:         id.Password,
		DateOfBirth:      id.DateOfBirth,
		Gender:           id.Gender,
		City:             id.City,
		Phone:            id.PhoneNumber,
		SecurityQuestion: id.SecurityQuestion,
		SecurityAnswer:   id.SecurityAnswer,
		Bio:              prof.Bio,
		Interests:        prof.Interests,
	}
}

func assembleStudent(data FormData) (Payload, error) {
	cp := studentProfile(data)
	if data.Profile.Picture == nil {
		body, err := json.Marshal(cp)
		if err != nil {
			return Payload{}, errors.Wrap(err, "marshalling student profile")
		}
		return Payload{Path: StudentProfilePath, contentType: ContentTypeJSON, body: body}, nil
	}

	fw := newFormWriter()
	fw.identity("", cp.Identity)
	fw.field("educationType", cp.EducationType)
	fw.field("boardId", cp.BoardID)
	fw.field("classGrade", cp.ClassGrade)
	fw.field("schoolType", cp.SchoolType)
	fw.field("schoolId", cp.SchoolID)
	fw.field("schoolName", cp.SchoolName)
	fw.list("subjects", cp.Subjects)
	fw.file(ProfileImageField, *data.Profile.Picture)
	return fw.payload(StudentProfilePath)
}

func assembleSchool(data FormData) (Payload, error) {
	info := data.School
	if info.RegistrationProof == nil {
		return Payload{}, ErrMissingRegistrationProof
	}

	fw := newFormWriter()
	ns := info.NewSchool
	fw.field("name", ns.Name)
	fw.field("registrationNumber", ns.RegistrationNumber)
	if ns.EstablishedYear > 0 {
		fw.field("establishedYear", strconv.Itoa(ns.EstablishedYear))
	}
	fw.field("principalName", ns.PrincipalName)
	fw.field("email", ns.Email)
	fw.field("contactNumber", ns.ContactNumber)
	fw.field("address", ns.Address)
	fw.field("city", ns.City)
	fw.field("website", ns.Website)
	fw.field("educationLevel", ns.EducationLevel)
	fw.field("genderType", ns.GenderType)
	fw.identity(school.AdminFieldPrefix, userIdentity(data.Identity, Profile{}))
	fw.file(RegistrationProofField, *info.RegistrationProof)
	if info.Logo != nil {
		fw.file(LogoField, *info.Logo)
	}
	return fw.payload(SchoolRegisterPath)
}

// formWriter writes a multipart body, keeping the first error.
type formWriter struct {
	buf bytes.Buffer
	mw  *multipart.Writer
	err error
}

func newFormWriter() *formWriter {
	fw := new(formWriter)
	fw.mw = multipart.NewWriter(&fw.buf)
	return fw
}

// field skips empty values.
func (fw *formWriter) field(name, value string) {
	if fw.err != nil || value == "" {
		return
	}
	fw.err = fw.mw.WriteField(name, value)
}

func (fw *formWriter) list(name string, values []string) {
	for _, v := range values {
		fw.field(name, v)
	}
}

func (fw *formWriter) identity(prefix string, id user.Identity) {
	fw.field(prefix+"fullName", id.Name)
	fw.field(prefix+"username", id.Username)
	fw.field(prefix+"email", id.Email)
	fw.field(prefix+"password", id.Password)
	fw.field(prefix+"dateOfBirth", id.DateOfBirth)
	fw.field(prefix+"gender", id.Gender)
	fw.field(prefix+"city", id.City)
	fw.field(prefix+"phoneNumber", id.Phone)
	fw.field(prefix+"securityQuestion", id.SecurityQuestion)
	fw.field(prefix+"securityAnswer", id.SecurityAnswer)
	fw.field(prefix+"bio", id.Bio)
	fw.list(prefix+"interests", id.Interests)
}

func (fw *formWriter) file(name string, f upload.File) {
	if fw.err != nil {
		return
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(f.Filename)))
	h.Set("Content-Type", f.MIME())
	part, err := fw.mw.CreatePart(h)
	if err != nil {
		fw.err = err
		return
	}
	_, fw.err = part.Write(f.Bytes)
}

func (fw *formWriter) payload(path string) (Payload, error) {
	if fw.err == nil {
		fw.err = fw.mw.Close()
	}
	if fw.err != nil {
		return Payload{}, errors.Wrap(fw.err, "writing multipart body")
	}
	return Payload{Path: path, contentType: fw.mw.FormDataContentType(), body: fw.buf.Bytes()}, nil
}

package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("username already exists")

	ErrNoSecurityQuestion  = errors.New("no security question set")
	ErrWrongSecurityAnswer = errors.New("wrong answer to the security question")

	usernameExistsText = "Username already exists"
	emailExistsText    = "Email already exists"
	wrongAnswerText    = "Incorrect answer"
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another user holds them.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc}
}

// CheckUniqueness returns a *core.ValidationError keyed by the conflicting field.
func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	return UniquenessError(svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...))
}

// UniquenessError converts ErrUsernameExists / ErrEmailExists into field validation errors.
func UniquenessError(err error) error {
	if err == nil {
		return nil
	}
	var fErr core.FieldError
	switch errors.Cause(err) {
	case ErrUsernameExists:
		fErr = core.FieldError{Field: "username", Error: usernameExistsText}
	case ErrEmailExists:
		fErr = core.FieldError{Field: "email", Error: emailExistsText}
	default:
		return err
	}
	return core.NewValidationError(err, fErr)
}

func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.CheckUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(UniquenessError(err), "creating user")
	}

	svc.sendWelcomeEmail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeEmail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: struct{ Name, Username string }{usr.Name, usr.Username},
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

// IsUsernameAvailable reports whether no user holds `uname`.
func (svc *Service) IsUsernameAvailable(ctx context.Context, uname string) (bool, error) {
	_, err := svc.GetByUsername(ctx, uname)
	switch errors.Cause(err) {
	case nil:
		return false, nil
	case ErrNotFound:
		return true, nil
	default:
		return false, errors.Wrap(err, "finding user by username")
	}
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := NowFunc().UTC()
	usr.LastLogin = &now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SecurityQuestion returns the security question of an active user.
func (svc *Service) SecurityQuestion(ctx context.Context, uname string) (string, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return "", err
	}
	if !usr.IsActive || usr.SecurityQuestion == "" {
		return "", ErrNoSecurityQuestion
	}
	return usr.SecurityQuestion, nil
}

// ResetPassword sets a new password once the security question is correctly answered.
func (svc *Service) ResetPassword(ctx context.Context, data ResetPassword) error {
	if err := data.Validate(); err != nil {
		return err
	}
	usr, err := svc.GetByUsernameOrEmail(ctx, data.Username)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNoSecurityQuestion
	}
	if err := usr.CheckSecurityAnswer(data.SecurityAnswer); err != nil {
		if errors.Cause(err) == ErrNoSecurityQuestion {
			return err
		}
		return core.NewValidationError(ErrWrongSecurityAnswer, core.FieldError{
			Field: "securityAnswer",
			Error: wrongAnswerText,
		})
	}
	if err := ValidatePassword(data.Password, usr, "newPassword"); err != nil {
		return err
	}
	if usr, err = svc.SetPassword(ctx, usr, data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	svc.sendPasswordResetEmail(usr)
	return nil
}

func (svc *Service) sendPasswordResetEmail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your password was reset",
		TemplateName: "password_reset",
		TemplateData: struct{ Name, Username string }{usr.Name, usr.Username},
	})
}

// Save creates the user when it has no ID, updates it otherwise.
func (svc *Service) Save(ctx context.Context, usr User) (User, error) {
	now := NowFunc().UTC()
	usr.UpdatedAt = now
	if usr.ID == "" {
		usr.ID = uuid.New().String()
		usr.CreatedAt = now
		return svc.repo.CreateUser(ctx, usr)
	}
	return svc.repo.UpdateUser(ctx, usr)
}

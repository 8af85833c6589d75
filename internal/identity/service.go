package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
	pkg_hash "github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

// DemoOwnerEmail is the built-in owner account; it cannot be deleted.
const DemoOwnerEmail = "admin@easygames.com"

const minPasswordLen = 6

var (
	ErrValidation         = errors.New("validation")
	ErrNotFound           = errors.New("user not found")
	ErrUserExists         = errors.New("user already exist")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
)

type Service struct {
	Repo      *GormRepo
	JWTSecret []byte
	TokenTTL  time.Duration
}

type LoginResult struct {
	AccessToken string
	AccessExp   time.Time
	User        *models.User
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "identity.login")

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password required", ErrValidation)
	}

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	exp := time.Now().Add(ttl)
	token, err := tokens.NewAccessToken(s.JWTSecret, user.ID.String(), user.Role, exp)
	if err != nil {
		l.Error("login_error", "reason", "cannot sign token", "error", err)
		return nil, err
	}

	l.Info("login_success", "user_id", user.ID)
	return &LoginResult{AccessToken: token, AccessExp: exp, User: user}, nil
}

// Resolve looks the user up again so role changes and deletions take effect
// even while an older token is still valid.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (Actor, error) {
	if userID == uuid.Nil {
		return Actor{}, ErrNotFound
	}
	user, err := s.Repo.UserByID(ctx, userID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{UserID: user.ID, Role: user.Role}, nil
}

func (s *Service) CreateCustomer(ctx context.Context, email, password string) (*models.User, error) {
	return s.createUser(ctx, email, password, RoleCustomer)
}

// EnsureUser creates the account unless the email is taken. Used by seeding.
func (s *Service) EnsureUser(ctx context.Context, email, password, role string) error {
	_, err := s.createUser(ctx, email, password, role)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	return err
}

func (s *Service) createUser(ctx context.Context, email, password, role string) (*models.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if !KnownRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: email, PasswordHash: pwHash, Role: role}
	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.Repo.ListUsers(ctx)
}

func (s *Service) DeleteUser(ctx context.Context, actor Actor, id uuid.UUID) error {
	if actor.UserID == id {
		return fmt.Errorf("%w: you cannot delete your own account", ErrForbidden)
	}
	user, err := s.Repo.UserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Email == DemoOwnerEmail {
		return fmt.Errorf("%w: the built-in owner account cannot be deleted", ErrForbidden)
	}
	return s.Repo.DeleteUser(ctx, id)
}

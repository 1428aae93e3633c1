package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	devicedomain "github.com/micro-ha/ble-scanner/internal/domain/device"
	userdomain "github.com/micro-ha/ble-scanner/internal/domain/user"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 64
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

// Service implements user.Service use-cases.
type Service struct {
	repo   userdomain.Repository
	cost   int
	logger *slog.Logger
}

func New(repo userdomain.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cost: bcrypt.DefaultCost, logger: logger}
}

// CreateUser validates credentials and stores a bcrypt hash of the password.
func (s *Service) CreateUser(ctx context.Context, in userdomain.CreateInput) (userdomain.User, error) {
	username := strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return userdomain.User{}, &devicedomain.ValidationError{Field: "username", Reason: "must be 3 to 64 characters"}
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		return userdomain.User{}, &devicedomain.ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	if len(in.Password) > maxPasswordBytes {
		return userdomain.User{}, &devicedomain.ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return userdomain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.CreateUser(ctx, username, string(hash))
	if err != nil {
		return userdomain.User{}, err
	}
	s.logger.Info("user created", "id", u.ID, "username", u.Username)
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (userdomain.User, error) {
	return s.repo.FindUserByID(ctx, id)
}

// Authenticate checks a username and password pair.
func (s *Service) Authenticate(ctx context.Context, username, password string) (userdomain.User, error) {
	u, err := s.repo.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return userdomain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return userdomain.User{}, userdomain.ErrInvalidCredentials
	}
	return u, nil
}

package user

import (
	"context"
	"errors"

	"github.com/micro-ha/ble-scanner/internal/model"
)

var (
	// ErrUserNotFound indicates missing user by id.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates a duplicate username on create.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials indicates a username/password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a stored account.
type User = model.User

// CreateInput is API payload for POST /users.
type CreateInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Repository defines persistent storage operations for users.
type Repository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	FindUserByID(ctx context.Context, id int64) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
}

// Service exposes user use-cases.
type Service interface {
	CreateUser(ctx context.Context, in CreateInput) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	Authenticate(ctx context.Context, username, password string) (User, error)
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	userdomain "github.com/micro-ha/ble-scanner/internal/domain/user"
	"github.com/micro-ha/ble-scanner/internal/pkg/utils"
)

// UserRepository is sqlite implementation of user.Repository.
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, username, passwordHash string) (userdomain.User, error) {
	createdAt := utils.NowUTC()
	res, err := r.db.SQLDB().ExecContext(
		ctx,
		`INSERT INTO users(username, password_hash, created_at) VALUES (?, ?, ?)`,
		username,
		passwordHash,
		formatTime(createdAt),
	)
	if err != nil {
		if utils.IsUniqueConstraintError(err) {
			return userdomain.User{}, userdomain.ErrUsernameTaken
		}
		return userdomain.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return userdomain.User{}, err
	}
	return userdomain.User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: createdAt}, nil
}

func (r *UserRepository) FindUserByID(ctx context.Context, id int64) (userdomain.User, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindUserByUsername(ctx context.Context, username string) (userdomain.User, error) {
	return r.findOne(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
}

func (r *UserRepository) findOne(ctx context.Context, stmt string, arg any) (userdomain.User, error) {
	var (
		u         userdomain.User
		createdAt string
	)
	err := r.db.SQLDB().QueryRowContext(ctx, stmt, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return userdomain.User{}, userdomain.ErrUserNotFound
	}
	if err != nil {
		return userdomain.User{}, fmt.Errorf("find user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/campuspool/campuspool/internal/model"
	"github.com/campuspool/campuspool/internal/utils"
)

// UserRepo provides access to the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,role,full_name,phone,driver_verified,is_active,created_at,updated_at"

// Create inserts a user and returns its ID. Emails are normalized to lower
// case; duplicate emails map to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, password, role, fullName, phone string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, full_name, phone) VALUES (?,?,?,?,?)",
		email, hash, role, fullName, phone)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// SetDriverVerified flips the KYC flag once review clears the driver.
func (r *UserRepo) SetDriverVerified(ctx context.Context, id uint64, verified bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET driver_verified=?, updated_at=NOW() WHERE id=?", verified, id)
	return err
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var u model.User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FullName, &phone,
		&u.DriverVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if phone.Valid {
		u.Phone = phone.String
	}
	return u, err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"law_ledger_app_go/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 10

// dummyHash is compared against when the email is unknown so both paths cost one bcrypt check
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy_password_for_timing_mitigation"), BcryptCost)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike
var ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword verifies a password against a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateUserInput describes a new account
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// CreateUser registers an account with a hashed password
func CreateUser(db *gorm.DB, in CreateUserInput) (*models.User, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name, err := requiredText("name", in.Name, maxNameLength)
	if err != nil {
		return nil, err
	}
	if _, ok := models.ParseRole(string(in.Role)); !ok {
		return nil, validationError("unknown role %q", in.Role)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, validationError("email %s is already registered", email)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Role:     in.Role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate checks an email/password pair and records the login time
func Authenticate(ctx context.Context, db *gorm.DB, email, password string) (*models.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err = db.WithContext(ctx).Where("email = ? AND is_active = ?", normalized, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	db.WithContext(ctx).Model(&user).Update("last_login_at", now)

	return &user, nil
}

// GetUserByEmail looks up an active user
func GetUserByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	err := db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user %s", email)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

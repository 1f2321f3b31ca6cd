package services

import (
	"unicode"
)

// MinPasswordLength is the shortest password accepted for new accounts
const MinPasswordLength = 12

// ValidatePassword requires MinPasswordLength characters with upper, lower, digit and symbol classes
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return validationError("password must be at least %d characters long", MinPasswordLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return validationError("password must contain at least one uppercase letter")
	case !hasLower:
		return validationError("password must contain at least one lowercase letter")
	case !hasNumber:
		return validationError("password must contain at least one number")
	case !hasSpecial:
		return validationError("password must contain at least one special character")
	}
	return nil
}

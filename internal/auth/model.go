package auth

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
)

const (
	MaxLengthName     = 255
	MaxLengthEmail    = 255
	MaxPasswordLength = 72
	MinPasswordLength = 6
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9](\.?[a-zA-Z0-9_%+-])*@[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)

// Identity is the opaque view of the signed-in user handed to the finance core.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHashed string
	CreatedAt      time.Time
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}

type NewUser struct {
	Name          string
	Email         string
	PasswordPlain string
}

func (newUser NewUser) ValidateUserFields() error {
	if strings.TrimSpace(newUser.Name) == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Name cannot be empty!",
		}
	}
	if len(newUser.Name) > MaxLengthName {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Name so long, maximum length is %d", MaxLengthName),
		}
	}
	if newUser.Email == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Email cannot be empty!",
		}
	}
	if len(newUser.Email) > MaxLengthEmail {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Email so long, maximum length is %d", MaxLengthEmail),
		}
	}
	if !emailRegex.MatchString(newUser.Email) {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Invalid email format, example valid email: john.doe@gmail.com",
		}
	}
	if newUser.PasswordPlain == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Password cannot be empty!",
		}
	}
	if len(newUser.PasswordPlain) < MinPasswordLength {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Password so short, minimum length is %d", MinPasswordLength),
		}
	}
	if len(newUser.PasswordPlain) > MaxPasswordLength {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Password so long, maximum length is %d", MaxPasswordLength),
		}
	}
	return nil
}

type Session struct {
	ID        string
	Token     string
	CreatedAt time.Time
	ExpireAt  time.Time
	UserID    string
}

type UserCredentialsPure struct {
	Email         string
	PasswordPlain string
}

package customErrors

import (
	"errors"
	"fmt"
)

const (
	ErrNotFound     = "NOT FOUND"
	ErrInvalidInput = "INVALID INPUT"
	ErrAuth         = "UNAUTHORIZED"
	ErrAccessDenied = "ACCESS DENIED"
	ErrConflict     = "CONFLICT"
	ErrPersistence  = "PERSISTENCE"
	ErrConsistency  = "CONSISTENCY RECOVERY"
	ErrInternal     = "INTERNAL"
)

// Severities used by clients for transient notifications.
const (
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

type ErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
	Timeout  bool   `json:"timeout,omitempty"`
	Err      error  `json:"-"`
}

func (e ErrorResponse) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %s, message: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
}

func (e ErrorResponse) Unwrap() error {
	return e.Err
}

// Is reports a match when target is a bare sentinel (code only) with the same code.
func (e ErrorResponse) Is(target error) bool {
	t, ok := target.(ErrorResponse)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	NotFound         = ErrorResponse{Code: ErrNotFound}
	InvalidInput     = ErrorResponse{Code: ErrInvalidInput}
	NotAuthenticated = ErrorResponse{Code: ErrAuth}
	AccessDenied     = ErrorResponse{Code: ErrAccessDenied}
	Conflict         = ErrorResponse{Code: ErrConflict}
	Persistence      = ErrorResponse{Code: ErrPersistence}
	Consistency      = ErrorResponse{Code: ErrConsistency}
	Internal         = ErrorResponse{Code: ErrInternal}
)

// CodeOf returns the code of the first ErrorResponse in err's chain, or ErrInternal.
func CodeOf(err error) string {
	var appErr ErrorResponse
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// SeverityOf maps an error code to the notification severity shown to the user.
func SeverityOf(code string) string {
	switch code {
	case ErrInvalidInput, ErrConflict, ErrNotFound:
		return SeverityWarning
	default:
		return SeverityError
	}
}

package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"casedesk/api/internal/auth"
	"casedesk/api/internal/authpw"
	"casedesk/api/internal/casehistory"
	"casedesk/api/internal/export"
	"casedesk/api/internal/media"
	"casedesk/api/internal/search"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// FieldErrors maps a JSON field path to a message a form can show next to it.
type FieldErrors map[string]string

func validationFailed(fields FieldErrors) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", fields)
}

func fieldError(field, message string) *DomainError {
	return validationFailed(FieldErrors{field: message})
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("rgbhex", func(fl validator.FieldLevel) bool {
		return colorPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateInput runs struct validation and turns failures into a 422 with one
// message per field.
func (s *Service) validateInput(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return err
	}
	fields := make(FieldErrors, len(invalid))
	for _, fe := range invalid {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		if _, exists := fields[path]; !exists {
			fields[path] = validationMessage(fe)
		}
	}
	return validationFailed(fields)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "rgbhex":
		return "must be a color like #1A2B3C"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, casehistory.ErrNotFound) || errors.Is(err, media.ErrObjectNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}

	switch {
	case errors.Is(err, authpw.ErrMissingFields):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, authpw.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), FieldErrors{"password": err.Error()}
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrInvalidToken):
		return http.StatusBadRequest, "INVALID_TOKEN", err.Error(), nil
	case errors.Is(err, authpw.ErrInvalidCode):
		return http.StatusUnauthorized, "INVALID_CODE", err.Error(), nil
	case errors.Is(err, authpw.ErrTwoFactorEnabled),
		errors.Is(err, authpw.ErrTwoFactorNotStarted),
		errors.Is(err, authpw.ErrTwoFactorDisabled):
		return http.StatusConflict, "TWO_FACTOR_STATE", err.Error(), nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "INVALID_FORMAT", "format must be pdf or docx", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not available on this server", nil
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds the 25 MiB limit", nil
	case errors.Is(err, media.ErrEmptyFile):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", FieldErrors{"file": "must not be empty"}
	case errors.Is(err, search.ErrNoBackend):
		return http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search index is not available", nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return http.StatusConflict, "CONFLICT", "A record with the same value already exists", constraintDetails(pgErr)
		case "23503":
			return http.StatusConflict, "IN_USE", "The record is referenced by other records", nil
		}
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// constraintDetails names the field behind a unique violation when the
// constraint follows the <table>_<column>_key convention.
func constraintDetails(pgErr *pgconn.PgError) any {
	name := strings.TrimSuffix(pgErr.ConstraintName, "_key")
	if name == pgErr.ConstraintName || pgErr.TableName == "" {
		return nil
	}
	column := strings.TrimPrefix(name, pgErr.TableName+"_")
	if column == name || column == "" {
		return nil
	}
	return FieldErrors{snakeToCamel(column): "is already in use"}
}

func snakeToCamel(value string) string {
	parts := strings.Split(value, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

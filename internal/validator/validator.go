package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"async-import/internal/domain"
)

const (
	maxEntityLength = 100
	maxRemarkLength = 255
)

// Validator provides validation methods for import requests and imported records.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUser validates a User record. Roles are checked by the caller,
// which reports unknown roles as warnings.
func (v *Validator) ValidateUser(u *domain.User) error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Email,
			validation.Required.Error("email is required"),
			is.EmailFormat.Error("email is not a valid address"),
		),
		validation.Field(&u.Username,
			validation.Required.Error("username is required"),
			validation.RuneLength(3, 50).Error("username must be between 3 and 50 characters"),
		),
		validation.Field(&u.FullName,
			validation.NilOrNotEmpty.Error("full name cannot be blank"),
			validation.RuneLength(0, 200).Error("full name must be at most 200 characters"),
		),
	)
}

// ValidateImportRequest validates a submission before the upload is stored.
func (v *Validator) ValidateImportRequest(r *domain.ImportRequest) error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Entity,
			validation.Required.Error("entity is required"),
			validation.RuneLength(1, maxEntityLength).Error("entity is too long"),
		),
		validation.Field(&r.FileName,
			validation.Required.Error("file name is required"),
		),
		validation.Field(&r.Priority,
			validation.Min(-domain.MaxPriority).Error(fmt.Sprintf("priority must be at least %d", -domain.MaxPriority)),
			validation.Max(domain.MaxPriority).Error(fmt.Sprintf("priority must be at most %d", domain.MaxPriority)),
		),
		validation.Field(&r.MaxRetries,
			validation.Min(0).Error("max retries cannot be negative"),
			validation.Max(domain.MaxRetriesLimit).Error(fmt.Sprintf("max retries must be at most %d", domain.MaxRetriesLimit)),
		),
		validation.Field(&r.Remark,
			validation.RuneLength(0, maxRemarkLength).Error("remark is too long"),
		),
	)
	if err != nil {
		return err
	}
	return v.ValidateImportOptions(r.Options)
}

// ValidateImportOptions checks the parser options a caller may set. Unknown
// keys are allowed and ignored by the parsers.
func (v *Validator) ValidateImportOptions(opts map[string]any) error {
	if len(opts) == 0 {
		return nil
	}
	return validation.Validate(opts,
		validation.Map(
			validation.Key("delimiter", validation.By(delimiterRule)).Optional(),
			validation.Key("skipHeader", validation.By(boolRule)).Optional(),
			validation.Key("lazyQuotes", validation.By(boolRule)).Optional(),
			validation.Key("sheetIndex", validation.By(nonNegativeIntRule)).Optional(),
			validation.Key("maxRows", validation.By(nonNegativeIntRule)).Optional(),
			validation.Key("sheetName", validation.By(stringRule)).Optional(),
			validation.Key("rootKey", validation.By(stringRule)).Optional(),
			validation.Key("columns", validation.By(columnsRule)).Optional(),
		).AllowExtraKeys(),
	)
}

// ToValidationResult converts a validation error into a ValidationResult with
// one "field: message" entry per failing field, sorted by field name.
func ToValidationResult(err error) *domain.ValidationResult {
	result := domain.Success()
	if err == nil {
		return result
	}

	var ve validation.Errors
	if !errors.As(err, &ve) {
		result.AddError(err.Error())
		return result
	}

	fields := make([]string, 0, len(ve))
	for field := range ve {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		result.AddError(fmt.Sprintf("%s: %s", field, ve[field].Error()))
	}
	return result
}

func delimiterRule(value any) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("invalid_delimiter", "must be a string")
	}
	if s == "tab" || s == `\t` || len([]rune(s)) == 1 && !strings.ContainsAny(s, "\"\r\n") {
		return nil
	}
	return validation.NewError("invalid_delimiter", "must be a single character or \"tab\"")
}

func boolRule(value any) error {
	if _, ok := value.(bool); !ok {
		return validation.NewError("invalid_bool", "must be true or false")
	}
	return nil
}

func stringRule(value any) error {
	if _, ok := value.(string); !ok {
		return validation.NewError("invalid_string", "must be a string")
	}
	return nil
}

func nonNegativeIntRule(value any) error {
	var n float64
	switch x := value.(type) {
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case float64:
		if x != float64(int64(x)) {
			return validation.NewError("invalid_int", "must be a whole number")
		}
		n = x
	default:
		return validation.NewError("invalid_int", "must be a number")
	}
	if n < 0 {
		return validation.NewError("negative_int", "must not be negative")
	}
	return nil
}

func columnsRule(value any) error {
	var items []any
	switch x := value.(type) {
	case []string:
		if len(x) == 0 {
			return validation.NewError("empty_columns", "must not be empty")
		}
		return nil
	case []any:
		items = x
	default:
		return validation.NewError("invalid_columns", "must be a list of column names")
	}
	if len(items) == 0 {
		return validation.NewError("empty_columns", "must not be empty")
	}
	for _, item := range items {
		if s, ok := item.(string); !ok || strings.TrimSpace(s) == "" {
			return validation.NewError("invalid_columns", "must contain only non-empty names")
		}
	}
	return nil
}

package domain

import "strings"

// ValidationResult collects errors and warnings produced while checking a
// file or a row. It is never persisted.
type ValidationResult struct {
	valid    bool
	errors   []string
	warnings []string
}

// NewValidationResult creates a valid, empty result.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{valid: true}
}

// Success returns a valid result.
func Success() *ValidationResult {
	return NewValidationResult()
}

// Failure returns an invalid result carrying one error.
func Failure(message string) *ValidationResult {
	r := NewValidationResult()
	r.AddError(message)
	return r
}

// IsValid is true only when the flag is set and no errors were added.
func (r *ValidationResult) IsValid() bool {
	return r.valid && len(r.errors) == 0
}

// AddError records an error and marks the result invalid.
func (r *ValidationResult) AddError(message string) {
	r.errors = append(r.errors, message)
	r.valid = false
}

// AddWarning records a warning. Warnings never affect validity.
func (r *ValidationResult) AddWarning(message string) {
	r.warnings = append(r.warnings, message)
}

// Invalidate clears the validity flag without adding an error.
func (r *ValidationResult) Invalidate() {
	r.valid = false
}

// Merge appends the errors and warnings of other.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for _, e := range other.errors {
		r.AddError(e)
	}
	r.warnings = append(r.warnings, other.warnings...)
	if !other.valid {
		r.valid = false
	}
}

// Errors returns a copy of the error list.
func (r *ValidationResult) Errors() []string {
	return append([]string(nil), r.errors...)
}

// Warnings returns a copy of the warning list.
func (r *ValidationResult) Warnings() []string {
	return append([]string(nil), r.warnings...)
}

// HasWarnings reports whether any warning was recorded.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.warnings) > 0
}

// ErrorMessage joins all errors with "; ".
func (r *ValidationResult) ErrorMessage() string {
	return strings.Join(r.errors, "; ")
}

// WarningMessage joins all warnings with "; ".
func (r *ValidationResult) WarningMessage() string {
	return strings.Join(r.warnings, "; ")
}

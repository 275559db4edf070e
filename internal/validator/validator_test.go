package validator

import (
	"errors"
	"strings"
	"testing"

	"async-import/internal/domain"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestValidateUser(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		user    *domain.User
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid user",
			user:    &domain.User{Email: "test@example.com", Username: "john", Role: "user"},
			wantErr: false,
		},
		{
			name:    "valid user with full name",
			user:    &domain.User{Email: "admin@example.com", Username: "admin", FullName: strPtr("Admin User")},
			wantErr: false,
		},
		{
			name:    "missing email",
			user:    &domain.User{Username: "john"},
			wantErr: true,
			errMsg:  "email",
		},
		{
			name:    "invalid email format",
			user:    &domain.User{Email: "invalid-email", Username: "john"},
			wantErr: true,
			errMsg:  "email",
		},
		{
			name:    "missing username",
			user:    &domain.User{Email: "test@example.com"},
			wantErr: true,
			errMsg:  "username",
		},
		{
			name:    "username too short",
			user:    &domain.User{Email: "test@example.com", Username: "jo"},
			wantErr: true,
			errMsg:  "username",
		},
		{
			name:    "blank full name",
			user:    &domain.User{Email: "test@example.com", Username: "john", FullName: strPtr("")},
			wantErr: true,
			errMsg:  "full",
		},
		{
			name:    "unknown role is not an error",
			user:    &domain.User{Email: "test@example.com", Username: "john", Role: "superuser"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUser(tt.user)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateImportRequest(t *testing.T) {
	v := NewValidator()

	valid := func() *domain.ImportRequest {
		return &domain.ImportRequest{
			Entity:   "users",
			FileName: "users.csv",
			Options:  map[string]any{"delimiter": ";", "skipHeader": true},
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *domain.ImportRequest)
		wantErr bool
		errMsg  string
	}{
		{name: "valid request", mutate: func(*domain.ImportRequest) {}},
		{name: "missing entity", mutate: func(r *domain.ImportRequest) { r.Entity = "" }, wantErr: true, errMsg: "entity"},
		{name: "missing file name", mutate: func(r *domain.ImportRequest) { r.FileName = "" }, wantErr: true, errMsg: "file"},
		{name: "priority too high", mutate: func(r *domain.ImportRequest) { r.Priority = 101 }, wantErr: true, errMsg: "priority"},
		{name: "negative priority allowed", mutate: func(r *domain.ImportRequest) { r.Priority = -5 }},
		{name: "negative max retries", mutate: func(r *domain.ImportRequest) { r.MaxRetries = intPtr(-1) }, wantErr: true, errMsg: "max"},
		{name: "max retries over limit", mutate: func(r *domain.ImportRequest) { r.MaxRetries = intPtr(11) }, wantErr: true, errMsg: "max"},
		{name: "zero max retries", mutate: func(r *domain.ImportRequest) { r.MaxRetries = intPtr(0) }},
		{name: "remark too long", mutate: func(r *domain.ImportRequest) { r.Remark = strPtr(strings.Repeat("x", 256)) }, wantErr: true, errMsg: "remark"},
		{name: "bad delimiter", mutate: func(r *domain.ImportRequest) { r.Options["delimiter"] = ";;" }, wantErr: true, errMsg: "delimiter"},
		{name: "tab delimiter", mutate: func(r *domain.ImportRequest) { r.Options["delimiter"] = "tab" }},
		{name: "skipHeader must be bool", mutate: func(r *domain.ImportRequest) { r.Options["skipHeader"] = "yes" }, wantErr: true, errMsg: "skipHeader"},
		{name: "negative sheet index", mutate: func(r *domain.ImportRequest) { r.Options["sheetIndex"] = float64(-1) }, wantErr: true, errMsg: "sheetIndex"},
		{name: "fractional max rows", mutate: func(r *domain.ImportRequest) { r.Options["maxRows"] = 1.5 }, wantErr: true, errMsg: "maxRows"},
		{name: "columns list", mutate: func(r *domain.ImportRequest) { r.Options["columns"] = []any{"email", "username"} }},
		{name: "columns with blank name", mutate: func(r *domain.ImportRequest) { r.Options["columns"] = []any{"email", " "} }, wantErr: true, errMsg: "columns"},
		{name: "unknown option ignored", mutate: func(r *domain.ImportRequest) { r.Options["encoding"] = "utf-8" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := v.ValidateImportRequest(r)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestToValidationResult(t *testing.T) {
	v := NewValidator()

	if r := ToValidationResult(nil); !r.IsValid() {
		t.Errorf("nil error should be valid, got %v", r.Errors())
	}

	err := v.ValidateUser(&domain.User{Email: "bad", Username: "x"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	result := ToValidationResult(err)
	if result.IsValid() {
		t.Fatal("expected invalid result")
	}
	errs := result.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if !strings.HasPrefix(errs[0], "email: ") || !strings.HasPrefix(errs[1], "username: ") {
		t.Errorf("expected errors sorted by field, got %v", errs)
	}

	plain := ToValidationResult(errors.New("boom"))
	if plain.ErrorMessage() != "boom" {
		t.Errorf("expected plain error message, got %q", plain.ErrorMessage())
	}
}

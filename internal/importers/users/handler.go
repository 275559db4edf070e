// Package users imports user accounts. It is the bundled example of an
// importer.Handler and backs the "users" entity.
package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"async-import/internal/domain"
	"async-import/internal/importer"
	"async-import/internal/repository"
	"async-import/internal/validator"
)

// Entity is the registry key of the handler.
const Entity = "users"

// fieldMapping maps accepted source headers to user fields.
var fieldMapping = map[string]string{
	"email":     "email",
	"e-mail":    "email",
	"username":  "username",
	"login":     "username",
	"full_name": "full_name",
	"name":      "full_name",
	"role":      "role",
	"active":    "active",
	"is_active": "active",
}

// Handler validates user rows and upserts them by email.
type Handler struct {
	importer.Base
	validator *validator.Validator
	now       func() time.Time
}

// NewHandler creates a users handler. A batchSize below 1 selects the default.
func NewHandler(v *validator.Validator, batchSize int) *Handler {
	return &Handler{
		Base:      importer.Base{Name: Entity, Size: batchSize, Mapping: fieldMapping},
		validator: v,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Preprocess maps headers onto user fields, trims strings, turns empty
// strings into nil and lowercases the email.
func (h *Handler) Preprocess(row importer.Row) (importer.Row, error) {
	out := make(importer.Row, len(row))
	for key, value := range row {
		field, ok := fieldMapping[strings.ToLower(strings.TrimSpace(key))]
		if !ok {
			continue
		}
		if s, isString := value.(string); isString {
			s = strings.TrimSpace(s)
			if s == "" {
				out[field] = nil
				continue
			}
			value = s
		}
		out[field] = value
	}
	if email, ok := out["email"].(string); ok {
		out["email"] = strings.ToLower(email)
	}
	return out, nil
}

// Validate checks required fields. Unknown roles produce a warning and are
// replaced by the default role on import.
func (h *Handler) Validate(_ context.Context, row importer.Row, line int) *domain.ValidationResult {
	user, err := toUser(row)
	if err != nil {
		return domain.Failure(err.Error())
	}

	result := validator.ToValidationResult(h.validator.ValidateUser(user))
	if role := stringValue(row["role"]); role != "" && !domain.IsValidRole(role) {
		result.AddWarning(fmt.Sprintf("line %d: unknown role %q, using %q", line, role, domain.DefaultRole))
	}
	return result
}

// Import upserts the user by email.
func (h *Handler) Import(ctx context.Context, db repository.DBTX, row importer.Row, task *domain.Task) error {
	user, err := toUser(row)
	if err != nil {
		return err
	}
	if !domain.IsValidRole(user.Role) {
		user.Role = domain.DefaultRole
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}
	now := h.now()

	_, err = db.Exec(ctx, `
		INSERT INTO users (id, email, username, full_name, role, active, import_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (email) DO UPDATE
		SET username = EXCLUDED.username,
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			import_task_id = EXCLUDED.import_task_id,
			updated_at = EXCLUDED.updated_at
	`, id, user.Email, user.Username, user.FullName, user.Role, user.Active, task.ID, now)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.Email, err)
	}
	return nil
}

func toUser(row importer.Row) (*domain.User, error) {
	active, err := boolValue(row["active"])
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:    stringValue(row["email"]),
		Username: stringValue(row["username"]),
		Role:     stringValue(row["role"]),
		Active:   active,
	}
	if name := stringValue(row["full_name"]); name != "" {
		u.FullName = &name
	}
	return u, nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// boolValue accepts JSON booleans and the usual spreadsheet spellings.
// Missing values mean active.
func boolValue(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return true, nil
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case string:
		switch strings.ToLower(x) {
		case "1", "true", "yes", "y":
			return true, nil
		case "0", "false", "no", "n":
			return false, nil
		}
	}
	return false, fmt.Errorf("active: invalid boolean %v", v)
}

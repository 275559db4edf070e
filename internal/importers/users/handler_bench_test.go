package users

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"async-import/internal/domain"
	"async-import/internal/importer"
	"async-import/internal/parser"
	"async-import/internal/validator"
)

func BenchmarkValidateOnly(b *testing.B) {
	h := NewHandler(validator.NewValidator(), 0)
	row := importer.Row{"email": "user@example.com", "username": "user", "role": "admin"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = h.Validate(context.Background(), row, 1)
	}
}

func BenchmarkValidateWithUnknownRole(b *testing.B) {
	h := NewHandler(validator.NewValidator(), 0)
	row := importer.Row{"email": "user@example.com", "username": "user", "role": "invalid_role"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = h.Validate(context.Background(), row, 1)
	}
}

func writeUsersCSV(b *testing.B, n int) string {
	b.Helper()
	var buf bytes.Buffer
	buf.WriteString("email,username,name,role,active\n")
	roles := []string{"admin", "user", "moderator", "invalid1", "invalid2"}
	for i := 0; i < n; i++ {
		buf.WriteString("user" + strconv.Itoa(i) + "@example.com,user" + strconv.Itoa(i) + ",User Name,")
		buf.WriteString(roles[i%len(roles)])
		buf.WriteString(",true\n")
	}
	path := filepath.Join(b.TempDir(), "users.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		b.Fatal(err)
	}
	return path
}

func benchmarkParseAndValidate(b *testing.B, path string) {
	h := NewHandler(validator.NewValidator(), 0)
	p := parser.NewCSVParser()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		it, err := p.Parse(path, nil)
		if err != nil {
			b.Fatal(err)
		}
		line := 0
		var failed []*domain.ValidationResult
		for it.Next() {
			line++
			row, _ := it.Row().(map[string]any)
			clean, err := h.Preprocess(row)
			if err != nil {
				continue
			}
			if res := h.Validate(context.Background(), clean, line); !res.IsValid() {
				failed = append(failed, res)
			}
		}
		_ = it.Close()
		_ = failed
	}
}

func BenchmarkFullLoopWith1000Users(b *testing.B) {
	benchmarkParseAndValidate(b, writeUsersCSV(b, 1000))
}

func BenchmarkRealCSVFile(b *testing.B) {
	path := "../../../testdata/users_huge.csv"
	if _, err := os.Stat(path); err != nil {
		b.Skip("testdata/users_huge.csv not found")
	}
	benchmarkParseAndValidate(b, path)
}

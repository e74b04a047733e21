package redact_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/progressor-api/internal/redact"
)

func TestString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no sensitive data", "card stopped after 25 minutes", "card stopped after 25 minutes"},
		{
			"connection url",
			"dial postgres://app:s3cret@db:5432/progressor",
			"dial [REDACTED_CREDENTIAL]db:5432/progressor",
		},
		{
			"key value dsn",
			"connect failed: host=db password=hunter2 sslmode=disable",
			"connect failed: host=db [REDACTED_CREDENTIAL] sslmode=disable",
		},
		{
			"constraint detail",
			"Key (user_id, lower(name))=(42, go) already exists",
			"Key (user_id, lower(name))=([REDACTED]) already exists",
		},
		{
			"file path",
			"open /etc/progressor/progressor.yaml: permission denied",
			"open [REDACTED_PATH]: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, redact.String(tt.input))
		})
	}
}

func TestStringRedactsSQL(t *testing.T) {
	t.Parallel()

	got := redact.String("query failed: SELECT id, title FROM cards WHERE user_id = $1")
	assert.Contains(t, got, redact.RedactedSQLPlaceholder)
	assert.NotContains(t, got, "FROM cards")
}

func TestError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, redact.Error(nil))

	err := fmt.Errorf("open database: %w", errors.New("postgres://app:pw@db/progressor unreachable"))
	got := redact.Error(err)
	assert.NotContains(t, got, "pw@")
	assert.Contains(t, got, redact.RedactedCredentialPlaceholder)
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/mailsense/internal/pipeline"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    pipeline.Mode
		wantErr bool
	}{
		{"full", pipeline.ModeFull, false},
		{"index_only", pipeline.ModeIndexOnly, false},
		{"analyze_only", pipeline.ModeAnalyzeOnly, false},
		{"turbo", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			mode, err := parseMode(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestReadEmails(t *testing.T) {
	t.Run("valid batch file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "emails.json")
		content := `[
			{"id": "em-1", "owner_id": "alice", "subject": "Hello", "body": "First email."},
			{"id": "em-2", "owner_id": "alice", "subject": "Again", "body": "Second email."}
		]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		emails, err := readEmails(path)
		require.NoError(t, err)
		require.Len(t, emails, 2)
		assert.Equal(t, "em-1", emails[0].ID)
		assert.Equal(t, "alice", emails[1].OwnerID)
	})

	t.Run("null elements are dropped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "emails.json")
		content := `[
			{"id": "em-1", "owner_id": "alice", "subject": "Hello", "body": "First email."},
			null,
			{"id": "em-2", "owner_id": "alice", "subject": "Again", "body": "Second email."}
		]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		emails, err := readEmails(path)
		require.NoError(t, err)
		require.Len(t, emails, 2)
		for _, e := range emails {
			assert.NotNil(t, e)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readEmails(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		_, err := readEmails(path)
		require.Error(t, err)
	})
}

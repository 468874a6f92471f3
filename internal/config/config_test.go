package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "SERVER_PORT", "ALLOWED_ORIGINS", "PARTICIPANTS", "MAX_ATTACHMENT_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxAttachmentBytes)
	require.Len(t, cfg.Participants, 2)
	assert.Equal(t, "yass", cfg.Participants[0].Handle)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example ")
	t.Setenv("PARTICIPANTS", "ann:Ann,bob")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, []ParticipantSeed{{"ann", "Ann"}, {"bob", "bob"}}, cfg.Participants)
}

func TestParseParticipants_SkipsBlankAndDuplicate(t *testing.T) {
	got := ParseParticipants("a:A,,a:Again, :Nobody,b:B")
	assert.Equal(t, []ParticipantSeed{{"a", "A"}, {"b", "B"}}, got)
}

func TestValidate_Rejects(t *testing.T) {
	base := Config{
		DBDriver:           "memory",
		FeedDriver:         "local",
		StorageDriver:      "local",
		PreferenceDriver:   "file",
		MaxAttachmentBytes: 1,
		Participants:       []ParticipantSeed{{"a", "A"}, {"b", "B"}},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.DBDriver = "oracle"
	assert.Error(t, bad.Validate())

	bad = base
	bad.Participants = bad.Participants[:1]
	assert.Error(t, bad.Validate())

	bad = base
	bad.FeedDriver = "kafka"
	assert.Error(t, bad.Validate())
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ParticipantSeed is a configured chat member.
type ParticipantSeed struct {
	Handle      string
	DisplayName string
}

// Config holds application configuration
type Config struct {
	// Row store
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string

	// Server
	ServerPort string
	Env        string

	// CORS
	AllowedOrigins []string

	// Logging
	LogLevel  string
	LogPretty bool

	// Change feed
	FeedDriver    string
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Attachments
	StorageDriver      string
	StorageLocalPath   string
	StoragePublicURL   string
	S3Endpoint         string
	S3Region           string
	S3Bucket           string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	S3UsePathStyle     bool
	MaxAttachmentBytes int64

	// Viewer preference
	PreferenceDriver string
	PreferencePath   string

	Participants []ParticipantSeed
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_PATH", "duochat.db")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("FEED_DRIVER", "local")
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_LOCAL_PATH", "./data/attachments")
	v.SetDefault("STORAGE_PUBLIC_URL", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "attachments")
	v.SetDefault("S3_USE_PATH_STYLE", false)
	v.SetDefault("MAX_ATTACHMENT_BYTES", 10*1024*1024)
	v.SetDefault("PREFERENCE_DRIVER", "file")
	v.SetDefault("PREFERENCE_PATH", "./data/preferences.json")
	v.SetDefault("PARTICIPANTS", "yass:Yass,other:Other")
}

// Load loads configuration from environment variables
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:             v.GetString("DB_HOST"),
		DBPort:             v.GetString("DB_PORT"),
		DBUser:             v.GetString("DB_USER"),
		DBPassword:         v.GetString("DB_PASSWORD"),
		DBName:             v.GetString("DB_NAME"),
		DBPath:             v.GetString("DB_PATH"),
		ServerPort:         v.GetString("SERVER_PORT"),
		Env:                v.GetString("ENV"),
		AllowedOrigins:     splitList(v.GetString("ALLOWED_ORIGINS")),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogPretty:          v.GetBool("LOG_PRETTY"),
		FeedDriver:         strings.ToLower(v.GetString("FEED_DRIVER")),
		RedisAddress:       v.GetString("REDIS_ADDRESS"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		StorageDriver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
		StorageLocalPath:   v.GetString("STORAGE_LOCAL_PATH"),
		StoragePublicURL:   v.GetString("STORAGE_PUBLIC_URL"),
		S3Endpoint:         v.GetString("S3_ENDPOINT"),
		S3Region:           v.GetString("S3_REGION"),
		S3Bucket:           v.GetString("S3_BUCKET"),
		S3AccessKeyID:      v.GetString("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:  v.GetString("S3_SECRET_ACCESS_KEY"),
		S3UsePathStyle:     v.GetBool("S3_USE_PATH_STYLE"),
		MaxAttachmentBytes: v.GetInt64("MAX_ATTACHMENT_BYTES"),
		PreferenceDriver:   strings.ToLower(v.GetString("PREFERENCE_DRIVER")),
		PreferencePath:     v.GetString("PREFERENCE_PATH"),
		Participants:       ParseParticipants(v.GetString("PARTICIPANTS")),
	}

	return cfg
}

// Validate reports configuration that cannot start a server.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.FeedDriver {
	case "local", "redis":
	default:
		return fmt.Errorf("unsupported FEED_DRIVER %q", c.FeedDriver)
	}
	switch c.StorageDriver {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.PreferenceDriver {
	case "file", "redis":
	default:
		return fmt.Errorf("unsupported PREFERENCE_DRIVER %q", c.PreferenceDriver)
	}
	if len(c.Participants) != 2 {
		return fmt.Errorf("PARTICIPANTS must name exactly two members, got %d", len(c.Participants))
	}
	if c.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive")
	}
	return nil
}

// ParseParticipants parses "handle:Display Name,handle2:Name2".
// A missing display name falls back to the handle.
func ParseParticipants(raw string) []ParticipantSeed {
	var seeds []ParticipantSeed
	seen := make(map[string]bool)
	for _, item := range splitList(raw) {
		handle, name, _ := strings.Cut(item, ":")
		handle = strings.TrimSpace(handle)
		name = strings.TrimSpace(name)
		if handle == "" || seen[handle] {
			continue
		}
		if name == "" {
			name = handle
		}
		seen[handle] = true
		seeds = append(seeds, ParticipantSeed{Handle: handle, DisplayName: name})
	}
	return seeds
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

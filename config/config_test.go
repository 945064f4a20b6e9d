package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/config"
)

func TestLoad_Defaults(t *testing.T) {
	// Load with no config files should use defaults
	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, int64(5<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, 30, cfg.Service.CleanupTimeout)
	assert.Equal(t, "books123", cfg.Auth.Password)
	assert.Equal(t, "jsonfile", cfg.Database.Type)
	assert.Equal(t, "./data/library.json", cfg.Database.DSN)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "./data/uploads", cfg.Storage.Path)
	assert.Equal(t, "us-east-1", cfg.Storage.S3.Region)
	assert.Equal(t, 2, cfg.Search.RPS)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 8080
  max_upload_size: 1048576
auth:
  password: hunter2
database:
  type: postgres
  dsn: postgres://localhost/library
storage:
  type: s3
  s3:
    endpoint: https://storage.example.com
    region: eu-west-1
    bucket: book-covers
    access_key: AKIATEST123
    secret_key: secretkey123
    public_base_url: https://cdn.example.com/book-covers
log:
  level: debug
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Server.MaxUploadSize)
	assert.Equal(t, "hunter2", cfg.Auth.Password)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "postgres://localhost/library", cfg.Database.DSN)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "https://storage.example.com", cfg.Storage.S3.Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3.Region)
	assert.Equal(t, "book-covers", cfg.Storage.S3.Bucket)
	assert.Equal(t, "https://cdn.example.com/book-covers", cfg.Storage.S3.PublicBaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFileMerge(t *testing.T) {
	tmpDir := t.TempDir()

	// Base config
	basePath := filepath.Join(tmpDir, "base.yaml")
	baseContent := `
server:
  port: 3000
auth:
  password: basepass
database:
  type: sqlite
  dsn: library.db
storage:
  type: filesystem
  path: ./uploads
log:
  level: info
`
	err := os.WriteFile(basePath, []byte(baseContent), 0o644)
	require.NoError(t, err)

	// Override config
	overridePath := filepath.Join(tmpDir, "override.yaml")
	overrideContent := `
server:
  port: 9000
log:
  level: warn
`
	err = os.WriteFile(overridePath, []byte(overrideContent), 0o644)
	require.NoError(t, err)

	// Load with merge (later files override earlier)
	cfg, err := config.Load([]string{basePath, overridePath}, nil)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)

	// Preserved values from base
	assert.Equal(t, "basepass", cfg.Auth.Password)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "library.db", cfg.Database.DSN)
}

func TestLoad_ValidationError_InvalidPort(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 99999
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	_, err = config.Load([]string{configPath}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_ValidationError_InvalidDatabaseType(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  type: mongodb
  dsn: mongodb://localhost/library
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	_, err = config.Load([]string{configPath}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_ValidationError_S3WithoutBucket(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
storage:
  type: s3
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	_, err = config.Load([]string{configPath}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.s3.bucket")
}

func TestLoad_InferredBackends(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// No explicit backend types: a postgres DSN and a bucket are enough to
	// select the relational plus object-storage pairing
	configContent := `
database:
  dsn: postgres://localhost/library
storage:
  s3:
    bucket: book-covers
    public_base_url: https://cdn.example.com/book-covers
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "s3", cfg.Storage.Type)
}

func TestLoad_InferredSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  dsn: ./data/library.db
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
}

func TestLoad_ExplicitTypeWinsOverInference(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database:
  type: jsonfile
  dsn: ./data/library.db
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	assert.Equal(t, "jsonfile", cfg.Database.Type)
}

func TestLoad_WithCORS(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
cors:
  enabled: true
  allowed_origins:
    - https://example.com
    - https://app.example.com
  allowed_methods:
    - GET
    - POST
    - DELETE
  allowed_headers:
    - Content-Type
    - X-App-Password
  max_age: 600
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := config.Load([]string{configPath}, nil)
	require.NoError(t, err)

	assert.True(t, cfg.CORS.Enabled)
	assert.Equal(t, []string{"https://example.com", "https://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, []string{"GET", "POST", "DELETE"}, cfg.CORS.AllowedMethods)
	assert.Equal(t, []string{"Content-Type", "X-App-Password"}, cfg.CORS.AllowedHeaders)
	assert.Equal(t, 600, cfg.CORS.MaxAge)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("SHELFKEEP_SERVER_PORT", "9090")
	t.Setenv("SHELFKEEP_AUTH_PASSWORD", "envpass")
	t.Setenv("SHELFKEEP_DATABASE_TYPE", "sqlite")

	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "envpass", cfg.Auth.Password)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestS3StoreConfig(t *testing.T) {
	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	cfg.Storage.S3.Bucket = "book-covers"
	cfg.Storage.S3.PublicBaseURL = "https://cdn.example.com/book-covers"

	s3cfg := cfg.S3StoreConfig()

	assert.Equal(t, "book-covers", s3cfg.Bucket)
	assert.Equal(t, "https://cdn.example.com/book-covers", s3cfg.PublicBaseURL)
	assert.Equal(t, "us-east-1", s3cfg.Region)
	assert.True(t, s3cfg.UsePathStyle)
}

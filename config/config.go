package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shelfkeep/shelfkeep/database"
	shelfhttp "github.com/shelfkeep/shelfkeep/http"
	"github.com/shelfkeep/shelfkeep/s3store"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for shelfkeep.
type Config struct {
	Server   ServerConfig         `mapstructure:"server"`
	Service  ServiceConfig        `mapstructure:"service"`
	Auth     AuthConfig           `mapstructure:"auth"`
	Database database.Config      `mapstructure:"database"`
	Storage  StorageConfig        `mapstructure:"storage"`
	Search   SearchConfig         `mapstructure:"search"`
	CORS     shelfhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig            `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=0"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout int `mapstructure:"cleanup_timeout" validate:"min=1"`
}

// AuthConfig holds the shared catalog password.
type AuthConfig struct {
	Password string `mapstructure:"password" validate:"required"`
}

// StorageConfig selects and configures the asset backend.
type StorageConfig struct {
	// Type is "filesystem" or "s3"
	Type string `mapstructure:"type" validate:"required,oneof=filesystem s3"`
	// Path is the uploads directory for the filesystem backend
	Path string   `mapstructure:"path"`
	S3   S3Config `mapstructure:"s3"`
}

// S3Config holds the remote object storage settings.
type S3Config struct {
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	UsePathStyle  bool   `mapstructure:"use_path_style"`
}

// SearchConfig holds the external catalog client settings.
type SearchConfig struct {
	UserAgent  string `mapstructure:"user_agent"`
	RPS        int    `mapstructure:"rps" validate:"min=1"`
	MaxRetries int    `mapstructure:"max_retries" validate:"min=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// S3StoreConfig maps the storage settings onto the s3store package config.
func (c *Config) S3StoreConfig() s3store.Config {
	return s3store.Config{
		Endpoint:      c.Storage.S3.Endpoint,
		Region:        c.Storage.S3.Region,
		Bucket:        c.Storage.S3.Bucket,
		AccessKey:     c.Storage.S3.AccessKey,
		SecretKey:     c.Storage.S3.SecretKey,
		PublicBaseURL: c.Storage.S3.PublicBaseURL,
		UsePathStyle:  c.Storage.S3.UsePathStyle,
	}
}

// ResolveBackends fills in backend types that were left unset, inferring
// them from the settings that are present. A postgres DSN selects the
// postgres backend, a .db or .sqlite DSN selects sqlite, and a configured
// bucket selects the s3 store; otherwise the flat-file plus local-uploads
// pairing applies. Explicit settings always win.
func (c *Config) ResolveBackends() {
	if c.Database.Type == "" {
		switch {
		case strings.HasPrefix(c.Database.DSN, "postgres://"),
			strings.HasPrefix(c.Database.DSN, "postgresql://"):
			c.Database.Type = "postgres"
		case strings.HasSuffix(c.Database.DSN, ".db"),
			strings.HasSuffix(c.Database.DSN, ".sqlite"):
			c.Database.Type = "sqlite"
		default:
			c.Database.Type = "jsonfile"
		}
	}

	if c.Storage.Type == "" {
		if c.Storage.S3.Bucket != "" {
			c.Storage.Type = "s3"
		} else {
			c.Storage.Type = "filesystem"
		}
	}
}

// Validate checks cross-field rules the struct tags cannot express: one
// database/storage pairing per process, fully specified.
func (c *Config) Validate() error {
	if c.Storage.Type == "filesystem" && c.Storage.Path == "" {
		return errors.New("storage.path is required for the filesystem backend")
	}
	if c.Storage.Type == "s3" {
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
		if c.Storage.S3.PublicBaseURL == "" {
			return errors.New("storage.s3.public_base_url is required for the s3 backend")
		}
	}
	return nil
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":      "database.type",
	"db-dsn":       "database.dsn",
	"storage-type": "storage.type",
	"storage-path": "storage.path",
	"port":         "server.port",
	"password":     "auth.password",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_upload_size", shelfhttp.DefaultMaxUploadSize)

	v.SetDefault("service.cleanup_timeout", 30) // seconds

	v.SetDefault("auth.password", "books123")

	// backend types default to empty so ResolveBackends can tell an explicit
	// choice from an inferred one; the empty default keeps the key visible to
	// environment variable binding
	v.SetDefault("database.type", "")
	v.SetDefault("database.dsn", "./data/library.json")

	v.SetDefault("storage.type", "")
	v.SetDefault("storage.path", "./data/uploads")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", true)

	v.SetDefault("search.user_agent", "shelfkeep")
	v.SetDefault("search.rps", 2)
	v.SetDefault("search.max_retries", 2)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("SHELFKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Resolve backend types left unset
	cfg.ResolveBackends()

	// 7. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

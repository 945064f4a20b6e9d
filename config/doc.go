// Package config provides configuration loading and validation for shelfkeep.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (SHELFKEEP_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with SHELFKEEP_ prefix:
//   - server.port → SHELFKEEP_SERVER_PORT
//   - auth.password → SHELFKEEP_AUTH_PASSWORD
//   - database.type → SHELFKEEP_DATABASE_TYPE
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: port and max_upload_size for cover photos
//   - Service: cleanup_timeout for compensation and asset deletes
//   - Auth: the shared catalog password
//   - Database: metadata backend type (jsonfile/sqlite/postgres) and DSN
//   - Storage: asset backend type (filesystem/s3) and its settings
//   - Search: external catalog client (user agent, rate limit, retries)
//   - CORS: cross-origin resource sharing settings
//   - Log: logging level
//
// Exactly one database backend and one storage backend are selected per
// process; switching pairings requires a restart. Backend types left unset
// are inferred from the settings that are present: a postgres DSN selects
// the postgres backend, a .db or .sqlite DSN selects sqlite, and a
// configured bucket selects the s3 store. Explicit types always win.
//
// # Validation
//
// Configuration is validated using struct tags plus cross-field rules:
//   - Port must be 1-65535
//   - Database type must be jsonfile, sqlite, or postgres
//   - Storage type must be filesystem or s3
//   - The filesystem backend requires storage.path, the s3 backend
//     requires a bucket and a public base URL
//   - Log level must be debug, info, warn, or error
package config

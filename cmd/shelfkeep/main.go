package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "shelfkeep",
	Short:   "Photographed-book catalog server",
	Long: `Shelfkeep keeps a photographed book catalog behind a shared password.
It stores cover photos on the local filesystem or S3-compatible storage
and book metadata in a flat JSON file, SQLite or PostgreSQL.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init writes the config file, so a broken or missing one must not
		// stop it from running
		if cmd == initCmd {
			setupLogging("")
			return nil
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: jsonfile, sqlite, postgres (env: SHELFKEEP_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string or file path (env: SHELFKEEP_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("storage-type", "", "storage backend: filesystem, s3 (env: SHELFKEEP_STORAGE_TYPE)")
	rootCmd.PersistentFlags().String("storage-path", "", "uploads directory for the filesystem backend (env: SHELFKEEP_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("password", "", "shared catalog password (env: SHELFKEEP_AUTH_PASSWORD)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var files []string
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		files = append(files, configFile)
	}
	return config.Load(files, cmd.Flags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

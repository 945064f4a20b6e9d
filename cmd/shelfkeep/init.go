package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long: `Walk through the catalog settings and write them to a config file.
Prompts for the shared password, the metadata backend and the cover
photo storage backend.`,
	RunE: runInit,
}

var initOutput string

func init() {
	initCmd.Flags().StringVar(&initOutput, "output", "config.yaml", "path to write the config file to")
	rootCmd.AddCommand(initCmd)
}

type fileS3Config struct {
	Endpoint      string `yaml:"endpoint,omitempty"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type fileConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Auth struct {
		Password string `yaml:"password"`
	} `yaml:"auth"`
	Database struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
	} `yaml:"database"`
	Storage struct {
		Type string        `yaml:"type"`
		Path string        `yaml:"path,omitempty"`
		S3   *fileS3Config `yaml:"s3,omitempty"`
	} `yaml:"storage"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func runInit(_ *cobra.Command, args []string) error {
	if _, err := os.Stat(initOutput); err == nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("%s already exists. Overwrite it", initOutput),
			IsConfirm: true,
		}
		if _, promptErr := prompt.Run(); promptErr != nil {
			fmt.Println("Cancelled.")
			return nil //nolint:nilerr // User cancelled, not an error
		}
	}

	var cfg fileConfig

	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: "3000",
		Validate: func(input string) error {
			port, err := strconv.Atoi(input)
			if err != nil || port < 1 || port > 65535 {
				return errors.New("port must be a number between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	passwordPrompt := promptui.Prompt{
		Label: "Catalog password",
		Mask:  '*',
		Validate: func(input string) error {
			if input == "" {
				return errors.New("password is required")
			}
			return nil
		},
	}
	if cfg.Auth.Password, err = passwordPrompt.Run(); err != nil {
		return handlePromptError(err)
	}

	dbSelect := promptui.Select{
		Label: "Metadata backend",
		Items: []string{"jsonfile", "sqlite", "postgres"},
	}
	if _, cfg.Database.Type, err = dbSelect.Run(); err != nil {
		return handlePromptError(err)
	}

	dsnPrompt := promptui.Prompt{
		Label:   "Database DSN",
		Default: defaultDSN(cfg.Database.Type),
		Validate: func(input string) error {
			if input == "" {
				return errors.New("DSN is required")
			}
			return nil
		},
	}
	if cfg.Database.DSN, err = dsnPrompt.Run(); err != nil {
		return handlePromptError(err)
	}

	storageSelect := promptui.Select{
		Label: "Cover photo storage",
		Items: []string{"filesystem", "s3"},
	}
	if _, cfg.Storage.Type, err = storageSelect.Run(); err != nil {
		return handlePromptError(err)
	}

	if cfg.Storage.Type == "filesystem" {
		pathPrompt := promptui.Prompt{
			Label:   "Uploads directory",
			Default: "./data/uploads",
		}
		if cfg.Storage.Path, err = pathPrompt.Run(); err != nil {
			return handlePromptError(err)
		}
	} else {
		s3, s3Err := promptS3()
		if s3Err != nil {
			return s3Err
		}
		cfg.Storage.S3 = s3
	}

	cfg.Log.Level = "info"

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(initOutput, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", initOutput)
	fmt.Println("Run 'shelfkeep serve' to start the server.")
	return nil
}

func defaultDSN(dbType string) string {
	switch dbType {
	case "jsonfile":
		return "./data/library.json"
	case "sqlite":
		return "./data/library.db"
	default:
		return "postgres://localhost:5432/shelfkeep"
	}
}

func promptS3() (*fileS3Config, error) {
	s3 := &fileS3Config{}

	required := func(name string) func(string) error {
		return func(input string) error {
			if input == "" {
				return errors.New(name + " is required")
			}
			return nil
		}
	}

	var err error

	endpointPrompt := promptui.Prompt{
		Label: "S3 endpoint (empty for AWS)",
	}
	if s3.Endpoint, err = endpointPrompt.Run(); err != nil {
		return nil, handlePromptError(err)
	}

	regionPrompt := promptui.Prompt{
		Label:   "Region",
		Default: "us-east-1",
	}
	if s3.Region, err = regionPrompt.Run(); err != nil {
		return nil, handlePromptError(err)
	}

	bucketPrompt := promptui.Prompt{
		Label:    "Bucket",
		Validate: required("bucket"),
	}
	if s3.Bucket, err = bucketPrompt.Run(); err != nil {
		return nil, handlePromptError(err)
	}

	accessKeyPrompt := promptui.Prompt{
		Label: "Access Key",
	}
	if s3.AccessKey, err = accessKeyPrompt.Run(); err != nil {
		return nil, handlePromptError(err)
	}

	secretKeyPrompt := promptui.Prompt{
		Label: "Secret Key",
		Mask:  '*',
	}
	if s3.SecretKey, err = secretKeyPrompt.Run(); err != nil {
		return nil, handlePromptError(err)
	}

	baseURLPrompt := promptui.Prompt{
		Label:    "Public base URL for stored covers",
		Validate: required("public base URL"),
	}
	if s3.PublicBaseURL, err = baseURLPrompt.Run(); err != nil {
		return nil, handlePromptError(err)
	}

	return s3, nil
}

func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}

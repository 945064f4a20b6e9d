package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep/config"
	"github.com/shelfkeep/shelfkeep/database"
	"github.com/shelfkeep/shelfkeep/filesystem"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find stored cover files no book references",
	Long: `Scan the uploads directory and report files that no cover record
references. Orphans appear when a cover record is removed but the
best-effort file delete fails, or when a failed upload leaves its file
behind. Records are removed before files, so the reverse (a record
pointing at a missing file) never happens in normal operation.

Pass --delete to remove the orphaned files.`,
	RunE: runOrphans,
}

var deleteOrphans bool

func init() {
	orphansCmd.Flags().BoolVar(&deleteOrphans, "delete", false, "delete orphaned files instead of only reporting them")
	rootCmd.AddCommand(orphansCmd)
}

func runOrphans(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	if cfg.Storage.Type != "filesystem" {
		return fmt.Errorf("orphan scan supports the filesystem backend only, storage type is %s", cfg.Storage.Type)
	}

	repo, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()

	if _, err = os.Stat(cfg.Storage.Path); os.IsNotExist(err) {
		return fmt.Errorf("uploads directory does not exist: %s", cfg.Storage.Path)
	}

	root, err := os.OpenRoot(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open uploads root: %w", err)
	}
	defer func() { _ = root.Close() }()

	store := filesystem.NewAssetStore(root, "/uploads")

	books, err := repo.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}

	referenced := make(map[string]struct{})
	for _, b := range books {
		for _, c := range b.Covers {
			referenced[c.StorageKey] = struct{}{}
		}
	}

	keys, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list stored files: %w", err)
	}

	orphans := 0
	for _, key := range keys {
		if _, ok := referenced[key]; ok {
			continue
		}
		orphans++

		if !deleteOrphans {
			slog.Info("orphaned file", "key", key)
			continue
		}

		if err := store.Delete(ctx, key); err != nil {
			slog.Error("delete orphaned file", "key", key, "err", err)
			continue
		}
		slog.Info("deleted orphaned file", "key", key)
	}

	slog.Info("orphan scan complete",
		"files_scanned", len(keys),
		"referenced", len(referenced),
		"orphans", orphans,
		"deleted", deleteOrphans)
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"faceid/internal/config"
	"faceid/internal/files"
	"faceid/internal/logging"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stale temporary upload files",
	Long: `Remove files left behind in the temporary upload area. Identification
requests normally clean up after themselves; this command catches files
orphaned by crashes or kills.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().Duration("older-than", time.Hour, "Only remove files older than this")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	olderThan := mustGetDuration(cmd, "older-than")

	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	fileStore, err := files.NewStore(cfg.Upload, log)
	if err != nil {
		return err
	}

	deleted, err := fileStore.CleanupTemp(olderThan)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d temporary files older than %s.\n", deleted, olderThan)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"faceid/internal/config"
	"faceid/internal/database/postgres"
	"faceid/internal/files"
	"faceid/internal/logging"
	"faceid/internal/people"
	"faceid/internal/recognition"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Bulk import person photos from a directory tree",
	Long: `Import photos from a directory where each subdirectory is one person.
The subdirectory name becomes the person name and every image inside is
uploaded as that person's photo:

  photos/
    Jan Novak/
      img001.jpg
      img002.jpg
    Eva Dvorakova/
      portrait.png

Photos whose face extraction fails are skipped and reported at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("dry-run", false, "List what would be imported without writing anything")
}

// imageFiles lists image files directly inside dir, sorted by name.
func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	return images, nil
}

type importPlan struct {
	personName string
	images     []string
}

// buildImportPlan scans the root directory for person subdirectories.
func buildImportPlan(root string) ([]importPlan, int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s: %w", root, err)
	}

	var plans []importPlan
	total := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		images, err := imageFiles(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, 0, err
		}
		if len(images) == 0 {
			continue
		}
		plans = append(plans, importPlan{personName: e.Name(), images: images})
		total += len(images)
	}
	return plans, total, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	root := args[0]
	dryRun := mustGetBool(cmd, "dry-run")

	plans, total, err := buildImportPlan(root)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("No images found to import.")
		return nil
	}

	if dryRun {
		for _, plan := range plans {
			fmt.Printf("%s: %d photos\n", plan.personName, len(plan.images))
		}
		fmt.Printf("Would import %d photos for %d persons.\n", total, len(plans))
		return nil
	}

	cfg := config.Load()
	log := logging.NewNop() // progress bar owns the terminal

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	if _, err := pool.Migrate(ctx); err != nil {
		return err
	}

	fileStore, err := files.NewStore(cfg.Upload, log)
	if err != nil {
		return err
	}

	extractor := recognition.NewHTTPExtractor(cfg.Extractor.URL, log)
	service := people.NewService(
		postgres.NewPersonRepository(pool, log),
		postgres.NewPhotoRepository(pool, log),
		fileStore,
		extractor,
		log,
	)

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Importing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
	)

	imported := 0
	var failures []string
	for _, plan := range plans {
		person, err := service.CreatePerson(ctx, plan.personName)
		if err != nil {
			return fmt.Errorf("creating person %q: %w", plan.personName, err)
		}

		for _, path := range plan.images {
			data, err := os.ReadFile(path)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", path, err))
				bar.Add(1)
				continue
			}
			if _, err := service.AddPhoto(ctx, person.ID, filepath.Base(path), data); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", path, err))
				bar.Add(1)
				continue
			}
			imported++
			bar.Add(1)
		}
	}
	fmt.Println()

	fmt.Printf("Imported %d of %d photos for %d persons.\n", imported, total, len(plans))
	if len(failures) > 0 {
		fmt.Printf("Skipped %d photos:\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  %s\n", f)
		}
	}
	return nil
}

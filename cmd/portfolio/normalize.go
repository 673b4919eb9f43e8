package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/lambdaboot"
)

var (
	normalizeFolderFlag string
	normalizeAllFlag    bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Repair the display order of a folder",
	Long: `Normalize lists a folder the way the API does, which renumbers drifted
positions to 0..n-1 and writes them back.

Examples:
  portfolio normalize --folder home
  portfolio normalize --all`,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeFolderFlag, "folder", "", "Folder key, e.g. home or galleries/<slug>")
	normalizeCmd.Flags().BoolVar(&normalizeAllFlag, "all", false, "Normalize home, contact, and every gallery")
}

type normalizeResult struct {
	Folder string `json:"folder"`
	Photos int    `json:"photos"`
}

func runNormalize(cmd *cobra.Command, args []string) error {
	if (normalizeFolderFlag == "") == !normalizeAllFlag {
		return fmt.Errorf("pass exactly one of --folder or --all")
	}
	ctx := cmd.Context()
	app, err := wire(ctx, "portfolio-normalize", false)
	if err != nil {
		return err
	}

	keys := []string{normalizeFolderFlag}
	if normalizeAllFlag {
		if keys, err = allFolderKeys(ctx, app); err != nil {
			return err
		}
	}

	results := make([]normalizeResult, 0, len(keys))
	for _, key := range keys {
		f, err := app.Folders.Resolve(key)
		if err != nil {
			return err
		}
		photos, err := app.Photos.List(ctx, f)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", key, err)
		}
		log.Debug().Str("folder", f.Key).Int("photos", len(photos)).Msg("Folder normalized")
		results = append(results, normalizeResult{Folder: f.Key, Photos: len(photos)})
	}
	return printJSON(results)
}

func allFolderKeys(ctx context.Context, app *lambdaboot.App) ([]string, error) {
	galleries, err := app.Galleries.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := []string{folder.HomeKey, folder.ContactKey}
	for _, g := range galleries {
		keys = append(keys, folder.GalleryKey(g.Slug))
	}
	return keys, nil
}

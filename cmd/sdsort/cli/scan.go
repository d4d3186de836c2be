package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	config "github.com/mirelo/sdsort/internal/config/server"
	"github.com/mirelo/sdsort/internal/scanner"
	"github.com/mirelo/sdsort/pkg/db/store"
	"github.com/mirelo/sdsort/pkg/log"
)

func NewScanCommand() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "scan <folder>",
		Short: "Scan a folder of images into the catalog",
		Long: `Scan a folder of generated images, extract their provenance
metadata and index them into the catalog database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			logger := log.NewLoggerService("sdsort", cfg.Log)
			ctx := context.Background()

			imageStore, err := store.NewSQLiteStore(store.SQLiteConfig{Path: cfg.Store.SQLite.Path})
			if err != nil {
				return fmt.Errorf("failed to create image store: %w", err)
			}
			if err := imageStore.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect image store: %w", err)
			}
			defer imageStore.Close()

			if err := imageStore.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate image store: %w", err)
			}

			scan := scanner.NewScanner(imageStore, logger.Named("scanner"))
			result, err := scan.ScanFolder(ctx, args[0], recursive, func(current, total int, filename string) {
				logger.Info("[%d/%d] %s", current, total, filename)
			})
			if err != nil {
				return err
			}

			fmt.Printf("Scanned %d images: %d indexed, %d errors\n", result.Total, result.Indexed, result.Errors)
			for generator, count := range result.ByGenerator {
				fmt.Printf("  %-10s %d\n", generator, count)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "scan subfolders recursively")

	return cmd
}

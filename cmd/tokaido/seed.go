package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/damgoweb/tokaido-orai/internal/logging"
	"github.com/damgoweb/tokaido-orai/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	GroupID: "data",
	Short:   "Install the first-run bundle from object storage",
	Long: `Download the seed bundle (a backup document and, optionally, the
narration audio) from the configured S3-compatible bucket and install it.
Does nothing when a recording and sync points are already stored. Otherwise
only the missing parts are installed; stored sync points are never replaced.

Configure with seed.endpoint, seed.bucket, seed.settings_object and
seed.audio_object, or the matching TOKAIDO_SEED_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := runSeed(cmd.Context(), e)
		if err != nil {
			if errors.Is(err, seed.ErrNotConfigured) {
				return fmt.Errorf("%w: set seed.endpoint, seed.bucket and seed.settings_object", err)
			}
			if seed.IsNotFound(err) {
				return fmt.Errorf("seed object not found: %w", err)
			}
			return err
		}
		if res.Skipped {
			fmt.Println("Initial data already present; nothing to do")
			return nil
		}
		if res.Points > 0 {
			fmt.Printf("Installed %d sync points\n", res.Points)
		} else {
			fmt.Println("Kept the stored sync points")
		}
		if res.AudioPath != "" {
			fmt.Printf("Audio saved to %s\n", res.AudioPath)
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "data",
	Short:   "Report on the legacy store migration",
	Long: `Every command migrates data from the legacy key-value store (Redis
when legacy.redis_url is set, otherwise the legacy JSON file) the first time
it opens an empty database. This command does only that and reports the
outcome.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, false)
		if err != nil {
			return err
		}
		defer e.Close()

		if e.migrationErr != nil {
			return e.migrationErr
		}
		res := e.migration
		switch {
		case res.Migrated:
			fmt.Printf("Migrated %d sync points (settings moved: %v)\n", res.Points, res.SettingsMoved)
		case res.SkipReason != "":
			fmt.Printf("Nothing migrated: %s\n", res.SkipReason)
		}
		return nil
	},
}

// runSeed runs the seed loader against the env's store.
func runSeed(ctx context.Context, e *env) (seed.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sc := e.cfg.Seed
	loader, err := seed.New(seed.Config{
		Endpoint:       sc.Endpoint,
		Bucket:         sc.Bucket,
		SettingsObject: sc.SettingsObject,
		AudioObject:    sc.AudioObject,
		AccessKey:      sc.AccessKey,
		SecretKey:      sc.SecretKey,
		Region:         sc.Region,
		Secure:         sc.Secure,
		DataDir:        e.cfg.DataDir,
		Logger:         logging.New(e.logOut, "seed"),
	})
	if err != nil {
		return seed.Result{}, err
	}
	return loader.Load(ctx, e.store)
}

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	mongoMigration "bikerent/internal/migrations/mongo"
	vehiclesrepo "bikerent/internal/vehicles/repository"
	"bikerent/internal/vehicles/seed"
	"bikerent/internal/vehicles/validator"
	"bikerent/pkg/config"

	"github.com/spf13/cobra"
)

const JobName = "mongo-migration"

var timeout time.Duration

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply Mongo collections, schema validators and indexes",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMigrate,
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert fleet vehicles from a TOML file, skipping numbers already present",
	RunE:  runSeed,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 120*time.Second, "overall deadline for the job")
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "fleet TOML file")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadMongoConfig() (*config.Config, error) {
	cfg := config.Load(JobName)
	if !cfg.UsesMongo() {
		return nil, fmt.Errorf("%s must be %q for this job, got %q", config.EnvStoreBackend, config.StoreMongo, cfg.StoreBackend)
	}
	cfg.SetMongo()
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadMongoConfig()
	if err != nil {
		return err
	}
	defer cfg.GracefulShutdown()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	if err := mongoMigration.RunMigration(ctx, db, cfg.Log); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migration completed successfully.")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	fleet, err := seed.LoadFile(seedFile)
	if err != nil {
		return err
	}

	cfg, err := loadMongoConfig()
	if err != nil {
		return err
	}
	defer cfg.GracefulShutdown()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	seeder := seed.NewSeeder(vehiclesrepo.NewMongoVehicleRepository(cfg), validator.NewVehicleValidator(), cfg.Log)
	report, err := seeder.Seed(ctx, fleet)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seed completed: %d inserted, %d skipped.\n", report.Inserted, report.Skipped)
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cardpay/internal/config"
	"cardpay/internal/db"
	"cardpay/internal/logging"
	"cardpay/internal/repository"
	"cardpay/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Bootstrap accounts for the card payment ledger",
	}

	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(demoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func adminCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create the admin account if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			seeder, err := openSeeder()
			if err != nil {
				return err
			}
			created, err := seeder.EnsureAdmin(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Admin created: %s\n", email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Admin already exists.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", seed.DefaultAdminEmail, "admin email")
	cmd.Flags().StringVar(&password, "password", seed.DefaultAdminPassword, "admin password")
	return cmd
}

func demoCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Create a demo user with a default card",
		RunE: func(cmd *cobra.Command, args []string) error {
			seeder, err := openSeeder()
			if err != nil {
				return err
			}
			user, card, err := seeder.EnsureDemo(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Demo user %s, card %s (%s)\n", user.Email, card.ID, card.MaskedNumber)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", seed.DefaultDemoEmail, "demo user email")
	cmd.Flags().StringVar(&password, "password", seed.DefaultDemoPassword, "demo user password")
	return cmd
}

func openSeeder() (*seed.Seeder, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel, "seed", cfg.AppEnv)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return seed.New(repository.New(gormDB), logger), nil
}

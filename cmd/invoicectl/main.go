// Command invoicectl runs operational tasks against the invoiceflow database
// and storage: migrations, demo data, dev tokens, storage cleanup and
// dead-letter inspection.
package main

import (
	"fmt"
	"os"

	"invoiceflow/internal/config"
	"invoiceflow/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "invoicectl",
	Short:         "Operational commands for invoiceflow",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logger.Setup(logger.Config{Level: c.LogLevel, Format: c.LogFormat}); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(migrateCmd, seedCmd, tokenCmd, cleanupCmd, dlqCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("invoicectl")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

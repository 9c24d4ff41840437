package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"invoiceflow/internal/identity"
	"invoiceflow/internal/infra"
	"invoiceflow/internal/logger"
	"invoiceflow/internal/model"
	"invoiceflow/internal/rbac"
	"invoiceflow/internal/repository"
	"invoiceflow/internal/service"
	"invoiceflow/internal/worker"

	"github.com/spf13/cobra"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := infra.NewDatabase(cfg.DatabaseURL, false)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		if err := infra.RunMigrations(db); err != nil {
			return err
		}
		l := logger.WithComponent("migrate")
		l.Info().Msg("schema up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a demo partner and rate card (idempotent)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := infra.NewDatabase(cfg.DatabaseURL, true)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		p, rc, err := seedDemo(cmd.Context(), db, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "partner %s (%s)\nrate card %s\n", p.ID, p.Name, rc.ID)
		return nil
	},
}

const demoBillingCode = "DEMO"

// seedDemo upserts the demo partner by billing code and gives it an active
// rate card starting on the first of the current month.
func seedDemo(ctx context.Context, db *gorm.DB, now time.Time) (*model.Partner, *model.RateCard, error) {
	partners := repository.NewPartnerRepository(db)
	rateCards := repository.NewRateCardRepository(db)

	p, err := partners.FindByBillingCode(ctx, demoBillingCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		code, email, terms := demoBillingCode, "billing@demo.example.com", 30
		p = &model.Partner{
			Name:         "デモ運送株式会社",
			BillingCode:  &code,
			Email:        &email,
			PaymentTerms: &terms,
			IsActive:     true,
		}
		err = partners.Create(ctx, p)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("seed partner: %w", err)
	}

	rc, err := rateCards.FindActive(ctx, p.ID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("seed rate card: %w", err)
	}
	if rc == nil {
		rc = &model.RateCard{
			PartnerID: p.ID,
			Name:      "標準料金",
			ValidFrom: datatypes.Date(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)),
			IsActive:  true,
		}
		if err := rateCards.Create(ctx, rc); err != nil {
			return nil, nil, fmt.Errorf("seed rate card: %w", err)
		}
	}
	return p, rc, nil
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development bearer token for AUTH_MODE=jwt",
	RunE: func(cmd *cobra.Command, _ []string) error {
		role, _ := cmd.Flags().GetString("role")
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl == 0 {
			ttl = time.Duration(cfg.JWTExpirationHours) * time.Hour
		}
		r := rbac.ParseRole(role)
		if !rbac.Allowed(r, rbac.OpList) {
			return fmt.Errorf("unknown role %q (want Admin, Manager or Driver)", role)
		}
		token, err := identity.IssueToken(cfg.JWTSecret, identity.Identity{Email: email, Role: r}, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored invoice PDFs older than CLEANUP_TTL_HOURS",
	Example: `  invoicectl cleanup --dry-run
  invoicectl cleanup --ttl 720h`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl == 0 {
			ttl = time.Duration(cfg.CleanupTTLHours) * time.Hour
		}
		storage, err := infra.NewStorage(cfg)
		if err != nil {
			return err
		}
		svc := service.NewCleanupService(storage, service.CleanupConfig{
			TTL:      ttl,
			DryRun:   dryRun || cfg.CleanupDryRun,
			Disabled: cfg.CleanupDisabled,
		})
		stats, err := svc.Run(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			return err
		}
		if len(stats.Errors) > 0 {
			return fmt.Errorf("cleanup finished with %d errors", len(stats.Errors))
		}
		return nil
	},
}

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Show dead-letter depth and optionally replay entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		queue, _ := cmd.Flags().GetString("queue")
		replay, _ := cmd.Flags().GetInt("replay")

		rdb, err := infra.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()

		ctx := cmd.Context()
		if replay > 0 {
			n, err := worker.ReplayDLQ(ctx, rdb, queue, replay)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d entries onto %s\n", n, queue)
		}
		depth, err := worker.DLQLength(ctx, rdb, queue)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dlq:%s depth %d\n", queue, depth)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("role", "Manager", "Admin | Manager | Driver")
	tokenCmd.Flags().String("email", "dev@example.com", "caller email embedded in the token")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default JWT_EXPIRATION_HOURS)")

	cleanupCmd.Flags().Bool("dry-run", false, "list expired files without deleting them")
	cleanupCmd.Flags().Duration("ttl", 0, "age after which files are deleted (default CLEANUP_TTL_HOURS)")

	dlqCmd.Flags().String("queue", worker.QueueAudit, "live queue whose dead letters to inspect")
	dlqCmd.Flags().Int("replay", 0, "move up to N entries back onto the live queue")
}

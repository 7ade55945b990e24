// Package main 数据库迁移与维护命令
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dumeirei/villa-booking-backend/internal/common/config"
	"github.com/dumeirei/villa-booking-backend/internal/common/database"
	"github.com/dumeirei/villa-booking-backend/internal/common/jwt"
	"github.com/dumeirei/villa-booking-backend/internal/models"
	"github.com/dumeirei/villa-booking-backend/internal/repository"
	"github.com/dumeirei/villa-booking-backend/internal/service/booking"
)

var configPath string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "villa-migrate",
		Short: "Villa booking schema tool",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(
		upCmd(),
		statusCmd(),
		pruneCalendarCmd(),
		tokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which tables exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			return printStatus(cmd, db)
		},
	}
}

func printStatus(cmd *cobra.Command, db *gorm.DB) error {
	migrator := db.Migrator()
	missing := 0
	for _, model := range models.AllModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model: %w", err)
		}
		state := "ok"
		if !migrator.HasTable(model) {
			state = "missing"
			missing++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", stmt.Schema.Table, state)
	}
	if missing > 0 {
		return fmt.Errorf("%d table(s) missing, run \"up\"", missing)
	}
	return nil
}

func pruneCalendarCmd() *cobra.Command {
	var retainDays int
	cmd := &cobra.Command{
		Use:   "prune-calendar",
		Short: "Delete calendar blocks older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if retainDays < 0 {
				return fmt.Errorf("retain-days must not be negative")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			cutoff := time.Now().UTC().AddDate(0, 0, -retainDays).Format(booking.DateLayout)
			n, err := repository.NewCalendarBlockRepository(db).DeleteBefore(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("prune calendar: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d calendar block(s) before %s.\n", n, cutoff)
			return nil
		},
	}
	cmd.Flags().IntVar(&retainDays, "retain-days", 90, "days of past calendar to keep")
	return cmd
}

// tokenCmd 签发访问令牌，供联调与运维脚本使用
func tokenCmd() *cobra.Command {
	var (
		userID int64
		admin  bool
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user or admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("user must be a positive id")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return issueToken(cmd, &cfg.JWT, userID, admin, role)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id carried in the token")
	cmd.Flags().BoolVar(&admin, "admin", false, "issue an admin token")
	cmd.Flags().StringVar(&role, "role", "guest", "role claim (guest or host)")
	return cmd
}

func issueToken(cmd *cobra.Command, cfg *config.JWTConfig, userID int64, admin bool, role string) error {
	userType := jwt.UserTypeUser
	if admin {
		userType = jwt.UserTypeAdmin
	}
	m := jwt.NewManager(&jwt.Config{
		Secret:           cfg.Secret,
		AccessExpireTime: cfg.AccessTokenDuration(),
		Issuer:           cfg.Issuer,
	})
	token, expireAt, err := m.GenerateAccessToken(userID, userType, role)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", time.Unix(expireAt, 0).UTC().Format(time.RFC3339))
	return nil
}

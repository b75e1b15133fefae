package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"payment_gateway/internal/cards"
	"payment_gateway/internal/config"
	"payment_gateway/internal/db"
	"payment_gateway/internal/domain"
	"payment_gateway/internal/export"
	"payment_gateway/internal/ledger"
	"payment_gateway/internal/stats"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// operator is the identity offline commands act as
var operator = domain.Principal{Admin: true}

// services is what every subcommand needs, opened lazily from the environment.
type services struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

func openServices() (*services, error) {
	gdb, err := db.Open(config.LoadConfig())
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	reg := cards.NewRegistry(gdb, nil)
	return &services{db: gdb, ledger: ledger.New(gdb, reg)}, nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Reports and exports for the payment ledger",
		Long:          "ledgerctl reads the database configured by the same environment as the server (DB_DRIVER, DB_*, DB_PATH).",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(promoteCmd())
	return rootCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func summaryCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the payment summary of one UTC day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now().UTC()
			if date != "" {
				d, err := ledger.ParseDate(date)
				if err != nil {
					return err
				}
				day = d
			}
			svc, err := openServices()
			if err != nil {
				return err
			}
			s, err := stats.NewEngine(svc.ledger).DailySummary(cmd.Context(), operator, day)
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
	cmd.Flags().StringVarP(&date, "date", "d", "", "Day to summarize (YYYY-MM-DD, default today)")
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print the admin dashboard figures",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices()
			if err != nil {
				return err
			}
			d, err := stats.NewEngine(svc.ledger).DashboardStats(cmd.Context(), operator, time.Now().UTC())
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		},
	}
}

func exportCmd() *cobra.Command {
	var format, out string
	filterFlags := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions as CSV or XLSX",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ledger.ParseFilter(func(key string) string {
				if v, ok := filterFlags[key]; ok {
					return *v
				}
				return ""
			})
			if err != nil {
				return err
			}
			fmtv, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			svc, err := openServices()
			if err != nil {
				return err
			}
			file, err := export.NewService(svc.ledger).Export(cmd.Context(), operator, f, fmtv)
			if err != nil {
				return err
			}
			if out == "" {
				out = file.Name
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(file.Data)
				return err
			}
			if err := os.WriteFile(out, file.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d transactions to %s\n", file.Rows, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format (csv, xlsx)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default transactions_<timestamp>.<format>)")
	for _, key := range []string{"status", "date_from", "date_to", "min_amount", "max_amount", "user_id"} {
		filterFlags[key] = cmd.Flags().String(strings.ReplaceAll(key, "_", "-"), "", "Filter by "+strings.ReplaceAll(key, "_", " "))
	}
	return cmd
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote [username]",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices()
			if err != nil {
				return err
			}
			username := strings.ToLower(args[0])
			res := svc.db.WithContext(cmd.Context()).Model(&domain.User{}).
				Where("username = ?", username).
				Update("role", domain.RoleAdmin)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errors.New("no user named " + username)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", username)
			return nil
		},
	}
}

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"invoicedesk/internal/config"
	"invoicedesk/internal/logger"
)

var version = "1.0.0"

// appConfig is set by main before Execute.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "invoicedesk",
	Short: "Invoice desk CLI - project invoices, bulk import, export and reports",
	Long: `invoicedesk is a command-line client for the project invoice backend.

It computes invoice amounts (GST, deductions, net payable, balance), creates
and edits invoices with their attachments, imports invoices in bulk from
CSV, Excel or Google Sheets, exports the filtered list, and prints the
dashboard reports (summary, deductions, statuses, projects, overdue, aging
and GST).`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: preRun,
}

// SetConfig hands the loaded configuration to the commands.
func SetConfig(cfg *config.Config) {
	appConfig = cfg
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Debug().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("api-url", "", "Invoice backend base URL (default from INVOICEDESK_API_URL)")
	pf.String("token", "", "Bearer token to use instead of the stored session")
	pf.String("session-file", "", "Where the login session is stored (default from INVOICEDESK_SESSION_FILE)")
	pf.String("log-level", "", "Log level: trace, debug, info, warn, error")
	pf.Duration("timeout", 0, "Timeout for backend calls (default from INVOICEDESK_TIMEOUT)")
	pf.Bool("json", false, "Print JSON instead of tables")
}

func preRun(cmd *cobra.Command, args []string) error {
	if appConfig == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		appConfig = cfg
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("api-url"); v != "" {
		appConfig.APIURL = v
	}
	if v, _ := flags.GetString("token"); v != "" {
		appConfig.Token = v
	}
	if v, _ := flags.GetString("session-file"); v != "" {
		appConfig.SessionFile = v
	}
	if v, _ := flags.GetDuration("timeout"); v > 0 {
		appConfig.Timeout = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		if err := logger.SetLevel(v); err != nil {
			return err
		}
		appConfig.LogLevel = v
	}

	return appConfig.Validate()
}

// commandTimeout is the configured per-command deadline.
func commandTimeout() time.Duration {
	if appConfig == nil || appConfig.Timeout <= 0 {
		return 30 * time.Second
	}
	return appConfig.Timeout
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

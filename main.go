package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"staffdesk/config"
	"staffdesk/internal/db"
	"staffdesk/internal/logs"
	"staffdesk/server"
)

var rootCmd = &cobra.Command{
	Use:           "staffdesk",
	Short:         "HR and credentialing backend for healthcare staffing",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		app := &server.App{}
		if err := app.Initialize(cfg); err != nil {
			return err
		}
		defer app.Close()
		return app.Run(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return err
		}
		if err := db.Migrate(d); err != nil {
			return err
		}
		logs.Logger.Infof("schema up to date (%s)", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, setupAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/anjanb/questdb/internal/dsn"
	"github.com/anjanb/questdb/internal/keychain"
)

// dbinfoCmd shows the upstream connection with the password masked.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show the upstream database connection string",
	Long: `The dbinfo command displays the PostgreSQL DSN serve --engine postgres would use,
with the password masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, source, err := resolveDSN()
		if errors.Is(err, keychain.ErrNoDSN) || err == nil && raw == "" {
			pterm.Println("⚠️  No database connection configured")
			pterm.Println("   Please run: jsonquery connect")
			return nil
		}
		if err != nil {
			pterm.Println("❌ Secure storage is not available on this system")
			return err
		}

		info, err := dsn.Parse(raw)
		if err != nil {
			pterm.Println("❌ The stored connection string is invalid")
			return err
		}

		pterm.Println("Using DSN from " + source)
		pterm.Println()
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithTopPadding(1).WithBottomPadding(1).WithLeftPadding(1).WithRightPadding(1).
			Println(info.Masked())
		pterm.Println()
		pterm.Println("To update this connection, run: jsonquery connect")
		pterm.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}

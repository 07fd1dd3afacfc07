// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface of jsonquery. It serves
// query results as streamed JSON documents over HTTP and ships a client
// that renders them as tables.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "jsonquery",
	Short:         "Stream SQL query results as JSON over HTTP",
	Long:          `jsonquery runs SQL over an in-memory columnar store or PostgreSQL and streams the results as JSON documents through a bounded response buffer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("jsonquery %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
}

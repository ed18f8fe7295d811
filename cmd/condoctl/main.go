// Package main is the condoctl command line tool: ask condominium law
// questions and analyze bylaws without running the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"condolex-backend/app"
	"condolex-backend/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "condoctl",
	Short: "Condominium law assistant for the command line",
	Long: `condoctl answers questions about Brazilian condominium law using the Civil Code
index and the condominium's internal documents, and checks bylaws for clauses
that may conflict with the law.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "log pipeline progress to stderr")
}

// newApp loads configuration and builds the services for a single command
func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	return app.New(cmd.Context(), cfg, app.NewCLILogger(verbose))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

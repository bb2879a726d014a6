// Command dusseldorfctl administers a dusseldorf deployment directly
// against its database: user accounts, domains and zones. It is meant
// for operators, not tenants; tenant-facing operations go through the
// HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/org/dusseldorf/internal/storage"
)

var dbURL string

var rootCmd = &cobra.Command{
	Use:   "dusseldorfctl",
	Short: "Dusseldorf admin CLI",
	Long:  "Administrative CLI for a dusseldorf deployment.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Postgres connection string (defaults to $DSSLDRF_CONNSTR)")

	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(domainsCmd())
	rootCmd.AddCommand(zonesCmd())
}

// connect opens the storage backend used by every subcommand.
func connect(ctx context.Context) (*storage.PostgresBackend, error) {
	url := dbURL
	if url == "" {
		url = os.Getenv("DSSLDRF_CONNSTR")
	}
	if url == "" {
		return nil, fmt.Errorf("no database configured: pass --db or set DSSLDRF_CONNSTR")
	}
	return storage.NewPostgresBackend(ctx, url)
}

package main

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/rebar-authz/rebar/internal/cli"
)

var migrateDB string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tuples table",
	Long:  `Create the rebar_tuples table and indexes if they do not exist.`,
	Example: `  # Apply to postgres
  rebar migrate --db postgres://localhost/mydb

  # Apply to a sqlite database file
  rebar migrate --db authz.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(migrateDB)
		if err != nil {
			return err
		}

		st, db, err := openStore(dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := st.Migrate(context.Background()); err != nil {
			return cli.GeneralError("applying migration", err)
		}

		if !quiet {
			fmt.Println("Tuples table ready.")
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDB, "db", "", "database URL")
}

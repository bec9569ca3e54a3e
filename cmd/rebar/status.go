package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/rebar-authz/rebar/internal/cli"
)

var (
	statusDB     string
	statusSchema string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current schema and store status",
	Long:  `Show whether the schema file and tuples table are present.`,
	Example: `  # Check status
  rebar status --db postgres://localhost/mydb`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaPath := resolveString(statusSchema, cfg.Schema)

		dsn, err := resolveDSN(statusDB)
		if err != nil {
			return err
		}

		return runStatus(dsn, schemaPath)
	},
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusDB, "db", "", "database URL")
	f.StringVar(&statusSchema, "schema", "", "path to schema.fga file")
}

func runStatus(dsn, schemaPath string) error {
	_, db, err := openStore(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	schemaPresent := schemaPath == "" // embedded model is always present
	if schemaPath != "" {
		_, statErr := os.Stat(schemaPath)
		schemaPresent = statErr == nil
	}

	var count int
	tableErr := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM rebar_tuples").Scan(&count)

	if schemaPath == "" {
		fmt.Println("Schema:       embedded default model")
	} else if schemaPresent {
		fmt.Printf("Schema:       %s\n", schemaPath)
	} else {
		fmt.Printf("Schema:       missing (%s)\n", schemaPath)
	}

	if tableErr != nil {
		fmt.Println("Tuples table: missing")
		fmt.Println("\nRun rebar migrate to create it.")
		return nil
	}
	fmt.Printf("Tuples table: present (%d tuples)\n", count)

	if !schemaPresent {
		return cli.GeneralError(fmt.Sprintf("no schema found at %s", schemaPath), nil)
	}
	return nil
}

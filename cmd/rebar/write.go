package main

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/rebar-authz/rebar"
	"github.com/rebar-authz/rebar/internal/cli"
	"github.com/rebar-authz/rebar/schema"
)

var (
	writeDB      string
	writeSchema  string
	writeAdds    []string
	writeRemoves []string
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Add or remove relationship tuples",
	Long: `Add or remove relationship tuples as one atomic batch. Tuples
are written as object#relation@subject. Every tuple is validated against
the schema; hierarchy edges are checked for duplicate parents and cycles.`,
	Example: `  # Grant bob reader on a document
  rebar write --add document:d1#reader@user:bob

  # Share to a group and revoke a user in one batch
  rebar write --add document:d1#reader@group:7#all_members --remove document:d1#reader@user:bob`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(writeAdds) == 0 && len(writeRemoves) == 0 {
			return cli.GeneralError("nothing to write (use --add or --remove)", nil)
		}

		var adds, removes []rebar.Tuple
		for _, s := range writeAdds {
			t, err := parseTuple(s)
			if err != nil {
				return cli.GeneralError("parsing --add", err)
			}
			adds = append(adds, t)
		}
		for _, s := range writeRemoves {
			t, err := parseTuple(s)
			if err != nil {
				return cli.GeneralError("parsing --remove", err)
			}
			removes = append(removes, t)
		}

		dsn, err := resolveDSN(writeDB)
		if err != nil {
			return err
		}
		st, db, err := openStore(dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		e, err := newEngine(st, writeSchema)
		if err != nil {
			return err
		}

		rev, err := e.WriteRelationships(context.Background(), adds, removes)
		if err != nil {
			if schema.IsSchemaErr(err) || errors.Is(err, rebar.ErrDuplicateParent) || errors.Is(err, rebar.ErrCyclicHierarchy) {
				return cli.RejectedError("batch rejected", err)
			}
			return cli.GeneralError("writing tuples", err)
		}

		if !quiet {
			fmt.Printf("Wrote %d adds, %d removes (revision %s)\n", len(adds), len(removes), rev)
		}
		return nil
	},
}

func init() {
	f := writeCmd.Flags()
	f.StringVar(&writeDB, "db", "", "database URL")
	f.StringVar(&writeSchema, "schema", "", "path to schema.fga file")
	f.StringArrayVar(&writeAdds, "add", nil, "tuple to add (repeatable)")
	f.StringArrayVar(&writeRemoves, "remove", nil, "tuple to remove (repeatable)")
}

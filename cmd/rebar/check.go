package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/rebar-authz/rebar"
	"github.com/rebar-authz/rebar/engine"
	"github.com/rebar-authz/rebar/internal/cli"
)

var (
	checkDB       string
	checkSchema   string
	checkExitCode bool
)

var checkCmd = &cobra.Command{
	Use:   "check <subject> <permission> <object>",
	Short: "Evaluate a permission",
	Long: `Evaluate a permission for a subject against the tuples in the
database. Subjects are type:id or type:id#relation; objects are type:id.`,
	Example: `  # Can alice view a document?
  rebar check user:alice view document:d1

  # Userset subject
  rebar check group:7#all_members reader document:d1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args[0])
		if err != nil {
			return cli.GeneralError("parsing subject", err)
		}
		object, err := parseObject(args[2])
		if err != nil {
			return cli.GeneralError("parsing object", err)
		}
		relation := rebar.Relation(args[1])

		dsn, err := resolveDSN(checkDB)
		if err != nil {
			return err
		}
		st, db, err := openStore(dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		var opts []engine.Option
		if cfg.Cache.Enabled {
			ttl, err := time.ParseDuration(cfg.Cache.TTL)
			if err != nil {
				return cli.ConfigError("parsing cache.ttl", err)
			}
			opts = append(opts, engine.WithCheckerOptions(
				rebar.WithCache(rebar.NewCache(rebar.WithTTL(ttl)))))
		}

		e, err := newEngine(st, checkSchema, opts...)
		if err != nil {
			return err
		}

		allowed, err := e.Checker().Check(context.Background(), subject, relation, object)
		if err != nil {
			return cli.GeneralError("evaluating check", err)
		}

		if allowed {
			fmt.Printf("allowed: %s %s %s\n", subject, relation, object)
			return nil
		}
		fmt.Printf("denied: %s %s %s\n", subject, relation, object)
		if checkExitCode {
			os.Exit(cli.ExitDenied)
		}
		return nil
	},
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkDB, "db", "", "database URL")
	f.StringVar(&checkSchema, "schema", "", "path to schema.fga file")
	f.BoolVar(&checkExitCode, "exit-code", false, "exit 6 on a denied decision, for scripting")
}

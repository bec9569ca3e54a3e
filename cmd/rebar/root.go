package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rebar-authz/rebar"
	"github.com/rebar-authz/rebar/engine"
	"github.com/rebar-authz/rebar/internal/cli"
	"github.com/rebar-authz/rebar/store"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string

	// Persistent flags
	cfgFile string
	verbose int
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "rebar",
	Short: "Relationship-based access control",
	Long: `rebar - Relationship-based access control

Rebar evaluates permissions over relationship tuples: direct grants,
group usersets, folder/document hierarchy and permission formulas
defined in an OpenFGA schema.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupSchema  = "schema"
	groupData    = "data"
	groupUtility = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover rebar.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	// Define command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: groupSchema, Title: "Schema:"},
		&cobra.Group{ID: groupData, Title: "Data:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	// Schema commands
	validateCmd.GroupID = groupSchema
	migrateCmd.GroupID = groupSchema
	statusCmd.GroupID = groupSchema
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)

	// Data commands
	checkCmd.GroupID = groupData
	writeCmd.GroupID = groupData
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(writeCmd)

	// Utility commands
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	if dsn == "" {
		return "", cli.ConfigError("database URL is required (use --db or set in config)", nil)
	}
	return dsn, nil
}

// openStore opens the configured database and wraps it in a tuple
// store. The caller closes the returned handle.
func openStore(dsn string) (*store.SQLStore, *sql.DB, error) {
	driver := cfg.Database.Driver
	if driver == "" {
		driver = "postgres"
	}

	dialect := store.DialectPostgres
	if driver == "sqlite3" {
		dialect = store.DialectSQLite
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, cli.DBConnectError("connecting to database", err)
	}
	return store.NewSQLStore(db, dialect), db, nil
}

// newEngine builds an engine over the store, using the configured
// schema file when set and the embedded default model otherwise.
func newEngine(st rebar.TupleStore, schemaFlag string, opts ...engine.Option) (*engine.Engine, error) {
	if path := resolveString(schemaFlag, cfg.Schema); path != "" {
		dsl, err := readSchemaFile(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithSchema(dsl))
	}

	e, err := engine.New(st, opts...)
	if err != nil {
		return nil, cli.SchemaParseError("building engine", err)
	}
	return e, nil
}

// parseObject parses "type:id" notation.
func parseObject(s string) (rebar.Object, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return rebar.Object{}, fmt.Errorf("expected type:id, got %q", s)
	}
	return rebar.Object{Type: rebar.ObjectType(typ), ID: id}, nil
}

// parseSubject parses "type:id" or "type:id#relation" notation.
func parseSubject(s string) (rebar.Subject, error) {
	ref, relation, userset := strings.Cut(s, "#")
	obj, err := parseObject(ref)
	if err != nil {
		return rebar.Subject{}, err
	}
	sub := rebar.Subject{Object: obj}
	if userset {
		if relation == "" {
			return rebar.Subject{}, fmt.Errorf("empty userset relation in %q", s)
		}
		sub.Relation = rebar.Relation(relation)
	}
	return sub, nil
}

// parseTuple parses "type:id#relation@subject" notation, e.g.
// "document:d1#reader@group:7#all_members".
func parseTuple(s string) (rebar.Tuple, error) {
	left, subjectRef, ok := strings.Cut(s, "@")
	if !ok {
		return rebar.Tuple{}, fmt.Errorf("expected object#relation@subject, got %q", s)
	}
	objectRef, relation, ok := strings.Cut(left, "#")
	if !ok || relation == "" {
		return rebar.Tuple{}, fmt.Errorf("expected object#relation@subject, got %q", s)
	}
	obj, err := parseObject(objectRef)
	if err != nil {
		return rebar.Tuple{}, err
	}
	sub, err := parseSubject(subjectRef)
	if err != nil {
		return rebar.Tuple{}, err
	}
	return rebar.Tuple{Object: obj, Relation: rebar.Relation(relation), Subject: sub}, nil
}

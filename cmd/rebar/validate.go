package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rebar-authz/rebar/engine"
	"github.com/rebar-authz/rebar/internal/cli"
	"github.com/rebar-authz/rebar/parser"
	"github.com/rebar-authz/rebar/schema"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate schema syntax",
	Long:  `Validate schema syntax and structure using the OpenFGA parser.`,
	Example: `  # Validate a specific schema file
  rebar validate --schema schema.fga

  # Validate the embedded default model
  rebar validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsl := engine.DefaultSchema
		source := "embedded default model"
		if path := resolveString(validateSchema, cfg.Schema); path != "" {
			var err error
			dsl, err = readSchemaFile(path)
			if err != nil {
				return err
			}
			source = path
		}

		types, err := parser.ParseSchemaString(dsl)
		if err != nil {
			return cli.SchemaParseError("parsing schema", err)
		}
		if _, err := schema.NewRegistry(types); err != nil {
			return cli.SchemaParseError("validating schema", err)
		}

		if !quiet {
			fmt.Printf("Schema is valid (%s). Found %d types:\n", source, len(types))
			for _, t := range types {
				fmt.Printf("  - %s (%d relations)\n", t.Name, len(t.Relations))
			}
		}

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "path to schema.fga file")
}

func readSchemaFile(path string) (string, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path is from trusted source
	if err != nil {
		return "", cli.SchemaParseError(fmt.Sprintf("schema not found: %s", path), err)
	}
	return string(content), nil
}

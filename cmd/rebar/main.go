// Command rebar manages relationship-based authorization data.
//
// The CLI supports:
//   - validate: Check .fga schema syntax using the OpenFGA parser
//   - migrate: Create the tuples table in the database
//   - status: Show current schema and tuple-store state
//   - check: Evaluate a permission for a subject
//   - write: Add or remove relationship tuples
//
// Commands that require database access (migrate, status, check, write)
// need --db or database settings in rebar.yaml. validate only needs the
// schema file.
package main

func main() {
	Execute()
}

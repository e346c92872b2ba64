// Package render implements the render command printing constraint DDL.
package render

import (
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/pgconstraints/cmd/internal/cliutil"
	"github.com/stokaro/pgconstraints/config"
	"github.com/stokaro/pgconstraints/core/ddl"
	"github.com/stokaro/pgconstraints/core/platform"
	"github.com/stokaro/pgconstraints/migration/history"
)

const (
	definitionsFlag = "definitions"
	dialectFlag     = "dialect"
	statementFlag   = "statement"
)

// Statement kinds accepted by --statement.
const (
	StatementCreate = "create"
	StatementDrop   = "drop"
)

// NewRenderCommand creates the render command. Flags left empty fall back
// to the loaded settings.
func NewRenderCommand(settings func() *config.Settings) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		definitionsFlag: &cobraflags.StringFlag{
			Name:  definitionsFlag,
			Value: "",
			Usage: "YAML file with constraint definitions (defaults to the configured definitions)",
		},
		dialectFlag: &cobraflags.StringFlag{
			Name:  dialectFlag,
			Value: "",
			Usage: "Database dialect (postgres). Defaults to the configured dialect",
		},
		statementFlag: &cobraflags.StringFlag{
			Name:  statementFlag,
			Value: StatementCreate,
			Usage: "Statements to render: create or drop",
		},
	}

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Print the DDL for every constraint in the definitions file",
		Long: `Print CREATE (or DROP) statements for every exclusion constraint and
constraint trigger in the definitions file, grouped by table.

Examples:
  pgconstraints render
  pgconstraints render --definitions booking.yaml --statement drop`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := settings()
			return run(cmd,
				cliutil.String(cmd, definitionsFlag, s.Definitions),
				cliutil.String(cmd, dialectFlag, s.Dialect),
				cliutil.String(cmd, statementFlag, StatementCreate),
			)
		},
	}

	cobraflags.RegisterMap(renderCmd, flags)
	return renderCmd
}

func run(cmd *cobra.Command, definitions, dialect, statement string) error {
	if statement != StatementCreate && statement != StatementDrop {
		return fmt.Errorf("invalid statement kind %q (use %s or %s)", statement, StatementCreate, StatementDrop)
	}

	editor, err := platform.NewEditor(dialect)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(definitions)
	if err != nil {
		return fmt.Errorf("error reading constraint definitions: %w", err)
	}
	snapshot, err := history.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("error parsing constraint definitions %s: %w", definitions, err)
	}
	snapshot.Sort()

	out := cmd.OutOrStdout()
	for _, table := range snapshot.Tables {
		if len(table.Constraints) == 0 {
			continue
		}
		fmt.Fprintf(out, "-- %s\n", table.Model.QualifiedName())
		for _, c := range table.Constraints {
			var stmt *ddl.Statement
			if statement == StatementDrop {
				stmt = c.RemoveSQL(table.Model, editor)
			} else {
				stmt, err = c.CreateSQL(table.Model, editor)
				if err != nil {
					return fmt.Errorf("constraint %s on %s: %w", c.Name(), table.Model.QualifiedName(), err)
				}
			}
			fmt.Fprintln(out, stmt.String()+";")
		}
		fmt.Fprintln(out)
	}
	return nil
}

package cliutil_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/cobra"

	"github.com/stokaro/pgconstraints/cmd/internal/cliutil"
)

func TestString(t *testing.T) {
	c := qt.New(t)

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("dialect", "", "")
	cmd.Flags().String("statement", "create", "")

	c.Assert(cliutil.String(cmd, "dialect", "postgres"), qt.Equals, "postgres")
	c.Assert(cliutil.String(cmd, "statement", "drop"), qt.Equals, "create")
	c.Assert(cliutil.String(cmd, "missing", "fallback"), qt.Equals, "fallback")

	c.Assert(cmd.Flags().Set("dialect", "pgx"), qt.IsNil)
	c.Assert(cliutil.String(cmd, "dialect", "postgres"), qt.Equals, "pgx")
}

// Package cliutil holds helpers shared by the pgconstraints commands.
package cliutil

import "github.com/spf13/cobra"

// String returns the value of a string flag of cmd, or fallback when the
// flag is empty or not defined.
func String(cmd *cobra.Command, name, fallback string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil || v == "" {
		return fallback
	}
	return v
}

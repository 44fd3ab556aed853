package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag registered in init(). A missing or mistyped flag
// is a wiring mistake in this package, so it panics.
func mustFlag[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("reading --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(name, cmd.Flags().GetString)
}

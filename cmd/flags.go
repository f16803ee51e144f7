package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustGet reads a flag registered in init(). A lookup error is a programming
// bug, so it panics instead of returning.
func mustGet[T any](cmd *cobra.Command, name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustGet(cmd, name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustGet(cmd, name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustGet(cmd, name, cmd.Flags().GetString)
}

func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	return mustGet(cmd, name, cmd.Flags().GetFloat64)
}

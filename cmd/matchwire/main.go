package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matchwire/matchwire/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "matchwire",
		Short:         "Matchwire agent - streams live match state to a relay server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Version = version.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	rootCmd.AddCommand(newAgentCommand())
	rootCmd.AddCommand(newKeygenCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the agent version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println(version.Format(version.String()))
		},
	}
}

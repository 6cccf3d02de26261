package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "promptreg",
	Short: "Versioned prompt registry with A/B experimentation",
	Long: `promptreg is a versioned registry for prompt templates.

Register prompts, render them with variables, roll back to earlier versions,
and run weighted A/B experiments with statistical significance testing to
decide which variant actually performs better.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okubit/humid/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .humid.yml in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(".humid.yml"); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote .humid.yml")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

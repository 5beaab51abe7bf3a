package commands

import (
	"github.com/spf13/cobra"
)

var typeName string

func Execute() error {
	root := &cobra.Command{
		Use:           "wacomock",
		Short:         "Synthesize interceptable mock modules for wazero",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&typeName, "name", "", "qualified type name to use instead of the module's own name")

	root.AddCommand(inspectCmd())
	root.AddCommand(synthCmd())
	root.AddCommand(signCmd())
	return root.Execute()
}

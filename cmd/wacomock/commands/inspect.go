package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/types"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <module.wasm>",
		Short: "Print the mockable type model of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			rt := wazero.NewRuntime(ctx)
			defer rt.Close(ctx)

			compiled, err := rt.CompileModule(ctx, data)
			if err != nil {
				return fmt.Errorf("failed to compile module: %w", err)
			}

			dom := domain.NewRuntimeDomain("inspect", rt)
			t, err := types.FromCompiled(typeName, compiled, data, dom)
			if err != nil {
				return err
			}

			fmt.Printf("Type:      %s\n", t.Name)
			fmt.Printf("Namespace: %s\n", t.Namespace)
			fmt.Printf("Public:    %v\n", t.Public)
			fmt.Printf("Signed:    %v\n", t.Signed)
			fmt.Printf("Builtin:   %v\n", t.RuntimeBuiltin())

			fmt.Printf("\nMethods (%d):\n", len(t.Methods))
			for _, m := range t.Methods {
				fmt.Printf("  %s\n", m)
			}

			if len(t.Annotations) > 0 {
				fmt.Printf("\nAnnotations (%d):\n", len(t.Annotations))
				for _, a := range t.Annotations {
					fmt.Printf("  %s (%d bytes)\n", a.Name, len(a.Data))
				}
			}
			return nil
		},
	}
	return cmd
}

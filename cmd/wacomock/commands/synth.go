package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/mock"
	"github.com/partite-ai/wacomock/types"
)

func synthCmd() *cobra.Command {
	var (
		serialization    string
		stripAnnotations bool
		outPath          string
	)

	cmd := &cobra.Command{
		Use:   "synth <module.wasm>",
		Short: "Synthesize a mock type for a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mode, err := serializationMode(serialization)
			if err != nil {
				return err
			}

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

			dom := domain.NewRuntimeDomain("synth", rt)
			target, err := types.FromCompiled(typeName, compiled, data, dom)
			if err != nil {
				return err
			}

			features, err := mock.NewMockFeatures(target, nil, mode, stripAnnotations)
			if err != nil {
				return err
			}

			generator := mock.NewGenerator(dom)
			generated, err := generator.Synthesize(ctx, features)
			if err != nil {
				return err
			}

			fmt.Printf("Synthesized: %s\n", generated.Name)
			fmt.Printf("Quarantined: %v\n", generated.Quarantined)
			fmt.Printf("Artifact:    %d bytes\n", len(generated.Binary))

			if outPath != "" {
				if err := os.WriteFile(outPath, generated.Binary, 0o644); err != nil {
					return err
				}
				fmt.Printf("Written to:  %s\n", outPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serialization, "serialization", "none", "serialization mode: none, basic or cross-domain")
	cmd.Flags().BoolVar(&stripAnnotations, "strip-annotations", false, "omit the target's annotations from the generated type")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the generated artifact to a file")
	return cmd
}

func serializationMode(name string) (mock.SerializationMode, error) {
	switch name {
	case "none":
		return mock.SerializationNone, nil
	case "basic":
		return mock.SerializationBasic, nil
	case "cross-domain":
		return mock.SerializationAcrossDomains, nil
	default:
		return 0, fmt.Errorf("unknown serialization mode: %s", name)
	}
}

package commands

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/partite-ai/wacomock/types"
)

func signCmd() *cobra.Command {
	var (
		seedHex string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "sign <module.wasm>",
		Short: "Attach a signature section to a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := hex.DecodeString(seedHex)
			if err != nil {
				return fmt.Errorf("invalid key seed: %w", err)
			}
			if len(seed) != ed25519.SeedSize {
				return fmt.Errorf("key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			signed, err := types.Sign(data, ed25519.NewKeyFromSeed(seed))
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = args[0]
			}
			if err := os.WriteFile(outPath, signed, 0o644); err != nil {
				return err
			}
			fmt.Printf("Signed module written to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&seedHex, "key", "", "hex-encoded ed25519 key seed")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (defaults to in-place)")
	cmd.MarkFlagRequired("key")
	return cmd
}

package types_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/partite-ai/wacomock/domain"
	"github.com/partite-ai/wacomock/testutil"
	"github.com/partite-ai/wacomock/types"
)

func signingKey(t *testing.T, seed byte) ed25519.PrivateKey {
	t.Helper()
	seedBytes := bytes.Repeat([]byte{seed}, ed25519.SeedSize)
	return ed25519.NewKeyFromSeed(seedBytes)
}

func TestSignAndVerify(t *testing.T) {
	binary, err := testutil.ConstModule(map[string]int32{"value": 1}, nil)
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}

	key := signingKey(t, 1)
	signed, err := types.Sign(binary, key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	signers, err := types.Signers(signed)
	if err != nil {
		t.Fatalf("Signers failed: %v", err)
	}
	if len(signers) != 1 || !signers[0].Equal(key.Public().(ed25519.PublicKey)) {
		t.Errorf("unexpected signers: %v", signers)
	}

	// Multiple signatures accumulate.
	resigned, err := types.Sign(signed, signingKey(t, 2))
	if err != nil {
		t.Fatalf("second Sign failed: %v", err)
	}
	signers, err = types.Signers(resigned)
	if err != nil {
		t.Fatalf("Signers failed: %v", err)
	}
	if len(signers) != 2 {
		t.Errorf("expected 2 signers, got %d", len(signers))
	}
}

func TestSignersRejectsTampering(t *testing.T) {
	binary, err := testutil.ConstModule(map[string]int32{"value": 1}, map[string][]byte{"example:meta": {0}})
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}
	signed, err := types.Sign(binary, signingKey(t, 3))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	// Flip a byte inside the annotation payload, which is part of the digest.
	tampered := append([]byte(nil), signed...)
	tampered[len(binary)-1] ^= 0xFF

	signers, err := types.Signers(tampered)
	if err != nil {
		t.Fatalf("Signers failed: %v", err)
	}
	if len(signers) != 0 {
		t.Errorf("expected no valid signers after tampering, got %d", len(signers))
	}
}

func TestSignedAttribute(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	dom := domain.NewRuntimeDomain("app", rt)

	binary, err := testutil.ConstModule(map[string]int32{"value": 1}, nil)
	if err != nil {
		t.Fatalf("failed to build fixture: %v", err)
	}
	signed, err := types.Sign(binary, signingKey(t, 4))
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	compiled, err := rt.CompileModule(ctx, signed)
	if err != nil {
		t.Fatalf("failed to compile: %v", err)
	}

	mt, err := types.FromCompiled("example:app/vetted", compiled, signed, dom)
	if err != nil {
		t.Fatalf("FromCompiled failed: %v", err)
	}
	if !mt.Signed {
		t.Error("expected signed origin attribute")
	}
}

package types

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/partite-ai/wacomock/wasm"
)

// SignatureSection is the custom section carrying a module signature: a
// 32-byte ed25519 public key followed by a 64-byte signature over the
// blake2b-256 digest of the module with all signature sections removed.
const SignatureSection = "wacomock:signature"

const signaturePayloadLen = ed25519.PublicKeySize + ed25519.SignatureSize

// Sign appends a signature section for the given key to the module.
func Sign(binary []byte, key ed25519.PrivateKey) ([]byte, error) {
	digest, err := moduleDigest(binary)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, signaturePayloadLen)
	payload = append(payload, key.Public().(ed25519.PublicKey)...)
	payload = append(payload, ed25519.Sign(key, digest)...)
	return wasm.AppendCustomSection(binary, SignatureSection, payload)
}

// Signers returns the public keys of every valid signature carried by the
// module. Malformed or non-verifying signature sections are ignored rather
// than failing the whole read.
func Signers(binary []byte) ([]ed25519.PublicKey, error) {
	sections, err := wasm.ReadCustomSections(binary)
	if err != nil {
		return nil, err
	}

	var digest []byte
	var signers []ed25519.PublicKey
	for _, s := range sections {
		if s.Name != SignatureSection || len(s.Data) != signaturePayloadLen {
			continue
		}
		if digest == nil {
			digest, err = moduleDigest(binary)
			if err != nil {
				return nil, err
			}
		}
		pub := ed25519.PublicKey(s.Data[:ed25519.PublicKeySize])
		sig := s.Data[ed25519.PublicKeySize:]
		if ed25519.Verify(pub, digest, sig) {
			signers = append(signers, pub)
		}
	}
	return signers, nil
}

func moduleDigest(binary []byte) ([]byte, error) {
	stripped, err := wasm.StripCustomSections(binary, SignatureSection)
	if err != nil {
		return nil, fmt.Errorf("failed to compute module digest: %w", err)
	}
	digest := blake2b.Sum256(stripped)
	return digest[:], nil
}

// Copyright 2025 Certen Protocol
//
// Package hashmix provides the single 256-bit hash primitive shared by
// the merkle tree builder and verifier. The function itself is pure and
// deterministic; domain-separation prefix bytes (leaf = 0x00, node =
// 0x01) are prepended by callers, not by the Mixer.

package hashmix

import (
	"crypto/sha256"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Domain separation prefixes, prepended by callers before Sum.
const (
	LeafPrefix byte = 0x00
	NodePrefix byte = 0x01
)

// Mixer computes the 256-bit hash used throughout the merkle subsystem.
// Implementations must be pure, deterministic, and identical across every
// caller that shares a root — a commitment records which Mixer produced
// it (see Name) so builder and verifier never silently disagree.
type Mixer interface {
	// Sum hashes data to a 32-byte digest.
	Sum(data []byte) [32]byte
	// Name is a stable identifier persisted alongside commitments/roots
	// so a verifier can refuse to check a proof with the wrong mixer.
	Name() string
}

// SHA256Mixer is the default mixer: plain SHA-256 over the prefixed
// input. Bit-identical to the teacher's hashPair/HashData helpers.
type SHA256Mixer struct{}

func (SHA256Mixer) Sum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

func (SHA256Mixer) Name() string { return "sha256" }

// PoseidonMixer is a zk-circuit-friendly alternative built on
// gnark-crypto's BLS12-381 scalar field. It answers spec.md's open
// question about substituting a vetted hash for the reference mixer
// without changing the verifier's combining rule (§4.B is mixer-agnostic).
//
// The input is split into 31-byte limbs (one per scalar-field element,
// to stay clear of the field modulus) and folded sequentially:
// acc_0 = 0; acc_{i+1} = poseidonLike(acc_i, limb_i). The final
// accumulator is serialized back to 32 bytes. This is not a standardized
// Poseidon instantiation — it is explicitly a swappable placeholder per
// spec.md §9 OQ1, which says only that the choice must be fixed and
// bit-identical across builder and verifier, not that any particular
// vetted scheme is mandated here.
type PoseidonMixer struct{}

func (PoseidonMixer) Name() string { return "poseidon-bls12381" }

func (PoseidonMixer) Sum(data []byte) [32]byte {
	var acc fr.Element
	acc.SetZero()

	for off := 0; off < len(data); off += 31 {
		end := off + 31
		if end > len(data) {
			end = len(data)
		}
		var limb fr.Element
		limb.SetBytes(data[off:end])
		acc = poseidonRound(acc, limb)
	}
	// Always fold in the length, so "" and a limb of zero bytes differ.
	var lenLimb fr.Element
	lenLimb.SetUint64(uint64(len(data)))
	acc = poseidonRound(acc, lenLimb)

	out := acc.Bytes()
	return out
}

// poseidonRound is a minimal sponge-like round: square-and-add, repeated
// a fixed number of times for diffusion. It exists purely to exercise
// gnark-crypto's field arithmetic as a pluggable hash backend; production
// deployments substituting this mixer should use a vetted, audited
// Poseidon parameter set instead (spec.md §9 OQ1).
func poseidonRound(acc, limb fr.Element) fr.Element {
	var t, sq fr.Element
	t.Add(&acc, &limb)
	for i := 0; i < 8; i++ {
		sq.Square(&t)
		t.Add(&sq, &limb)
	}
	return t
}

// ByName resolves a persisted mixer name back to an implementation.
// Returns an error for an unrecognized name so a corrupted or tampered
// commitment record fails loudly instead of silently falling back to a
// default mixer.
func ByName(name string) (Mixer, error) {
	switch name {
	case "", "sha256":
		return SHA256Mixer{}, nil
	case "poseidon-bls12381":
		return PoseidonMixer{}, nil
	default:
		return nil, fmt.Errorf("hashmix: unknown mixer %q", name)
	}
}

package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

// Hardhat's well-known development key #0.
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNewSignerDerivesAddress(t *testing.T) {
	signer, err := NewSigner(devKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signer.Address().Hex() != "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266" {
		t.Fatalf("derived address mismatch: %s", signer.Address().Hex())
	}
}

func TestNewSignerAcceptsHexPrefix(t *testing.T) {
	plain, err := NewSigner(devKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prefixed, err := NewSigner("0x" + devKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain.Address() != prefixed.Address() {
		t.Fatalf("prefix handling changed the key: %s vs %s", plain.Address(), prefixed.Address())
	}
}

func TestNewSignerRejectsEmptyKey(t *testing.T) {
	for _, key := range []string{"", "0x", "  "} {
		if _, err := NewSigner(key); err == nil {
			t.Fatalf("key %q: expected error", key)
		}
	}
}

func TestSignTxProducesRecoverableSignature(t *testing.T) {
	signer, err := NewSigner(devKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chainID := big.NewInt(137)
	to := signer.Address()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    1,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1_000_000_000),
	})

	signed, err := signer.SignTx(chainID, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from != signer.Address() {
		t.Fatalf("recovered sender mismatch: %s", from.Hex())
	}
}

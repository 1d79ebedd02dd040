package client

import (
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/ed25519"
)

// ed25519PubKey wraps a client-submitted raw public key. TomChain clients
// identify themselves with ed25519 keys; tendermint/crypto/ed25519.PubKey
// is just a named []byte of the right length, which is exactly the
// "ecc_pubkey" shape spec.md §3 calls for.
func ed25519PubKey(raw []byte) crypto.PubKey {
	pk := make(ed25519.PubKey, ed25519.PubKeySize)
	copy(pk, raw)
	return pk
}

// fork from github.com/tendermint/tendermint/types/validator.go
package types

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto"
	"go.dedis.ch/kyber/v3/share"
)

// ClientProfile is the server's record of one client: its ECC identity key,
// filled in by Register, and its threshold-BLS key share, assigned once at
// startup (node.buildClientRegistry) and immutable thereafter.
type ClientProfile struct {
	ID uint64 `json:"id"`

	EccPubKey crypto.PubKey `json:"ecc_pubkey"`

	TssPrivShare *share.PriShare `json:"-"`
	TssPubPoly   *share.PubPoly  `json:"-"`
}

// NewClientProfile builds a profile for client id holding its threshold-BLS
// share. EccPubKey is left nil until the client registers.
func NewClientProfile(id uint64, priv *share.PriShare, pub *share.PubPoly) *ClientProfile {
	return &ClientProfile{ID: id, TssPrivShare: priv, TssPubPoly: pub}
}

// ValidateBasic performs basic validation.
func (c *ClientProfile) ValidateBasic() error {
	if c == nil {
		return errors.New("nil client profile")
	}
	if c.TssPrivShare == nil {
		return errors.New("client profile missing tss share")
	}
	return nil
}

// Registered reports whether the client has completed Register.
func (c *ClientProfile) Registered() bool {
	return c.EccPubKey != nil
}

func (c *ClientProfile) String() string {
	if c == nil {
		return "nil-ClientProfile"
	}
	return fmt.Sprintf("ClientProfile{id=%d registered=%v}", c.ID, c.Registered())
}

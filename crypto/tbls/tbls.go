// Package tbls wraps the threshold BLS primitives TomChain needs: generating
// a (t,n) Shamir-shared keypair for the client set, signing a block ID with
// a single share, and merging t shares into one aggregated signature that
// verifies against the group public key.
//
// The core just invokes this; the Shamir sharing, pairing arithmetic, and
// polynomial commitments all live in go.dedis.ch/kyber/v3.
package tbls

import (
	"encoding/gob"

	"github.com/pkg/errors"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/sign/tbls"
	"go.dedis.ch/kyber/v3/util/random"
)

// init registers bn256's concrete scalar/point types with encoding/gob so
// that wire.Marshal/wire.Unmarshal can round-trip a *share.PriShare: it
// holds a kyber.Scalar field, an interface gob cannot encode or decode
// without a prior Register call naming the concrete type on the wire.
// *share.PubPoly has no exported fields and does not go through wire.
func init() {
	suite := Suite()
	gob.Register(suite.G1().Scalar())
	gob.Register(suite.G2().Scalar())
	gob.Register(suite.G1().Point())
	gob.Register(suite.G2().Point())
}

// Suite returns the pairing suite used for every TomChain deployment. All
// servers and clients in one deployment must agree on this suite.
func Suite() pairing.Suite {
	return bn256.NewSuiteG2()
}

// KeyShare is one client's private signing share plus the public
// commitment polynomial for the whole (t,n) scheme.
type KeyShare struct {
	Private *share.PriShare
	Public  *share.PubPoly
}

// GenerateShares runs a trusted-dealer Shamir split of a fresh master secret
// into n shares with threshold t, as the server does once at startup to
// provision its clients. Clients are numbered 1..n, but share.PriShare.I
// is 0-based: client ID k holds the share with I == k-1.
func GenerateShares(suite pairing.Suite, t, n int) ([]*KeyShare, error) {
	if t <= 0 || n <= 0 || t > n {
		return nil, errors.Errorf("invalid threshold parameters t=%d n=%d", t, n)
	}

	secret := suite.G1().Scalar().Pick(random.New())
	priPoly := share.NewPriPoly(suite.G2(), t, secret, random.New())
	pubPoly := priPoly.Commit(suite.G2().Point().Base())

	priShares := priPoly.Shares(n)
	keyShares := make([]*KeyShare, n)
	for i, ps := range priShares {
		keyShares[i] = &KeyShare{Private: ps, Public: pubPoly}
	}
	return keyShares, nil
}

// SignShare produces voter_id's signature share over msg (the serialized
// block ID). This is what a client does client-side before submitting a
// BlockVote.
func SignShare(suite pairing.Suite, priShare *share.PriShare, msg []byte) ([]byte, error) {
	return tbls.Sign(suite, priShare, msg)
}

// ShareSet accumulates signature shares for one block and knows when it has
// enough to recover the aggregate signature -- the Go equivalent of
// libBLS's BLSSigShareSet from the original C++ source.
type ShareSet struct {
	t, n   int
	pub    *share.PubPoly
	shares [][]byte
}

// NewShareSet constructs an empty set for a (t,n) scheme against the given
// public commitment polynomial.
func NewShareSet(t, n int, pub *share.PubPoly) *ShareSet {
	return &ShareSet{t: t, n: n, pub: pub}
}

// Add appends one more signature share. Order does not matter; Recover only
// needs any t of them.
func (s *ShareSet) Add(sigShare []byte) {
	s.shares = append(s.shares, sigShare)
}

// IsEnough reports whether enough shares have been collected to recover the
// aggregated signature.
func (s *ShareSet) IsEnough() bool {
	return len(s.shares) >= s.t
}

// Merge recovers the aggregated threshold signature over msg. Callers must
// check IsEnough first; Merge on an insufficient set returns an error rather
// than panicking, matching the "crypto aggregation failure" error kind in
// the spec's error handling design.
func (s *ShareSet) Merge(suite pairing.Suite, msg []byte) ([]byte, error) {
	if !s.IsEnough() {
		return nil, errors.Errorf("not enough signature shares: have %d, need %d", len(s.shares), s.t)
	}
	sig, err := tbls.Recover(suite, s.pub, msg, s.shares, s.t, s.n)
	if err != nil {
		return nil, errors.Wrap(err, "recovering threshold signature")
	}
	return sig, nil
}

// Verify checks an aggregated signature against the scheme's master public
// key (the constant term of the commitment polynomial).
func Verify(suite pairing.Suite, pub *share.PubPoly, msg, sig []byte) error {
	return bls.Verify(suite, pub.Commit(), msg, sig)
}

// MasterPublicKey exposes the group public key committed to by pub, used
// when a server needs to hand clients a verification key independent of any
// one share.
func MasterPublicKey(pub *share.PubPoly) kyber.Point {
	return pub.Commit()
}


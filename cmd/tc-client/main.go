// tc-client is a minimal demo driver for TomChain's client RPC layer: it
// registers, then loops pulling pending headers, fetching bodies, signing
// with its TSS share, and submitting votes.
//
// Grounded on the teacher's tools/rpc_test and tools/tm-bench drivers: a
// flag-configured flat main(), no cobra, since this is a demo tool rather
// than a long-lived server process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tendermint/tendermint/crypto/ed25519"
	"go.dedis.ch/kyber/v3/share"

	"github.com/tomchain/tomchain/crypto/tbls"
	rpcclient "github.com/tomchain/tomchain/rpc/client"
	"github.com/tomchain/tomchain/types"
	"github.com/tomchain/tomchain/wire"
)

func main() {
	addr := flag.String("addr", "tcp://127.0.0.1:26700", "server's client-facing RPC address")
	id := flag.Uint64("id", 1, "this client's ID")
	interval := flag.Duration("interval", time.Second, "poll interval")
	flag.Parse()

	c, err := rpcclient.Dial(*addr)
	if err != nil {
		fatal("dial", err)
	}

	priv := ed25519.GenPrivKey()
	ctx := context.Background()

	reg, err := c.Register(ctx, *id, priv.PubKey().Bytes())
	if err != nil {
		fatal("register", err)
	}

	var priShare share.PriShare
	if err := wire.Unmarshal(reg.TssShare, &priShare); err != nil {
		fatal("decoding tss share", err)
	}
	fmt.Printf("registered as client %d, tss share index %d\n", reg.ID, priShare.I)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := pollOnce(ctx, c, *id, &priShare); err != nil {
			fmt.Fprintln(os.Stderr, "poll:", err)
		}
	}
}

// pollOnce runs one PullPendingBlocks -> GetBlocks -> sign -> VoteBlocks
// round, matching the client RPC sequence in spec.md §4.5.
func pollOnce(ctx context.Context, c *rpcclient.Client, id uint64, priShare *share.PriShare) error {
	headers, err := c.PullPendingBlocks(ctx)
	if err != nil {
		return err
	}
	if len(headers.Headers) == 0 {
		return nil
	}

	blocks, err := c.GetBlocks(ctx, headers.Headers)
	if err != nil {
		return err
	}

	voted := make([][]byte, 0, len(blocks.Blocks))
	for _, raw := range blocks.Blocks {
		var blk types.Block
		if err := wire.Unmarshal(raw, &blk); err != nil {
			continue
		}

		sig, err := tbls.SignShare(tbls.Suite(), priShare, blockMsg(blk.Header.ID))
		if err != nil {
			return fmt.Errorf("signing block %d: %w", blk.Header.ID, err)
		}
		blk.Votes[id] = types.NewBlockVote(blk.Header.ID, id, sig)

		data, err := wire.Marshal(&blk)
		if err != nil {
			return err
		}
		voted = append(voted, data)
	}

	if len(voted) == 0 {
		return nil
	}
	_, err = c.VoteBlocks(ctx, id, voted)
	return err
}

// blockMsg mirrors engine.blockMsg exactly: every signer and verifier of a
// vote must agree on this encoding.
func blockMsg(blockID uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(blockID >> (8 * i))
	}
	return buf
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}

package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/sha3"
)

var (
	// ErrNoRetirements is returned when a filter selects nothing to attest.
	ErrNoRetirements = errors.New("indexer: no retirements match")
	// ErrReceiptNotFound is returned when a proof is requested for a receipt
	// outside the attested set.
	ErrReceiptNotFound = errors.New("indexer: receipt not in attested set")
)

// Attestation commits to every retirement selected by a filter. Leaves are
// in List order.
type Attestation struct {
	Root   string `json:"root"`
	Count  int    `json:"count"`
	Amount int64  `json:"amount"`
}

// ReceiptProof shows that one retirement is part of an Attestation.
type ReceiptProof struct {
	Root      string   `json:"root"`
	ReceiptID string   `json:"receiptId"`
	Index     uint64   `json:"index"`
	Hashes    []string `json:"hashes"`
}

// Leaf is the committed form of a retirement. Memo and e-mail stay out.
func Leaf(r Retirement) []byte {
	return []byte(strings.Join([]string{
		r.ReceiptID,
		r.Contract,
		r.Funder,
		r.Recipient,
		strconv.FormatInt(r.Amount, 10),
		r.ProjectID,
		strconv.FormatUint(uint64(r.Ledger), 10),
	}, "|"))
}

func (s *Store) tree(ctx context.Context, f Filter) (*merkletree.MerkleTree, []Retirement, error) {
	f.Limit, f.Offset = 0, 0
	rows, err := s.List(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, ErrNoRetirements
	}
	data := make([][]byte, len(rows))
	for i, row := range rows {
		data[i] = Leaf(row)
	}
	tree, err := merkletree.NewTree(
		merkletree.WithData(data),
		merkletree.WithHashType(sha3.New256()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("indexer: build tree: %w", err)
	}
	return tree, rows, nil
}

// Attest returns the Merkle root over the retirements matching f.
func (s *Store) Attest(ctx context.Context, f Filter) (Attestation, error) {
	tree, rows, err := s.tree(ctx, f)
	if err != nil {
		return Attestation{}, err
	}
	att := Attestation{Root: hex.EncodeToString(tree.Root()), Count: len(rows)}
	for _, row := range rows {
		att.Amount += row.Amount
	}
	return att, nil
}

// Prove returns the inclusion proof of receiptID in the attestation of f.
func (s *Store) Prove(ctx context.Context, f Filter, receiptID string) (ReceiptProof, error) {
	tree, rows, err := s.tree(ctx, f)
	if err != nil {
		return ReceiptProof{}, err
	}
	for _, row := range rows {
		if row.ReceiptID != receiptID {
			continue
		}
		proof, err := tree.GenerateProof(Leaf(row), 0)
		if err != nil {
			return ReceiptProof{}, fmt.Errorf("indexer: proof for %s: %w", receiptID, err)
		}
		out := ReceiptProof{
			Root:      hex.EncodeToString(tree.Root()),
			ReceiptID: receiptID,
			Index:     proof.Index,
			Hashes:    make([]string, len(proof.Hashes)),
		}
		for i, h := range proof.Hashes {
			out.Hashes[i] = hex.EncodeToString(h)
		}
		return out, nil
	}
	return ReceiptProof{}, fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
}

// VerifyReceipt checks p against the retirement it claims to cover.
func VerifyReceipt(r Retirement, p ReceiptProof) (bool, error) {
	if r.ReceiptID != p.ReceiptID {
		return false, nil
	}
	root, err := hex.DecodeString(p.Root)
	if err != nil {
		return false, fmt.Errorf("indexer: root: %w", err)
	}
	proof := &merkletree.Proof{Index: p.Index, Hashes: make([][]byte, len(p.Hashes))}
	for i, h := range p.Hashes {
		if proof.Hashes[i], err = hex.DecodeString(h); err != nil {
			return false, fmt.Errorf("indexer: proof hash %d: %w", i, err)
		}
	}
	return merkletree.VerifyProofUsing(Leaf(r), false, proof, [][]byte{root}, sha3.New256())
}

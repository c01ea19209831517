package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarcarbon/sorocarbon/crypto"
)

// DefaultMaxSuccessorHops bounds ResolveSuccessor when no limit is given.
const DefaultMaxSuccessorHops = 16

// ErrSuccessorLoop is returned when a successor chain revisits an address or
// exceeds the hop limit.
var ErrSuccessorLoop = errors.New("sink: successor chain does not terminate")

// SuccessorLookup returns the successor recorded by the contract at addr.
type SuccessorLookup func(ctx context.Context, addr crypto.Address) (crypto.Address, error)

// ResolveSuccessor follows successor pointers from start until a contract
// names itself and returns the visited path, start first.
func ResolveSuccessor(ctx context.Context, lookup SuccessorLookup, start crypto.Address, maxHops int) ([]crypto.Address, error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxSuccessorHops
	}
	path := []crypto.Address{start}
	seen := map[string]struct{}{start.String(): {}}
	current := start
	for hop := 0; hop < maxHops; hop++ {
		next, err := lookup(ctx, current)
		if err != nil {
			return path, fmt.Errorf("sink: successor of %s: %w", current, err)
		}
		if next.Equal(current) {
			return path, nil
		}
		if _, ok := seen[next.String()]; ok {
			return path, fmt.Errorf("%w: %s revisited", ErrSuccessorLoop, next)
		}
		seen[next.String()] = struct{}{}
		path = append(path, next)
		current = next
	}
	return path, fmt.Errorf("%w: more than %d hops", ErrSuccessorLoop, maxHops)
}

// ResolveSuccessor walks the successor chain starting at this client's
// contract.
func (c *Client) ResolveSuccessor(ctx context.Context, maxHops int) ([]crypto.Address, error) {
	return ResolveSuccessor(ctx, func(ctx context.Context, addr crypto.Address) (crypto.Address, error) {
		return c.At(addr).GetSuccessor(ctx)
	}, c.Contract(), maxHops)
}

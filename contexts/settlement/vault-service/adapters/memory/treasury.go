package memory

import (
	"context"
	"errors"
	"sync"

	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

var errTreasuryUnavailable = errors.New("treasury transfer rejected")

// Treasury is an in-process stand-in for the external value-transfer
// collaborator. It tracks credited balances per account; FailNext forces the
// next transfer to fail so rollback paths can be exercised.
type Treasury struct {
	mu       sync.Mutex
	balances map[chain.Address]uint64

	FailNext bool
}

func NewTreasury() *Treasury {
	return &Treasury{
		balances: make(map[chain.Address]uint64),
	}
}

func (t *Treasury) Transfer(_ context.Context, to chain.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FailNext {
		t.FailNext = false
		return errTreasuryUnavailable
	}
	t.balances[to] += amount
	return nil
}

// BalanceOf reports the total value credited to an account.
func (t *Treasury) BalanceOf(account chain.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account]
}

var _ ports.Treasury = (*Treasury)(nil)

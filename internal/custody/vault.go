// Package custody is the reference implementation of the underlying asset
// ledger the envelope locks and releases. Freezing and forced recovery
// belong to the real asset and are not modelled.
package custody

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/tx"
)

type holding struct {
	asset id.AssetRef
	party id.PartyID
}

// Vault holds balances of underlying assets per party. Every mutation is
// journaled so it unwinds with the surrounding ledger transaction.
type Vault struct {
	mu       sync.RWMutex
	balances map[holding]id.Amount
}

func NewVault() *Vault {
	return &Vault{balances: make(map[holding]id.Amount)}
}

// Transfer moves amount of asset between parties.
func (v *Vault) Transfer(ctx context.Context, asset id.AssetRef, from, to id.PartyID, amount id.Amount) error {
	if asset.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "asset reference is required")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	src := holding{asset, from}
	dst := holding{asset, to}
	fromBal, err := v.balances[src].Sub(amount)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInsufficientBalance, "insufficient underlying balance")
	}
	if from == to {
		return nil
	}
	toBal, err := v.balances[dst].Add(amount)
	if err != nil {
		return err
	}
	v.set(ctx, src, fromBal)
	v.set(ctx, dst, toBal)
	return nil
}

// Deposit credits amount of asset to party from outside the ledger, as the
// issuer of the underlying would.
func (v *Vault) Deposit(ctx context.Context, asset id.AssetRef, party id.PartyID, amount id.Amount) error {
	if asset.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "asset reference is required")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	h := holding{asset, party}
	bal, err := v.balances[h].Add(amount)
	if err != nil {
		return err
	}
	v.set(ctx, h, bal)
	return nil
}

// BalanceOf returns party's balance of asset.
func (v *Vault) BalanceOf(_ context.Context, asset id.AssetRef, party id.PartyID) (id.Amount, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.balances[holding{asset, party}], nil
}

// set must be called with mu held.
func (v *Vault) set(ctx context.Context, h holding, amount id.Amount) {
	prev := v.balances[h]
	v.balances[h] = amount
	tx.OnRollback(ctx, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.balances[h] = prev
	})
}

package custody

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	txcontext "custodia/pkg/platform/tx"
)

// PostgresVault keeps underlying balances in custody_holdings so locked
// assets survive a restart together with the envelope units issued
// against them. Mutations join the ledger's SQL transaction.
type PostgresVault struct {
	db *sql.DB
}

func NewPostgresVault(db *sql.DB) *PostgresVault {
	return &PostgresVault{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (v *PostgresVault) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return v.db
}

// Transfer moves amount of asset between parties.
func (v *PostgresVault) Transfer(ctx context.Context, asset id.AssetRef, from, to id.PartyID, amount id.Amount) error {
	if asset.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "asset reference is required")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	fromBal, err := v.balance(ctx, asset, from, true)
	if err != nil {
		return err
	}
	if fromBal, err = fromBal.Sub(amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInsufficientBalance, "insufficient underlying balance")
	}
	if from == to {
		return nil
	}
	toBal, err := v.balance(ctx, asset, to, true)
	if err != nil {
		return err
	}
	if toBal, err = toBal.Add(amount); err != nil {
		return err
	}
	if err := v.set(ctx, asset, from, fromBal); err != nil {
		return err
	}
	return v.set(ctx, asset, to, toBal)
}

// Deposit credits amount of asset to party from outside the ledger, as the
// issuer of the underlying would.
func (v *PostgresVault) Deposit(ctx context.Context, asset id.AssetRef, party id.PartyID, amount id.Amount) error {
	if asset.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "asset reference is required")
	}
	bal, err := v.balance(ctx, asset, party, true)
	if err != nil {
		return err
	}
	if bal, err = bal.Add(amount); err != nil {
		return err
	}
	return v.set(ctx, asset, party, bal)
}

// BalanceOf returns party's balance of asset.
func (v *PostgresVault) BalanceOf(ctx context.Context, asset id.AssetRef, party id.PartyID) (id.Amount, error) {
	return v.balance(ctx, asset, party, false)
}

// balance locks the row FOR UPDATE when asked to inside a ledger
// transaction.
func (v *PostgresVault) balance(ctx context.Context, asset id.AssetRef, party id.PartyID, lock bool) (id.Amount, error) {
	query := `SELECT amount::TEXT FROM custody_holdings WHERE asset_reference = $1 AND asset_sub_id = $2 AND party = $3`
	if _, ok := txcontext.From(ctx); ok && lock {
		query += ` FOR UPDATE`
	}
	var raw string
	err := v.execer(ctx).QueryRowContext(ctx, query, asset.Reference, strconv.FormatUint(asset.SubID, 10), party).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read underlying balance")
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(fmt.Errorf("parse amount %q: %w", raw, err), dErrors.CodeInternal, "failed to read underlying balance")
	}
	return id.Amount(n), nil
}

func (v *PostgresVault) set(ctx context.Context, asset id.AssetRef, party id.PartyID, amount id.Amount) error {
	_, err := v.execer(ctx).ExecContext(ctx, `
		INSERT INTO custody_holdings (asset_reference, asset_sub_id, party, amount) VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_reference, asset_sub_id, party) DO UPDATE SET amount = EXCLUDED.amount
	`, asset.Reference, strconv.FormatUint(asset.SubID, 10), party, strconv.FormatUint(uint64(amount), 10))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store underlying balance")
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"custodia/internal/repo/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists agreements in repo_agreements and the engine limits in
// the single-row repo_config table. Amounts are NUMERIC(20) so the full
// uint64 range round-trips; they travel as decimal text.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const agreementColumns = `id, state, borrower, lender, cash_envelope_id, cash_amount::TEXT,
	collateral_envelope_id, collateral_amount::TEXT, rate_bps, jurisdiction, initiated_at,
	maturity_at, grace_period_seconds, borrower_funded, lender_funded,
	settlement_amount::TEXT, settled_at, updated_at`

func amountText(a id.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func (s *Postgres) CreateAgreement(ctx context.Context, a *models.Agreement) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO repo_agreements (
			id, state, borrower, lender, cash_envelope_id, cash_amount,
			collateral_envelope_id, collateral_amount, rate_bps, jurisdiction, initiated_at,
			maturity_at, grace_period_seconds, borrower_funded, lender_funded,
			settlement_amount, settled_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, uuid.UUID(a.ID), a.State, a.Borrower, a.Lender, a.CashEnvelope, amountText(a.CashAmount),
		a.CollateralEnvelope, amountText(a.CollateralAmount), int64(a.Rate), a.Jurisdiction, a.InitiatedAt,
		a.MaturityAt, int64(a.GracePeriod/time.Second), a.BorrowerFunded, a.LenderFunded,
		amountText(a.SettlementAmount), a.SettledAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("agreement %s: %w", a.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert agreement: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgreement(row rowScanner) (*models.Agreement, error) {
	var (
		a                                  models.Agreement
		agreementID                        uuid.UUID
		state, borrower, lender            string
		cashEnvelope, collateralEnvelope   string
		cashAmount, collateralAmount, paid string
		jurisdiction                       string
		rate, graceSeconds                 int64
		settledAt                          sql.NullTime
	)
	if err := row.Scan(&agreementID, &state, &borrower, &lender, &cashEnvelope, &cashAmount,
		&collateralEnvelope, &collateralAmount, &rate, &jurisdiction, &a.InitiatedAt,
		&a.MaturityAt, &graceSeconds, &a.BorrowerFunded, &a.LenderFunded,
		&paid, &settledAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	amounts := []struct {
		raw string
		dst *id.Amount
	}{{cashAmount, &a.CashAmount}, {collateralAmount, &a.CollateralAmount}, {paid, &a.SettlementAmount}}
	for _, f := range amounts {
		v, err := strconv.ParseUint(f.raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", f.raw, err)
		}
		*f.dst = id.Amount(v)
	}
	a.ID = id.AgreementID(agreementID)
	a.State = models.State(state)
	a.Borrower = id.PartyID(borrower)
	a.Lender = id.PartyID(lender)
	a.CashEnvelope = id.EnvelopeID(cashEnvelope)
	a.CollateralEnvelope = id.EnvelopeID(collateralEnvelope)
	a.Rate = uint32(rate)
	a.Jurisdiction = id.JurisdictionCode(jurisdiction)
	a.GracePeriod = time.Duration(graceSeconds) * time.Second
	if settledAt.Valid {
		t := settledAt.Time
		a.SettledAt = &t
	}
	return &a, nil
}

// FindAgreement locks the row FOR UPDATE when called inside a ledger
// transaction so concurrent lifecycle calls on one agreement serialize.
func (s *Postgres) FindAgreement(ctx context.Context, agreementID id.AgreementID) (*models.Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM repo_agreements WHERE id = $1`
	if _, ok := txcontext.From(ctx); ok {
		query += ` FOR UPDATE`
	}
	a, err := scanAgreement(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(agreementID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agreement: %w", err)
	}
	return a, nil
}

func (s *Postgres) UpdateAgreement(ctx context.Context, a *models.Agreement) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE repo_agreements SET
			state = $2, lender = $3, cash_envelope_id = $4, borrower_funded = $5,
			lender_funded = $6, settlement_amount = $7, settled_at = $8, updated_at = $9
		WHERE id = $1
	`, uuid.UUID(a.ID), a.State, a.Lender, a.CashEnvelope, a.BorrowerFunded,
		a.LenderFunded, amountText(a.SettlementAmount), a.SettledAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListAgreements(ctx context.Context) ([]*models.Agreement, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT `+agreementColumns+` FROM repo_agreements ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	var out []*models.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agreements: %w", err)
	}
	return out, nil
}

// Config returns the stored limits, or models.DefaultConfig before the
// first SaveConfig.
func (s *Postgres) Config(ctx context.Context) (models.Config, error) {
	var (
		c                    models.Config
		rate                 int64
		maxSeconds, gracePer int64
		jurisdiction         string
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT max_rate_bps, max_duration_seconds, grace_period_seconds, jurisdiction FROM repo_config
	`).Scan(&rate, &maxSeconds, &gracePer, &jurisdiction)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultConfig(), nil
	}
	if err != nil {
		return models.Config{}, fmt.Errorf("load repo config: %w", err)
	}
	c.MaxRate = uint32(rate)
	c.MaxDuration = time.Duration(maxSeconds) * time.Second
	c.GracePeriod = time.Duration(gracePer) * time.Second
	c.Jurisdiction = id.JurisdictionCode(jurisdiction)
	return c, nil
}

func (s *Postgres) SaveConfig(ctx context.Context, c models.Config) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO repo_config (singleton, max_rate_bps, max_duration_seconds, grace_period_seconds, jurisdiction)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO UPDATE
		SET max_rate_bps = EXCLUDED.max_rate_bps,
			max_duration_seconds = EXCLUDED.max_duration_seconds,
			grace_period_seconds = EXCLUDED.grace_period_seconds,
			jurisdiction = EXCLUDED.jurisdiction
	`, int64(c.MaxRate), int64(c.MaxDuration/time.Second), int64(c.GracePeriod/time.Second), c.Jurisdiction)
	if err != nil {
		return fmt.Errorf("save repo config: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"custodia/internal/envelope/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists envelope state in the envelope_* tables. Amounts are
// NUMERIC(20) and travel as decimal text so the full uint64 range
// round-trips. Statements join the ledger's SQL transaction when the context
// carries one.
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

func amountText(a id.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}

func parseAmount(raw string) (id.Amount, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return id.Amount(v), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const descriptorColumns = `id, asset_class, asset_reference, asset_sub_id::TEXT, currency, created_at`

func scanDescriptor(row rowScanner) (*models.Descriptor, error) {
	var (
		d                    models.Descriptor
		envelope, class, ref string
		subID, currency      string
	)
	if err := row.Scan(&envelope, &class, &ref, &subID, &currency, &d.CreatedAt); err != nil {
		return nil, err
	}
	sub, err := parseAmount(subID)
	if err != nil {
		return nil, err
	}
	d.ID = id.EnvelopeID(envelope)
	d.AssetClass = id.AssetClass(class)
	d.Asset = id.AssetRef{Reference: ref, SubID: uint64(sub)}
	d.Currency = id.Currency(currency)
	return &d, nil
}

// FindDescriptor returns the descriptor or sentinel.ErrNotFound.
func (s *Postgres) FindDescriptor(ctx context.Context, envelope id.EnvelopeID) (*models.Descriptor, error) {
	d, err := scanDescriptor(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+descriptorColumns+` FROM envelope_descriptors WHERE id = $1`, envelope))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find descriptor: %w", err)
	}
	return d, nil
}

// CreateDescriptor stores a new descriptor. Returns sentinel.ErrConflict if
// it already exists.
func (s *Postgres) CreateDescriptor(ctx context.Context, d *models.Descriptor) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_descriptors (id, asset_class, asset_reference, asset_sub_id, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.ID, d.AssetClass, d.Asset.Reference, strconv.FormatUint(d.Asset.SubID, 10), d.Currency, d.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("envelope %s: %w", d.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert descriptor: %w", err)
	}
	return nil
}

func (s *Postgres) ListDescriptors(ctx context.Context) ([]*models.Descriptor, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+descriptorColumns+` FROM envelope_descriptors ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer rows.Close()

	var out []*models.Descriptor
	for rows.Next() {
		d, err := scanDescriptor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}
	return out, nil
}

// Balance returns zero for parties that never held units.
func (s *Postgres) Balance(ctx context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error) {
	var raw string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT amount::TEXT FROM envelope_balances WHERE envelope_id = $1 AND party = $2`, envelope, party).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return parseAmount(raw)
}

func (s *Postgres) SetBalance(ctx context.Context, envelope id.EnvelopeID, party id.PartyID, amount id.Amount) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_balances (envelope_id, party, amount) VALUES ($1, $2, $3)
		ON CONFLICT (envelope_id, party) DO UPDATE SET amount = EXCLUDED.amount
	`, envelope, party, amountText(amount))
	if err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	return nil
}

// Holders returns every non-zero balance of the envelope.
func (s *Postgres) Holders(ctx context.Context, envelope id.EnvelopeID) (map[id.PartyID]id.Amount, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT party, amount::TEXT FROM envelope_balances WHERE envelope_id = $1 AND amount > 0`, envelope)
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	defer rows.Close()

	out := make(map[id.PartyID]id.Amount)
	for rows.Next() {
		var party, raw string
		if err := rows.Scan(&party, &raw); err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		amount, err := parseAmount(raw)
		if err != nil {
			return nil, err
		}
		out[id.PartyID(party)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holders: %w", err)
	}
	return out, nil
}

func (s *Postgres) TotalIssued(ctx context.Context, envelope id.EnvelopeID) (id.Amount, error) {
	var raw string
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT issued::TEXT FROM envelope_supply WHERE envelope_id = $1`, envelope).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read total issued: %w", err)
	}
	return parseAmount(raw)
}

func (s *Postgres) SetTotalIssued(ctx context.Context, envelope id.EnvelopeID, amount id.Amount) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_supply (envelope_id, issued) VALUES ($1, $2)
		ON CONFLICT (envelope_id) DO UPDATE SET issued = EXCLUDED.issued
	`, envelope, amountText(amount))
	if err != nil {
		return fmt.Errorf("store total issued: %w", err)
	}
	return nil
}

func (s *Postgres) AppendReceipt(ctx context.Context, r models.Receipt) error {
	rules := r.AppliedRuleTypes
	if rules == nil {
		rules = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_receipts (
			operation_hash, envelope_id, from_party, to_party, amount,
			verifier_ref, applied_rule_types, outcome, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.OperationHash, r.Envelope, r.From, r.To, amountText(r.Amount),
		r.VerifierRef, pq.Array(rules), r.Outcome, r.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("receipt %s: %w", r.OperationHash, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *Postgres) CountReceipts(ctx context.Context, envelope id.EnvelopeID) (int, error) {
	var n int
	if err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM envelope_receipts WHERE envelope_id = $1`, envelope).Scan(&n); err != nil {
		return 0, fmt.Errorf("count receipts: %w", err)
	}
	return n, nil
}

func (s *Postgres) ListReceipts(ctx context.Context, envelope id.EnvelopeID) ([]models.Receipt, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT operation_hash, envelope_id, from_party, to_party, amount::TEXT,
			verifier_ref, applied_rule_types, outcome, created_at
		FROM envelope_receipts WHERE envelope_id = $1 ORDER BY seq
	`, envelope)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := []models.Receipt{}
	for rows.Next() {
		var (
			r                    models.Receipt
			envelopeID, from, to string
			amount               string
		)
		if err := rows.Scan(&r.OperationHash, &envelopeID, &from, &to, &amount,
			&r.VerifierRef, pq.Array(&r.AppliedRuleTypes), &r.Outcome, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		if r.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		r.Envelope = id.EnvelopeID(envelopeID)
		r.From = id.PartyID(from)
		r.To = id.PartyID(to)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}

func (s *Postgres) AppendFXRecord(ctx context.Context, r models.FXRecord) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_fx_records (
			id, envelope_id, source_currency, target_currency, source_amount,
			target_amount, rate_used, payer, payee, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.Envelope, r.SourceCurrency, r.TargetCurrency, amountText(r.SourceAmount),
		amountText(r.TargetAmount), strconv.FormatUint(r.RateUsed, 10), r.Payer, r.Payee, r.Timestamp)
	if err != nil {
		return fmt.Errorf("insert fx record: %w", err)
	}
	return nil
}

func (s *Postgres) ListFXRecords(ctx context.Context, envelope id.EnvelopeID) ([]models.FXRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, envelope_id, source_currency, target_currency, source_amount::TEXT,
			target_amount::TEXT, rate_used::TEXT, payer, payee, created_at
		FROM envelope_fx_records WHERE envelope_id = $1 ORDER BY seq
	`, envelope)
	if err != nil {
		return nil, fmt.Errorf("list fx records: %w", err)
	}
	defer rows.Close()

	out := []models.FXRecord{}
	for rows.Next() {
		var (
			r                          models.FXRecord
			recordID                   uuid.UUID
			envelopeID, source, target string
			sourceAmount, targetAmount string
			rate, payer, payee         string
		)
		if err := rows.Scan(&recordID, &envelopeID, &source, &target, &sourceAmount,
			&targetAmount, &rate, &payer, &payee, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan fx record: %w", err)
		}
		if r.SourceAmount, err = parseAmount(sourceAmount); err != nil {
			return nil, err
		}
		if r.TargetAmount, err = parseAmount(targetAmount); err != nil {
			return nil, err
		}
		rateUsed, err := parseAmount(rate)
		if err != nil {
			return nil, err
		}
		r.ID = recordID
		r.Envelope = id.EnvelopeID(envelopeID)
		r.SourceCurrency = id.Currency(source)
		r.TargetCurrency = id.Currency(target)
		r.RateUsed = uint64(rateUsed)
		r.Payer = id.PartyID(payer)
		r.Payee = id.PartyID(payee)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fx records: %w", err)
	}
	return out, nil
}

const valueTagColumns = `envelope_id, holder, currency, units::TEXT, value::TEXT`

func scanValueTag(row rowScanner) (*models.ValueTag, error) {
	var (
		t                          models.ValueTag
		envelope, holder, currency string
		units, value               string
	)
	if err := row.Scan(&envelope, &holder, &currency, &units, &value); err != nil {
		return nil, err
	}
	var err error
	if t.Units, err = parseAmount(units); err != nil {
		return nil, err
	}
	if t.Value, err = parseAmount(value); err != nil {
		return nil, err
	}
	t.Envelope = id.EnvelopeID(envelope)
	t.Holder = id.PartyID(holder)
	t.Currency = id.Currency(currency)
	return &t, nil
}

// FindValueTag returns holder's tag or sentinel.ErrNotFound.
func (s *Postgres) FindValueTag(ctx context.Context, envelope id.EnvelopeID, holder id.PartyID, currency id.Currency) (*models.ValueTag, error) {
	t, err := scanValueTag(s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+valueTagColumns+` FROM envelope_value_tags
		WHERE envelope_id = $1 AND holder = $2 AND currency = $3
	`, envelope, holder, currency))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find value tag: %w", err)
	}
	return t, nil
}

// SaveValueTag replaces the tag. A tag with zero units is removed.
func (s *Postgres) SaveValueTag(ctx context.Context, t models.ValueTag) error {
	if t.Units == 0 {
		_, err := s.execer(ctx).ExecContext(ctx, `
			DELETE FROM envelope_value_tags WHERE envelope_id = $1 AND holder = $2 AND currency = $3
		`, t.Envelope, t.Holder, t.Currency)
		if err != nil {
			return fmt.Errorf("delete value tag: %w", err)
		}
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_value_tags (envelope_id, holder, currency, units, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (envelope_id, holder, currency) DO UPDATE
		SET units = EXCLUDED.units, value = EXCLUDED.value
	`, t.Envelope, t.Holder, t.Currency, amountText(t.Units), amountText(t.Value))
	if err != nil {
		return fmt.Errorf("store value tag: %w", err)
	}
	return nil
}

// ListValueTags returns the envelope's tags ordered by holder then
// currency.
func (s *Postgres) ListValueTags(ctx context.Context, envelope id.EnvelopeID) ([]models.ValueTag, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+valueTagColumns+` FROM envelope_value_tags
		WHERE envelope_id = $1 ORDER BY holder, currency
	`, envelope)
	if err != nil {
		return nil, fmt.Errorf("list value tags: %w", err)
	}
	defer rows.Close()

	var out []models.ValueTag
	for rows.Next() {
		t, err := scanValueTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan value tag: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate value tags: %w", err)
	}
	return out, nil
}

func (s *Postgres) partyFlag(ctx context.Context, column string, party id.PartyID) (bool, error) {
	var v bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+column+` FROM envelope_parties WHERE party = $1`, party).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s flag: %w", column, err)
	}
	return v, nil
}

func (s *Postgres) setPartyFlag(ctx context.Context, column string, party id.PartyID, v bool) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_parties (party, `+column+`) VALUES ($1, $2)
		ON CONFLICT (party) DO UPDATE SET `+column+` = EXCLUDED.`+column,
		party, v)
	if err != nil {
		return fmt.Errorf("store %s flag: %w", column, err)
	}
	return nil
}

func (s *Postgres) IsExempt(ctx context.Context, party id.PartyID) (bool, error) {
	return s.partyFlag(ctx, "exempt", party)
}

func (s *Postgres) SetExempt(ctx context.Context, party id.PartyID, exempt bool) error {
	return s.setPartyFlag(ctx, "exempt", party, exempt)
}

func (s *Postgres) IsOperator(ctx context.Context, party id.PartyID) (bool, error) {
	return s.partyFlag(ctx, "operator", party)
}

func (s *Postgres) SetOperator(ctx context.Context, party id.PartyID, approved bool) error {
	return s.setPartyFlag(ctx, "operator", party, approved)
}

// FindCurrencyAsset returns the asset registered for currency or
// sentinel.ErrNotFound.
func (s *Postgres) FindCurrencyAsset(ctx context.Context, currency id.Currency) (*models.CurrencyAsset, error) {
	var class, ref, subID string
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT asset_class, asset_reference, asset_sub_id::TEXT FROM envelope_currency_assets WHERE currency = $1
	`, currency).Scan(&class, &ref, &subID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find currency asset: %w", err)
	}
	sub, err := parseAmount(subID)
	if err != nil {
		return nil, err
	}
	return &models.CurrencyAsset{
		Currency:   currency,
		AssetClass: id.AssetClass(class),
		Asset:      id.AssetRef{Reference: ref, SubID: uint64(sub)},
	}, nil
}

// CurrencyOf returns the currency an underlying asset was registered under.
func (s *Postgres) CurrencyOf(ctx context.Context, class id.AssetClass, asset id.AssetRef) (id.Currency, bool, error) {
	var currency string
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT currency FROM envelope_currency_assets
		WHERE asset_class = $1 AND asset_reference = $2 AND asset_sub_id = $3
		ORDER BY currency LIMIT 1
	`, class, asset.Reference, strconv.FormatUint(asset.SubID, 10)).Scan(&currency)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve currency: %w", err)
	}
	return id.Currency(currency), true, nil
}

func (s *Postgres) SaveCurrencyAsset(ctx context.Context, a models.CurrencyAsset) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_currency_assets (currency, asset_class, asset_reference, asset_sub_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (currency) DO UPDATE
		SET asset_class = EXCLUDED.asset_class,
			asset_reference = EXCLUDED.asset_reference,
			asset_sub_id = EXCLUDED.asset_sub_id
	`, a.Currency, a.AssetClass, a.Asset.Reference, strconv.FormatUint(a.Asset.SubID, 10))
	if err != nil {
		return fmt.Errorf("store currency asset: %w", err)
	}
	return nil
}

// Settings returns the stored settings, or compliance enabled with nothing
// else configured before the first SaveSettings.
func (s *Postgres) Settings(ctx context.Context) (models.Settings, error) {
	var (
		st                     models.Settings
		jurisdiction, treasury string
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT compliance_enabled, jurisdiction, fx_treasury FROM envelope_settings
	`).Scan(&st.ComplianceEnabled, &jurisdiction, &treasury)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{ComplianceEnabled: true}, nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("load envelope settings: %w", err)
	}
	st.Jurisdiction = id.JurisdictionCode(jurisdiction)
	st.FXTreasury = id.PartyID(treasury)
	return st, nil
}

func (s *Postgres) SaveSettings(ctx context.Context, st models.Settings) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO envelope_settings (singleton, compliance_enabled, jurisdiction, fx_treasury)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO UPDATE
		SET compliance_enabled = EXCLUDED.compliance_enabled,
			jurisdiction = EXCLUDED.jurisdiction,
			fx_treasury = EXCLUDED.fx_treasury
	`, st.ComplianceEnabled, st.Jurisdiction, st.FXTreasury)
	if err != nil {
		return fmt.Errorf("save envelope settings: %w", err)
	}
	return nil
}

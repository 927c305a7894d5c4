package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"custodia/internal/policy/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists the registry in the rule_sets and jurisdictions tables.
// When the context carries a ledger SQL transaction every statement joins it.
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

const ruleSetColumns = `id, rule_type, mode, evaluator_ref, priority, roles, active, created_at, updated_at`

func (s *Postgres) CreateRuleSet(ctx context.Context, rs *models.RuleSet) error {
	roles := rs.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO rule_sets (id, rule_type, mode, evaluator_ref, priority, roles, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rs.ID, rs.RuleType, rs.Mode, rs.EvaluatorRef, int64(rs.Priority), pq.Array(roles), rs.Active, rs.CreatedAt, rs.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("rule set %s: %w", rs.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert rule set: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleSet(row rowScanner) (*models.RuleSet, error) {
	var (
		rs       models.RuleSet
		ruleID   string
		mode     string
		priority int64
		roles    []string
	)
	if err := row.Scan(&ruleID, &rs.RuleType, &mode, &rs.EvaluatorRef, &priority, pq.Array(&roles), &rs.Active, &rs.CreatedAt, &rs.UpdatedAt); err != nil {
		return nil, err
	}
	rs.ID = id.RuleSetID(ruleID)
	rs.Mode = models.ExecutionMode(mode)
	rs.Priority = uint32(priority)
	if len(roles) > 0 {
		rs.Roles = roles
	}
	return &rs, nil
}

func (s *Postgres) FindRuleSet(ctx context.Context, ruleSetID id.RuleSetID) (*models.RuleSet, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+ruleSetColumns+` FROM rule_sets WHERE id = $1`, ruleSetID)
	rs, err := scanRuleSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find rule set: %w", err)
	}
	return rs, nil
}

func (s *Postgres) ListRuleSets(ctx context.Context) ([]*models.RuleSet, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT `+ruleSetColumns+` FROM rule_sets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list rule sets: %w", err)
	}
	defer rows.Close()

	var out []*models.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule set: %w", err)
		}
		out = append(out, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule sets: %w", err)
	}
	return out, nil
}

// ExecuteRuleSet locks the row with FOR UPDATE for the validate-then-mutate
// step. Outside a ledger transaction it opens its own.
func (s *Postgres) ExecuteRuleSet(ctx context.Context, ruleSetID id.RuleSetID, validate func(*models.RuleSet) error, mutate func(*models.RuleSet)) (*models.RuleSet, error) {
	if _, ok := txcontext.From(ctx); !ok {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		rs, err := s.ExecuteRuleSet(txcontext.WithTx(ctx, sqlTx), ruleSetID, validate, mutate)
		if err != nil {
			_ = sqlTx.Rollback()
			return nil, err
		}
		if err := sqlTx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return rs, nil
	}

	exec := s.execer(ctx)
	row := exec.QueryRowContext(ctx, `SELECT `+ruleSetColumns+` FROM rule_sets WHERE id = $1 FOR UPDATE`, ruleSetID)
	rs, err := scanRuleSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock rule set: %w", err)
	}
	if err := validate(rs); err != nil {
		return nil, err
	}
	mutate(rs)
	// only active and updated_at are mutable
	if _, err := exec.ExecContext(ctx, `UPDATE rule_sets SET active = $2, updated_at = $3 WHERE id = $1`, rs.ID, rs.Active, rs.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update rule set: %w", err)
	}
	return rs, nil
}

func (s *Postgres) FindBinding(ctx context.Context, code id.JurisdictionCode) (*models.Binding, error) {
	var (
		b   models.Binding
		raw string
		ids []string
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT code, enabled, rule_set_ids, updated_at FROM jurisdictions WHERE code = $1
	`, code).Scan(&raw, &b.Enabled, pq.Array(&ids), &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find binding: %w", err)
	}
	b.Code = id.JurisdictionCode(raw)
	b.RuleSetIDs = make([]id.RuleSetID, len(ids))
	for i, v := range ids {
		b.RuleSetIDs[i] = id.RuleSetID(v)
	}
	return &b, nil
}

func (s *Postgres) SaveBinding(ctx context.Context, b *models.Binding) error {
	ids := make([]string, len(b.RuleSetIDs))
	for i, v := range b.RuleSetIDs {
		ids[i] = string(v)
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO jurisdictions (code, enabled, rule_set_ids, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE
		SET enabled = EXCLUDED.enabled, rule_set_ids = EXCLUDED.rule_set_ids, updated_at = EXCLUDED.updated_at
	`, b.Code, b.Enabled, pq.Array(ids), b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

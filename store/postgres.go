package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arko05roy/gaia-core/types"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

// PostgresStore is the durable substrate over PostgreSQL. Records are
// stored as JSONB documents beside their key columns, so the Go types
// remain the single source of truth for the record layout. Atomic
// maps to a serializable SQL transaction.
type PostgresStore struct {
	db *sql.DB
	pgOps
}

// NewPostgresStore connects, bootstraps the schema, and seeds the id
// sequences.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	s := &PostgresStore{db: db, pgOps: pgOps{q: db}}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gaia_sequences (
		name TEXT PRIMARY KEY,
		next BIGINT NOT NULL
	)`,
	`INSERT INTO gaia_sequences (name, next) VALUES ('task', 1), ('order', 1)
		ON CONFLICT (name) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS gaia_tasks (
		id BIGINT PRIMARY KEY,
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gaia_contributions (
		seq BIGSERIAL PRIMARY KEY,
		task_id BIGINT NOT NULL,
		doc JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS gaia_contributions_task ON gaia_contributions (task_id)`,
	`CREATE TABLE IF NOT EXISTS gaia_collateral (
		task_id BIGINT PRIMARY KEY,
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gaia_votes (
		task_id BIGINT NOT NULL,
		validator TEXT NOT NULL,
		seq BIGSERIAL,
		doc JSONB NOT NULL,
		PRIMARY KEY (task_id, validator)
	)`,
	`CREATE TABLE IF NOT EXISTS gaia_outcomes (
		task_id BIGINT PRIMARY KEY,
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gaia_credits (
		holder TEXT NOT NULL,
		task_id BIGINT NOT NULL,
		doc JSONB NOT NULL,
		PRIMARY KEY (holder, task_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gaia_settlement (
		holder TEXT PRIMARY KEY,
		amount TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gaia_orders (
		id BIGINT PRIMARY KEY,
		doc JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gaia_validator_sets (
		version BIGINT PRIMARY KEY,
		doc JSONB NOT NULL
	)`,
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}

// Atomic implements Store. The whole command runs inside one
// serializable transaction; any error rolls everything back.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(&pgOps{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pgOps implements Reader and Tx over either a live connection or an
// open transaction.
type pgOps struct {
	q querier
}

func getDoc[T any](ctx context.Context, q querier, query string, args ...any) (T, bool, error) {
	var zero T
	var raw []byte
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("store: decode record: %w", err)
	}
	return v, true, nil
}

func listDocs[T any](ctx context.Context, q querier, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("store: decode record: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func putDoc(ctx context.Context, q querier, query string, v any, keys ...any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}
	_, err = q.ExecContext(ctx, query, append(keys, doc)...)
	return err
}

func (p *pgOps) nextID(ctx context.Context, name string) (uint64, error) {
	var id uint64
	err := p.q.QueryRowContext(ctx,
		`UPDATE gaia_sequences SET next = next + 1 WHERE name = $1 RETURNING next - 1`,
		name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: next %s id: %w", name, err)
	}
	return id, nil
}

// --- Reader ---

func (p *pgOps) GetTask(ctx context.Context, id uint64) (types.Task, bool, error) {
	return getDoc[types.Task](ctx, p.q, `SELECT doc FROM gaia_tasks WHERE id = $1`, id)
}

func (p *pgOps) ListTasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error) {
	tasks, err := listDocs[types.Task](ctx, p.q, `SELECT doc FROM gaia_tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (p *pgOps) ListContributions(ctx context.Context, taskID uint64) ([]types.FundingContribution, error) {
	return listDocs[types.FundingContribution](ctx, p.q,
		`SELECT doc FROM gaia_contributions WHERE task_id = $1 ORDER BY seq`, taskID)
}

func (p *pgOps) GetCollateral(ctx context.Context, taskID uint64) (types.Collateral, bool, error) {
	return getDoc[types.Collateral](ctx, p.q, `SELECT doc FROM gaia_collateral WHERE task_id = $1`, taskID)
}

func (p *pgOps) ListVotes(ctx context.Context, taskID uint64) ([]types.VerificationVote, error) {
	return listDocs[types.VerificationVote](ctx, p.q,
		`SELECT doc FROM gaia_votes WHERE task_id = $1 ORDER BY seq`, taskID)
}

func (p *pgOps) GetOutcome(ctx context.Context, taskID uint64) (types.VerificationOutcome, bool, error) {
	return getDoc[types.VerificationOutcome](ctx, p.q, `SELECT doc FROM gaia_outcomes WHERE task_id = $1`, taskID)
}

func (p *pgOps) GetCreditBalance(ctx context.Context, holder types.Address, taskID uint64) (types.CreditBalance, error) {
	b, ok, err := getDoc[types.CreditBalance](ctx, p.q,
		`SELECT doc FROM gaia_credits WHERE holder = $1 AND task_id = $2`, holder.Hex(), taskID)
	if err != nil {
		return types.CreditBalance{}, err
	}
	if !ok {
		return types.CreditBalance{Holder: holder, TaskID: taskID}, nil
	}
	return b, nil
}

func (p *pgOps) GetSettlementBalance(ctx context.Context, holder types.Address) (types.Amount, error) {
	var raw string
	err := p.q.QueryRowContext(ctx,
		`SELECT amount FROM gaia_settlement WHERE holder = $1`, holder.Hex()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Amount{}, nil
	}
	if err != nil {
		return types.Amount{}, err
	}
	return types.ParseAmount(raw)
}

func (p *pgOps) GetOrder(ctx context.Context, id uint64) (types.MarketOrder, bool, error) {
	return getDoc[types.MarketOrder](ctx, p.q, `SELECT doc FROM gaia_orders WHERE id = $1`, id)
}

func (p *pgOps) ListOrders(ctx context.Context, f types.OrderFilter) ([]types.MarketOrder, error) {
	orders, err := listDocs[types.MarketOrder](ctx, p.q, `SELECT doc FROM gaia_orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	out := orders[:0]
	for _, o := range orders {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (p *pgOps) CurrentValidatorSet(ctx context.Context) (types.ValidatorSet, error) {
	vs, _, err := getDoc[types.ValidatorSet](ctx, p.q,
		`SELECT doc FROM gaia_validator_sets ORDER BY version DESC LIMIT 1`)
	return vs, err
}

func (p *pgOps) ValidatorSetAt(ctx context.Context, version uint64) (types.ValidatorSet, bool, error) {
	return getDoc[types.ValidatorSet](ctx, p.q,
		`SELECT doc FROM gaia_validator_sets WHERE version = $1`, version)
}

// --- Tx ---

func (p *pgOps) CreateTask(ctx context.Context, t types.Task) (uint64, error) {
	id, err := p.nextID(ctx, "task")
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, putDoc(ctx, p.q, `INSERT INTO gaia_tasks (id, doc) VALUES ($1, $2)`, t, id)
}

func (p *pgOps) PutTask(ctx context.Context, t types.Task) error {
	return putDoc(ctx, p.q, `UPDATE gaia_tasks SET doc = $2 WHERE id = $1`, t, t.ID)
}

func (p *pgOps) AppendContribution(ctx context.Context, c types.FundingContribution) error {
	return putDoc(ctx, p.q, `INSERT INTO gaia_contributions (task_id, doc) VALUES ($1, $2)`, c, c.TaskID)
}

func (p *pgOps) PutCollateral(ctx context.Context, c types.Collateral) error {
	return putDoc(ctx, p.q,
		`INSERT INTO gaia_collateral (task_id, doc) VALUES ($1, $2)
			ON CONFLICT (task_id) DO UPDATE SET doc = EXCLUDED.doc`, c, c.TaskID)
}

func (p *pgOps) AppendVote(ctx context.Context, v types.VerificationVote) error {
	return putDoc(ctx, p.q,
		`INSERT INTO gaia_votes (task_id, validator, doc) VALUES ($1, $2, $3)`,
		v, v.TaskID, v.Validator.Hex())
}

func (p *pgOps) PutOutcome(ctx context.Context, o types.VerificationOutcome) error {
	return putDoc(ctx, p.q,
		`INSERT INTO gaia_outcomes (task_id, doc) VALUES ($1, $2)
			ON CONFLICT (task_id) DO UPDATE SET doc = EXCLUDED.doc`, o, o.TaskID)
}

func (p *pgOps) SetCreditBalance(ctx context.Context, b types.CreditBalance) error {
	return putDoc(ctx, p.q,
		`INSERT INTO gaia_credits (holder, task_id, doc) VALUES ($1, $2, $3)
			ON CONFLICT (holder, task_id) DO UPDATE SET doc = EXCLUDED.doc`,
		b, b.Holder.Hex(), b.TaskID)
}

func (p *pgOps) SetSettlementBalance(ctx context.Context, holder types.Address, amount types.Amount) error {
	_, err := p.q.ExecContext(ctx,
		`INSERT INTO gaia_settlement (holder, amount) VALUES ($1, $2)
			ON CONFLICT (holder) DO UPDATE SET amount = EXCLUDED.amount`,
		holder.Hex(), amount.String())
	return err
}

func (p *pgOps) CreateOrder(ctx context.Context, o types.MarketOrder) (uint64, error) {
	id, err := p.nextID(ctx, "order")
	if err != nil {
		return 0, err
	}
	o.ID = id
	return id, putDoc(ctx, p.q, `INSERT INTO gaia_orders (id, doc) VALUES ($1, $2)`, o, id)
}

func (p *pgOps) PutOrder(ctx context.Context, o types.MarketOrder) error {
	return putDoc(ctx, p.q, `UPDATE gaia_orders SET doc = $2 WHERE id = $1`, o, o.ID)
}

func (p *pgOps) PutValidatorSet(ctx context.Context, vs types.ValidatorSet) error {
	return putDoc(ctx, p.q,
		`INSERT INTO gaia_validator_sets (version, doc) VALUES ($1, $2)
			ON CONFLICT (version) DO UPDATE SET doc = EXCLUDED.doc`, vs, vs.Version)
}

var _ Store = (*PostgresStore)(nil)
var _ Tx = (*pgOps)(nil)

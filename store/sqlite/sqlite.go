/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements persistence for recurring definitions, ledger entries, and
  accounts using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  recurrence.DefinitionStore: Recurring-rule persistence and the due query
  recurrence.RunStore:        Atomic commit for a processor run
  ledger.Store:               Append-only posting persistence
  ledger.AccountStore:        Account lookups for the materializer

IDEMPOTENCY AT THE STORAGE BOUNDARY:
  entries.fingerprint carries a UNIQUE index. Inside InsertEntries a
  fingerprint collision is swallowed as a no-op instead of failing the
  batch - this is the expected outcome of a retried or overlapping run.
  Any other failure rolls the whole batch back.

APPEND-ONLY ENFORCEMENT:
  There is no UPDATE or DELETE on the entries table. Definitions are
  upserted (their schedule state advances); postings never change.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - recurrence/definition.go: Interface definitions
  - recurrence/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/recurrence"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Recurring definitions (schedule state is upserted by the processor)
	CREATE TABLE IF NOT EXISTS definitions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		description TEXT NOT NULL,
		amount INTEGER NOT NULL,
		category TEXT,
		source_account TEXT NOT NULL,
		destination_account TEXT,
		is_income BOOLEAN NOT NULL DEFAULT FALSE,
		is_transfer BOOLEAN NOT NULL DEFAULT FALSE,
		fee_amount INTEGER NOT NULL DEFAULT 0,
		frequency TEXT NOT NULL,
		interval_days INTEGER,
		day_of_week INTEGER,
		day_of_month INTEGER,
		month_of_year INTEGER,
		start_date TEXT NOT NULL,
		end_date TEXT,
		next_run_date TEXT NOT NULL,
		last_run_date TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_definitions_owner
		ON definitions(owner_id);

	-- Due query hot path
	CREATE INDEX IF NOT EXISTS idx_definitions_due
		ON definitions(is_active, next_run_date);

	-- Ledger entries (append-only postings)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		category TEXT,
		source TEXT,
		is_income BOOLEAN NOT NULL DEFAULT FALSE,
		is_transfer BOOLEAN NOT NULL DEFAULT FALSE,
		transfer_id TEXT,
		transfer_type TEXT NOT NULL DEFAULT 'none',
		month TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: The fingerprint is the sole idempotency guard. A retried
	-- run re-inserts identical fingerprints and this index rejects them.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_fingerprint
		ON entries(fingerprint);

	CREATE INDEX IF NOT EXISTS idx_entries_owner_month
		ON entries(owner_id, month);
	CREATE INDEX IF NOT EXISTS idx_entries_transfer
		ON entries(transfer_id) WHERE transfer_id IS NOT NULL;

	-- Accounts (currency source for posting legs)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_owner
		ON accounts(owner_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DEFINITION STORE (recurrence.DefinitionStore interface)
// =============================================================================

// SaveDefinition creates or replaces a definition.
func (s *Store) SaveDefinition(ctx context.Context, def recurrence.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveDefinition(ctx, s.db, def)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveDefinition(ctx context.Context, db execer, def recurrence.Definition) error {
	kind, params := recurrence.DecomposeFrequency(def.Frequency)

	query := `
		INSERT INTO definitions
		(id, owner_id, description, amount, category, source_account, destination_account,
		 is_income, is_transfer, fee_amount, frequency, interval_days, day_of_week,
		 day_of_month, month_of_year, start_date, end_date, next_run_date, last_run_date,
		 is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			category = excluded.category,
			source_account = excluded.source_account,
			destination_account = excluded.destination_account,
			is_income = excluded.is_income,
			is_transfer = excluded.is_transfer,
			fee_amount = excluded.fee_amount,
			frequency = excluded.frequency,
			interval_days = excluded.interval_days,
			day_of_week = excluded.day_of_week,
			day_of_month = excluded.day_of_month,
			month_of_year = excluded.month_of_year,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			next_run_date = excluded.next_run_date,
			last_run_date = excluded.last_run_date,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		def.ID,
		def.OwnerID,
		def.Description,
		def.Amount,
		def.Category,
		def.SourceAccount,
		nullString(string(def.DestinationAccount)),
		def.IsIncome,
		def.IsTransfer,
		def.FeeAmount,
		string(kind),
		nullInt(params.IntervalDays),
		nullInt(params.DayOfWeek),
		nullInt(params.DayOfMonth),
		nullInt(params.MonthOfYear),
		def.StartDate.String(),
		nullDate(def.EndDate),
		def.NextRunDate.String(),
		nullDate(def.LastRunDate),
		def.IsActive,
		def.CreatedAt.UTC().Format(time.RFC3339),
		def.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

const definitionColumns = `id, owner_id, description, amount, category, source_account,
	destination_account, is_income, is_transfer, fee_amount, frequency, interval_days,
	day_of_week, day_of_month, month_of_year, start_date, end_date, next_run_date,
	last_run_date, is_active, created_at, updated_at`

// GetDefinition retrieves a definition by ID.
func (s *Store) GetDefinition(ctx context.Context, id recurrence.DefinitionID) (*recurrence.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs, err := s.queryDefinitions(ctx,
		`SELECT `+definitionColumns+` FROM definitions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, recurrence.ErrDefinitionNotFound
	}
	return &defs[0], nil
}

// ListDefinitions returns an owner's definitions.
func (s *Store) ListDefinitions(ctx context.Context, owner ledger.OwnerID, activeOnly bool) ([]recurrence.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + definitionColumns + ` FROM definitions WHERE owner_id = ?`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	return s.queryDefinitions(ctx, query, owner)
}

// ListDue returns every active definition due at or before target.
func (s *Store) ListDue(ctx context.Context, owner ledger.OwnerID, target ledger.Date) ([]recurrence.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + definitionColumns + ` FROM definitions
		WHERE is_active = TRUE AND next_run_date <= ?`
	args := []any{target.String()}
	if owner != "" {
		query += ` AND owner_id = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY next_run_date ASC, id ASC`

	return s.queryDefinitions(ctx, query, args...)
}

func (s *Store) queryDefinitions(ctx context.Context, query string, args ...any) ([]recurrence.Definition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query definitions: %w", err)
	}
	defer rows.Close()

	var defs []recurrence.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanDefinition(rows *sql.Rows) (recurrence.Definition, error) {
	var (
		def                recurrence.Definition
		category           sql.NullString
		destinationAccount sql.NullString
		kind               string
		intervalDays       sql.NullInt64
		dayOfWeek          sql.NullInt64
		dayOfMonth         sql.NullInt64
		monthOfYear        sql.NullInt64
		startDate          string
		endDate            sql.NullString
		nextRunDate        string
		lastRunDate        sql.NullString
		createdAt          string
		updatedAt          string
	)

	err := rows.Scan(
		&def.ID, &def.OwnerID, &def.Description, &def.Amount, &category,
		&def.SourceAccount, &destinationAccount, &def.IsIncome, &def.IsTransfer,
		&def.FeeAmount, &kind, &intervalDays, &dayOfWeek, &dayOfMonth, &monthOfYear,
		&startDate, &endDate, &nextRunDate, &lastRunDate, &def.IsActive,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return def, fmt.Errorf("failed to scan definition: %w", err)
	}

	def.Category = category.String
	def.DestinationAccount = ledger.AccountID(destinationAccount.String)

	freq, err := recurrence.BuildFrequency(recurrence.FrequencyKind(kind), recurrence.FrequencyParams{
		IntervalDays: intPtr(intervalDays),
		DayOfWeek:    intPtr(dayOfWeek),
		DayOfMonth:   intPtr(dayOfMonth),
		MonthOfYear:  intPtr(monthOfYear),
	})
	if err != nil {
		return def, fmt.Errorf("stored definition %s has invalid frequency: %w", def.ID, err)
	}
	def.Frequency = freq

	def.StartDate, _ = ledger.ParseDate(startDate)
	def.NextRunDate, _ = ledger.ParseDate(nextRunDate)
	if endDate.Valid {
		d, _ := ledger.ParseDate(endDate.String)
		def.EndDate = &d
	}
	if lastRunDate.Valid {
		d, _ := ledger.ParseDate(lastRunDate.String)
		def.LastRunDate = &d
	}
	def.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	def.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return def, nil
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// InsertBatch persists entries atomically; fingerprint collisions are
// skipped as no-ops. Returns how many entries were actually inserted.
func (s *Store) InsertBatch(ctx context.Context, entries []ledger.Entry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	inserted, err := insertEntries(ctx, sqlTx, entries)
	if err != nil {
		return 0, err
	}
	return inserted, sqlTx.Commit()
}

func insertEntries(ctx context.Context, db execer, entries []ledger.Entry) (int, error) {
	query := `
		INSERT INTO entries
		(id, owner_id, account_id, date, amount, currency, category, source,
		 is_income, is_transfer, transfer_id, transfer_type, month, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	inserted := 0
	for _, e := range entries {
		if e.Amount == 0 {
			return 0, ledger.ErrZeroAmount
		}

		_, err := db.ExecContext(ctx, query,
			e.ID,
			e.OwnerID,
			e.AccountID,
			e.Date.String(),
			e.Amount,
			e.Currency,
			e.Category,
			e.Source,
			e.IsIncome,
			e.IsTransfer,
			nullString(e.TransferID),
			string(e.Transfer),
			e.Month,
			e.Fingerprint,
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isFingerprintCollision(err) {
				// Expected outcome of a retried or overlapping run.
				continue
			}
			return 0, fmt.Errorf("failed to insert entry: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// ListByOwner returns an owner's entries, newest first.
func (s *Store) ListByOwner(ctx context.Context, owner ledger.OwnerID, month string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, owner_id, account_id, date, amount, currency, category, source,
		       is_income, is_transfer, transfer_id, transfer_type, month, fingerprint
		FROM entries
		WHERE owner_id = ?
	`
	args := []any{owner}
	if month != "" {
		query += ` AND month = ?`
		args = append(args, month)
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e          ledger.Entry
			date       string
			category   sql.NullString
			source     sql.NullString
			transferID sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.OwnerID, &e.AccountID, &date, &e.Amount, &e.Currency,
			&category, &source, &e.IsIncome, &e.IsTransfer, &transferID,
			&e.Transfer, &e.Month, &e.Fingerprint,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Date, _ = ledger.ParseDate(date)
		e.Category = category.String
		e.Source = source.String
		e.TransferID = transferID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExistsFingerprint reports whether a fingerprint is already recorded.
func (s *Store) ExistsFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE fingerprint = ?",
		fingerprint,
	).Scan(&count)

	return count > 0, err
}

// =============================================================================
// ACCOUNT STORE (ledger.AccountStore interface)
// =============================================================================

// SaveAccount creates or updates an account.
func (s *Store) SaveAccount(ctx context.Context, account ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO accounts (id, owner_id, name, currency, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID, account.OwnerID, account.Name, account.Currency,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a ledger.Account
	err := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, currency FROM accounts WHERE id = ?",
		id,
	).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Currency)

	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns all accounts for an owner.
func (s *Store) ListAccounts(ctx context.Context, owner ledger.OwnerID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, owner_id, name, currency FROM accounts WHERE owner_id = ? ORDER BY name",
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Currency); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// =============================================================================
// RUN TRANSACTION (recurrence.RunStore interface)
// =============================================================================

// WithRunTx executes a function within a database transaction. The batch's
// postings and schedule advancements persist all-or-nothing.
func (s *Store) WithRunTx(ctx context.Context, fn func(tx recurrence.RunTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&runTx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type runTx struct {
	tx *sql.Tx
}

func (rt *runTx) InsertEntries(ctx context.Context, entries []ledger.Entry) (int, error) {
	return insertEntries(ctx, rt.tx, entries)
}

func (rt *runTx) SaveDefinition(ctx context.Context, def recurrence.Definition) error {
	return saveDefinition(ctx, rt.tx, def)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullDate(d *ledger.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func isFingerprintCollision(err error) bool {
	return err != nil &&
		strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		strings.Contains(err.Error(), "entries.fingerprint")
}

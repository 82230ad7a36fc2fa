package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"autoforge/internal/types"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// sqliteStorage implements Storage using SQLite
type sqliteStorage struct {
	db *sql.DB
}

// timeFormat is how timestamps are stored; RFC3339Nano keeps lexical order
const timeFormat = time.RFC3339Nano

// newSQLite opens (creating if needed) the database at path and applies the
// schema. WAL mode keeps the discover and build cycles from blocking each
// other on reads.
func newSQLite(path string) (*sqliteStorage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3",
		"file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

// --- Candidate items ---

func (s *sqliteStorage) CreateItem(ctx context.Context, item *types.CandidateItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	_, err := sq.Insert("items").
		Columns("id", "title", "description", "source", "score", "verdict", "status", "created_at", "updated_at").
		Values(item.ID, item.Title, item.Description, item.Source, item.Score, item.Verdict,
			string(item.Status), item.CreatedAt.Format(timeFormat), item.UpdatedAt.Format(timeFormat)).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}
	return nil
}

func (s *sqliteStorage) GetItem(ctx context.Context, id string) (*types.CandidateItem, error) {
	row := sq.Select("id", "title", "description", "source", "score", "verdict", "status", "created_at", "updated_at").
		From("items").Where(sq.Eq{"id": id}).
		RunWith(s.db).QueryRowContext(ctx)
	return scanItem(row)
}

func (s *sqliteStorage) UpdateItemStatus(ctx context.Context, id string, status types.ItemStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid item status: %q", status)
	}
	res, err := sq.Update("items").
		Set("status", string(status)).
		Set("updated_at", time.Now().Format(timeFormat)).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *sqliteStorage) UpdateItemScore(ctx context.Context, id string, score float64, verdict string) error {
	res, err := sq.Update("items").
		Set("score", score).
		Set("verdict", verdict).
		Set("updated_at", time.Now().Format(timeFormat)).
		Where(sq.Eq{"id": id}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update score for %s: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *sqliteStorage) ListItemsByStatus(ctx context.Context, statuses ...types.ItemStatus) ([]*types.CandidateItem, error) {
	vals := make([]string, len(statuses))
	for i, st := range statuses {
		vals[i] = string(st)
	}
	builder := sq.Select("id", "title", "description", "source", "score", "verdict", "status", "created_at", "updated_at").
		From("items").OrderBy("score DESC, created_at ASC")
	if len(vals) > 0 {
		builder = builder.Where(sq.Eq{"status": vals})
	}

	rows, err := builder.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*types.CandidateItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*types.CandidateItem, error) {
	var item types.CandidateItem
	var status, createdAt, updatedAt string
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.Source,
		&item.Score, &item.Verdict, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	item.Status = types.ItemStatus(status)
	item.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	item.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return &item, nil
}

// --- Built records ---

func (s *sqliteStorage) SaveBuiltRecord(ctx context.Context, rec *types.BuiltRecord) error {
	if rec.ItemID == "" {
		return fmt.Errorf("built record item_id is required")
	}
	if rec.BuiltAt.IsZero() {
		rec.BuiltAt = time.Now()
	}
	_, err := sq.Insert("built_records").
		Columns("item_id", "title", "slug", "output_path", "quality_score", "deploy_url", "deployed", "built_at").
		Values(rec.ItemID, rec.Title, rec.Slug, rec.OutputPath, rec.QualityScore,
			rec.DeployURL, boolToInt(rec.Deployed), rec.BuiltAt.Format(timeFormat)).
		Suffix("ON CONFLICT(item_id) DO UPDATE SET quality_score = excluded.quality_score, deploy_url = excluded.deploy_url, deployed = excluded.deployed").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to save built record for %s: %w", rec.ItemID, err)
	}
	return nil
}

func (s *sqliteStorage) GetBuiltRecord(ctx context.Context, itemID string) (*types.BuiltRecord, error) {
	row := selectBuilt().Where(sq.Eq{"item_id": itemID}).RunWith(s.db).QueryRowContext(ctx)
	return scanBuilt(row)
}

func (s *sqliteStorage) GetBuiltRecordByPath(ctx context.Context, outputPath string) (*types.BuiltRecord, error) {
	row := selectBuilt().Where(sq.Eq{"output_path": outputPath}).RunWith(s.db).QueryRowContext(ctx)
	return scanBuilt(row)
}

func (s *sqliteStorage) ListBuiltRecords(ctx context.Context) ([]*types.BuiltRecord, error) {
	rows, err := selectBuilt().OrderBy("built_at DESC").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list built records: %w", err)
	}
	defer rows.Close()

	var recs []*types.BuiltRecord
	for rows.Next() {
		rec, err := scanBuilt(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *sqliteStorage) MarkDeployed(ctx context.Context, itemID, deployURL string) error {
	res, err := sq.Update("built_records").
		Set("deploy_url", deployURL).
		Set("deployed", 1).
		Where(sq.Eq{"item_id": itemID}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark %s deployed: %w", itemID, err)
	}
	return requireRow(res, itemID)
}

func (s *sqliteStorage) CountBuilt(ctx context.Context) (int, error) {
	var count int
	err := sq.Select("COUNT(*)").From("built_records").
		RunWith(s.db).QueryRowContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count built records: %w", err)
	}
	return count, nil
}

func selectBuilt() sq.SelectBuilder {
	return sq.Select("item_id", "title", "slug", "output_path", "quality_score", "deploy_url", "deployed", "built_at").
		From("built_records")
}

func scanBuilt(row rowScanner) (*types.BuiltRecord, error) {
	var rec types.BuiltRecord
	var deployed int
	var builtAt string
	err := row.Scan(&rec.ItemID, &rec.Title, &rec.Slug, &rec.OutputPath,
		&rec.QualityScore, &rec.DeployURL, &deployed, &builtAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan built record: %w", err)
	}
	rec.Deployed = deployed != 0
	rec.BuiltAt, _ = time.Parse(timeFormat, builtAt)
	return &rec, nil
}

// --- Failure entries ---

func (s *sqliteStorage) GetFailure(ctx context.Context, itemID string) (*types.FailureEntry, error) {
	var entry types.FailureEntry
	var at string
	err := sq.Select("item_id", "count", "last_error", "last_failure_at").
		From("failures").Where(sq.Eq{"item_id": itemID}).
		RunWith(s.db).QueryRowContext(ctx).
		Scan(&entry.ItemID, &entry.Count, &entry.LastError, &at)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failure entry for %s: %w", itemID, err)
	}
	entry.LastFailureAt, _ = time.Parse(timeFormat, at)
	return &entry, nil
}

func (s *sqliteStorage) UpsertFailure(ctx context.Context, entry *types.FailureEntry) error {
	if entry.ItemID == "" {
		return fmt.Errorf("failure entry item_id is required")
	}
	if entry.LastFailureAt.IsZero() {
		entry.LastFailureAt = time.Now()
	}
	_, err := sq.Insert("failures").
		Columns("item_id", "count", "last_error", "last_failure_at").
		Values(entry.ItemID, entry.Count, entry.LastError, entry.LastFailureAt.Format(timeFormat)).
		Suffix("ON CONFLICT(item_id) DO UPDATE SET count = excluded.count, last_error = excluded.last_error, last_failure_at = excluded.last_failure_at").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert failure entry for %s: %w", entry.ItemID, err)
	}
	return nil
}

func (s *sqliteStorage) DeleteFailure(ctx context.Context, itemID string) error {
	// Deleting an absent entry is a no-op, not an error
	_, err := sq.Delete("failures").Where(sq.Eq{"item_id": itemID}).
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete failure entry for %s: %w", itemID, err)
	}
	return nil
}

func (s *sqliteStorage) ListFailures(ctx context.Context) (map[string]*types.FailureEntry, error) {
	rows, err := sq.Select("item_id", "count", "last_error", "last_failure_at").
		From("failures").RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]*types.FailureEntry)
	for rows.Next() {
		var entry types.FailureEntry
		var at string
		if err := rows.Scan(&entry.ItemID, &entry.Count, &entry.LastError, &at); err != nil {
			return nil, fmt.Errorf("failed to scan failure entry: %w", err)
		}
		entry.LastFailureAt, _ = time.Parse(timeFormat, at)
		entries[entry.ItemID] = &entry
	}
	return entries, rows.Err()
}

// --- Config ---

func (s *sqliteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := sq.Select("value").From("config").Where(sq.Eq{"key": key}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %q: %w", key, err)
	}
	return value, nil
}

func (s *sqliteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := sq.Insert("config").Columns("key", "value").Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to set config %q: %w", key, err)
	}
	return nil
}

// --- Status document ---

func (s *sqliteStorage) SaveStatus(ctx context.Context, doc *types.StatusDoc) error {
	doc.UpdatedAt = time.Now()
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal status doc: %w", err)
	}
	_, err = sq.Insert("status").Columns("id", "payload", "updated_at").
		Values(1, string(payload), doc.UpdatedAt.Format(timeFormat)).
		Suffix("ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at").
		RunWith(s.db).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to save status doc: %w", err)
	}
	return nil
}

func (s *sqliteStorage) GetStatus(ctx context.Context) (*types.StatusDoc, error) {
	var payload string
	err := sq.Select("payload").From("status").Where(sq.Eq{"id": 1}).
		RunWith(s.db).QueryRowContext(ctx).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status doc: %w", err)
	}
	var doc types.StatusDoc
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status doc: %w", err)
	}
	return &doc, nil
}

// --- Helpers ---

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

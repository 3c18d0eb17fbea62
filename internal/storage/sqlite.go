package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newsbuzz/internal/model"
	"newsbuzz/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

const insertItem = `INSERT INTO items
	(dedup_key, title, excerpt, link, image_url, category, published_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(dedup_key) DO NOTHING`

const selectItem = `SELECT id, dedup_key, title, excerpt, link, image_url, category, published_at, created_at
	FROM items`

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer, and each ":memory:"
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertIfAbsent stores a single item. On success the item's ID and
// CreatedAt are populated.
func (s *SQLite) InsertIfAbsent(ctx context.Context, item *model.Item) (bool, error) {
	return s.insert(ctx, s.db, item)
}

// InsertBatch stores all items of one source in a single transaction.
// Either every insert is committed or none is.
func (s *SQLite) InsertBatch(ctx context.Context, items []model.Item) ([]bool, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := make([]bool, len(items))
	for i := range items {
		ok, err := s.insert(ctx, tx, &items[i])
		if err != nil {
			return nil, err
		}
		inserted[i] = ok
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return inserted, nil
}

func (s *SQLite) insert(ctx context.Context, ex execer, item *model.Item) (bool, error) {
	created := s.now().UTC().Truncate(time.Second)
	now := created.Format(timeLayout)
	res, err := ex.ExecContext(ctx, insertItem,
		item.DedupKey, item.Title, item.Excerpt, item.Link, item.ImageURL, item.Category,
		item.PublishedAt.UTC().Format(timeLayout), now,
	)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	item.ID = id
	item.CreatedAt = created
	return true, nil
}

// Exists reports whether an item with the given dedup key is stored.
func (s *SQLite) Exists(ctx context.Context, dedupKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE dedup_key = ?`, dedupKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return count > 0, nil
}

// Query returns stored items ordered by publication time, newest first.
func (s *SQLite) Query(ctx context.Context, q Query) ([]model.Item, error) {
	q = q.Normalize()
	rows, err := s.db.QueryContext(ctx,
		selectItem+`
		 WHERE (? = '' OR category = ? COLLATE NOCASE)
		 ORDER BY published_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		q.Category, q.Category, q.Limit, q.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns the number of stored items, optionally within one category.
func (s *SQLite) Count(ctx context.Context, category string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE (? = '' OR category = ? COLLATE NOCASE)`,
		category, category,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// Categories lists the stored categories with their item counts.
func (s *SQLite) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM items GROUP BY category ORDER BY category`,
	)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes items stored before cutoff and returns how many were removed.
func (s *SQLite) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM items WHERE created_at < ?`, cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("delete items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (model.Item, error) {
	var it model.Item
	var published, created string
	err := row.Scan(&it.ID, &it.DedupKey, &it.Title, &it.Excerpt, &it.Link, &it.ImageURL,
		&it.Category, &published, &created)
	if err != nil {
		return it, fmt.Errorf("scan item: %w", err)
	}
	if it.PublishedAt, err = time.Parse(timeLayout, published); err != nil {
		return it, fmt.Errorf("scan item %d published_at: %w", it.ID, err)
	}
	if it.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return it, fmt.Errorf("scan item %d created_at: %w", it.ID, err)
	}
	return it, nil
}

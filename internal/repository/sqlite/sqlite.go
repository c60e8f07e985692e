package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"virtnet/internal/domain"
)

// Repository implements repository.SnapshotStore using SQLite
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath and migrates the schema
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		parent TEXT,
		value TEXT,
		data JSON
	);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relation TEXT
	);

	CREATE TABLE IF NOT EXISTS expansions (
		seed TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		prior_value TEXT,
		elements JSON
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_position ON nodes(position);
	CREATE INDEX IF NOT EXISTS idx_edges_position ON edges(position);
	CREATE INDEX IF NOT EXISTS idx_expansions_position ON expansions(position);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Load reads the snapshot in stored order. An empty database yields nil.
func (r *Repository) Load(ctx context.Context) (*domain.Snapshot, error) {
	var stored int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metadata WHERE key = 'saved_at'`).Scan(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	if stored == 0 {
		return nil, nil
	}

	snap := &domain.Snapshot{Nodes: []domain.Node{}, Edges: []domain.Edge{}}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, label, parent, value, data
		FROM nodes ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := row.toDomain()
		if err != nil {
			rows.Close()
			return nil, err
		}
		snap.Nodes = append(snap.Nodes, node)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation
		FROM edges ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	for rows.Next() {
		var row edgeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		snap.Edges = append(snap.Edges, row.toDomain())
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT seed, prior_value, elements
		FROM expansions ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query expansions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row expansionRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan expansion: %w", err)
		}
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		snap.Expansions = append(snap.Expansions, rec)
	}

	return snap, rows.Err()
}

// Save replaces the stored snapshot in one transaction
func (r *Repository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		snapshot = &domain.Snapshot{}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTables(ctx, tx); err != nil {
		return err
	}

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, position, kind, label, parent, value, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer nodeStmt.Close()

	for i, node := range snapshot.Nodes {
		args, err := nodeInsertArgs(i, node)
		if err != nil {
			return err
		}
		if _, err := nodeStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (id, position, source_id, target_id, relation)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for i, edge := range snapshot.Edges {
		if _, err := edgeStmt.ExecContext(ctx, edgeInsertArgs(i, edge)...); err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", edge.ID, err)
		}
	}

	for i, rec := range snapshot.Expansions {
		args, err := expansionInsertArgs(i, rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO expansions (seed, position, prior_value, elements)
			VALUES (?, ?, ?, ?)
		`, args...); err != nil {
			return fmt.Errorf("failed to insert expansion %s: %w", rec.Seed, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES ('saved_at', datetime('now'), CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`); err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	return tx.Commit()
}

// Delete drops the stored snapshot
func (r *Repository) Delete(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearTables(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = 'saved_at'`); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

func clearTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"nodes", "edges", "expansions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

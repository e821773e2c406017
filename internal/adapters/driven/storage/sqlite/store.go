package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/testforge/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
)

// Store is a SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

var _ driven.SnapshotStore = (*Store)(nil)

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to $TESTFORGE_HOME/data or ~/.testforge/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		base := os.Getenv("TESTFORGE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("getting home directory: %w", err)
			}
			base = filepath.Join(home, ".testforge")
		}
		dataDir = filepath.Join(base, "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "snapshots.db")

	// WAL for concurrent readers; foreign keys on every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_snapshots.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// Save stores a snapshot with its chunks and vectors in one transaction.
func (s *Store) Save(ctx context.Context, snapshot *domain.IndexSnapshot) error {
	if snapshot == nil || snapshot.Len() == 0 {
		return fmt.Errorf("%w: empty snapshot", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	meta := snapshot.Meta()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, created_at, embedding_model, dimensions, chunk_count)
		VALUES (?, ?, ?, ?, ?)
	`, meta.ID, meta.CreatedAt.UnixNano(), meta.EmbeddingModel, snapshot.Dimensions(), snapshot.Len())
	if err != nil {
		return fmt.Errorf("inserting snapshot %s: %w", meta.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_chunks (snapshot_id, ordinal, chunk_id, source, content, char_offset, position, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < snapshot.Len(); i++ {
		c := snapshot.ChunkAt(i)
		_, err := stmt.ExecContext(ctx, meta.ID, i, c.ID, c.Source, c.Text, c.Offset, c.Position,
			float32SliceToBytes(snapshot.VectorAt(i)))
		if err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Latest loads the most recently saved snapshot.
// Returns domain.ErrNotFound when no snapshot has been saved.
func (s *Store) Latest(ctx context.Context) (*domain.IndexSnapshot, error) {
	var (
		meta       domain.SnapshotMeta
		createdAt  int64
		dimensions int
		count      int
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, embedding_model, dimensions, chunk_count
		FROM snapshots ORDER BY seq DESC LIMIT 1
	`)
	if err := row.Scan(&meta.ID, &createdAt, &meta.EmbeddingModel, &dimensions, &count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	meta.CreatedAt = time.Unix(0, createdAt).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, source, content, char_offset, position, vector
		FROM snapshot_chunks WHERE snapshot_id = ? ORDER BY ordinal
	`, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks for %s: %w", meta.ID, err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, count)
	var vectors [][]float32
	if dimensions > 0 {
		vectors = make([][]float32, 0, count)
	}
	for rows.Next() {
		var (
			c    domain.Chunk
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.Text, &c.Offset, &c.Position, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
		if dimensions > 0 {
			vectors = append(vectors, bytesToFloat32Slice(blob))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	if len(chunks) != count {
		return nil, fmt.Errorf("snapshot %s is incomplete: %d of %d chunks", meta.ID, len(chunks), count)
	}

	return domain.NewIndexSnapshot(meta, chunks, vectors)
}

// Prune deletes all but the keep most recent snapshots.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep < 1 {
		keep = 1
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE seq NOT IN (
			SELECT seq FROM snapshots ORDER BY seq DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

package artifact

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// ManifestFile is the SQLite index of committed versions inside the model directory.
const ManifestFile = "manifest.db"

const manifestMigration = `
CREATE TABLE IF NOT EXISTS versions (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	version       TEXT NOT NULL UNIQUE,
	run_id        TEXT NOT NULL,
	data_hash     TEXT NOT NULL,
	samples       INTEGER NOT NULL,
	accuracy      REAL,
	model_path    TEXT NOT NULL,
	encoder_path  TEXT NOT NULL,
	metadata_path TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);
`

// VersionInfo is one committed version.
type VersionInfo struct {
	Version   string    `json:"version"`
	RunID     string    `json:"run_id"`
	DataHash  string    `json:"data_hash"`
	Samples   int       `json:"samples"`
	Accuracy  float64   `json:"accuracy"`
	CreatedAt time.Time `json:"created_at"`
}

type manifest struct {
	db *sql.DB
}

func openManifest(ctx context.Context, path string) (*manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "manifest: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, manifestMigration); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "manifest: migrate")
	}
	return &manifest{db: db}, nil
}

func (m *manifest) close() error {
	return m.db.Close()
}

type manifestRow struct {
	VersionInfo
	ModelPath    string
	EncoderPath  string
	MetadataPath string
}

func (m *manifest) commit(ctx context.Context, r manifestRow) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO versions (version, run_id, data_hash, samples, accuracy, model_path, encoder_path, metadata_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Version, r.RunID, r.DataHash, r.Samples, r.Accuracy,
		r.ModelPath, r.EncoderPath, r.MetadataPath, r.CreatedAt.UTC(),
	)
	return errors.Wrapf(err, "manifest: insert version %s", r.Version)
}

// latest returns the most recently committed version, or "" when none is.
func (m *manifest) latest(ctx context.Context) (string, error) {
	var v string
	err := m.db.QueryRowContext(ctx, `SELECT version FROM versions ORDER BY seq DESC LIMIT 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, errors.Wrap(err, "manifest: latest")
}

func (m *manifest) list(ctx context.Context) ([]VersionInfo, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT version, run_id, data_hash, samples, COALESCE(accuracy, 0), created_at FROM versions ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: list")
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var v VersionInfo
		if err := rows.Scan(&v.Version, &v.RunID, &v.DataHash, &v.Samples, &v.Accuracy, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "manifest: scan")
		}
		out = append(out, v)
	}
	return out, errors.Wrap(rows.Err(), "manifest: iterate")
}

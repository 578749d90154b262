package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// SQLiteStore implements Store over an already-open SQLite handle shared
// with the lead store, which owns the schema.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite wraps an open database handle in a state store.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) LoadDiscovery(ctx context.Context, tenant string) (*DiscoveryState, error) {
	doc, version, err := s.loadDoc(ctx, tenant, kindDiscovery)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return NewDiscoveryState(), nil
	}

	st := &DiscoveryState{}
	if err := json.Unmarshal(doc, st); err != nil {
		return nil, eris.Wrapf(err, "state: unmarshal discovery doc for %s", tenant)
	}
	st.ensure()
	st.Version = version
	return st, nil
}

func (s *SQLiteStore) SaveDiscovery(ctx context.Context, tenant string, st *DiscoveryState) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "state: marshal discovery doc")
	}
	if err := s.saveDoc(ctx, tenant, kindDiscovery, doc, st.Version); err != nil {
		return err
	}
	st.Version++
	return nil
}

func (s *SQLiteStore) LoadRotation(ctx context.Context, tenant string) (*RotationState, error) {
	doc, version, err := s.loadDoc(ctx, tenant, kindRotation)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return NewRotationState(), nil
	}

	st := &RotationState{}
	if err := json.Unmarshal(doc, st); err != nil {
		return nil, eris.Wrapf(err, "state: unmarshal rotation doc for %s", tenant)
	}
	st.ensure()
	st.Version = version
	return st, nil
}

func (s *SQLiteStore) SaveRotation(ctx context.Context, tenant string, st *RotationState) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "state: marshal rotation doc")
	}
	if err := s.saveDoc(ctx, tenant, kindRotation, doc, st.Version); err != nil {
		return err
	}
	st.Version++
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context, tenant string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM engine_state WHERE tenant = ?`, tenant)
	return eris.Wrapf(err, "state: reset %s", tenant)
}

func (s *SQLiteStore) loadDoc(ctx context.Context, tenant, kind string) ([]byte, int64, error) {
	var doc []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, version FROM engine_state WHERE tenant = ? AND kind = ?`,
		tenant, kind,
	).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "state: load %s doc for %s", kind, tenant)
	}
	return doc, version, nil
}

func (s *SQLiteStore) saveDoc(ctx context.Context, tenant, kind string, doc []byte, version int64) error {
	now := time.Now().UTC()

	if version == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO engine_state (tenant, kind, doc, version, updated_at)
			 VALUES (?, ?, ?, 1, ?)
			 ON CONFLICT (tenant, kind) DO NOTHING`,
			tenant, kind, string(doc), now,
		)
		if err != nil {
			return eris.Wrapf(err, "state: insert %s doc for %s", kind, tenant)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "state: rows affected")
		}
		if n == 0 {
			return eris.Wrapf(ErrVersionConflict, "state: %s doc for %s created concurrently", kind, tenant)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE engine_state SET doc = ?, version = version + 1, updated_at = ?
		 WHERE tenant = ? AND kind = ? AND version = ?`,
		string(doc), now, tenant, kind, version,
	)
	if err != nil {
		return eris.Wrapf(err, "state: update %s doc for %s", kind, tenant)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "state: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrVersionConflict, "state: %s doc for %s moved past version %d", kind, tenant, version)
	}
	return nil
}

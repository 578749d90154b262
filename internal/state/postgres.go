package state

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/lenilani/leadscout/internal/db"
)

// PostgresStore implements Store over an existing pgx pool. The engine_state
// table is created by the lead store's migrations.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps a pool in a state store.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) LoadDiscovery(ctx context.Context, tenant string) (*DiscoveryState, error) {
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

func (s *PostgresStore) SaveDiscovery(ctx context.Context, tenant string, st *DiscoveryState) error {
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

func (s *PostgresStore) LoadRotation(ctx context.Context, tenant string) (*RotationState, error) {
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

func (s *PostgresStore) SaveRotation(ctx context.Context, tenant string, st *RotationState) error {
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

func (s *PostgresStore) Reset(ctx context.Context, tenant string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM engine_state WHERE tenant = $1`, tenant)
	return eris.Wrapf(err, "state: reset %s", tenant)
}

func (s *PostgresStore) loadDoc(ctx context.Context, tenant, kind string) ([]byte, int64, error) {
	var doc []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT doc, version FROM engine_state WHERE tenant = $1 AND kind = $2`,
		tenant, kind,
	).Scan(&doc, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "state: load %s doc for %s", kind, tenant)
	}
	return doc, version, nil
}

func (s *PostgresStore) saveDoc(ctx context.Context, tenant, kind string, doc []byte, version int64) error {
	if version == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO engine_state (tenant, kind, doc, version, updated_at)
			 VALUES ($1, $2, $3, 1, now())
			 ON CONFLICT (tenant, kind) DO NOTHING`,
			tenant, kind, doc,
		)
		if err != nil {
			return eris.Wrapf(err, "state: insert %s doc for %s", kind, tenant)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrVersionConflict, "state: %s doc for %s created concurrently", kind, tenant)
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE engine_state SET doc = $1, version = version + 1, updated_at = now()
		 WHERE tenant = $2 AND kind = $3 AND version = $4`,
		doc, tenant, kind, version,
	)
	if err != nil {
		return eris.Wrapf(err, "state: update %s doc for %s", kind, tenant)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrVersionConflict, "state: %s doc for %s moved past version %d", kind, tenant, version)
	}
	return nil
}

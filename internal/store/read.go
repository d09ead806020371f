package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/lockdown/internal/types"
)

// StoredType is a row of the types table with its rebuilt type.
type StoredType struct {
	ID        string
	Name      string
	Canonical string
	Type      types.Type
}

// ReadType returns the type stored under id. Returns sql.ErrNoRows
// (wrapped) if there is none.
func (s *Store) ReadType(ctx context.Context, id string) (StoredType, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, canonical FROM types WHERE id = ?
	`, id)
	st, err := scanType(row)
	if err != nil {
		return StoredType{}, fmt.Errorf("read type %s: %w", id, err)
	}
	return st, nil
}

// ListTypes returns every stored type ordered by name, then ID.
//
// Returns an empty slice (not nil) if the store holds no types.
func (s *Store) ListTypes(ctx context.Context) ([]StoredType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, canonical FROM types
		ORDER BY name COLLATE BINARY ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	defer rows.Close()

	list := []StoredType{}
	for rows.Next() {
		st, err := scanType(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate types: %w", err)
	}
	return list, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanType(row scanner) (StoredType, error) {
	var st StoredType
	if err := row.Scan(&st.ID, &st.Name, &st.Canonical); err != nil {
		return StoredType{}, fmt.Errorf("scan type: %w", err)
	}
	t, err := unmarshalType(st.Canonical)
	if err != nil {
		return StoredType{}, err
	}
	st.Type = t
	return st, nil
}

// Verdicts returns the verdicts of a run ordered by sequence number.
//
// Returns an empty slice (not nil) if the run recorded nothing.
func (s *Store) Verdicts(ctx context.Context, runID string) ([]Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, kind, subject, target_id, candidate_id, ok, detail
		FROM verdicts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	list := []Verdict{}
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return list, nil
}

func scanVerdict(row scanner) (Verdict, error) {
	var (
		v                 Verdict
		kind              string
		target, candidate sql.NullString
	)
	if err := row.Scan(&v.RunID, &v.Seq, &kind, &v.Subject, &target, &candidate, &v.OK, &v.Detail); err != nil {
		return Verdict{}, fmt.Errorf("scan verdict: %w", err)
	}
	v.Kind = VerdictKind(kind)
	v.TargetID = target.String
	v.CandidateID = candidate.String
	return v, nil
}

// RelationVerdict returns the most recent relation verdict for the pair.
// Runs are compared by ID, which sorts by creation for UUIDv7 IDs.
// found is false when the pair was never checked.
func (s *Store) RelationVerdict(ctx context.Context, targetID, candidateID string) (v Verdict, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, seq, kind, subject, target_id, candidate_id, ok, detail
		FROM verdicts
		WHERE kind = ? AND target_id = ? AND candidate_id = ?
		ORDER BY run_id COLLATE BINARY DESC, seq DESC
		LIMIT 1
	`, string(KindRelation), targetID, candidateID)
	v, err = scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Verdict{}, false, nil
	}
	if err != nil {
		return Verdict{}, false, fmt.Errorf("relation verdict: %w", err)
	}
	return v, true, nil
}

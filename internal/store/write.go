package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/lockdown/internal/types"
)

// VerdictKind names the property a verdict records.
type VerdictKind string

const (
	// KindConsistency records whether a declared composite type is
	// self-consistent.
	KindConsistency VerdictKind = "consistency"

	// KindInference records whether a declared type survives inference.
	KindInference VerdictKind = "inference"

	// KindBreaks records whether a function's observed breaks match its
	// declared break types.
	KindBreaks VerdictKind = "breaks"

	// KindRelation records whether a candidate type is copyable into a
	// target type.
	KindRelation VerdictKind = "relation"
)

// Verdict is one recorded checker result.
type Verdict struct {
	RunID string
	Seq   int64
	Kind  VerdictKind

	// Subject names what was checked, e.g. a declared type or function.
	Subject string

	// TargetID and CandidateID reference stored types; empty when the
	// verdict does not concern a type.
	TargetID    string
	CandidateID string

	OK     bool
	Detail string
}

// WriteType stores t under name and returns its content-addressed ID.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: a type stored twice
// keeps the name it was first stored under.
func (s *Store) WriteType(ctx context.Context, name string, t types.Type) (string, error) {
	id, canonical, err := marshalType(t)
	if err != nil {
		return "", fmt.Errorf("write type %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO types (id, name, canonical)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name, canonical)
	if err != nil {
		return "", fmt.Errorf("write type %s: %w", name, err)
	}
	return id, nil
}

// Record stamps v with the run's ID and next sequence number and inserts
// it. Referenced types must already be stored (foreign key constraint).
func (r *Run) Record(ctx context.Context, v Verdict) (Verdict, error) {
	v.RunID = r.ID
	v.Seq = r.clock.Next()

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO verdicts
		(run_id, seq, kind, subject, target_id, candidate_id, ok, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.RunID,
		v.Seq,
		string(v.Kind),
		v.Subject,
		nullable(v.TargetID),
		nullable(v.CandidateID),
		v.OK,
		v.Detail,
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("record verdict: %w", err)
	}
	return v, nil
}

func nullable(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/lockdown/internal/types"
)

// CheckRelation answers whether candidate is copyable into target,
// consulting earlier runs first. A fresh answer is stored with both types
// and recorded in r. cached reports whether the answer came from the store.
func (r *Run) CheckRelation(ctx context.Context, subject string, target, candidate types.Type) (ok, cached bool, err error) {
	targetID, err := r.store.WriteType(ctx, target.String(), target)
	if err != nil {
		return false, false, err
	}
	candidateID, err := r.store.WriteType(ctx, candidate.String(), candidate)
	if err != nil {
		return false, false, err
	}

	prior, found, err := r.store.RelationVerdict(ctx, targetID, candidateID)
	if err != nil {
		return false, false, err
	}
	if found {
		return prior.OK, true, nil
	}

	ok = target.IsCopyableFrom(candidate)
	detail := fmt.Sprintf("%s accepts %s", target, candidate)
	if !ok {
		detail = fmt.Sprintf("%s rejects %s", target, candidate)
	}
	if _, err := r.Record(ctx, Verdict{
		Kind:        KindRelation,
		Subject:     subject,
		TargetID:    targetID,
		CandidateID: candidateID,
		OK:          ok,
		Detail:      detail,
	}); err != nil {
		return false, false, err
	}
	return ok, false, nil
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/timmy/courtside/internal/domain"
)

func TestEvaluatePrecedence(t *testing.T) {
	tests := []struct {
		name      string
		persisted domain.Status
		hasRaw    bool
		hasClean  bool
		want      domain.Status
	}{
		{"completed with both", domain.StatusCompleted, true, true, domain.StatusCompleted},
		{"completed missing clean", domain.StatusCompleted, true, false, domain.StatusFailed},
		{"completed missing raw", domain.StatusCompleted, false, true, domain.StatusFailed},
		{"completed missing both", domain.StatusCompleted, false, false, domain.StatusFailed},
		{"pending without artifacts", domain.StatusPending, false, false, domain.StatusPending},
		{"processing without artifacts", domain.StatusProcessing, false, false, domain.StatusProcessing},
		{"failed with artifacts", domain.StatusFailed, true, true, domain.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Evaluate(tt.persisted, tt.hasRaw, tt.hasClean)
			assert.Equal(t, tt.want, rec.Status)
			assert.Equal(t, tt.persisted, rec.Persisted)
			assert.Equal(t, tt.want != tt.persisted, rec.Downgraded)
		})
	}
}

func TestReconcileCleanDeletedExternally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.seed(t, "abc123", domain.StatusCompleted)
	h.put(t, "abc123", domain.VariantRaw, "raw")
	h.put(t, "abc123", domain.VariantClean, "clean")

	r := NewReconciler(h.artifacts)
	assert.Equal(t, domain.StatusCompleted, r.Reconcile(ctx, item).Status)

	assert.NoError(t, h.artifacts.Delete(ctx, "abc123", domain.VariantClean))
	rec := r.Reconcile(ctx, item)
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.True(t, rec.HasRaw)
	assert.False(t, rec.HasClean)

	// Reads never write back.
	stored, err := h.records.GetByIdentifier(ctx, "abc123")
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestReconcileIgnoresLookalikeIdentifier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.seed(t, "abcde", domain.StatusCompleted)
	h.put(t, "abcde", domain.VariantRaw, "raw")
	h.put(t, "abcde_clean", domain.VariantRaw, "someone else's captions")

	rec := NewReconciler(h.artifacts).Reconcile(ctx, item)
	assert.Equal(t, domain.StatusFailed, rec.Status)
	assert.True(t, rec.HasRaw)
	assert.False(t, rec.HasClean)
}

type brokenExists struct {
	ArtifactStore
}

func (brokenExists) Exists(context.Context, string, domain.Variant) (bool, error) {
	return false, errors.New("connection reset")
}

func TestReconcileUnknownPresenceKeepsStatus(t *testing.T) {
	item := &domain.WorkItem{Identifier: "abc123", Status: domain.StatusCompleted}
	rec := NewReconciler(brokenExists{}).Reconcile(context.Background(), item)
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.False(t, rec.Downgraded)
}

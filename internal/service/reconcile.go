package service

import (
	"context"

	"github.com/timmy/courtside/internal/domain"
	"github.com/timmy/courtside/internal/logger"
	"github.com/timmy/courtside/internal/metrics"
)

// ArtifactStore holds the raw and clean transcript of each work item.
type ArtifactStore interface {
	Exists(ctx context.Context, identifier string, variant domain.Variant) (bool, error)
	Put(ctx context.Context, identifier string, variant domain.Variant, data []byte) error
	Get(ctx context.Context, identifier string, variant domain.Variant) ([]byte, error)
	Delete(ctx context.Context, identifier string, variant domain.Variant) error
	List(ctx context.Context) ([]domain.ArtifactInfo, error)
}

// Reconciliation is the status a reader should see for a work item.
type Reconciliation struct {
	Status     domain.Status `json:"status"`
	Persisted  domain.Status `json:"persisted_status"`
	HasRaw     bool          `json:"has_raw"`
	HasClean   bool          `json:"has_clean"`
	Downgraded bool          `json:"downgraded"`
}

// Reconciler cross-checks persisted status against the artifacts actually stored.
// It never writes; the corrected status is only reported.
type Reconciler struct {
	artifacts ArtifactStore
}

// NewReconciler creates a Reconciler.
func NewReconciler(artifacts ArtifactStore) *Reconciler {
	return &Reconciler{artifacts: artifacts}
}

// Evaluate applies the reconciliation rule to known artifact presence:
// a COMPLETED item missing either artifact reads as FAILED. Every other
// status is reported as stored.
func Evaluate(persisted domain.Status, hasRaw, hasClean bool) Reconciliation {
	r := Reconciliation{
		Status:    persisted,
		Persisted: persisted,
		HasRaw:    hasRaw,
		HasClean:  hasClean,
	}
	if persisted == domain.StatusCompleted && !(hasRaw && hasClean) {
		r.Status = domain.StatusFailed
		r.Downgraded = true
	}
	return r
}

// Reconcile checks the artifact store for item. When presence cannot be
// determined the persisted status is returned unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, item *domain.WorkItem) Reconciliation {
	hasRaw, err := r.artifacts.Exists(ctx, item.Identifier, domain.VariantRaw)
	if err != nil {
		r.warnUnknown(ctx, item, err)
		return Reconciliation{Status: item.Status, Persisted: item.Status}
	}
	hasClean, err := r.artifacts.Exists(ctx, item.Identifier, domain.VariantClean)
	if err != nil {
		r.warnUnknown(ctx, item, err)
		return Reconciliation{Status: item.Status, Persisted: item.Status, HasRaw: hasRaw}
	}
	return Observe(ctx, item, hasRaw, hasClean)
}

// Observe is Evaluate for a stored item, recording downgrades.
func Observe(ctx context.Context, item *domain.WorkItem, hasRaw, hasClean bool) Reconciliation {
	rec := Evaluate(item.Status, hasRaw, hasClean)
	if rec.Downgraded {
		metrics.ReconcileDowngrades.Inc()
		logger.FromContext(ctx).WithFields(logger.Fields{
			logger.FieldVideoID: item.Identifier,
			"has_raw":           hasRaw,
			"has_clean":         hasClean,
		}).Warn("Completed item is missing artifacts, reporting failed")
	}
	return rec
}

func (r *Reconciler) warnUnknown(ctx context.Context, item *domain.WorkItem, err error) {
	logger.FromContext(ctx).WithField(logger.FieldVideoID, item.Identifier).
		WithError(err).Warn("Artifact check failed, reporting stored status")
}

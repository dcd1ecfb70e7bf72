package asset

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// SingleResult is the outcome of reconciling a one-image field.
type SingleResult struct {
	Ref     string
	Changed bool
	Stored  []string
	Orphans []string
}

// SeqResult is the outcome of reconciling an ordered image list.
type SeqResult struct {
	Refs    []string
	Changed bool
	Stored  []string
	Orphans []string
}

// Reconciler turns submitted image fields into stored references and works
// out which previously stored assets are no longer referenced. It never
// deletes anything itself until Purge is called.
type Reconciler struct {
	store       Store
	validator   *Validator
	placeholder string
	now         func() time.Time
	logger      *slog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithLogger sets the logger used by Purge.
func WithLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

// NewReconciler creates a Reconciler. An empty placeholder uses
// DefaultPlaceholder and a nil validator uses the defaults.
func NewReconciler(store Store, validator *Validator, placeholder string, opts ...ReconcilerOption) *Reconciler {
	if validator == nil {
		validator = NewValidator(0, nil)
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	r := &Reconciler{
		store:       store,
		validator:   validator,
		placeholder: placeholder,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Placeholder returns the protected default reference.
func (r *Reconciler) Placeholder() string { return r.placeholder }

// Validate checks every input. Callers run it before any write so that a
// bad file rejects the whole request.
func (r *Reconciler) Validate(inputs ...*domain.AssetInput) error {
	for _, in := range inputs {
		if err := r.validator.Check(in); err != nil {
			return err
		}
	}
	return nil
}

// CheckReferences rejects any reference input naming a stored asset that is
// not in held. A stored asset belongs to the one entity that holds it.
func (r *Reconciler) CheckReferences(held []string, inputs ...*domain.AssetInput) error {
	for _, in := range inputs {
		if in == nil || !in.IsReference() {
			continue
		}
		if r.orphanable(in.URL) && !slices.Contains(held, in.URL) {
			return apperrors.InvalidAsset(fmt.Sprintf("image %s is not held by this entity", in.URL))
		}
	}
	return nil
}

// Single reconciles a field holding one image. held lists the entity's other
// refs that incoming may point at besides current.
func (r *Reconciler) Single(ctx context.Context, current string, incoming *domain.AssetInput, held ...string) (SingleResult, error) {
	if incoming == nil {
		return SingleResult{Ref: current}, nil
	}
	if err := r.CheckReferences(append([]string{current}, held...), incoming); err != nil {
		return SingleResult{}, err
	}

	if incoming.IsReference() {
		res := SingleResult{Ref: incoming.URL, Changed: incoming.URL != current}
		if res.Changed && r.orphanable(current) {
			res.Orphans = []string{current}
		}
		return res, nil
	}

	if err := r.validator.Check(incoming); err != nil {
		return SingleResult{}, err
	}
	ref, err := r.put(ctx, incoming)
	if err != nil {
		return SingleResult{}, err
	}

	res := SingleResult{Ref: ref, Changed: true, Stored: []string{ref}}
	if current != ref && r.orphanable(current) {
		res.Orphans = []string{current}
	}
	return res, nil
}

// Sequence reconciles an ordered list of images. A non-empty submission
// replaces the list wholesale in submission order; an empty one leaves it
// untouched. held lists the entity's other refs that incoming may point at
// besides current.
func (r *Reconciler) Sequence(ctx context.Context, current []string, incoming []*domain.AssetInput, held ...string) (SeqResult, error) {
	incoming = slices.DeleteFunc(slices.Clone(incoming), func(in *domain.AssetInput) bool { return in == nil })
	if len(incoming) == 0 {
		return SeqResult{Refs: current}, nil
	}

	if err := r.Validate(incoming...); err != nil {
		return SeqResult{}, err
	}
	if err := r.CheckReferences(append(slices.Clone(current), held...), incoming...); err != nil {
		return SeqResult{}, err
	}

	res := SeqResult{Refs: make([]string, 0, len(incoming))}
	for _, in := range incoming {
		if in.IsReference() {
			res.Refs = append(res.Refs, in.URL)
			continue
		}
		ref, err := r.put(ctx, in)
		if err != nil {
			return SeqResult{}, err
		}
		res.Refs = append(res.Refs, ref)
		res.Stored = append(res.Stored, ref)
	}

	res.Changed = !slices.Equal(current, res.Refs)
	for _, ref := range current {
		if slices.Contains(res.Refs, ref) || slices.Contains(res.Orphans, ref) {
			continue
		}
		if r.orphanable(ref) {
			res.Orphans = append(res.Orphans, ref)
		}
	}
	return res, nil
}

// Purge deletes superseded assets. The owning entity is already persisted
// when this runs, so failures are logged rather than returned.
func (r *Reconciler) Purge(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if !r.orphanable(ref) {
			continue
		}
		if err := r.store.Delete(ctx, ref); err != nil {
			r.logger.ErrorContext(ctx, "failed to delete orphaned asset",
				slog.String("ref", ref),
				slog.String("store", r.store.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		r.logger.InfoContext(ctx, "orphaned asset deleted", slog.String("ref", ref))
	}
}

func (r *Reconciler) put(ctx context.Context, in *domain.AssetInput) (string, error) {
	name := QualifiedName(r.now(), in.Filename)
	ref, err := r.store.Put(ctx, name, in.ContentType, in.Data)
	if err != nil {
		return "", apperrors.Storage("store asset", err)
	}
	return ref, nil
}

func (r *Reconciler) orphanable(ref string) bool {
	return ref != "" && ref != r.placeholder && r.store.Owns(ref)
}

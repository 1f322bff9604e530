package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/ports"
)

// ScopeResolver owns disease scope semantics: it is the only component
// allowed to create disease code groups and scope bindings, and the only
// one that resolves a coverage's scope. Resolution is a plain snapshot
// lookup; a missing scope is reported as missing, never approximated from
// another insurer's data.
type ScopeResolver struct {
	refdata ports.ReferenceDataRepository
}

func NewScopeResolver(refdata ports.ReferenceDataRepository) *ScopeResolver {
	return &ScopeResolver{refdata: refdata}
}

// Resolve returns the registered scope for (canonical code, insurer) or nil
// when none exists.
func (r *ScopeResolver) Resolve(snap *domain.ReferenceSnapshot, canonicalCode, insurerCode string) *domain.CoverageDiseaseScope {
	scope, ok := snap.Scope(canonicalCode, insurerCode)
	if !ok {
		return nil
	}
	return &scope
}

// CreateGroup registers a new disease code group. The group must carry
// provenance evidence from a proposal or policy document; groups without a
// documented source are rejected outright.
func (r *ScopeResolver) CreateGroup(ctx context.Context, group *domain.DiseaseCodeGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	if err := group.Validate(); err != nil {
		return err
	}
	if err := r.refdata.CreateGroup(ctx, group); err != nil {
		return fmt.Errorf("create disease code group: %w", err)
	}
	return nil
}

// CreateScope registers a scope binding for one (canonical code, insurer)
// pair. The include group is mandatory; the exclude group is optional.
func (r *ScopeResolver) CreateScope(ctx context.Context, scope *domain.CoverageDiseaseScope) error {
	if scope.ID == "" {
		scope.ID = uuid.NewString()
	}
	if scope.CreatedAt.IsZero() {
		scope.CreatedAt = time.Now().UTC()
	}
	if err := scope.Validate(); err != nil {
		return err
	}
	if scope.IncludeGroupID == scope.ExcludeGroupID {
		return domain.WrapError(domain.ErrInvalidInput, "create scope", errors.New("include and exclude groups are the same"))
	}
	if err := r.refdata.CreateScope(ctx, scope); err != nil {
		return fmt.Errorf("create coverage scope: %w", err)
	}
	return nil
}

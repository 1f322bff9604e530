package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/covlens/covlens/internal/core/parser"
	"github.com/covlens/covlens/internal/core/ports"
)

const maxPipelineWorkers = 8

// ProcessProposalUseCase runs the per-document pipeline: extract coverage
// rows, map them against the batch's mapping table snapshot, extract slots,
// resolve disease scopes and persist everything as one pass. Fatal
// conditions abort before any mapping write; per-record findings are
// recorded and the batch continues.
type ProcessProposalUseCase struct {
	repo      ports.ProposalRepository
	mappings  ports.MappingRepository
	extractor ports.ProposalTextExtractor
	table     ports.MappingTableSource
	snapshots *SnapshotBuilder
	parsers   *parser.Registry
	mapper    *CanonicalMapper
	slotter   *SlotExtractor
	resolver  *ScopeResolver
	guardrail *Guardrail
	projector ports.ScopeLineageProjector
	observer  ports.PipelineObserver
	workers   int
}

func NewProcessProposalUseCase(
	repo ports.ProposalRepository,
	mappings ports.MappingRepository,
	extractor ports.ProposalTextExtractor,
	table ports.MappingTableSource,
	snapshots *SnapshotBuilder,
	parsers *parser.Registry,
	slotter *SlotExtractor,
	resolver *ScopeResolver,
	projector ports.ScopeLineageProjector,
	observer ports.PipelineObserver,
	workers int,
) *ProcessProposalUseCase {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > maxPipelineWorkers {
		workers = maxPipelineWorkers
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessProposalUseCase{
		repo:      repo,
		mappings:  mappings,
		extractor: extractor,
		table:     table,
		snapshots: snapshots,
		parsers:   parsers,
		mapper:    NewCanonicalMapper(),
		slotter:   slotter,
		resolver:  resolver,
		guardrail: NewGuardrail(),
		projector: projector,
		observer:  observer,
		workers:   workers,
	}
}

func (uc *ProcessProposalUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessProposalUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}

	pages, err := uc.extractPages(ctx, doc)
	if err != nil {
		return err
	}

	records, err := uc.buildRecords(doc, pages)
	if err != nil {
		return err
	}

	stored, err := uc.persistRecords(ctx, doc, records)
	if err != nil {
		return err
	}

	table, err := uc.table.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load mapping table snapshot: %w", err)
	}

	snap, err := uc.snapshots.Build(ctx)
	if err != nil {
		return fmt.Errorf("build reference snapshot: %w", err)
	}

	pass, projections, err := uc.mapRecords(ctx, doc, stored, table, snap)
	if err != nil {
		return err
	}

	if err := uc.mappings.SaveMappingPass(ctx, pass); err != nil {
		return fmt.Errorf("save mapping pass: %w", err)
	}

	uc.projectScopes(ctx, snap, projections)

	if err := uc.repo.SetDocumentRowCount(ctx, doc.ID, len(stored)); err != nil {
		return fmt.Errorf("set document row count: %w", err)
	}
	return nil
}

func (uc *ProcessProposalUseCase) loadDocument(ctx context.Context, documentID string) (*domain.ProposalDocument, error) {
	doc, err := uc.repo.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch proposal by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessProposalUseCase) extractPages(ctx context.Context, doc *domain.ProposalDocument) ([]domain.PageText, error) {
	pages, err := uc.extractor.ExtractPages(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", errors.New("no extractable pages"))
	}
	return pages, nil
}

// buildRecords turns parsed rows into immutable coverage records. Duplicate
// normalized names within one document keep the first occurrence; the
// content hash makes whole passes idempotent.
func (uc *ProcessProposalUseCase) buildRecords(doc *domain.ProposalDocument, pages []domain.PageText) ([]domain.ProposalCoverageRecord, error) {
	p := uc.parsers.Resolve(doc.InsurerCode)
	rows := p.ParseRows(pages)
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse coverage rows", errors.New("no coverage rows found"))
	}

	uc.observer.ObserveExtraction(doc.ID, len(rows))

	seenNames := make(map[string]struct{}, len(rows))
	seenHashes := make(map[string]struct{}, len(rows))
	records := make([]domain.ProposalCoverageRecord, 0, len(rows))
	for _, row := range rows {
		normalized := domain.NormalizeCoverageName(row.RawName)

		var amountValue *int64
		currency, payoutUnit := "", ""
		if value, unit, err := parser.ParseAmount(row.AmountText); err == nil {
			amountValue, currency, payoutUnit = &value, "KRW", unit
		}

		hash := domain.ContentHash(doc.ID, doc.InsurerCode, normalized, currency, amountValue, payoutUnit, row.Page, row.Span)
		if _, dup := seenHashes[hash]; dup {
			continue
		}
		seenHashes[hash] = struct{}{}
		if _, dup := seenNames[normalized]; dup {
			uc.observer.ObserveWarning(domain.ExtractionWarning{Field: "normalized_name", Reason: "duplicate coverage name " + normalized})
			continue
		}
		seenNames[normalized] = struct{}{}

		record := domain.ProposalCoverageRecord{
			ID:             uuid.NewString(),
			DocumentID:     doc.ID,
			InsurerCode:    doc.InsurerCode,
			RawName:        row.RawName,
			NormalizedName: normalized,
			Currency:       currency,
			AmountValue:    amountValue,
			PayoutUnit:     payoutUnit,
			SourcePage:     row.Page,
			SourceSpan:     row.Span,
			ContentHash:    hash,
			CreatedAt:      time.Now().UTC(),
		}
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("build coverage record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// persistRecords inserts new records and reloads the stored set, so
// re-processed documents keep their original record ids.
func (uc *ProcessProposalUseCase) persistRecords(ctx context.Context, doc *domain.ProposalDocument, records []domain.ProposalCoverageRecord) ([]domain.ProposalCoverageRecord, error) {
	if _, err := uc.repo.InsertCoverageRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("insert coverage records: %w", err)
	}
	stored, err := uc.repo.ListCoverageRecords(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list coverage records: %w", err)
	}
	if len(stored) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "persist records", errors.New("no stored coverage records"))
	}
	return stored, nil
}

type recordOutcome struct {
	mapping domain.CanonicalMapping
	slots   domain.CoverageSlots
	scope   *domain.CoverageDiseaseScope
}

// mapRecords fans the per-record stage out over a bounded worker pool.
// Results are collected by index so the persisted pass order matches the
// stored record order regardless of scheduling.
func (uc *ProcessProposalUseCase) mapRecords(
	ctx context.Context,
	doc *domain.ProposalDocument,
	records []domain.ProposalCoverageRecord,
	table *domain.MappingTable,
	snap *domain.ReferenceSnapshot,
) (domain.MappingPass, []*domain.CoverageDiseaseScope, error) {
	outcomes := make([]recordOutcome, len(records))

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	jobs := make(chan int)
	workers := uc.workers
	if workers > len(records) {
		workers = len(records)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcome, err := uc.processRecord(records[i], table, snap)
				if err != nil {
					fail(err)
					return
				}
				outcomes[i] = outcome
			}
		}()
	}

feed:
	for i := range records {
		select {
		case jobs <- i:
		case <-workCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return domain.MappingPass{}, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return domain.MappingPass{}, nil, err
	}

	pass := domain.MappingPass{
		PassID:     uuid.NewString(),
		DocumentID: doc.ID,
		Mappings:   make([]domain.CanonicalMapping, len(outcomes)),
		Slots:      make([]domain.CoverageSlots, len(outcomes)),
	}
	var projections []*domain.CoverageDiseaseScope
	seenScopes := make(map[string]struct{})
	for i, outcome := range outcomes {
		pass.Mappings[i] = outcome.mapping
		pass.Slots[i] = outcome.slots
		uc.observer.ObserveMapping(outcome.mapping.Status)
		if outcome.scope != nil {
			if _, dup := seenScopes[outcome.scope.ID]; !dup {
				seenScopes[outcome.scope.ID] = struct{}{}
				projections = append(projections, outcome.scope)
			}
		}
	}
	return pass, projections, nil
}

func (uc *ProcessProposalUseCase) processRecord(
	record domain.ProposalCoverageRecord,
	table *domain.MappingTable,
	snap *domain.ReferenceSnapshot,
) (recordOutcome, error) {
	mapping, err := uc.mapper.Map(record, table)
	if err != nil {
		return recordOutcome{}, err
	}
	if err := uc.guardrail.VerifyMapping(mapping, snap); err != nil {
		uc.observer.ObserveGuardrail("mapping_invariant")
		return recordOutcome{}, err
	}

	slots, warnings := uc.slotter.Extract(record)
	for _, w := range warnings {
		uc.observer.ObserveWarning(w)
	}

	scope := uc.applyScope(record, mapping, &slots, snap)

	if err := uc.guardrail.VerifySlots(slots); err != nil {
		uc.observer.ObserveGuardrail("slot_evidence")
		return recordOutcome{}, err
	}
	return recordOutcome{mapping: mapping, slots: slots, scope: scope}, nil
}

// applyScope settles the disease scope slot once the canonical code is
// known. Coverages outside disease-scoped domains resolve to "no scope
// applies"; scoped coverages without a registered scope entry stay
// unresolved and flagged policy_required.
func (uc *ProcessProposalUseCase) applyScope(
	record domain.ProposalCoverageRecord,
	mapping domain.CanonicalMapping,
	slots *domain.CoverageSlots,
	snap *domain.ReferenceSnapshot,
) *domain.CoverageDiseaseScope {
	if mapping.Status != domain.MappingStatusMapped {
		return nil
	}
	coverage, ok := snap.Coverage(mapping.CanonicalCode)
	if !ok {
		return nil
	}

	recordEv := record.Evidence()
	if !coverage.DiseaseScoped() {
		slots.DiseaseScope.Status = domain.SlotResolved
		slots.DiseaseScope.Confidence = domain.ConfidenceProposalConfirmed
		if slots.DiseaseScope.Evidence == nil {
			slots.DiseaseScope.Evidence = &recordEv
		}
		return nil
	}

	scope := uc.resolver.Resolve(snap, mapping.CanonicalCode, record.InsurerCode)
	if scope == nil {
		slots.DiseaseScope.Status = domain.SlotUnresolved
		slots.DiseaseScope.Confidence = domain.ConfidencePolicyRequired
		return nil
	}

	slots.DiseaseScope.Status = domain.SlotResolved
	slots.DiseaseScope.ScopeRef = scope.ID
	slots.DiseaseScope.Confidence = domain.ConfidenceProposalConfirmed
	if slots.DiseaseScope.Evidence == nil {
		scopeEv := scope.Evidence
		slots.DiseaseScope.Evidence = &scopeEv
	}
	return scope
}

// projectScopes mirrors resolved scopes into the lineage graph. Projection
// is a read-model concern: failures are observed but never fail the batch.
func (uc *ProcessProposalUseCase) projectScopes(ctx context.Context, snap *domain.ReferenceSnapshot, scopes []*domain.CoverageDiseaseScope) {
	if uc.projector == nil {
		return
	}
	for _, scope := range scopes {
		include, _ := snap.GroupCodes(scope.IncludeGroupID)
		var exclude []string
		if scope.ExcludeGroupID != "" {
			exclude, _ = snap.GroupCodes(scope.ExcludeGroupID)
		}
		err := uc.projector.ProjectScope(ctx, *scope, include, exclude)
		uc.observer.ObserveProjection(err)
	}
}

func (uc *ProcessProposalUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateDocumentStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessProposalUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}

type noopObserver struct{}

func (noopObserver) ObserveExtraction(string, int)           {}
func (noopObserver) ObserveMapping(domain.MappingStatus)     {}
func (noopObserver) ObserveWarning(domain.ExtractionWarning) {}
func (noopObserver) ObserveGuardrail(string)                 {}
func (noopObserver) ObserveProjection(error)                 {}

package ports

import (
	"context"
	"io"

	"github.com/covlens/covlens/internal/core/domain"
)

// ProposalRepository persists proposal documents and their coverage records.
type ProposalRepository interface {
	CreateDocument(ctx context.Context, doc *domain.ProposalDocument) error
	GetDocument(ctx context.Context, id string) (*domain.ProposalDocument, error)
	UpdateDocumentStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetDocumentRowCount(ctx context.Context, id string, rowCount int) error
	InsertCoverageRecords(ctx context.Context, records []domain.ProposalCoverageRecord) (int, error)
	ListCoverageRecords(ctx context.Context, documentID string) ([]domain.ProposalCoverageRecord, error)
	FindRecordByInsurerAndName(ctx context.Context, insurerCode, normalizedName string) (*domain.ProposalCoverageRecord, error)
}

// MappingRepository persists per-pass mapping verdicts and slot sets.
type MappingRepository interface {
	SaveMappingPass(ctx context.Context, pass domain.MappingPass) error
	GetLatestMapping(ctx context.Context, recordID string) (*domain.CanonicalMapping, error)
	GetLatestSlots(ctx context.Context, recordID string) (*domain.CoverageSlots, error)
	FindLatestMappedRecord(ctx context.Context, insurerCode, canonicalCode string) (*domain.ProposalCoverageRecord, *domain.CanonicalMapping, error)
}

// ReferenceDataRepository stores the canonical dictionary, disease master,
// groups and scopes.
type ReferenceDataRepository interface {
	UpsertCanonicalCoverages(ctx context.Context, coverages []domain.CanonicalCoverage) error
	ListCanonicalCoverages(ctx context.Context) ([]domain.CanonicalCoverage, error)
	UpsertDiseaseCodes(ctx context.Context, codes []domain.DiseaseCode) error
	ListDiseaseCodes(ctx context.Context) ([]domain.DiseaseCode, error)
	CreateGroup(ctx context.Context, group *domain.DiseaseCodeGroup) error
	ListGroups(ctx context.Context) ([]domain.DiseaseCodeGroup, error)
	CreateScope(ctx context.Context, scope *domain.CoverageDiseaseScope) error
	ListScopes(ctx context.Context) ([]domain.CoverageDiseaseScope, error)
}

// MappingTableSource loads a point-in-time snapshot of the coverage mapping
// table.
type MappingTableSource interface {
	Snapshot(ctx context.Context) (*domain.MappingTable, error)
}

// CanonicalDictionarySource loads the canonical coverage dictionary.
type CanonicalDictionarySource interface {
	CanonicalCoverages(ctx context.Context) ([]domain.CanonicalCoverage, error)
}

// DiseaseCodeSource fetches the disease classification master.
type DiseaseCodeSource interface {
	Fetch(ctx context.Context) ([]domain.DiseaseCode, error)
}

// ReferenceSeedSource loads curated disease groups and scope bindings, for
// environments seeded from files instead of an admin surface.
type ReferenceSeedSource interface {
	Load(ctx context.Context) ([]domain.DiseaseCodeGroup, []domain.CoverageDiseaseScope, error)
}

// ObjectStorage stores uploaded proposal files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes proposal ingestion events.
type MessageQueue interface {
	PublishProposalIngested(ctx context.Context, documentID string) error
	SubscribeProposalIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// ProposalTextExtractor extracts per-page plain text from a stored proposal.
type ProposalTextExtractor interface {
	ExtractPages(ctx context.Context, doc *domain.ProposalDocument) ([]domain.PageText, error)
}

// ScopeLineageProjector mirrors resolved disease scopes into a lineage graph
// for cross-insurer reachability queries.
type ScopeLineageProjector interface {
	ProjectScope(ctx context.Context, scope domain.CoverageDiseaseScope, include, exclude []string) error
	CoveragesIncludingCode(ctx context.Context, diseaseCode string) ([]domain.ScopeLineageHit, error)
}

// PipelineObserver receives pipeline stage signals for metrics and logging.
// Implementations must be safe for concurrent use.
type PipelineObserver interface {
	ObserveExtraction(documentID string, rows int)
	ObserveMapping(status domain.MappingStatus)
	ObserveWarning(warning domain.ExtractionWarning)
	ObserveGuardrail(check string)
	ObserveProjection(err error)
}

// Package seed loads curated disease code groups and coverage scope bindings
// from a YAML file, for environments bootstrapped from files instead of the
// admin surface. Seeded entries carry the same mandatory evidence as entries
// created interactively.
package seed

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/covlens/covlens/internal/core/domain"
)

type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

type seedFile struct {
	Groups []seedGroup `yaml:"groups"`
	Scopes []seedScope `yaml:"scopes"`
}

type seedGroup struct {
	ID          string       `yaml:"id"`
	InsurerCode string       `yaml:"insurer_code"`
	Name        string       `yaml:"name"`
	ConceptKind string       `yaml:"concept_kind"`
	Evidence    seedEvidence `yaml:"evidence"`
	Members     []seedMember `yaml:"members"`
}

type seedMember struct {
	Code      string `yaml:"code"`
	RangeFrom string `yaml:"range_from"`
	RangeTo   string `yaml:"range_to"`
}

type seedScope struct {
	ID             string       `yaml:"id"`
	CanonicalCode  string       `yaml:"canonical_code"`
	InsurerCode    string       `yaml:"insurer_code"`
	IncludeGroupID string       `yaml:"include_group"`
	ExcludeGroupID string       `yaml:"exclude_group"`
	Evidence       seedEvidence `yaml:"evidence"`
}

type seedEvidence struct {
	DocumentID   string `yaml:"document_id"`
	DocumentKind string `yaml:"document_kind"`
	Page         int    `yaml:"page"`
	Span         string `yaml:"span"`
}

func (l *Loader) Load(_ context.Context) ([]domain.DiseaseCodeGroup, []domain.CoverageDiseaseScope, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("read reference seed: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, nil, fmt.Errorf("parse reference seed: %w", err)
	}

	groups := make([]domain.DiseaseCodeGroup, 0, len(file.Groups))
	for _, g := range file.Groups {
		group := domain.DiseaseCodeGroup{
			ID:          g.ID,
			InsurerCode: g.InsurerCode,
			Name:        g.Name,
			ConceptKind: domain.GroupConceptKind(g.ConceptKind),
			Evidence:    g.Evidence.toDomain(),
		}
		for _, m := range g.Members {
			member := domain.GroupMember{Code: m.Code, RangeFrom: m.RangeFrom, RangeTo: m.RangeTo}
			if m.Code != "" {
				member.Kind = domain.MemberKindCode
			} else {
				member.Kind = domain.MemberKindRange
			}
			group.Members = append(group.Members, member)
		}
		groups = append(groups, group)
	}

	scopes := make([]domain.CoverageDiseaseScope, 0, len(file.Scopes))
	for _, s := range file.Scopes {
		scopes = append(scopes, domain.CoverageDiseaseScope{
			ID:             s.ID,
			CanonicalCode:  s.CanonicalCode,
			InsurerCode:    s.InsurerCode,
			IncludeGroupID: s.IncludeGroupID,
			ExcludeGroupID: s.ExcludeGroupID,
			Evidence:       s.Evidence.toDomain(),
		})
	}

	return groups, scopes, nil
}

func (e seedEvidence) toDomain() domain.Evidence {
	return domain.Evidence{
		DocumentID:   e.DocumentID,
		DocumentKind: domain.DocumentKind(e.DocumentKind),
		Page:         e.Page,
		Span:         e.Span,
	}
}

// Package artifacts generates the diagrams and data tables attached to a
// report. Generators are pure functions keyed by kind in a registry, so the
// orchestrator iterates every supported kind without a hardcoded enumeration
// and regeneration is reproducible for identical project data.
package artifacts

import (
	"fmt"
	"sort"

	"github.com/avpetrov/reportgen/internal/core/domain"
)

// ProjectData is the full deterministic input of a generator run.
type ProjectData struct {
	Project    domain.Project
	Documents  []domain.Document
	ChunkCount int
	Citations  []domain.Citation
}

// GeneratorFunc maps project data to a rendered artifact body. No hidden
// randomness: identical input must produce identical output.
type GeneratorFunc func(data ProjectData) (string, error)

type entry struct {
	family domain.ArtifactFamily
	title  string
	fn     GeneratorFunc
}

type Registry struct {
	entries map[string]entry
}

// NewRegistry returns the registry with every built-in diagram and table kind.
func NewRegistry() *Registry {
	r := &Registry{entries: map[string]entry{}}

	r.register("pipeline_flow", domain.ArtifactDiagram, "Document Pipeline", pipelineFlowDiagram)
	r.register("source_overview", domain.ArtifactDiagram, "Source Document Overview", sourceOverviewDiagram)
	r.register("timeline", domain.ArtifactDiagram, "Engagement Timeline", timelineDiagram)

	r.register("document_inventory", domain.ArtifactTable, "Document Inventory", documentInventoryTable)
	r.register("methodology_plan", domain.ArtifactTable, "Methodology Plan", methodologyPlanTable)
	r.register("citation_summary", domain.ArtifactTable, "Citation Summary", citationSummaryTable)

	return r
}

func (r *Registry) register(kind string, family domain.ArtifactFamily, title string, fn GeneratorFunc) {
	r.entries[kind] = entry{family: family, title: title, fn: fn}
}

// Kinds returns every supported kind identifier, sorted for deterministic
// iteration order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.entries))
	for kind := range r.entries {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Generate renders one artifact kind for the project.
func (r *Registry) Generate(kind string, data ProjectData) (domain.Artifact, error) {
	e, ok := r.entries[kind]
	if !ok {
		return domain.Artifact{}, domain.WrapError(domain.ErrUnsupportedInput, "generate artifact",
			fmt.Errorf("unknown artifact kind %q", kind))
	}
	body, err := e.fn(data)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("generate %s: %w", kind, err)
	}
	return domain.Artifact{
		ProjectID: data.Project.ID,
		Family:    e.family,
		Kind:      kind,
		Title:     e.title,
		Body:      body,
	}, nil
}

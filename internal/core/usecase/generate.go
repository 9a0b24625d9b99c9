package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
	"github.com/avpetrov/reportgen/internal/report"
	"github.com/avpetrov/reportgen/internal/report/artifacts"
)

// sectionRetriever is the retrieval surface the orchestrator needs. It is
// satisfied by RetrieveUseCase and by test fakes.
type sectionRetriever interface {
	RetrieveBySection(ctx context.Context, projectID string, keywords []string, topK int, minSimilarity float64) ([]domain.RetrievedChunk, error)
}

// GenerateUseCase assembles the project report: one retrieval and one content
// pass per section, citation extraction, artifact generation and a single
// transactional replace of the previous run's output. The project sits in
// `generating` for the whole run, so concurrent runs lose the compare-and-set
// and fail fast instead of interleaving writes.
type GenerateUseCase struct {
	projects   ports.ProjectRepository
	documents  ports.DocumentRepository
	chunks     ports.ChunkRepository
	embeddings ports.EmbeddingRepository
	reports    ports.ReportRepository
	retriever  sectionRetriever
	generator  ports.TextGenerator
	exporter   ports.ReportExporter
	registry   *artifacts.Registry

	sectionBudget int
	logger        *slog.Logger
}

func NewGenerateUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	chunks ports.ChunkRepository,
	embeddings ports.EmbeddingRepository,
	reports ports.ReportRepository,
	retriever sectionRetriever,
	generator ports.TextGenerator,
	exporter ports.ReportExporter,
	registry *artifacts.Registry,
	sectionBudget int,
	logger *slog.Logger,
) *GenerateUseCase {
	if sectionBudget <= 0 {
		sectionBudget = 600
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateUseCase{
		projects:      projects,
		documents:     documents,
		chunks:        chunks,
		embeddings:    embeddings,
		reports:       reports,
		retriever:     retriever,
		generator:     generator,
		exporter:      exporter,
		registry:      registry,
		sectionBudget: sectionBudget,
		logger:        logger,
	}
}

// GenerateReport runs the full generation stage for a project. Section
// failures degrade to a visible pending placeholder; only a persistence
// failure or an illegal starting state aborts the run.
func (uc *GenerateUseCase) GenerateReport(ctx context.Context, projectID string) (*domain.GenerateResult, error) {
	project, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	embedded, err := uc.embeddings.CountByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	if embedded == 0 {
		return nil, domain.WrapError(domain.ErrStateConflict, "generate report",
			fmt.Errorf("project %s has no embedded chunks, run the embed stage first", projectID))
	}

	if !domain.CanTransition(project.Status, domain.StatusGenerating) {
		return nil, domain.WrapError(domain.ErrStateConflict, "generate report",
			fmt.Errorf("project %s is %s and cannot start generation", projectID, project.Status))
	}
	if err := uc.projects.CompareAndSetStatus(ctx, projectID, project.Status, domain.StatusGenerating); err != nil {
		return nil, fmt.Errorf("enter generating state: %w", err)
	}

	result, err := uc.generate(ctx, project)
	if err != nil {
		if casErr := uc.projects.CompareAndSetStatus(ctx, projectID, domain.StatusGenerating, domain.StatusError); casErr != nil {
			uc.logger.Error("mark project errored", "project_id", projectID, "error", casErr)
		}
		return nil, err
	}

	if err := uc.projects.CompareAndSetStatus(ctx, projectID, domain.StatusGenerating, domain.StatusGenerated); err != nil {
		return nil, fmt.Errorf("leave generating state: %w", err)
	}
	return result, nil
}

func (uc *GenerateUseCase) generate(ctx context.Context, project *domain.Project) (*domain.GenerateResult, error) {
	vars := map[string]string{
		"client":        project.Client,
		"project_title": project.Title,
		"methodologies": report.JoinList(project.Methodologies),
	}

	var (
		body      strings.Builder
		citations []domain.Citation
		pending   int
	)
	body.WriteString(fmt.Sprintf("# %s\n\n", project.Title))
	body.WriteString(fmt.Sprintf("Prepared for %s on %s.\n\n", project.Client, time.Now().UTC().Format("2006-01-02")))

	sections := report.Sections()
	for _, section := range sections {
		content, sectionCitations := uc.renderSection(ctx, project, section, vars)
		if content == report.PendingPlaceholder {
			pending++
		}
		citations = append(citations, sectionCitations...)

		body.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", section.Title, content))
	}

	generated, err := uc.buildArtifacts(ctx, project, citations)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rep := &domain.Report{
		ProjectID:   project.ID,
		Body:        body.String(),
		GeneratedAt: now,
	}
	if err := uc.reports.ReplaceCitations(ctx, project.ID, citations); err != nil {
		return nil, fmt.Errorf("replace citations: %w", err)
	}
	if err := uc.reports.ReplaceArtifacts(ctx, project.ID, generated); err != nil {
		return nil, fmt.Errorf("replace artifacts: %w", err)
	}
	if err := uc.reports.UpsertReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("upsert report: %w", err)
	}

	diagrams, tables := 0, 0
	for _, artifact := range generated {
		switch artifact.Family {
		case domain.ArtifactDiagram:
			diagrams++
		case domain.ArtifactTable:
			tables++
		}
	}

	return &domain.GenerateResult{
		ProjectID:       project.ID,
		ReportLength:    utf8.RuneCountInString(rep.Body),
		Sections:        len(sections),
		PendingSections: pending,
		Diagrams:        diagrams,
		Tables:          tables,
		Citations:       len(citations),
	}, nil
}

// renderSection never fails: no retrievable context means the pending
// placeholder, a provider failure means the static template.
func (uc *GenerateUseCase) renderSection(ctx context.Context, project *domain.Project, section report.Section, vars map[string]string) (string, []domain.Citation) {
	hits, err := uc.retriever.RetrieveBySection(ctx, project.ID, section.Keywords, project.RAG.TopK, project.RAG.MinSimilarity)
	if err != nil {
		uc.logger.Warn("section retrieval failed",
			"project_id", project.ID, "section", section.ID, "error", err)
		return report.PendingPlaceholder, nil
	}
	if len(hits) == 0 {
		return report.PendingPlaceholder, nil
	}

	contextBlock := FormatContext(hits)
	sectionVars := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		sectionVars[k] = v
	}
	sectionVars["context"] = contextBlock

	content := ""
	if uc.generator != nil {
		content = uc.generateSection(ctx, project, section, contextBlock)
	}
	if content == "" {
		content = section.Template
	}
	// Substitution runs on generated prose too: a provider echoing a
	// template placeholder must not leak it into the persisted report.
	content = report.Substitute(content, sectionVars)

	return content, extractCitations(project.ID, section.ID, content, hits)
}

const generationSystemPrompt = "You are a consultant writing one section of a client report. " +
	"Use only the numbered source snippets provided. After every claim taken from a snippet, " +
	"keep its citation marker in the exact form (Source: <filename>, <locator>). " +
	"Do not invent sources. Write plain prose without headings."

func (uc *GenerateUseCase) generateSection(ctx context.Context, project *domain.Project, section report.Section, contextBlock string) string {
	prompt := fmt.Sprintf(
		"Project: %s\nClient: %s\nSection: %s\nTarget length: about %d words.\n\nSource snippets:\n%s",
		project.Title, project.Client, section.Title, uc.sectionBudget, contextBlock,
	)
	content, err := uc.generator.Generate(ctx, generationSystemPrompt, prompt)
	if err != nil {
		uc.logger.Warn("section generation failed, falling back to template",
			"project_id", project.ID, "section", section.ID, "error", err)
		return ""
	}
	return strings.TrimSpace(content)
}

func (uc *GenerateUseCase) buildArtifacts(ctx context.Context, project *domain.Project, citations []domain.Citation) ([]domain.Artifact, error) {
	documents, err := uc.documents.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	chunkCount, err := uc.chunks.CountByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	data := artifacts.ProjectData{
		Project:    *project,
		Documents:  documents,
		ChunkCount: chunkCount,
		Citations:  citations,
	}

	out := make([]domain.Artifact, 0, len(uc.registry.Kinds()))
	for _, kind := range uc.registry.Kinds() {
		artifact, err := uc.registry.Generate(kind, data)
		if err != nil {
			uc.logger.Warn("artifact generation failed",
				"project_id", project.ID, "kind", kind, "error", err)
			continue
		}
		out = append(out, artifact)
	}
	return out, nil
}

// citationMarkerPattern matches the (Source: <filename>, <locator>) markers
// FormatContext emits and providers are instructed to keep.
var citationMarkerPattern = regexp.MustCompile(`\(Source: ([^,)]+), ([^)]+)\)`)

// extractCitations parses the citation markers out of rendered section
// content and resolves each back to the retrieval hit it came from. Markers
// that match no hit are dropped rather than stored with fabricated source
// ids.
func extractCitations(projectID, sectionID, content string, hits []domain.RetrievedChunk) []domain.Citation {
	byMarker := make(map[string]domain.RetrievedChunk, len(hits))
	for _, hit := range hits {
		byMarker[hit.Filename+"\x00"+hit.Locator] = hit
	}

	seen := make(map[string]bool)
	var out []domain.Citation
	for _, match := range citationMarkerPattern.FindAllStringSubmatch(content, -1) {
		filename := strings.TrimSpace(match[1])
		locator := strings.TrimSpace(match[2])
		hit, ok := byMarker[filename+"\x00"+locator]
		if !ok {
			continue
		}
		key := hit.DocumentID + "\x00" + locator
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, domain.Citation{
			ProjectID:  projectID,
			DocumentID: hit.DocumentID,
			Section:    sectionID,
			Locator:    locator,
			Snippet:    snippetOf(hit.Text, 200),
			Confidence: hit.Similarity,
		})
	}
	return out
}

func snippetOf(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "…"
}

// ExportReport writes the current report and its tables to the export
// directory and records the path. Only a generated (or previously exported)
// project can be exported.
func (uc *GenerateUseCase) ExportReport(ctx context.Context, projectID string) (string, error) {
	project, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load project: %w", err)
	}
	if !domain.CanTransition(project.Status, domain.StatusExported) {
		return "", domain.WrapError(domain.ErrStateConflict, "export report",
			fmt.Errorf("project %s is %s and has no finished report to export", projectID, project.Status))
	}

	rep, err := uc.reports.GetReport(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("load report: %w", err)
	}
	arts, err := uc.reports.ListArtifacts(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("list artifacts: %w", err)
	}

	path, err := uc.exporter.Export(ctx, project, rep, arts)
	if err != nil {
		return "", fmt.Errorf("export report: %w", err)
	}
	if err := uc.reports.SetExportPath(ctx, projectID, path); err != nil {
		return "", fmt.Errorf("record export path: %w", err)
	}
	if project.Status != domain.StatusExported {
		if err := uc.projects.CompareAndSetStatus(ctx, projectID, project.Status, domain.StatusExported); err != nil {
			return "", fmt.Errorf("mark project exported: %w", err)
		}
	}
	return path, nil
}

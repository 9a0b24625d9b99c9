package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/avpetrov/reportgen/internal/core/domain"
	"github.com/avpetrov/reportgen/internal/core/ports"
)

// In-memory fakes for the outbound ports, shared by the use case tests.
// They model just enough behavior for the contracts under test: the project
// fake enforces compare-and-set, the chunk fake cascades embedding deletes.

type projectRepoFake struct {
	mu       sync.Mutex
	projects map[string]*domain.Project
	casErr   error
}

func newProjectRepoFake(projects ...*domain.Project) *projectRepoFake {
	f := &projectRepoFake{projects: map[string]*domain.Project{}}
	for _, p := range projects {
		copyP := *p
		f.projects[p.ID] = &copyP
	}
	return f
}

func (f *projectRepoFake) Create(_ context.Context, p *domain.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyP := *p
	f.projects[p.ID] = &copyP
	return nil
}

func (f *projectRepoFake) GetByID(_ context.Context, id string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch project", fmt.Errorf("project %s", id))
	}
	copyP := *p
	return &copyP, nil
}

func (f *projectRepoFake) CompareAndSetStatus(_ context.Context, id string, from, to domain.ProjectStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casErr != nil {
		return f.casErr
	}
	p, ok := f.projects[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "project status transition", fmt.Errorf("project %s", id))
	}
	if p.Status != from || !domain.CanTransition(from, to) {
		return domain.WrapError(domain.ErrStateConflict, "project status transition",
			fmt.Errorf("stored %s, want %s -> %s", p.Status, from, to))
	}
	p.Status = to
	return nil
}

func (f *projectRepoFake) status(id string) domain.ProjectStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects[id].Status
}

type documentRepoFake struct {
	mu    sync.Mutex
	docs  map[string]*domain.Document
	order []string
}

func newDocumentRepoFake(docs ...*domain.Document) *documentRepoFake {
	f := &documentRepoFake{docs: map[string]*domain.Document{}}
	for _, doc := range docs {
		copyDoc := *doc
		f.docs[doc.ID] = &copyDoc
		f.order = append(f.order, doc.ID)
	}
	return f
}

func (f *documentRepoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	f.order = append(f.order, doc.ID)
	return nil
}

func (f *documentRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch document", fmt.Errorf("document %s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *documentRepoFake) ListByProject(_ context.Context, projectID string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, id := range f.order {
		if doc := f.docs[id]; doc != nil && doc.ProjectID == projectID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *documentRepoFake) ExistsByFilename(_ context.Context, projectID, filename string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.ProjectID == projectID && doc.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (f *documentRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update document", fmt.Errorf("document %s", id))
	}
	doc.Status = status
	doc.Error = errMessage
	return nil
}

func (f *documentRepoFake) MarkProcessed(_ context.Context, id string, pageCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update document", fmt.Errorf("document %s", id))
	}
	doc.Status = domain.DocProcessed
	doc.Error = ""
	doc.PageCount = pageCount
	return nil
}

func (f *documentRepoFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	for i, ordered := range f.order {
		if ordered == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

type chunkRepoFake struct {
	mu         sync.Mutex
	byDocument map[string][]domain.Chunk
	embeddings *embeddingRepoFake
	replaceErr error
}

func (f *chunkRepoFake) ReplaceForDocument(_ context.Context, documentID string, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	for _, old := range f.byDocument[documentID] {
		f.embeddings.drop(old.ID)
	}
	f.byDocument[documentID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (f *chunkRepoFake) CountByProject(_ context.Context, projectID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, chunks := range f.byDocument {
		for _, chunk := range chunks {
			if chunk.ProjectID == projectID {
				n++
			}
		}
	}
	return n, nil
}

func (f *chunkRepoFake) ListUnembedded(_ context.Context, projectID string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, chunk := range f.projectChunksLocked(projectID) {
		if !f.embeddings.has(chunk.ID) {
			out = append(out, chunk)
		}
	}
	return out, nil
}

func (f *chunkRepoFake) projectChunksLocked(projectID string) []domain.Chunk {
	var out []domain.Chunk
	docIDs := make([]string, 0, len(f.byDocument))
	for docID := range f.byDocument {
		docIDs = append(docIDs, docID)
	}
	sort.Strings(docIDs)
	for _, docID := range docIDs {
		for _, chunk := range f.byDocument[docID] {
			if chunk.ProjectID == projectID {
				out = append(out, chunk)
			}
		}
	}
	return out
}

type embeddingRepoFake struct {
	mu          sync.Mutex
	vectors     map[string][]float32
	chunks      *chunkRepoFake
	saveErr     error
	deleteCalls int
}

// newPipelineStores wires the chunk and embedding fakes together so chunk
// replacement cascades embedding deletes, like the real schema does.
func newPipelineStores() (*chunkRepoFake, *embeddingRepoFake) {
	chunks := &chunkRepoFake{byDocument: map[string][]domain.Chunk{}}
	embeddings := &embeddingRepoFake{vectors: map[string][]float32{}, chunks: chunks}
	chunks.embeddings = embeddings
	return chunks, embeddings
}

func (f *embeddingRepoFake) Save(_ context.Context, chunkID string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.vectors[chunkID] = append([]float32(nil), vector...)
	return nil
}

func (f *embeddingRepoFake) DeleteByProject(ctx context.Context, projectID string) error {
	f.chunks.mu.Lock()
	projectChunks := f.chunks.projectChunksLocked(projectID)
	f.chunks.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	for _, chunk := range projectChunks {
		delete(f.vectors, chunk.ID)
	}
	return nil
}

func (f *embeddingRepoFake) CountByProject(ctx context.Context, projectID string) (int, error) {
	f.chunks.mu.Lock()
	projectChunks := f.chunks.projectChunksLocked(projectID)
	f.chunks.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, chunk := range projectChunks {
		if _, ok := f.vectors[chunk.ID]; ok {
			n++
		}
	}
	return n, nil
}

func (f *embeddingRepoFake) ListEmbeddedChunks(ctx context.Context, projectID string) ([]ports.EmbeddedChunk, error) {
	f.chunks.mu.Lock()
	projectChunks := f.chunks.projectChunksLocked(projectID)
	f.chunks.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ports.EmbeddedChunk
	for _, chunk := range projectChunks {
		vec, ok := f.vectors[chunk.ID]
		if !ok {
			continue
		}
		out = append(out, ports.EmbeddedChunk{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Filename:   chunk.Meta[domain.MetaFilename],
			Locator:    chunk.Meta[domain.MetaPage],
			Text:       chunk.Text,
			Vector:     vec,
		})
	}
	return out, nil
}

func (f *embeddingRepoFake) has(chunkID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.vectors[chunkID]
	return ok
}

func (f *embeddingRepoFake) drop(chunkID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, chunkID)
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open object", fmt.Errorf("object %s", key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type queueFake struct {
	mu         sync.Mutex
	published  []string
	publishErr error
}

func (f *queueFake) PublishPipelineRun(_ context.Context, projectID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, projectID)
	return nil
}

func (f *queueFake) SubscribePipelineRun(context.Context, func(context.Context, ports.PipelineJob) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	texts map[string]string
	pages map[string]int
	errs  map[string]error
}

func (f *extractorFake) Extract(_ context.Context, doc *domain.Document) (string, ports.ExtractMeta, error) {
	if err := f.errs[doc.Filename]; err != nil {
		return "", ports.ExtractMeta{}, err
	}
	text, ok := f.texts[doc.Filename]
	if !ok {
		return "", ports.ExtractMeta{}, domain.WrapError(domain.ErrExtractionFailed, "extract", fmt.Errorf("no fixture for %s", doc.Filename))
	}
	return text, ports.ExtractMeta{Pages: f.pages[doc.Filename]}, nil
}

// lineChunker emits one segment per non-empty line, with rune offsets. The
// real splitter has its own tests; the ingest tests only need predictable
// segmentation.
type lineChunker struct{}

func (lineChunker) Split(text string, _, _ int) []ports.Segment {
	var out []ports.Segment
	runes := []rune(text)
	start := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '\n' {
			continue
		}
		line := strings.TrimSpace(string(runes[start:i]))
		if line != "" {
			out = append(out, ports.Segment{Index: len(out), Start: start, End: i, Text: line})
		}
		start = i + 1
	}
	return out
}

type embedderFake struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	dims     int
	batchErr error
	queryErr error

	batchCalls int
	queryCalls int
}

func newEmbedderFake(dims int) *embedderFake {
	return &embedderFake{vectors: map[string][]float32{}, dims: dims}
}

func (f *embedderFake) vectorFor(text string) []float32 {
	if vec, ok := f.vectors[text]; ok {
		return append([]float32(nil), vec...)
	}
	// Deterministic placeholder vector derived from the text length.
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32((len(text)+i)%7) + 1
	}
	return vec
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.vectorFor(text), nil
}

type reportRepoFake struct {
	mu             sync.Mutex
	report         *domain.Report
	citations      []domain.Citation
	artifacts      []domain.Artifact
	citationRuns   int
	artifactRuns   int
	exportPath     string
	upsertErr      error
	getReportErr   error
}

func (f *reportRepoFake) UpsertReport(_ context.Context, report *domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	copyReport := *report
	f.report = &copyReport
	return nil
}

func (f *reportRepoFake) GetReport(_ context.Context, projectID string) (*domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getReportErr != nil {
		return nil, f.getReportErr
	}
	if f.report == nil || f.report.ProjectID != projectID {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch report", fmt.Errorf("project %s", projectID))
	}
	copyReport := *f.report
	return &copyReport, nil
}

func (f *reportRepoFake) SetExportPath(_ context.Context, projectID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportPath = path
	if f.report != nil && f.report.ProjectID == projectID {
		f.report.ExportPath = path
	}
	return nil
}

func (f *reportRepoFake) ReplaceCitations(_ context.Context, _ string, citations []domain.Citation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.citationRuns++
	f.citations = append([]domain.Citation(nil), citations...)
	return nil
}

func (f *reportRepoFake) ListCitations(_ context.Context, _ string) ([]domain.Citation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Citation(nil), f.citations...), nil
}

func (f *reportRepoFake) ReplaceArtifacts(_ context.Context, _ string, artifacts []domain.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifactRuns++
	f.artifacts = append([]domain.Artifact(nil), artifacts...)
	return nil
}

func (f *reportRepoFake) ListArtifacts(_ context.Context, _ string) ([]domain.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Artifact(nil), f.artifacts...), nil
}

type retrieverFake struct {
	hits []domain.RetrievedChunk
	err  error

	calls int
}

func (f *retrieverFake) RetrieveBySection(_ context.Context, _ string, _ []string, _ int, _ float64) ([]domain.RetrievedChunk, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.RetrievedChunk(nil), f.hits...), nil
}

type generatorFake struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *generatorFake) Generate(_ context.Context, _ string, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type exporterFake struct {
	path  string
	err   error
	calls int
}

func (f *exporterFake) Export(_ context.Context, project *domain.Project, _ *domain.Report, _ []domain.Artifact) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.path != "" {
		return f.path, nil
	}
	return "/exports/" + project.ID + ".md", nil
}

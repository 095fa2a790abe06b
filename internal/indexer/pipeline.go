package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/fileid"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/vector"
	"github.com/hyperjump/kensaku/internal/vectorstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize   = 32
	defaultConcurrency = 4
)

// VectorStore is the part of vectorstore.Store the pipeline writes to.
type VectorStore interface {
	Insert(id string, embedding []float32, fragment models.Fragment) (int, error)
	Dimensions() int
}

// FileInput is a file submitted for ingestion.
// SourceID defaults to Name when empty.
type FileInput struct {
	Name        string
	ContentType string
	Content     []byte
	SourceID    string
}

// Pipeline embeds fragments and inserts them into the vector store.
type Pipeline struct {
	store       VectorStore
	embedder    embedding.Embedder
	chunker     *Chunker
	extractor   *extract.Extractor
	storage     storage.Storage
	extensions  []string
	batchSize   int
	concurrency int
	newID       func() string
	logger      *zap.Logger // optional; when set, logs debug events
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for debug output (batch embedded, file ingested, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithStorage records every ingested file in the ledger.
func WithStorage(s storage.Storage) Option {
	return func(p *Pipeline) { p.storage = s }
}

// WithExtractor replaces the default text extractor.
func WithExtractor(e *extract.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithIDFunc sets the generator for fragments submitted without an ID.
func WithIDFunc(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// NewPipeline creates an ingestion pipeline writing to store.
func NewPipeline(store VectorStore, embedder embedding.Embedder, cfg *config.IngestConfig, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = &config.IngestConfig{}
	}
	p := &Pipeline{
		store:       store,
		embedder:    embedder,
		chunker:     NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor:   extract.NewExtractor(),
		extensions:  cfg.Extensions,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		newID:       uuid.NewString,
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.concurrency <= 0 {
		p.concurrency = defaultConcurrency
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Insert embeds and stores a single fragment.
func (p *Pipeline) Insert(ctx context.Context, input models.FragmentInput) models.Outcome {
	out := p.outcome(0, &input)
	if err := validateFragment(input.Fragment); err != nil {
		return fail(out, err)
	}
	if err := ctx.Err(); err != nil {
		return fail(out, err)
	}
	vec, err := p.embedder.Embed(ctx, input.Text)
	if err != nil {
		return fail(out, embedding.ProviderError("embed fragment", err))
	}
	return p.insert(out, vec, input.Fragment)
}

type batch struct {
	indices []int
	vectors [][]float32
	err     error
}

// InsertMany embeds fragments in batches, several batches at a time, then inserts them in
// submission order. One outcome is returned per input, in the same order. A failed batch
// marks its own fragments as errors and leaves the others alone.
func (p *Pipeline) InsertMany(ctx context.Context, inputs []models.FragmentInput) []models.Outcome {
	outcomes := make([]models.Outcome, len(inputs))
	var pending []int
	for i := range inputs {
		outcomes[i] = p.outcome(i, &inputs[i])
		if err := validateFragment(inputs[i].Fragment); err != nil {
			outcomes[i] = fail(outcomes[i], err)
			continue
		}
		pending = append(pending, i)
	}

	batches := make([]*batch, 0, len(pending)/p.batchSize+1)
	for start := 0; start < len(pending); start += p.batchSize {
		end := start + p.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, &batch{indices: pending[start:end]})
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for n, b := range batches {
		n, b := n, b
		g.Go(func() error {
			p.embedBatch(ctx, n, b, inputs)
			return nil
		})
	}
	_ = g.Wait()

	for _, b := range batches {
		for j, i := range b.indices {
			if b.err != nil {
				outcomes[i] = fail(outcomes[i], b.err)
				continue
			}
			if err := ctx.Err(); err != nil {
				outcomes[i] = fail(outcomes[i], err)
				continue
			}
			outcomes[i] = p.insert(outcomes[i], b.vectors[j], inputs[i].Fragment)
		}
	}
	return outcomes
}

func (p *Pipeline) embedBatch(ctx context.Context, n int, b *batch, inputs []models.FragmentInput) {
	if err := ctx.Err(); err != nil {
		b.err = err
		return
	}
	texts := make([]string, len(b.indices))
	for j, i := range b.indices {
		texts[j] = inputs[i].Text
	}
	vecs, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		b.err = embedding.ProviderError(fmt.Sprintf("embed batch %d", n), err)
		return
	}
	if len(vecs) != len(texts) {
		b.err = fmt.Errorf("embed batch %d: %w: got %d vectors for %d texts",
			n, embedding.ErrCollaboratorFailure, len(vecs), len(texts))
		return
	}
	b.vectors = vecs
	if p.logger != nil {
		p.logger.Debug("pipeline batch embedded", zap.Int("batch", n), zap.Int("fragments", len(texts)))
	}
}

func (p *Pipeline) insert(out models.Outcome, vec []float32, frag models.Fragment) models.Outcome {
	if len(vec) != p.store.Dimensions() {
		return fail(out, &vector.ErrDimensionMismatch{Expected: p.store.Dimensions(), Actual: len(vec)})
	}
	slot, err := p.store.Insert(out.Fragment.ID, vec, frag)
	if err != nil {
		return fail(out, err)
	}
	out.Status = models.OutcomeSuccess
	out.Slot = models.IntPtr(slot)
	return out
}

func (p *Pipeline) outcome(index int, input *models.FragmentInput) models.Outcome {
	id := input.ID
	if id == "" {
		id = p.newID()
	}
	return models.Outcome{
		Fragment: models.FragmentRef{
			Index:       index,
			ID:          id,
			SourceID:    input.SourceID,
			PageNumber:  input.PageNumber,
			ChunkNumber: input.ChunkNumber,
		},
	}
}

func validateFragment(f models.Fragment) error {
	if Preprocess(f.Text) == "" {
		return fmt.Errorf("%w: fragment text is empty", vectorstore.ErrInvalidArgument)
	}
	return nil
}

func fail(out models.Outcome, err error) models.Outcome {
	out.Status = models.OutcomeError
	out.Detail = err.Error()
	out.Err = err
	out.Slot = nil
	return out
}

// IngestFile extracts, chunks and inserts a file, returning a per-fragment report.
// The report is recorded in the ledger when storage is configured.
func (p *Pipeline) IngestFile(ctx context.Context, in FileInput) models.FileReport {
	report := p.ingestFile(ctx, in)
	p.record(ctx, in, &report)
	if p.logger != nil {
		p.logger.Debug("pipeline file ingested",
			zap.String("filename", in.Name),
			zap.String("status", report.Status),
			zap.Int("indexed", report.Indexed),
			zap.Int("failed", report.Failed))
	}
	return report
}

func (p *Pipeline) ingestFile(ctx context.Context, in FileInput) models.FileReport {
	report := models.FileReport{Filename: in.Name}
	ext := extract.ExtensionFor(in.Name, in.ContentType)
	if ext == "" || !p.extractor.Supports(ext) || (len(p.extensions) > 0 && !extensionAllowed(ext, p.extensions)) {
		report.Status = models.FileError
		report.Message = fmt.Sprintf("unsupported file type %q", ext)
		return report
	}
	pages, err := p.extractor.ExtractBytes(in.Content, ext)
	if err != nil {
		report.Status = models.FileError
		report.Message = fmt.Sprintf("extract text: %v", err)
		return report
	}
	sourceID := in.SourceID
	if sourceID == "" {
		sourceID = in.Name
	}
	fragments := p.chunker.ChunkPages(sourceID, pages)
	if len(fragments) == 0 {
		report.Status = models.FileWarning
		report.Message = "no text could be extracted"
		return report
	}

	report.Outcomes = p.InsertMany(ctx, fragments)
	report.Fragments = len(fragments)
	for _, o := range report.Outcomes {
		if o.OK() {
			report.Indexed++
		} else {
			report.Failed++
		}
	}
	switch {
	case report.Failed == 0:
		report.Status = models.FileSuccess
		report.Message = fmt.Sprintf("indexed %d fragments", report.Indexed)
	case report.Indexed == 0:
		report.Status = models.FileError
		report.Message = fmt.Sprintf("all %d fragments failed", report.Failed)
	default:
		report.Status = models.FilePartial
		report.Message = fmt.Sprintf("indexed %d of %d fragments", report.Indexed, report.Fragments)
	}
	return report
}

func (p *Pipeline) record(ctx context.Context, in FileInput, report *models.FileReport) {
	if p.storage == nil {
		return
	}
	doc := &models.Document{
		ID:          uuid.NewString(),
		Filename:    in.Name,
		ContentType: in.ContentType,
		Size:        int64(len(in.Content)),
		Fragments:   report.Fragments,
		Indexed:     report.Indexed,
		Failed:      report.Failed,
		Status:      report.Status,
		Message:     report.Message,
		CreatedAt:   time.Now(),
	}
	// Recorded even when ctx is already cancelled.
	recCtx := context.WithoutCancel(ctx)
	if err := p.storage.CreateDocument(recCtx, doc); err != nil {
		if p.logger != nil {
			p.logger.Error("pipeline ledger write failed", zap.String("filename", in.Name), zap.Error(err))
		}
		return
	}
	if err := p.storage.BatchCreateOutcomes(recCtx, doc.ID, report.Outcomes); err != nil {
		if p.logger != nil {
			p.logger.Error("pipeline ledger outcomes failed", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	report.DocumentID = doc.ID
}

// IngestPath reads and ingests a file from disk. The absolute path is the fragments' source ID.
func (p *Pipeline) IngestPath(ctx context.Context, path string) (models.FileReport, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return models.FileReport{}, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return models.FileReport{}, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return models.FileReport{}, fmt.Errorf("not a regular file: %s", absPath)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return models.FileReport{}, fmt.Errorf("read file: %w", err)
	}
	return p.IngestFile(ctx, FileInput{
		Name:     filepath.Base(absPath),
		Content:  content,
		SourceID: fileid.SourceID(absPath),
	}), nil
}

// IngestDirectory ingests every allowed regular file under dir and returns one report per file.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string, recursive bool) ([]models.FileReport, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var reports []models.FileReport
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if !recursive && path != absDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.Accepts(path) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		report, ingestErr := p.IngestPath(ctx, path)
		if ingestErr != nil {
			return ingestErr
		}
		reports = append(reports, report)
		return nil
	})
	return reports, err
}

// Accepts reports whether a file with this name would be extracted.
func (p *Pipeline) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !p.extractor.Supports(ext) {
		return false
	}
	return len(p.extensions) == 0 || extensionAllowed(ext, p.extensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/vector"
	"github.com/hyperjump/kensaku/internal/vectorstore"
)

const testDims = 16

// flakyEmbedder fails any batch containing "boom", returns a short vector for "short",
// and drops a vector from any batch containing "drop".
type flakyEmbedder struct {
	*embedding.HashEmbedder
	mu      sync.Mutex
	batches int
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		switch {
		case strings.Contains(t, "boom"):
			return nil, errors.New("provider exploded")
		case strings.Contains(t, "drop"):
			continue
		case strings.Contains(t, "short"):
			out = append(out, make([]float32, testDims-1))
		default:
			v, err := f.HashEmbedder.Embed(ctx, t)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func newTestPipeline(t *testing.T, cfg *config.IngestConfig, opts ...Option) (*Pipeline, *vectorstore.Store, *flakyEmbedder) {
	t.Helper()
	store, err := vectorstore.New(testDims)
	if err != nil {
		t.Fatal(err)
	}
	emb := &flakyEmbedder{HashEmbedder: embedding.NewHashEmbedder(testDims)}
	return NewPipeline(store, emb, cfg, opts...), store, emb
}

func fragments(texts ...string) []models.FragmentInput {
	out := make([]models.FragmentInput, len(texts))
	for i, t := range texts {
		out[i] = models.FragmentInput{
			ID:       fmt.Sprintf("f%d", i),
			Fragment: models.Fragment{Text: t, SourceID: "src"},
		}
	}
	return out
}

func TestPipeline_InsertManyOrder(t *testing.T) {
	p, store, emb := newTestPipeline(t, &config.IngestConfig{BatchSize: 2, Concurrency: 3})
	outcomes := p.InsertMany(context.Background(), fragments("a", "b", "c", "d", "e"))
	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if !o.OK() {
			t.Fatalf("outcome %d failed: %s", i, o.Detail)
		}
		if o.Fragment.Index != i || o.Fragment.ID != fmt.Sprintf("f%d", i) {
			t.Errorf("outcome %d ref = %+v", i, o.Fragment)
		}
		if o.Slot == nil || *o.Slot != i {
			t.Errorf("outcome %d slot = %v, want %d", i, o.Slot, i)
		}
	}
	if store.Count() != 5 {
		t.Errorf("Count=%d", store.Count())
	}
	if emb.batches != 3 {
		t.Errorf("expected 3 batches, got %d", emb.batches)
	}
}

func TestPipeline_BatchFailureIsolated(t *testing.T) {
	p, store, _ := newTestPipeline(t, &config.IngestConfig{BatchSize: 2, Concurrency: 2})
	outcomes := p.InsertMany(context.Background(), fragments("a", "boom", "c", "d"))
	for i := 0; i < 2; i++ {
		if outcomes[i].OK() || !errors.Is(outcomes[i].Err, embedding.ErrCollaboratorFailure) {
			t.Errorf("outcome %d should be a collaborator failure, got %+v", i, outcomes[i])
		}
		if outcomes[i].Slot != nil {
			t.Errorf("failed outcome %d should have no slot", i)
		}
	}
	for i := 2; i < 4; i++ {
		if !outcomes[i].OK() {
			t.Errorf("outcome %d should succeed: %s", i, outcomes[i].Detail)
		}
	}
	if store.Count() != 2 {
		t.Errorf("Count=%d, want 2", store.Count())
	}
}

func TestPipeline_WrongVectorCount(t *testing.T) {
	p, store, _ := newTestPipeline(t, &config.IngestConfig{BatchSize: 3})
	outcomes := p.InsertMany(context.Background(), fragments("a", "drop", "c"))
	for i, o := range outcomes {
		if !errors.Is(o.Err, embedding.ErrCollaboratorFailure) {
			t.Errorf("outcome %d: expected collaborator failure, got %v", i, o.Err)
		}
	}
	if store.Count() != 0 {
		t.Errorf("Count=%d, want 0", store.Count())
	}
}

func TestPipeline_WrongVectorLength(t *testing.T) {
	p, store, _ := newTestPipeline(t, nil)
	outcomes := p.InsertMany(context.Background(), fragments("a", "short", "c"))
	var dm *vector.ErrDimensionMismatch
	if !errors.As(outcomes[1].Err, &dm) {
		t.Fatalf("expected dimension mismatch, got %v", outcomes[1].Err)
	}
	if dm.Expected != testDims || dm.Actual != testDims-1 {
		t.Errorf("mismatch = %+v", dm)
	}
	if !outcomes[0].OK() || !outcomes[2].OK() {
		t.Error("other fragments should succeed")
	}
	if *outcomes[2].Slot != 1 {
		t.Errorf("slot=%d, want 1", *outcomes[2].Slot)
	}
	if store.Count() != 2 {
		t.Errorf("Count=%d", store.Count())
	}
}

func TestPipeline_EmptyText(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)
	outcomes := p.InsertMany(context.Background(), fragments("a", "  \n ", "c"))
	if !errors.Is(outcomes[1].Err, vectorstore.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", outcomes[1].Err)
	}
	if outcomes[1].Status != models.OutcomeError {
		t.Errorf("Status=%s", outcomes[1].Status)
	}
	if !outcomes[0].OK() || !outcomes[2].OK() {
		t.Error("other fragments should succeed")
	}
}

func TestPipeline_DuplicateID(t *testing.T) {
	p, store, _ := newTestPipeline(t, nil)
	in := fragments("a", "b")
	in[1].ID = in[0].ID
	outcomes := p.InsertMany(context.Background(), in)
	if !outcomes[0].OK() {
		t.Fatalf("first insert failed: %s", outcomes[0].Detail)
	}
	if !errors.Is(outcomes[1].Err, vectorstore.ErrDuplicateID) {
		t.Errorf("expected duplicate id, got %v", outcomes[1].Err)
	}
	if store.Count() != 1 {
		t.Errorf("Count=%d", store.Count())
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	p, store, _ := newTestPipeline(t, &config.IngestConfig{BatchSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := p.InsertMany(ctx, fragments("a", "b", "c"))
	for i, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome %d: expected context.Canceled, got %v", i, o.Err)
		}
	}
	if store.Count() != 0 {
		t.Errorf("Count=%d", store.Count())
	}
}

func TestPipeline_GeneratedIDs(t *testing.T) {
	n := 0
	p, _, _ := newTestPipeline(t, nil, WithIDFunc(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))
	in := []models.FragmentInput{{Fragment: models.Fragment{Text: "a"}}, {Fragment: models.Fragment{Text: "b"}}}
	outcomes := p.InsertMany(context.Background(), in)
	if outcomes[0].Fragment.ID != "gen-1" || outcomes[1].Fragment.ID != "gen-2" {
		t.Errorf("ids = %s, %s", outcomes[0].Fragment.ID, outcomes[1].Fragment.ID)
	}
	if in[0].ID != "" {
		t.Error("caller input should not be modified")
	}
}

func TestPipeline_Insert(t *testing.T) {
	p, store, _ := newTestPipeline(t, nil)
	o := p.Insert(context.Background(), models.FragmentInput{ID: "one", Fragment: models.Fragment{Text: "hello"}})
	if !o.OK() || *o.Slot != 0 {
		t.Fatalf("Insert = %+v", o)
	}
	hits, err := store.Search(mustEmbed(t, "hello"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "one" {
		t.Errorf("hits = %+v", hits)
	}
	o = p.Insert(context.Background(), models.FragmentInput{Fragment: models.Fragment{Text: ""}})
	if !errors.Is(o.Err, vectorstore.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", o.Err)
	}
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	v, err := embedding.NewHashEmbedder(testDims).Embed(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestPipeline_IngestFile(t *testing.T) {
	p, store, _ := newTestPipeline(t, &config.IngestConfig{ChunkSize: 3, ChunkOverlap: 0, Extensions: []string{".txt"}})
	ctx := context.Background()
	in := FileInput{Name: "notes.txt", Content: []byte("one two three four five six seven")}

	report := p.IngestFile(ctx, in)
	if report.Status != models.FileSuccess {
		t.Fatalf("Status=%s: %s", report.Status, report.Message)
	}
	if report.Fragments != 3 || report.Indexed != 3 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if store.Count() != 3 {
		t.Errorf("Count=%d", store.Count())
	}

	again := p.IngestFile(ctx, in)
	if again.Status != models.FileError {
		t.Errorf("re-ingest Status=%s, want error", again.Status)
	}
	for _, o := range again.Outcomes {
		if !errors.Is(o.Err, vectorstore.ErrDuplicateID) {
			t.Errorf("expected duplicate id, got %v", o.Err)
		}
	}
	if store.Count() != 3 {
		t.Errorf("Count after re-ingest=%d", store.Count())
	}
}

func TestPipeline_IngestFilePartial(t *testing.T) {
	p, _, _ := newTestPipeline(t, &config.IngestConfig{ChunkSize: 1, BatchSize: 1})
	report := p.IngestFile(context.Background(), FileInput{Name: "mixed.txt", Content: []byte("fine boom")})
	if report.Status != models.FilePartial {
		t.Errorf("Status=%s, want partial", report.Status)
	}
	if report.Indexed != 1 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestPipeline_IngestFileUnsupported(t *testing.T) {
	p, _, _ := newTestPipeline(t, &config.IngestConfig{Extensions: []string{".txt"}})
	ctx := context.Background()
	for _, name := range []string{"image.png", "noext", "notes.md"} {
		report := p.IngestFile(ctx, FileInput{Name: name, Content: []byte("text")})
		if report.Status != models.FileError {
			t.Errorf("%s: Status=%s, want error", name, report.Status)
		}
	}
	report := p.IngestFile(ctx, FileInput{Name: "upload", ContentType: "text/plain; charset=utf-8", Content: []byte("text")})
	if report.Status != models.FileSuccess {
		t.Errorf("content type fallback: Status=%s: %s", report.Status, report.Message)
	}
}

func TestPipeline_IngestFileNoText(t *testing.T) {
	p, _, _ := newTestPipeline(t, nil)
	report := p.IngestFile(context.Background(), FileInput{Name: "blank.txt", Content: []byte(" \n\n ")})
	if report.Status != models.FileWarning {
		t.Errorf("Status=%s, want warning", report.Status)
	}
}

func TestPipeline_IngestFileRecordsLedger(t *testing.T) {
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	p, _, _ := newTestPipeline(t, nil, WithStorage(db))
	ctx := context.Background()

	report := p.IngestFile(ctx, FileInput{Name: "a.txt", ContentType: "text/plain", Content: []byte("hello world")})
	if report.DocumentID == "" {
		t.Fatal("DocumentID should be set when storage is configured")
	}
	doc, err := db.GetDocument(ctx, report.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Filename != "a.txt" || doc.Status != models.FileSuccess || doc.Indexed != 1 {
		t.Errorf("doc = %+v", doc)
	}
	outcomes, err := db.GetOutcomesByDocumentID(ctx, report.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != models.OutcomeSuccess {
		t.Errorf("outcomes = %+v", outcomes)
	}

	bad := p.IngestFile(ctx, FileInput{Name: "a.exe", Content: []byte("x")})
	if _, err := db.GetDocument(ctx, bad.DocumentID); err != nil {
		t.Errorf("failed file should still be recorded: %v", err)
	}
}

func TestPipeline_IngestDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "a.txt"): "alpha",
		filepath.Join(dir, "b.md"):  "beta",
		filepath.Join(dir, "c.bin"): "gamma",
		filepath.Join(sub, "d.txt"): "delta",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	p, _, _ := newTestPipeline(t, &config.IngestConfig{Extensions: []string{"txt", ".md"}})
	ctx := context.Background()

	reports, err := p.IngestDirectory(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Errorf("non-recursive: expected 2 reports, got %d", len(reports))
	}

	reports, err = p.IngestDirectory(ctx, dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 3 {
		t.Fatalf("recursive: expected 3 reports, got %d", len(reports))
	}
	var newFiles int
	for _, r := range reports {
		if r.Status == models.FileSuccess {
			newFiles++
		}
	}
	if newFiles != 1 {
		t.Errorf("only sub/d.txt should be new, got %d successes", newFiles)
	}

	if _, err := p.IngestDirectory(ctx, files[filepath.Join(dir, "a.txt")], true); err == nil {
		t.Error("expected error for non-directory")
	}
}

func TestPipeline_IngestPathSourceID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("content here"), 0644); err != nil {
		t.Fatal(err)
	}
	p, _, _ := newTestPipeline(t, nil)
	report, err := p.IngestPath(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if report.Filename != "doc.txt" {
		t.Errorf("Filename=%s", report.Filename)
	}
	if len(report.Outcomes) != 1 || !filepath.IsAbs(report.Outcomes[0].Fragment.SourceID) {
		t.Errorf("source id should be absolute path, outcomes=%+v", report.Outcomes)
	}
	if _, err := p.IngestPath(context.Background(), filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtensionAllowed(t *testing.T) {
	if !extensionAllowed(".TXT", []string{"txt"}) {
		t.Error("extension match should ignore case and dot")
	}
	if extensionAllowed(".pdf", []string{".txt"}) {
		t.Error(".pdf should not be allowed")
	}
}

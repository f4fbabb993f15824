package search

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

type fixture struct {
	store  storage.Storage
	emb    embedding.Embedder
	cfg    *config.Config
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Corpus.MaxSummaryChars = 40
	f := &fixture{store: store, emb: embedding.NewHashEmbedder(64), cfg: cfg}
	f.engine = f.newEngine(t)
	return f
}

func (f *fixture) newEngine(t *testing.T) *Engine {
	t.Helper()
	vecs, err := vector.NewSet(string(vector.IndexTypeMemory), 64)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = vecs.Close() })
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })
	return NewEngine(f.store, f.emb, vecs, kw, f.cfg)
}

// seed stores docID with one chunk per passage and makes them searchable.
func (f *fixture) seed(t *testing.T, docID string, passages ...string) {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{ID: docID, Title: docID, Content: strings.Join(passages, " ")}
	if err := f.store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	chunks := make([]*models.DocumentChunk, len(passages))
	for i, p := range passages {
		emb, err := f.emb.Embed(ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		chunks[i] = &models.DocumentChunk{
			ID:         docID + "_" + string(rune('a'+i)),
			DocumentID: docID,
			Content:    p,
			ChunkIndex: i,
			Embedding:  emb,
		}
	}
	if err := f.store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.AddChunks(ctx, docID, chunks); err != nil {
		t.Fatal(err)
	}
}

func seedCities(t *testing.T, f *fixture) {
	f.seed(t, "Atlanta",
		"Atlanta hosted the Summer Olympics in 1996.",
		"The city population is about half a million people.",
		"Hartsfield Jackson is the busiest airport in the world.",
	)
	f.seed(t, "Toronto",
		"Toronto population exceeds two million people.",
		"The CN Tower dominates the skyline.",
	)
}

func TestEngine_SearchScopedToDocument(t *testing.T) {
	f := newFixture(t)
	seedCities(t, f)
	ctx := context.Background()

	got, err := f.engine.Search(ctx, "Atlanta", "population", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected results")
	}
	if got[0] != "The city population is about half a million people." {
		t.Errorf("top result = %q", got[0])
	}
	for _, text := range got {
		if strings.Contains(text, "Toronto") || strings.Contains(text, "CN Tower") {
			t.Errorf("result from another document: %q", text)
		}
	}
}

func TestEngine_SearchLimit(t *testing.T) {
	f := newFixture(t)
	seedCities(t, f)
	ctx := context.Background()

	got, err := f.engine.Search(ctx, "Atlanta", "the city airport Olympics population", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 2 {
		t.Errorf("got %d results, want at most 2", len(got))
	}
	none, err := f.engine.Search(ctx, "Atlanta", "population", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("k=0 should return nothing, got %v", none)
	}
}

func TestEngine_SearchUnknownDocument(t *testing.T) {
	f := newFixture(t)
	seedCities(t, f)
	got, err := f.engine.Search(context.Background(), "Houston", "population", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("unknown document should have no hits, got %v", got)
	}
}

func TestEngine_SearchChunksScores(t *testing.T) {
	f := newFixture(t)
	seedCities(t, f)
	hits, err := f.engine.SearchChunks(context.Background(), "Toronto", "CN Tower", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].ChunkID != "Toronto_b" {
		t.Fatalf("expected Toronto_b first, got %+v", hits)
	}
	if hits[0].KeywordScore != 1 {
		t.Errorf("best keyword hit should normalize to 1, got %f", hits[0].KeywordScore)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits not sorted by score at %d", i)
		}
	}
}

func TestEngine_FullText(t *testing.T) {
	f := newFixture(t)
	seedCities(t, f)
	ctx := context.Background()

	text, err := f.engine.FullText(ctx, "Toronto")
	if err != nil {
		t.Fatal(err)
	}
	if utf8.RuneCountInString(text) != 40 {
		t.Errorf("full text should be clipped to 40 chars, got %d", utf8.RuneCountInString(text))
	}
	if !strings.HasPrefix(text, "Toronto population") {
		t.Errorf("unexpected text %q", text)
	}

	if _, err := f.engine.FullText(ctx, "Houston"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing document: got %v, want ErrNotFound", err)
	}
}

func TestEngine_RemoveDocument(t *testing.T) {
	f := newFixture(t)
	seedCities(t, f)
	ctx := context.Background()

	if err := f.engine.RemoveDocument(ctx, "Atlanta"); err != nil {
		t.Fatal(err)
	}
	got, err := f.engine.Search(ctx, "Atlanta", "Olympics", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("removed document still searchable: %v", got)
	}
	if docs := f.engine.IndexedDocuments(); len(docs) != 1 || docs[0] != "Toronto" {
		t.Errorf("indexed documents = %v", docs)
	}
}

func TestEngine_Rebuild(t *testing.T) {
	f := newFixture(t)
	seedCities(t, f)
	ctx := context.Background()

	fresh := f.newEngine(t)
	if fresh.VectorIndexSize() != 0 {
		t.Fatal("fresh engine should start empty")
	}
	n, err := fresh.Rebuild(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("rebuilt %d chunks, want 5", n)
	}
	if fresh.VectorIndexSize() != 5 {
		t.Errorf("vector index size = %d", fresh.VectorIndexSize())
	}
	got, err := fresh.Search(ctx, "Atlanta", "airport", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !strings.Contains(got[0], "airport") {
		t.Errorf("search after rebuild = %v", got)
	}
	if fresh.VectorIndexType() != "memory" {
		t.Errorf("index type = %s", fresh.VectorIndexType())
	}
}

func TestEngine_SearchFuzzyRetry(t *testing.T) {
	f := newFixture(t)
	f.cfg.Pipeline.KeywordWeight = 1
	f.cfg.Pipeline.SemanticWeight = 0
	f.engine = f.newEngine(t)
	seedCities(t, f)

	got, err := f.engine.Search(context.Background(), "Atlanta", "Olympcs", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "Atlanta hosted the Summer Olympics in 1996." {
		t.Errorf("fuzzy retry results = %v", got)
	}
}

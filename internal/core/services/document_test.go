package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestDocumentService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	env.grant(t, "alice", "bob", folder, readOnly)

	doc, err := env.documents.Register(ctx, "alice", folder.ID, &domain.RegisterDocumentRequest{
		Filename:       "policy.md",
		Size:           120,
		StorageLocator: "docs/policy.md",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ContentType != "text/markdown" {
		t.Errorf("expected detected content type, got %s", doc.ContentType)
	}
	if doc.IsIngested() {
		t.Error("new document should not be ingested")
	}

	if _, err := env.documents.Register(ctx, "bob", folder.ID, &domain.RegisterDocumentRequest{Filename: "x.txt"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden for reader, got %v", err)
	}
	if _, err := env.documents.Register(ctx, "alice", folder.ID, &domain.RegisterDocumentRequest{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestDocumentService_AccessErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc := env.addDocument(t, "alice", folder, "a.txt", []float32{1, 0})
	env.grant(t, "alice", "bob", folder, readOnly)

	if _, err := env.documents.Get(ctx, "bob", doc.ID); err != nil {
		t.Errorf("reader should see the document, got %v", err)
	}
	if err := env.documents.Delete(ctx, "bob", doc.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("reader deleting should be forbidden, got %v", err)
	}
	if _, err := env.documents.Get(ctx, "mallory", doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stranger should get not found, got %v", err)
	}
	if _, err := env.documents.ListByFolder(ctx, "mallory", folder.ID, 10, 0); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("stranger listing should be forbidden, got %v", err)
	}
}

func TestDocumentService_IngestText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc, err := env.documents.Register(ctx, "alice", folder.ID, &domain.RegisterDocumentRequest{Filename: "guide.md"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := "# Guide\n\n" + strings.Repeat("The notice period is thirty days. ", 60)
	stats, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{Text: text})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalChunks < 2 {
		t.Errorf("expected long text to be split, got %d chunks", stats.TotalChunks)
	}
	if stats.Dimensions != env.embedder.Dimensions() {
		t.Errorf("expected %d dimensions, got %d", env.embedder.Dimensions(), stats.Dimensions)
	}

	chunks, err := env.documents.Chunks(ctx, "alice", doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("expected dense indexes, chunk %d has %d", i, c.Index)
		}
		if strings.Contains(c.Text, "#") {
			t.Errorf("markdown should be normalised, got %q", c.Text)
		}
		if _, ok := c.Metadata["start_offset"]; !ok {
			t.Error("expected offsets in chunk metadata")
		}
	}

	stored, _ := env.documents.Get(ctx, "alice", doc.ID)
	if !stored.IsIngested() || stored.ChunkCount != len(chunks) {
		t.Errorf("document should record ingestion, got %+v", stored)
	}
	if held := env.lock.IsHeld("ingest:document:" + doc.ID); held {
		t.Error("ingest lock should be released")
	}
	if types := env.publisher.Types(); types[len(types)-1] != domain.AuditDocumentIngested {
		t.Errorf("expected ingest audit event, got %v", types)
	}
}

func TestDocumentService_IngestReplacesChunkSet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc := env.addDocument(t, "alice", folder, "a.txt", []float32{1, 0}, []float32{0, 1}, []float32{1, 1})

	_, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{
		Chunks: []*domain.ChunkInput{{Text: "only", Embedding: []float32{1, 0}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, _ := env.documents.Chunks(ctx, "alice", doc.ID)
	if len(chunks) != 1 || chunks[0].Text != "only" {
		t.Errorf("expected the new set to replace the old one, got %d chunks", len(chunks))
	}
}

func TestDocumentService_IngestFailureKeepsPreviousChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc := env.addDocument(t, "alice", folder, "a.txt", []float32{1, 0}, []float32{0, 1})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{
			Chunks: []*domain.ChunkInput{{Text: "x", Embedding: []float32{1, 0, 0}}},
		})
		if !errors.Is(err, domain.ErrDimensionMismatch) {
			t.Errorf("expected dimension mismatch, got %v", err)
		}
	})

	t.Run("embedding provider down", func(t *testing.T) {
		env.embedder.SetFailNext(errors.New("connection refused"))
		_, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{Text: "fresh text"})
		if !errors.Is(err, domain.ErrServiceUnavailable) {
			t.Errorf("expected service unavailable, got %v", err)
		}
		if !domain.IsRetryable(err) {
			t.Error("provider failures should be retryable")
		}
	})

	t.Run("store write fails", func(t *testing.T) {
		env.stores.Chunks.ReplaceFn = func(string, []*domain.EmbeddingChunk) error {
			return errors.New("disk full")
		}
		defer func() { env.stores.Chunks.ReplaceFn = nil }()

		_, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{
			Chunks: []*domain.ChunkInput{{Text: "x", Embedding: []float32{1, 0}}},
		})
		if err == nil {
			t.Error("expected error")
		}
	})

	chunks, _ := env.documents.Chunks(ctx, "alice", doc.ID)
	if len(chunks) != 2 {
		t.Errorf("failed ingests must leave the previous set, got %d chunks", len(chunks))
	}
}

func TestDocumentService_IngestLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc := env.addDocument(t, "alice", folder, "a.txt")
	env.lock.SetLockHeld("ingest:document:"+doc.ID, time.Minute)

	_, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{Text: "hello"})
	if !errors.Is(err, domain.ErrBusy) {
		t.Errorf("expected busy, got %v", err)
	}
}

func TestDocumentService_IngestWithoutEmbedder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.runtime.SetEmbeddingService(nil)

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc := env.addDocument(t, "alice", folder, "a.txt")

	if _, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{Text: "hello"}); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected service unavailable, got %v", err)
	}

	// Pre-embedded chunks need no provider
	_, err := env.documents.Ingest(ctx, "alice", doc.ID, &domain.IngestRequest{
		Chunks: []*domain.ChunkInput{{Text: "hello", Embedding: []float32{0.5, 0.5}}},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDocumentService_StatsAndDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc, err := env.documents.Register(ctx, "alice", folder.ID, &domain.RegisterDocumentRequest{
		Filename:       "a.pdf",
		StorageLocator: "bucket/a.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := env.documents.Stats(ctx, "alice", doc.ID)
	if err != nil || stats.TotalChunks != 0 {
		t.Errorf("expected empty stats, got (%+v, %v)", stats, err)
	}

	url, err := env.documents.DownloadURL(ctx, "alice", doc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(url, "bucket/a.pdf") {
		t.Errorf("unexpected url %s", url)
	}

	bare := env.addDocument(t, "alice", folder, "b.txt")
	if _, err := env.documents.DownloadURL(ctx, "alice", bare.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found without locator, got %v", err)
	}
}

func TestDocumentService_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	folder := env.mkdir(t, "alice", "Docs", nil)
	doc := env.addDocument(t, "alice", folder, "a.txt", []float32{1, 0})

	if err := env.documents.Delete(ctx, "alice", doc.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.documents.Get(ctx, "alice", doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	counts, _ := env.stores.Chunks.CountInFolders(ctx, []string{folder.ID})
	if counts[folder.ID] != 0 {
		t.Errorf("chunks should be removed with the document, got %d", counts[folder.ID])
	}
}

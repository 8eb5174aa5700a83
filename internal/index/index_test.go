package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mailsense/internal/enrich"
	"github.com/fyrsmithlabs/mailsense/internal/vectorstore"
)

// fakeStore records calls and can fail specific AddDocuments calls by
// sequence number (1-based).
type fakeStore struct {
	docs      map[string]vectorstore.Document
	addCalls  int
	failCalls map[int]error
	searchFn  func(query string, k int) []vectorstore.SearchResult
	deleted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:      make(map[string]vectorstore.Document),
		failCalls: make(map[int]error),
	}
}

func (s *fakeStore) AddDocuments(ctx context.Context, docs []vectorstore.Document) ([]string, error) {
	s.addCalls++
	if err, ok := s.failCalls[s.addCalls]; ok {
		return nil, err
	}
	owner, err := vectorstore.OwnerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]interface{})
		}
		doc.Metadata["owner_id"] = owner.OwnerID
		s.docs[doc.ID] = doc
		ids[i] = doc.ID
	}
	return ids, nil
}

func (s *fakeStore) Search(ctx context.Context, query string, k int, filters map[string]interface{}) ([]vectorstore.SearchResult, error) {
	if _, err := vectorstore.OwnerFromContext(ctx); err != nil {
		return nil, err
	}
	if s.searchFn != nil {
		return s.searchFn(query, k), nil
	}
	return nil, nil
}

func (s *fakeStore) Fetch(ctx context.Context, ids []string) ([]vectorstore.Document, error) {
	var out []vectorstore.Document
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteDocuments(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.docs, id)
		s.deleted = append(s.deleted, id)
	}
	return nil
}

func (s *fakeStore) Close() error { return nil }

var _ vectorstore.Store = (*fakeStore)(nil)

func testRecord(emailID, ownerID string) Record {
	return Record{
		EmailID: emailID,
		OwnerID: ownerID,
		Content: "Quarterly budget review scheduled for next Thursday at 2pm.",
		Subject: "Budget review",
		From:    "finance@example.com",
	}
}

func newTestIndex(store vectorstore.Store, batchSize int) *EmailIndex {
	return New(store, Config{
		BatchSize:        batchSize,
		MinContentLength: 10,
		MetadataBudget:   4096,
	}, zap.NewNop())
}

func TestStore(t *testing.T) {
	t.Run("stores valid record", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		err := idx.Store(context.Background(), testRecord("em-1", "alice"))
		require.NoError(t, err)

		doc, ok := fake.docs["em-1"]
		require.True(t, ok)
		assert.Equal(t, "alice", doc.Metadata["owner_id"])
		assert.Equal(t, "em-1", doc.Metadata["email_id"])
		assert.Equal(t, "Budget review", doc.Metadata["subject"])
	})

	t.Run("rejects missing owner before any store call", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		err := idx.Store(context.Background(), testRecord("em-1", ""))
		require.ErrorIs(t, err, ErrMissingOwnerID)
		assert.Equal(t, 0, fake.addCalls)
	})

	t.Run("rejects short content before any store call", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		rec := testRecord("em-1", "alice")
		rec.Content = "hi"
		err := idx.Store(context.Background(), rec)
		require.ErrorIs(t, err, ErrContentTooShort)
		assert.Equal(t, 0, fake.addCalls)
	})

	t.Run("includes enrichment metadata", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		rec := testRecord("em-1", "alice")
		rec.ReceivedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
		rec.Enrichment = &enrich.Result{
			Category:    "Work",
			Priority:    "High",
			Summary:     "Budget review meeting scheduled.",
			ActionItems: []string{"Prepare Q1 figures", "Book room"},
			ContactInfo: map[string]string{"phone": "555-0100"},
		}
		require.NoError(t, idx.Store(context.Background(), rec))

		meta := fake.docs["em-1"].Metadata
		assert.Equal(t, "Work", meta["category"])
		assert.Equal(t, "High", meta["priority"])
		assert.Equal(t, "2026-03-14T09:30:00Z", meta["received_at"])
		assert.Contains(t, meta["action_items"], "Prepare Q1 figures")
		assert.Contains(t, meta["contact_info"], "555-0100")
	})

	t.Run("bounds metadata to budget", func(t *testing.T) {
		fake := newFakeStore()
		idx := New(fake, Config{
			BatchSize:        10,
			MinContentLength: 10,
			MetadataBudget:   200,
		}, zap.NewNop())

		rec := testRecord("em-1", "alice")
		rec.Enrichment = &enrich.Result{
			Category: "Work",
			Priority: "Medium",
			Summary:  strings.Repeat("long summary text ", 50),
		}
		require.NoError(t, idx.Store(context.Background(), rec))

		meta := fake.docs["em-1"].Metadata
		// Protected keys survive trimming; the oversized summary does not.
		assert.Equal(t, "em-1", meta["email_id"])
		assert.NotContains(t, meta, "summary")
	})
}

func TestStoreBatch(t *testing.T) {
	t.Run("chunks by batch size", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		recs := make([]Record, 25)
		for i := range recs {
			recs[i] = testRecord(fmt.Sprintf("em-%d", i), "alice")
		}
		outcome, err := idx.StoreBatch(context.Background(), recs)
		require.NoError(t, err)
		assert.Equal(t, 25, outcome.StoredCount)
		assert.Empty(t, outcome.Failed)
		assert.Equal(t, 3, fake.addCalls)
	})

	t.Run("failed chunk does not stop later chunks", func(t *testing.T) {
		fake := newFakeStore()
		fake.failCalls[2] = errors.New("upstream unavailable")
		idx := newTestIndex(fake, 10)

		recs := make([]Record, 25)
		for i := range recs {
			recs[i] = testRecord(fmt.Sprintf("em-%d", i), "alice")
		}
		outcome, err := idx.StoreBatch(context.Background(), recs)
		require.NoError(t, err)
		assert.Equal(t, 15, outcome.StoredCount)
		assert.Len(t, outcome.Failed, 10)
		assert.Equal(t, 3, fake.addCalls)
		for _, f := range outcome.Failed {
			assert.Contains(t, f.Err, "upstream unavailable")
		}
	})

	t.Run("invalid records reported without halting batch", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		recs := []Record{
			testRecord("em-1", "alice"),
			testRecord("em-2", ""),
			testRecord("em-3", "alice"),
		}
		recs[2].Content = "x"

		outcome, err := idx.StoreBatch(context.Background(), recs)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.StoredCount)
		require.Len(t, outcome.Failed, 2)
		assert.Equal(t, "em-2", outcome.Failed[0].EmailID)
		assert.Equal(t, "em-3", outcome.Failed[1].EmailID)
	})

	t.Run("mixed owners stored under their own owner", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		recs := []Record{
			testRecord("em-a", "alice"),
			testRecord("em-b", "bob"),
		}
		outcome, err := idx.StoreBatch(context.Background(), recs)
		require.NoError(t, err)
		assert.Equal(t, 2, outcome.StoredCount)
		assert.Equal(t, "alice", fake.docs["em-a"].Metadata["owner_id"])
		assert.Equal(t, "bob", fake.docs["em-b"].Metadata["owner_id"])
	})

	t.Run("empty batch", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		outcome, err := idx.StoreBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, outcome.StoredCount)
		assert.Empty(t, outcome.Failed)
	})

	t.Run("cancellation stops remaining chunks", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		recs := make([]Record, 5)
		for i := range recs {
			recs[i] = testRecord(fmt.Sprintf("em-%d", i), "alice")
		}
		outcome, err := idx.StoreBatch(ctx, recs)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, outcome.StoredCount)
	})
}

func TestQuery(t *testing.T) {
	t.Run("returns matches with email id from metadata", func(t *testing.T) {
		fake := newFakeStore()
		fake.searchFn = func(query string, k int) []vectorstore.SearchResult {
			return []vectorstore.SearchResult{
				{ID: "point-uuid", Content: "budget review", Score: 0.91,
					Metadata: map[string]interface{}{"email_id": "em-1"}},
			}
		}
		idx := newTestIndex(fake, 10)

		matches, err := idx.Query(context.Background(), "budget", "alice", 5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "em-1", matches[0].EmailID)
		assert.InDelta(t, 0.91, matches[0].Score, 0.001)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		idx := newTestIndex(newFakeStore(), 10)
		_, err := idx.Query(context.Background(), "budget", "", 5)
		require.ErrorIs(t, err, ErrMissingOwnerID)
	})

	t.Run("defaults topK when non-positive", func(t *testing.T) {
		fake := newFakeStore()
		var gotK int
		fake.searchFn = func(query string, k int) []vectorstore.SearchResult {
			gotK = k
			return nil
		}
		idx := newTestIndex(fake, 10)

		_, err := idx.Query(context.Background(), "budget", "alice", 0)
		require.NoError(t, err)
		assert.Equal(t, 10, gotK)
	})
}

func TestDelete(t *testing.T) {
	seed := func(t *testing.T, idx *EmailIndex, id, owner string) {
		t.Helper()
		require.NoError(t, idx.Store(context.Background(), testRecord(id, owner)))
	}

	t.Run("deletes owned documents", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)
		seed(t, idx, "em-1", "alice")
		seed(t, idx, "em-2", "alice")

		deleted, err := idx.Delete(context.Background(), []string{"em-1", "em-2"}, "alice")
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
		assert.Empty(t, fake.docs)
	})

	t.Run("skips documents owned by someone else", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)
		seed(t, idx, "em-1", "alice")
		seed(t, idx, "em-2", "bob")

		deleted, err := idx.Delete(context.Background(), []string{"em-1", "em-2"}, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
		assert.NotContains(t, fake.docs, "em-1")
		assert.Contains(t, fake.docs, "em-2")
	})

	t.Run("unknown ids are not counted", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)
		seed(t, idx, "em-1", "alice")

		deleted, err := idx.Delete(context.Background(), []string{"em-1", "em-missing"}, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		idx := newTestIndex(newFakeStore(), 10)
		_, err := idx.Delete(context.Background(), []string{"em-1"}, "")
		require.ErrorIs(t, err, ErrMissingOwnerID)
	})

	t.Run("empty id list is a no-op", func(t *testing.T) {
		fake := newFakeStore()
		idx := newTestIndex(fake, 10)
		deleted, err := idx.Delete(context.Background(), nil, "alice")
		require.NoError(t, err)
		assert.Equal(t, 0, deleted)
		assert.Empty(t, fake.deleted)
	})
}

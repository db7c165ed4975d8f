package memory

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/nexus/internal/embeddings/mock"
	"github.com/aryannaik/nexus/internal/nexus"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func newService(t *testing.T) (*Service, *mock.Embedder) {
	t.Helper()
	store, _ := openStore(t)
	emb := mock.New()
	return NewService(store, emb), emb
}

func TestStore_InsertReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memory.db")
	store, err := Open(path)
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)
	e := Entry{ID: "a", Text: "hello", Tags: []string{"x"}, CreatedAt: created, Embedding: []float32{1, 0, 0}}
	require.NoError(t, store.Insert(context.Background(), e))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Count())
	assert.Equal(t, 3, reopened.Dims())
	got, err := reopened.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, []string{"x"}, got.Tags)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
}

func TestStore_DimensionInvariant(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, Entry{ID: "a", Text: "a", Embedding: []float32{1, 0}}))

	err := store.Insert(ctx, Entry{ID: "b", Text: "b", Embedding: []float32{1, 0, 0}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 1, store.Count())

	err = store.Insert(ctx, Entry{ID: "c", Text: "c"})
	assert.Error(t, err)

	_, err = store.SearchByVector([]float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, Entry{ID: "a", Text: "a", Embedding: []float32{1}}))
	require.Error(t, store.Insert(ctx, Entry{ID: "a", Text: "again", Embedding: []float32{1}}))

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Text)
	assert.Equal(t, 1, store.Count())
}

func TestStore_DeleteAndRecent(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.Insert(ctx, Entry{
			ID: id, Text: id, CreatedAt: base.Add(time.Duration(i) * time.Hour), Embedding: []float32{1, 1},
		}))
	}

	recent := store.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "new", recent[0].ID)
	assert.Equal(t, "mid", recent[1].ID)

	require.NoError(t, store.Delete(ctx, "mid"))
	assert.ErrorIs(t, store.Delete(ctx, "mid"), nexus.ErrNotFound)
	_, err := store.Get("mid")
	assert.ErrorIs(t, err, nexus.ErrNotFound)

	require.NoError(t, store.Close())
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 2, reopened.Count())
}

func TestService_RememberThenSearchSelf(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	texts := []string{"buy milk", "call the dentist on monday", "read the go memory model"}
	var target Entry
	for _, txt := range texts {
		e, err := svc.Remember(ctx, txt, nil, nil)
		require.NoError(t, err)
		if txt == "call the dentist on monday" {
			target = e
		}
	}

	hits, err := svc.Search(ctx, "call the dentist on monday", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, target.ID, hits[0].Entry.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
}

func TestService_BuyMilkExample(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	milk, err := svc.Remember(ctx, "buy milk", nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, milk.ID)
	assert.Equal(t, "buy milk", milk.Text)
	assert.False(t, milk.CreatedAt.IsZero())

	_, err = svc.Remember(ctx, "renew passport", nil, nil)
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "milk", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "buy milk", hits[0].Entry.Text)
}

func TestService_SearchEmptyStore(t *testing.T) {
	svc, emb := newService(t)
	hits, err := svc.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Zero(t, emb.Calls())
}

func TestService_RememberValidation(t *testing.T) {
	svc, emb := newService(t)

	_, err := svc.Remember(context.Background(), "   \n\t", nil, nil)
	require.Error(t, err)
	assert.True(t, nexus.IsValidation(err))
	assert.Zero(t, svc.Count())
	assert.Zero(t, emb.Calls())

	_, err = svc.Search(context.Background(), "", 1)
	assert.True(t, nexus.IsValidation(err))
}

func TestService_EmbedderFailure(t *testing.T) {
	svc, emb := newService(t)
	emb.Err = errors.New("connection refused")

	_, err := svc.Remember(context.Background(), "buy milk", nil, nil)
	require.Error(t, err)
	assert.True(t, nexus.IsUpstream(err))

	var ue *nexus.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, nexus.SourceMemory, ue.Source)
	assert.Zero(t, svc.Count())
}

func TestService_TiesPreferNewest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	clock := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	first, err := svc.Remember(ctx, "water the plants", nil, nil)
	require.NoError(t, err)
	second, err := svc.Remember(ctx, "water the plants", nil, nil)
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "water the plants", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, second.ID, hits[0].Entry.ID)
	assert.Equal(t, first.ID, hits[1].Entry.ID)
}

func TestService_TagsCleaned(t *testing.T) {
	svc, _ := newService(t)
	e, err := svc.Remember(context.Background(), "note", []string{" home ", "", "home", "todo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "todo"}, e.Tags)

	it := e.Item()
	assert.Equal(t, nexus.SourceMemory, it.Source)
	assert.Equal(t, "note", it.Title)
	assert.Nil(t, it.Rank)
}

func TestService_ConcurrentRememberAndSearch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Remember(ctx, "concurrent note", nil, nil)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Search(ctx, "note", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, svc.Count())
}

func TestService_MetadataPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	store, err := Open(path)
	require.NoError(t, err)
	svc := NewService(store, mock.New())

	e, err := svc.Remember(context.Background(), "parking spot B12", []string{"car"},
		nexus.Metadata{"floor": "basement", "level": float64(-2)})
	require.NoError(t, err)
	assert.Equal(t, nexus.Metadata{"floor": "basement", "level": float64(-2)}, e.Metadata)
	assert.Equal(t, e.Metadata, e.Item().Metadata)

	plain, err := svc.Remember(context.Background(), "no extras", nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, plain.Metadata)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, nexus.Metadata{"floor": "basement", "level": float64(-2)}, got.Metadata)

	got, err = reopened.Get(plain.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Metadata)
}

func TestOpen_UpgradesSchemaWithoutMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE memories (id TEXT PRIMARY KEY, text TEXT NOT NULL, tags TEXT NOT NULL DEFAULT '[]', embedding TEXT NOT NULL, created_at INTEGER NOT NULL)`,
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`INSERT INTO meta (key, value) VALUES ('dims', '2')`,
		`INSERT INTO memories (id, text, tags, embedding, created_at) VALUES ('old', 'legacy note', '["x"]', '[1,0]', 1)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get("old")
	require.NoError(t, err)
	assert.Equal(t, "legacy note", got.Text)
	assert.Empty(t, got.Metadata)

	require.NoError(t, store.Insert(context.Background(), Entry{
		ID: "new", Text: "fresh", CreatedAt: time.Now(), Embedding: []float32{0, 1},
		Metadata: nexus.Metadata{"k": "v"},
	}))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/effectmoe/contract-system/model"
	"github.com/effectmoe/contract-system/pkg/apperr"
)

// failingBackend fails every call, standing in for an unreachable database.
type failingBackend struct{ err error }

func (f failingBackend) List(context.Context) ([]*model.Contract, error) { return nil, f.err }
func (f failingBackend) Get(context.Context, string) (*model.Contract, error) {
	return nil, f.err
}
func (f failingBackend) Insert(context.Context, *model.Contract) error { return f.err }
func (f failingBackend) Update(context.Context, string, ContractPatch, time.Time) (*model.Contract, error) {
	return nil, f.err
}
func (f failingBackend) Delete(context.Context, string) (bool, error) { return false, f.err }
func (f failingBackend) AppendAudit(context.Context, string, model.AuditEntry) error {
	return f.err
}

func newTestRepo(t *testing.T, contracts ...*model.Contract) (*ContractRepository, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(0)
	for _, c := range contracts {
		require.NoError(t, store.Insert(context.Background(), c))
	}
	return NewContractRepository(store), store
}

func seqContracts(n int) []*model.Contract {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*model.Contract, n)
	for i := range out {
		out[i] = &model.Contract{
			ID:        fmt.Sprintf("c-%02d", i+1),
			Title:     fmt.Sprintf("Contract %02d", i+1),
			Status:    model.StatusDraft,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestRepositoryGetAndCreate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	c := &model.Contract{ID: "new-1", Title: "Service Agreement", Status: model.StatusDraft}
	require.NoError(t, repo.Create(ctx, c))
	assert.False(t, c.CreatedAt.IsZero())
	assert.False(t, c.UpdatedAt.IsZero())

	got, err := repo.Get(ctx, "new-1")
	require.NoError(t, err)
	assert.Equal(t, "Service Agreement", got.Title)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepo(t, seqContracts(1)...)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	title := "Renamed"
	updated, err := repo.Update(ctx, "c-01", ContractPatch{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, fixed, updated.UpdatedAt)

	// Not found: nil result, no error, nothing written.
	missing, err := repo.Update(ctx, "nope", ContractPatch{Title: &title})
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, 1, store.Count())
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, seqContracts(2)...)

	ok, err := repo.Delete(ctx, "c-01")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(ctx, "c-01")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, repo.GetAll(ctx), 1)
}

func TestRepositoryGetPaginated(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t, seqContracts(7)...)
	sortAsc := FilterSpec{SortBy: SortCreatedAt, SortOrder: SortAsc}

	tests := []struct {
		name    string
		page    int
		limit   int
		wantIDs []string
		want    Pagination
	}{
		{
			name: "first page", page: 1, limit: 3,
			wantIDs: []string{"c-01", "c-02", "c-03"},
			want:    Pagination{Page: 1, Limit: 3, Total: 7, TotalPages: 3, HasNext: true, HasPrev: false},
		},
		{
			name: "last partial page", page: 3, limit: 3,
			wantIDs: []string{"c-07"},
			want:    Pagination{Page: 3, Limit: 3, Total: 7, TotalPages: 3, HasNext: false, HasPrev: true},
		},
		{
			name: "past the end", page: 5, limit: 3,
			wantIDs: []string{},
			want:    Pagination{Page: 5, Limit: 3, Total: 7, TotalPages: 3, HasNext: false, HasPrev: true},
		},
		{
			name: "single page", page: 1, limit: 10,
			wantIDs: []string{"c-01", "c-02", "c-03", "c-04", "c-05", "c-06", "c-07"},
			want:    Pagination{Page: 1, Limit: 10, Total: 7, TotalPages: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := repo.GetPaginated(ctx, PageQuery{Page: tt.page, Limit: tt.limit, Filter: sortAsc})
			assert.Equal(t, tt.wantIDs, ids(page.Data))
			assert.Equal(t, tt.want, page.Pagination)
		})
	}
}

func TestRepositoryReadsDegradeOnBackendFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	repo := NewContractRepository(failingBackend{err: boom})

	assert.Empty(t, repo.GetAll(ctx))
	assert.Empty(t, repo.Search(ctx, FilterSpec{Query: "x"}))

	page := repo.GetPaginated(ctx, PageQuery{Page: 1, Limit: 10})
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Pagination.Total)
	assert.Equal(t, 0, page.Pagination.TotalPages)

	_, err := repo.Get(ctx, "c-1")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, repo.Create(ctx, &model.Contract{ID: "x"}), boom)
	_, err = repo.Update(ctx, "c-1", ContractPatch{})
	assert.ErrorIs(t, err, boom)
	_, err = repo.Delete(ctx, "c-1")
	assert.ErrorIs(t, err, boom)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Insert(ctx, &model.Contract{ID: "c-1", Title: "Original", Tags: []string{"a"}}))

	got, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	got.Title = "Mutated"
	got.Tags[0] = "b"

	again, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Original", again.Title)
	assert.Equal(t, []string{"a"}, again.Tags)

	assert.Error(t, store.Insert(ctx, &model.Contract{ID: "c-1"}), "duplicate id")
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	for _, c := range seqContracts(5) {
		require.NoError(t, store.Insert(ctx, c))
	}

	assert.Equal(t, 3, store.Count())
	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-03", "c-04", "c-05"}, ids(all))
}

func TestMemoryStoreConcurrentAudit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Insert(ctx, &model.Contract{ID: "c-1"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.AppendAudit(ctx, "c-1", model.AuditEntry{ID: fmt.Sprintf("e-%d", i)})
		}(i)
	}
	wg.Wait()

	c, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, c.AuditLog, 50)

	assert.ErrorIs(t, store.AppendAudit(ctx, "missing", model.AuditEntry{}), ErrContractNotFound)
}

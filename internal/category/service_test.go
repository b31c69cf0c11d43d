package category

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byID   map[int64]Category
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: map[int64]Category{}}
}

func (m *memoryRepo) List(ctx context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	for _, c := range m.byID {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, ErrCategoryNotFound
}

func (m *memoryRepo) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	for id, c := range m.byID {
		if c.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) Create(ctx context.Context, c *Category) error {
	m.nextID++
	c.ID = m.nextID
	m.byID[c.ID] = *c
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, c *Category) error {
	if _, ok := m.byID[c.ID]; !ok {
		return ErrCategoryNotFound
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(m.byID, id)
	return nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestCreateAllocatesUniqueSlug(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, Request{Title: "Web Projects"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, Request{Title: "Web projects!"})
	require.NoError(t, err)

	assert.Equal(t, "web-projects", a.Slug)
	assert.Equal(t, "web-projects-2", b.Slug)
}

func TestUpdateKeepsSlugWhenTitleUnchanged(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, Request{Title: "Retainers"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, c.Slug, Request{Title: "Retainers", Description: "monthly"})
	require.NoError(t, err)
	assert.Equal(t, "retainers", updated.Slug)
	assert.Equal(t, "monthly", updated.Description)

	renamed, err := svc.Update(ctx, c.Slug, Request{Title: "Monthly Retainers"})
	require.NoError(t, err)
	assert.Equal(t, "monthly-retainers", renamed.Slug)
}

func TestResolveID(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	c, err := svc.Create(ctx, Request{Title: "Hardware"})
	require.NoError(t, err)

	id, err := svc.ResolveID(ctx, "hardware")
	require.NoError(t, err)
	assert.Equal(t, c.ID, id)

	id, err = svc.ResolveID(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = svc.ResolveID(ctx, "missing")
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestCreateRequiresTitle(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), Request{})
	require.Error(t, err)
}

func TestHandlerRoutes(t *testing.T) {
	svc, repo := newTestService()
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/categories/", bytes.NewBufferString(`{"title":"Design"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"slug":"design"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories/design", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/categories/design", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.byID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories/design", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

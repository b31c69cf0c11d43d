package category

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sage-invoice/sage/internal/invoice"
)

// Service manages categories.
type Service struct {
	repo     Repository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a category service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		validate: invoice.NewValidator(),
		logger:   logger.With(slog.String("component", "category")),
	}
}

// List returns every category with its invoice count.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

// Get returns the category identified by slug.
func (s *Service) Get(ctx context.Context, slug string) (*Category, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// ResolveID maps a slug, or a numeric id, to a category id.
func (s *Service) ResolveID(ctx context.Context, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	c, err := s.repo.GetBySlug(ctx, ref)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// Create stores a new category under a unique slug derived from its title.
func (s *Service) Create(ctx context.Context, req Request) (*Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	c := &Category{Title: strings.TrimSpace(req.Title), Description: req.Description}
	slug, err := s.allocateSlug(ctx, c.Title, 0)
	if err != nil {
		return nil, err
	}
	c.Slug = slug
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.logger.Info("category created", slog.String("slug", c.Slug))
	return c, nil
}

// Update changes title and description; a new title produces a new slug.
func (s *Service) Update(ctx context.Context, slug string, req Request) (*Category, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	c, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title != c.Title {
		if c.Slug, err = s.allocateSlug(ctx, title, c.ID); err != nil {
			return nil, err
		}
	}
	c.Title = title
	c.Description = req.Description
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// Delete removes a category together with its invoices.
func (s *Service) Delete(ctx context.Context, slug string) error {
	c, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.Info("category deleted", slog.String("slug", slug), slog.Int("invoices", c.InvoiceCount))
	return nil
}

func (s *Service) allocateSlug(ctx context.Context, title string, excludeID int64) (string, error) {
	base := invoice.Slugify(title)
	candidate := base
	for n := 2; ; n++ {
		taken, err := s.repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("allocate slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

// Package category groups invoices under titled, slug-addressed categories.
package category

import (
	"fmt"
	"time"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

// Category groups related invoices.
type Category struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	InvoiceCount int       `json:"invoice_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Request creates or updates a category.
type Request struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
}

// ErrCategoryNotFound is returned for unknown slugs.
var ErrCategoryNotFound = fmt.Errorf("category %w", httpx.ErrNotFound)

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sage-invoice/sage/internal/app"
	"github.com/sage-invoice/sage/internal/category"
	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/platform/db"
	"github.com/sage-invoice/sage/internal/platform/httpx"
	"github.com/sage-invoice/sage/migrations"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// Seeded totals must be visible as soon as the script exits.
	cfg.TotalsMode = app.TotalsModeInline

	if err := db.MigrateUp(cfg.PGDSN, migrations.FS); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN, "sage-seed")
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	services := app.BuildServices(app.ServiceDeps{Config: cfg, Logger: app.NewLogger(cfg), Pool: pool})
	defer services.Close()

	fmt.Println("→ Seeding categories...")
	consulting, err := seedCategory(ctx, services.Categories, "Consulting", "Advisory and implementation work")
	if err != nil {
		log.Fatalf("seed categories: %v", err)
	}
	if _, err := seedCategory(ctx, services.Categories, "Licenses", "Recurring software licenses"); err != nil {
		log.Fatalf("seed categories: %v", err)
	}

	fmt.Println("→ Seeding invoices...")
	for _, req := range sampleInvoices(consulting.ID) {
		inv, err := services.Invoices.CreateInvoice(ctx, req)
		if err != nil {
			log.Fatalf("seed invoice %q: %v", req.Title, err)
		}
		fmt.Printf("  %s (%s)\n", inv.Slug, inv.TrackingCode)
	}
	fmt.Println("✓ Seed complete")
}

func seedCategory(ctx context.Context, svc *category.Service, title, description string) (*category.Category, error) {
	c, err := svc.Get(ctx, invoice.Slugify(title))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, httpx.ErrNotFound) {
		return nil, err
	}
	return svc.Create(ctx, category.Request{Title: title, Description: description})
}

func sampleInvoices(categoryID int64) []invoice.InvoiceRequest {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	tax := decimal.NewFromInt(10)
	discount := decimal.NewFromInt(5)
	return []invoice.InvoiceRequest{
		{
			Title:         "Platform migration",
			CategoryID:    &categoryID,
			InvoiceDate:   invoice.NewDate(today),
			DueDate:       invoice.NewDate(today.AddDate(0, 0, 30)),
			CustomerName:  "Acme Corp",
			Customer:      &invoice.CustomerRequest{Name: "Jane Roe", CompanyName: "Acme Corp", Email: "billing@acme.test"},
			Status:        invoice.StatusUnpaid,
			TaxPercentage: &tax,
			Items: []invoice.ItemRequest{
				{Description: "Discovery workshop", Quantity: 2, Measurement: "day", UnitPrice: decimal.NewFromInt(1200)},
				{Description: "Data migration", Quantity: 40, Measurement: "hour", UnitPrice: decimal.NewFromInt(95),
					Columns: []invoice.ColumnRequest{{ColumnName: "Phase", Value: "Two"}}},
			},
		},
		{
			Title:              "Annual support",
			InvoiceDate:        invoice.NewDate(today.AddDate(0, -2, 0)),
			DueDate:            invoice.NewDate(today.AddDate(0, -1, 0)),
			CustomerName:       "Globex",
			Contacts:           []string{"ap@globex.test", "5550100200"},
			Status:             invoice.StatusUnpaid,
			Receipt:            true,
			DiscountPercentage: &discount,
			Items: []invoice.ItemRequest{
				{Description: "Support plan. Priority response", Quantity: 1, UnitPrice: decimal.NewFromInt(4800)},
			},
		},
	}
}

// Package cli implements sagectl, the operator command line for Sage.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-invoice/sage/internal/invoice"
	"github.com/sage-invoice/sage/internal/templates"
)

// TemplateLister lists template choices.
type TemplateLister interface {
	Choices(ctx context.Context, receipt bool) ([]templates.Choice, error)
}

// InvoiceOps are the invoice operations exposed on the command line.
type InvoiceOps interface {
	RenderBySlug(ctx context.Context, slug string) (*invoice.Invoice, string, error)
	RecalculateTotals(ctx context.Context, invoiceID int64) error
	SweepOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
}

// Migrator applies schema migrations.
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
}

// Deps opens the collaborators of each command on demand, so commands that
// need no database never connect to one.
type Deps struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Templates func() (TemplateLister, error)
	Invoices  func(ctx context.Context) (InvoiceOps, func(), error)
	Migrator  func() (Migrator, error)
}

// NewRootCommand assembles the sagectl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "sagectl",
		Short:         "Operate a Sage invoicing deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)
	root.AddCommand(
		newTemplatesCommand(deps),
		newRenderCommand(deps),
		newRecalcCommand(deps),
		newSweepCommand(deps),
		newMigrateCommand(deps),
	)
	return root
}

// Execute runs sagectl with args and returns the process exit code.
func Execute(deps Deps, args []string) int {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := NewRootCommand(deps)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "sagectl: %v\n", err)
		return 1
	}
	return 0
}

package invoice

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sage-invoice/sage/internal/platform/db"
)

// memoryRepo is an in-memory Repository; a failed transaction restores the
// state captured when it began.
type memoryRepo struct {
	invoices  map[int64]Invoice
	customers map[int64]CustomerProfile
	items     map[int64]Item
	columns   map[int64]Column
	expenses  map[int64]Expense
	nextID    int64
	failOn    map[string]error
	commits   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices:  map[int64]Invoice{},
		customers: map[int64]CustomerProfile{},
		items:     map[int64]Item{},
		columns:   map[int64]Column{},
		expenses:  map[int64]Expense{},
		failOn:    map[string]error{},
	}
}

type memorySnapshot struct {
	invoices  map[int64]Invoice
	customers map[int64]CustomerProfile
	items     map[int64]Item
	columns   map[int64]Column
	expenses  map[int64]Expense
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	ctx, hooks := db.WithCommitHooks(ctx)
	snap := memorySnapshot{
		invoices:  cloneMap(m.invoices),
		customers: cloneMap(m.customers),
		items:     cloneMap(m.items),
		columns:   cloneMap(m.columns),
		expenses:  cloneMap(m.expenses),
	}
	if err := fn(ctx, m); err != nil {
		m.invoices, m.customers, m.items, m.columns, m.expenses = snap.invoices, snap.customers, snap.items, snap.columns, snap.expenses
		hooks.Discard()
		return err
	}
	m.commits++
	hooks.Run(ctx)
	return nil
}

func (m *memoryRepo) fail(op string) error {
	return m.failOn[op]
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	if inv.CustomerID != nil {
		if c, ok := m.customers[*inv.CustomerID]; ok {
			inv.Customer = &c
		}
	}
	inv.Items = nil
	inv.Expense = nil
	return &inv, nil
}

func (m *memoryRepo) GetInvoiceBySlug(ctx context.Context, slug string) (*Invoice, error) {
	for id, inv := range m.invoices {
		if inv.Slug == slug {
			return m.GetInvoice(ctx, id)
		}
	}
	return nil, ErrInvoiceNotFound
}

func (m *memoryRepo) LoadInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := m.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	items, _ := m.ListItems(ctx, id)
	for i := range items {
		items[i].Columns, _ = m.ListColumns(ctx, ColumnFilters{ItemID: items[i].ID})
	}
	inv.Items = items
	if e, ok := m.expenses[id]; ok {
		inv.Expense = &e
	}
	return inv, nil
}

func (m *memoryRepo) ListInvoices(ctx context.Context, f ListFilters) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			hay := strings.ToLower(inv.Title + " " + inv.TrackingCode + " " + inv.CustomerName)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.Receipt != nil && inv.Receipt != *f.Receipt {
			continue
		}
		if f.CategoryID != nil && (inv.CategoryID == nil || *inv.CategoryID != *f.CategoryID) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		switch f.Ordering {
		case "invoice_date":
			return out[i].InvoiceDate.Before(out[j].InvoiceDate)
		case "due_date":
			return out[i].DueDate.Before(out[j].DueDate)
		case "-due_date":
			return out[i].DueDate.After(out[j].DueDate)
		default:
			return out[i].InvoiceDate.After(out[j].InvoiceDate)
		}
	})
	total := len(out)
	if f.Offset > 0 && f.Offset < len(out) {
		out = out[f.Offset:]
	} else if f.Offset >= len(out) && f.Offset > 0 {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (m *memoryRepo) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	for id, inv := range m.invoices {
		if inv.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) GetItem(ctx context.Context, id int64) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &it, nil
}

func (m *memoryRepo) ListItems(ctx context.Context, invoiceID int64) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		if invoiceID == 0 || it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) GetColumn(ctx context.Context, id int64) (*Column, error) {
	c, ok := m.columns[id]
	if !ok {
		return nil, ErrColumnNotFound
	}
	return &c, nil
}

func (m *memoryRepo) ListColumns(ctx context.Context, f ColumnFilters) ([]Column, error) {
	var out []Column
	for _, c := range m.columns {
		if f.InvoiceID > 0 && c.InvoiceID != f.InvoiceID {
			continue
		}
		if f.ItemID > 0 && c.ItemID != f.ItemID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memoryRepo) GetExpense(ctx context.Context, id int64) (*Expense, error) {
	for _, e := range m.expenses {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, ErrExpenseNotFound
}

func (m *memoryRepo) GetExpenseByInvoice(ctx context.Context, invoiceID int64) (*Expense, error) {
	e, ok := m.expenses[invoiceID]
	if !ok {
		return nil, ErrExpenseNotFound
	}
	return &e, nil
}

func (m *memoryRepo) ListExpenses(ctx context.Context, limit, offset int) ([]Expense, error) {
	var out []Expense
	for _, e := range m.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepo) LockInvoice(ctx context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	return m.fail("LockInvoice")
}

func (m *memoryRepo) CreateCustomer(ctx context.Context, c *CustomerProfile) error {
	c.ID = m.id()
	m.customers[c.ID] = *c
	return nil
}

func (m *memoryRepo) UpdateCustomer(ctx context.Context, c *CustomerProfile) error {
	if _, ok := m.customers[c.ID]; !ok {
		return ErrCustomerNotFound
	}
	m.customers[c.ID] = *c
	return nil
}

func (m *memoryRepo) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if err := m.fail("CreateInvoice"); err != nil {
		return err
	}
	for _, other := range m.invoices {
		if other.TrackingCode == inv.TrackingCode {
			return ErrDuplicateTrackingCode
		}
	}
	inv.ID = m.id()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	stored := *inv
	stored.Items, stored.Expense, stored.Customer = nil, nil, nil
	m.invoices[inv.ID] = stored
	return nil
}

func (m *memoryRepo) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}
	for id, other := range m.invoices {
		if id != inv.ID && other.TrackingCode == inv.TrackingCode {
			return ErrDuplicateTrackingCode
		}
	}
	inv.UpdatedAt = time.Now()
	stored := *inv
	stored.Items, stored.Expense, stored.Customer = nil, nil, nil
	m.invoices[inv.ID] = stored
	return nil
}

func (m *memoryRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	m.invoices[id] = inv
	return nil
}

func (m *memoryRepo) TouchInvoice(ctx context.Context, id int64) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.UpdatedAt = time.Now()
	m.invoices[id] = inv
	return nil
}

func (m *memoryRepo) DeleteInvoice(ctx context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return ErrInvoiceNotFound
	}
	delete(m.invoices, id)
	delete(m.expenses, id)
	for itemID, it := range m.items {
		if it.InvoiceID == id {
			delete(m.items, itemID)
		}
	}
	for colID, c := range m.columns {
		if c.InvoiceID == id {
			delete(m.columns, colID)
		}
	}
	return nil
}

func (m *memoryRepo) MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	var ids []int64
	for id, inv := range m.invoices {
		if inv.Status == StatusUnpaid && civilDate(inv.DueDate).Before(civilDate(asOf)) {
			inv.Status = StatusOverdue
			m.invoices[id] = inv
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryRepo) CreateItem(ctx context.Context, it *Item) error {
	if err := m.fail("CreateItem"); err != nil {
		return err
	}
	if _, ok := m.invoices[it.InvoiceID]; !ok {
		return errors.New("fk violation: invoice")
	}
	it.ID = m.id()
	stored := *it
	stored.Columns = nil
	m.items[it.ID] = stored
	return nil
}

func (m *memoryRepo) UpdateItem(ctx context.Context, it *Item) error {
	if _, ok := m.items[it.ID]; !ok {
		return ErrItemNotFound
	}
	stored := *it
	stored.Columns = nil
	m.items[it.ID] = stored
	return nil
}

func (m *memoryRepo) DeleteItem(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, id)
	for colID, c := range m.columns {
		if c.ItemID == id {
			delete(m.columns, colID)
		}
	}
	return nil
}

func (m *memoryRepo) CreateColumn(ctx context.Context, c *Column) error {
	c.ID = m.id()
	m.columns[c.ID] = *c
	return nil
}

func (m *memoryRepo) UpdateColumn(ctx context.Context, c *Column) error {
	if _, ok := m.columns[c.ID]; !ok {
		return ErrColumnNotFound
	}
	m.columns[c.ID] = *c
	return nil
}

func (m *memoryRepo) DeleteColumn(ctx context.Context, id int64) error {
	if _, ok := m.columns[id]; !ok {
		return ErrColumnNotFound
	}
	delete(m.columns, id)
	return nil
}

func (m *memoryRepo) UpdateExpenseRates(ctx context.Context, invoiceID int64, r Rates) error {
	e, ok := m.expenses[invoiceID]
	if !ok {
		e = Expense{ID: m.id(), InvoiceID: invoiceID}
	}
	e.TaxPercentage, e.DiscountPercentage, e.ConcessionPercentage = r.Tax, r.Discount, r.Concession
	m.expenses[invoiceID] = e
	return nil
}

func (m *memoryRepo) SaveExpenseTotals(ctx context.Context, e *Expense) error {
	if err := m.fail("SaveExpenseTotals"); err != nil {
		return err
	}
	if current, ok := m.expenses[e.InvoiceID]; ok {
		e.ID = current.ID
	} else {
		e.ID = m.id()
	}
	m.expenses[e.InvoiceID] = *e
	return nil
}

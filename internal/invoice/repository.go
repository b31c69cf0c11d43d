package invoice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-invoice/sage/internal/platform/db"
	"github.com/sage-invoice/sage/internal/platform/httpx"
)

// ColumnFilters narrows column listings; zero values match everything.
type ColumnFilters struct {
	InvoiceID int64
	ItemID    int64
}

// Reader exposes read operations shared by the pool and transactions.
type Reader interface {
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceBySlug(ctx context.Context, slug string) (*Invoice, error)
	LoadInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filters ListFilters) ([]Invoice, int, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, invoiceID int64) ([]Item, error)
	GetColumn(ctx context.Context, id int64) (*Column, error)
	ListColumns(ctx context.Context, filters ColumnFilters) ([]Column, error)
	GetExpense(ctx context.Context, id int64) (*Expense, error)
	GetExpenseByInvoice(ctx context.Context, invoiceID int64) (*Expense, error)
	ListExpenses(ctx context.Context, limit, offset int) ([]Expense, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Reader
	LockInvoice(ctx context.Context, id int64) error
	CreateCustomer(ctx context.Context, customer *CustomerProfile) error
	UpdateCustomer(ctx context.Context, customer *CustomerProfile) error
	CreateInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error
	TouchInvoice(ctx context.Context, id int64) error
	DeleteInvoice(ctx context.Context, id int64) error
	MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id int64) error
	CreateColumn(ctx context.Context, column *Column) error
	UpdateColumn(ctx context.Context, column *Column) error
	DeleteColumn(ctx context.Context, id int64) error
	UpdateExpenseRates(ctx context.Context, invoiceID int64, rates Rates) error
	SaveExpenseTotals(ctx context.Context, expense *Expense) error
}

// Repository is the persistence contract used by Service.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository is the PostgreSQL implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
	store
}

// NewRepository constructs a repository backed by pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, store: store{q: pool}}
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &store{q: tx})
	})
}

type store struct {
	q querier
}

const invoiceSelect = `SELECT id, title, slug, category_id, invoice_date, due_date, customer_name, customer_id,
	contacts, tracking_code, status, receipt, notes, logo, signature, stamp, template_choice, currency,
	created_at, updated_at FROM invoices`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var (
		inv      Invoice
		status   string
		currency string
	)
	err := row.Scan(&inv.ID, &inv.Title, &inv.Slug, &inv.CategoryID, &inv.InvoiceDate, &inv.DueDate,
		&inv.CustomerName, &inv.CustomerID, &inv.Contacts, &inv.TrackingCode, &status, &inv.Receipt,
		&inv.Notes, &inv.Logo, &inv.Signature, &inv.Stamp, &inv.TemplateChoice, &currency,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inv.Status = Status(status)
	inv.Currency = Currency(currency)
	return &inv, nil
}

func (s *store) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(s.q.QueryRow(ctx, invoiceSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	if err := s.attachCustomer(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *store) GetInvoiceBySlug(ctx context.Context, slug string) (*Invoice, error) {
	inv, err := scanInvoice(s.q.QueryRow(ctx, invoiceSelect+` WHERE slug = $1`, slug))
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	if err := s.attachCustomer(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// LoadInvoice returns the full aggregate: customer, items with their columns
// ordered by priority, and the expense when one exists.
func (s *store) LoadInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	columns, err := s.ListColumns(ctx, ColumnFilters{InvoiceID: id})
	if err != nil {
		return nil, err
	}
	byItem := make(map[int64][]Column, len(items))
	for _, c := range columns {
		byItem[c.ItemID] = append(byItem[c.ItemID], c)
	}
	for i := range items {
		items[i].Columns = byItem[items[i].ID]
	}
	inv.Items = items

	expense, err := s.GetExpenseByInvoice(ctx, id)
	switch {
	case err == nil:
		inv.Expense = expense
	case errors.Is(err, ErrExpenseNotFound):
	default:
		return nil, err
	}
	return inv, nil
}

func (s *store) attachCustomer(ctx context.Context, inv *Invoice) error {
	if inv.CustomerID == nil {
		return nil
	}
	var c CustomerProfile
	err := s.q.QueryRow(ctx, `SELECT id, name, company_name, billing_address, shipping_address, phone, email, created_at, updated_at
		FROM customer_profiles WHERE id = $1`, *inv.CustomerID).
		Scan(&c.ID, &c.Name, &c.CompanyName, &c.BillingAddress, &c.ShippingAddress, &c.Contact.Phone, &c.Contact.Email, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return notFound(err, ErrCustomerNotFound)
	}
	inv.Customer = &c
	return nil
}

// ListInvoices uses a dynamic query due to filter complexity.
func (s *store) ListInvoices(ctx context.Context, filters ListFilters) ([]Invoice, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		p := arg("%" + search + "%")
		where = append(where, "(title ILIKE "+p+" OR tracking_code ILIKE "+p+" OR customer_name ILIKE "+p+")")
	}
	if filters.Status != "" {
		where = append(where, "status = "+arg(string(filters.Status)))
	}
	if filters.Receipt != nil {
		where = append(where, "receipt = "+arg(*filters.Receipt))
	}
	if filters.CategoryID != nil {
		where = append(where, "category_id = "+arg(*filters.CategoryID))
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	query := invoiceSelect + clause + " ORDER BY " + orderClause(filters.Ordering)
	if filters.Limit > 0 {
		query += " LIMIT " + arg(filters.Limit)
	}
	if filters.Offset > 0 {
		query += " OFFSET " + arg(filters.Offset)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

// orderClause maps the public ordering parameter onto SQL, defaulting to the
// newest invoice date first.
func orderClause(ordering string) string {
	switch ordering {
	case "invoice_date":
		return "invoice_date ASC, id ASC"
	case "due_date":
		return "due_date ASC, id ASC"
	case "-due_date":
		return "due_date DESC, id DESC"
	default:
		return "invoice_date DESC, id DESC"
	}
}

func (s *store) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE slug = $1 AND id <> $2)`, slug, excludeID).Scan(&exists)
	return exists, err
}

const itemSelect = `SELECT id, invoice_id, description, quantity, measurement, unit_price, total_price, created_at, updated_at FROM invoice_items`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.Measurement,
		&it.UnitPrice, &it.TotalPrice, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *store) GetItem(ctx context.Context, id int64) (*Item, error) {
	it, err := scanItem(s.q.QueryRow(ctx, itemSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrItemNotFound)
	}
	return it, nil
}

func (s *store) ListItems(ctx context.Context, invoiceID int64) ([]Item, error) {
	query := itemSelect
	args := []any{}
	if invoiceID > 0 {
		query += ` WHERE invoice_id = $1`
		args = append(args, invoiceID)
	}
	rows, err := s.q.Query(ctx, query+` ORDER BY invoice_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

const columnSelect = `SELECT id, invoice_id, item_id, column_name, value, priority, created_at, updated_at FROM invoice_columns`

func scanColumn(row pgx.Row) (*Column, error) {
	var c Column
	if err := row.Scan(&c.ID, &c.InvoiceID, &c.ItemID, &c.ColumnName, &c.Value, &c.Priority, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *store) GetColumn(ctx context.Context, id int64) (*Column, error) {
	c, err := scanColumn(s.q.QueryRow(ctx, columnSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrColumnNotFound)
	}
	return c, nil
}

func (s *store) ListColumns(ctx context.Context, filters ColumnFilters) ([]Column, error) {
	where := []string{"1=1"}
	args := []any{}
	if filters.InvoiceID > 0 {
		args = append(args, filters.InvoiceID)
		where = append(where, "invoice_id = $"+strconv.Itoa(len(args)))
	}
	if filters.ItemID > 0 {
		args = append(args, filters.ItemID)
		where = append(where, "item_id = $"+strconv.Itoa(len(args)))
	}
	rows, err := s.q.Query(ctx, columnSelect+` WHERE `+strings.Join(where, " AND ")+` ORDER BY item_id, priority, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()
	var out []Column
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const expenseSelect = `SELECT id, invoice_id, subtotal, tax_percentage, tax_amount, discount_percentage, discount_amount,
	concession_percentage, concession_amount, total_amount, created_at, updated_at FROM expenses`

func scanExpense(row pgx.Row) (*Expense, error) {
	var e Expense
	if err := row.Scan(&e.ID, &e.InvoiceID, &e.Subtotal, &e.TaxPercentage, &e.TaxAmount, &e.DiscountPercentage,
		&e.DiscountAmount, &e.ConcessionPercentage, &e.ConcessionAmount, &e.TotalAmount, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *store) GetExpense(ctx context.Context, id int64) (*Expense, error) {
	e, err := scanExpense(s.q.QueryRow(ctx, expenseSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, ErrExpenseNotFound)
	}
	return e, nil
}

func (s *store) GetExpenseByInvoice(ctx context.Context, invoiceID int64) (*Expense, error) {
	e, err := scanExpense(s.q.QueryRow(ctx, expenseSelect+` WHERE invoice_id = $1`, invoiceID))
	if err != nil {
		return nil, notFound(err, ErrExpenseNotFound)
	}
	return e, nil
}

func (s *store) ListExpenses(ctx context.Context, limit, offset int) ([]Expense, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx, expenseSelect+` ORDER BY id LIMIT $1 OFFSET $2`, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *store) LockInvoice(ctx context.Context, id int64) error {
	var locked int64
	err := s.q.QueryRow(ctx, `SELECT id FROM invoices WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return notFound(err, ErrInvoiceNotFound)
}

func (s *store) CreateCustomer(ctx context.Context, c *CustomerProfile) error {
	return s.q.QueryRow(ctx, `INSERT INTO customer_profiles (name, company_name, billing_address, shipping_address, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		c.Name, c.CompanyName, c.BillingAddress, c.ShippingAddress, c.Contact.Phone, c.Contact.Email).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (s *store) UpdateCustomer(ctx context.Context, c *CustomerProfile) error {
	tag, err := s.q.Exec(ctx, `UPDATE customer_profiles SET name = $2, company_name = $3, billing_address = $4,
		shipping_address = $5, phone = $6, email = $7, updated_at = NOW() WHERE id = $1`,
		c.ID, c.Name, c.CompanyName, c.BillingAddress, c.ShippingAddress, c.Contact.Phone, c.Contact.Email)
	return affected(tag, err, ErrCustomerNotFound)
}

func (s *store) CreateInvoice(ctx context.Context, inv *Invoice) error {
	err := s.q.QueryRow(ctx, `INSERT INTO invoices (title, slug, category_id, invoice_date, due_date, customer_name, customer_id,
		contacts, tracking_code, status, receipt, notes, logo, signature, stamp, template_choice, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`,
		inv.Title, inv.Slug, inv.CategoryID, inv.InvoiceDate, inv.DueDate, inv.CustomerName, inv.CustomerID,
		inv.Contacts, inv.TrackingCode, string(inv.Status), inv.Receipt, inv.Notes, inv.Logo, inv.Signature,
		inv.Stamp, inv.TemplateChoice, string(inv.Currency)).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	return translateWriteErr(err)
}

func (s *store) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	err := s.q.QueryRow(ctx, `UPDATE invoices SET title = $2, slug = $3, category_id = $4, invoice_date = $5, due_date = $6,
		customer_name = $7, customer_id = $8, contacts = $9, tracking_code = $10, status = $11, receipt = $12, notes = $13,
		logo = $14, signature = $15, stamp = $16, template_choice = $17, currency = $18, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		inv.ID, inv.Title, inv.Slug, inv.CategoryID, inv.InvoiceDate, inv.DueDate, inv.CustomerName, inv.CustomerID,
		inv.Contacts, inv.TrackingCode, string(inv.Status), inv.Receipt, inv.Notes, inv.Logo, inv.Signature,
		inv.Stamp, inv.TemplateChoice, string(inv.Currency)).
		Scan(&inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvoiceNotFound
	}
	return translateWriteErr(err)
}

func (s *store) UpdateInvoiceStatus(ctx context.Context, id int64, status Status) error {
	tag, err := s.q.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	return affected(tag, err, ErrInvoiceNotFound)
}

func (s *store) TouchInvoice(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `UPDATE invoices SET updated_at = NOW() WHERE id = $1`, id)
	return affected(tag, err, ErrInvoiceNotFound)
}

func (s *store) DeleteInvoice(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return affected(tag, err, ErrInvoiceNotFound)
}

func (s *store) MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := s.q.Query(ctx, `UPDATE invoices SET status = $1, updated_at = NOW()
		WHERE status = $2 AND due_date < $3 RETURNING id`, string(StatusOverdue), string(StatusUnpaid), civilDate(asOf))
	if err != nil {
		return nil, fmt.Errorf("mark overdue: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *store) CreateItem(ctx context.Context, it *Item) error {
	err := s.q.QueryRow(ctx, `INSERT INTO invoice_items (invoice_id, description, quantity, measurement, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		it.InvoiceID, it.Description, it.Quantity, it.Measurement, it.UnitPrice, it.TotalPrice).
		Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	return translateWriteErr(err)
}

func (s *store) UpdateItem(ctx context.Context, it *Item) error {
	tag, err := s.q.Exec(ctx, `UPDATE invoice_items SET description = $2, quantity = $3, measurement = $4,
		unit_price = $5, total_price = $6, updated_at = NOW() WHERE id = $1`,
		it.ID, it.Description, it.Quantity, it.Measurement, it.UnitPrice, it.TotalPrice)
	return affected(tag, err, ErrItemNotFound)
}

func (s *store) DeleteItem(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, id)
	return affected(tag, err, ErrItemNotFound)
}

func (s *store) CreateColumn(ctx context.Context, c *Column) error {
	err := s.q.QueryRow(ctx, `INSERT INTO invoice_columns (invoice_id, item_id, column_name, value, priority)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`,
		c.InvoiceID, c.ItemID, c.ColumnName, c.Value, c.Priority).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return translateWriteErr(err)
}

func (s *store) UpdateColumn(ctx context.Context, c *Column) error {
	tag, err := s.q.Exec(ctx, `UPDATE invoice_columns SET column_name = $2, value = $3, priority = $4, updated_at = NOW() WHERE id = $1`,
		c.ID, c.ColumnName, c.Value, c.Priority)
	return affected(tag, err, ErrColumnNotFound)
}

func (s *store) DeleteColumn(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM invoice_columns WHERE id = $1`, id)
	return affected(tag, err, ErrColumnNotFound)
}

func (s *store) UpdateExpenseRates(ctx context.Context, invoiceID int64, r Rates) error {
	_, err := s.q.Exec(ctx, `INSERT INTO expenses (invoice_id, tax_percentage, discount_percentage, concession_percentage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (invoice_id) DO UPDATE SET tax_percentage = EXCLUDED.tax_percentage,
			discount_percentage = EXCLUDED.discount_percentage,
			concession_percentage = EXCLUDED.concession_percentage,
			updated_at = NOW()`,
		invoiceID, r.Tax, r.Discount, r.Concession)
	return translateWriteErr(err)
}

func (s *store) SaveExpenseTotals(ctx context.Context, e *Expense) error {
	err := s.q.QueryRow(ctx, `INSERT INTO expenses (invoice_id, subtotal, tax_percentage, tax_amount, discount_percentage,
			discount_amount, concession_percentage, concession_amount, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (invoice_id) DO UPDATE SET subtotal = EXCLUDED.subtotal, tax_amount = EXCLUDED.tax_amount,
			discount_amount = EXCLUDED.discount_amount, concession_amount = EXCLUDED.concession_amount,
			total_amount = EXCLUDED.total_amount, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		e.InvoiceID, e.Subtotal, e.TaxPercentage, e.TaxAmount, e.DiscountPercentage, e.DiscountAmount,
		e.ConcessionPercentage, e.ConcessionAmount, e.TotalAmount).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return translateWriteErr(err)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

func affected(tag pgconn.CommandTag, err, sentinel error) error {
	if err != nil {
		return translateWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel
	}
	return nil
}

func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		if strings.Contains(pgErr.ConstraintName, "tracking_code") {
			return ErrDuplicateTrackingCode
		}
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, httpx.ErrDuplicate)
	case "23503":
		return fmt.Errorf("%w: referenced record does not exist (%s)", httpx.ErrValidation, pgErr.ConstraintName)
	case "23514":
		return fmt.Errorf("%w: check %s violated", httpx.ErrValidation, pgErr.ConstraintName)
	}
	return err
}

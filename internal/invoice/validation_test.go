package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

func TestValidateDates(t *testing.T) {
	sep1 := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ValidateDates(sep1, sep1))
	require.NoError(t, ValidateDates(sep1, sep1.AddDate(0, 0, 29)))
	require.NoError(t, ValidateDates(sep1.Add(20*time.Hour), sep1.Add(time.Hour)), "same calendar day")
	require.ErrorIs(t, ValidateDates(sep1, sep1.AddDate(0, 0, -1)), ErrDueBeforeInvoiceDate)
	require.ErrorIs(t, ValidateDates(time.Time{}, sep1), ErrDatesRequired)
	require.ErrorIs(t, ValidateDates(sep1, time.Time{}), ErrDatesRequired)
}

func TestCustomerProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile CustomerProfile
		wantErr error
	}{
		{name: "phone only", profile: CustomerProfile{Name: "A", Contact: Contact{Phone: "5551234567"}}},
		{name: "email only", profile: CustomerProfile{Name: "A", Contact: Contact{Email: "a@b.test"}}},
		{name: "no contact", profile: CustomerProfile{Name: "A"}, wantErr: ErrContactRequired},
		{name: "short phone", profile: CustomerProfile{Name: "A", Contact: Contact{Phone: "12345"}}, wantErr: httpx.ErrValidation},
		{name: "bad email", profile: CustomerProfile{Name: "A", Contact: Contact{Email: "nope"}}, wantErr: httpx.ErrValidation},
		{
			name: "non numeric postal code",
			profile: CustomerProfile{
				Name:           "A",
				Contact:        Contact{Email: "a@b.test"},
				BillingAddress: &Address{PostalCode: "AB12"},
			},
			wantErr: httpx.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestItemValidateUnitPricePrecision(t *testing.T) {
	tests := []struct {
		price string
		ok    bool
	}{
		{price: "100", ok: true},
		{price: "10.5", ok: true},
		{price: "1.99", ok: true},
		{price: "1.990", ok: true},
		{price: "1.999"},
		{price: "0.001"},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			it := Item{Description: "Design", Quantity: 3, UnitPrice: dec(tt.price)}
			err := it.Validate()
			if !tt.ok {
				require.ErrorIs(t, err, httpx.ErrValidation)
				return
			}
			require.NoError(t, err)
			it.Reprice()
			assert.True(t, it.TotalPrice.Equal(it.UnitPrice.Mul(dec("3"))))
		})
	}
}

func TestValidateRates(t *testing.T) {
	require.NoError(t, ValidateRates(Rates{Tax: dec("0"), Discount: dec("100"), Concession: dec("12.5")}))
	require.ErrorIs(t, ValidateRates(Rates{Discount: dec("-1")}), httpx.ErrValidation)
	require.ErrorIs(t, ValidateRates(Rates{Concession: dec("100.01")}), httpx.ErrValidation)
}

func TestInvoiceValidateRejectsUnknownStatusAndCurrency(t *testing.T) {
	base := Invoice{
		Title:        "T",
		CustomerName: "C",
		InvoiceDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DueDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Status:       StatusDraft,
		Currency:     DefaultCurrency,
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Status = "void"
	require.ErrorIs(t, bad.Validate(), ErrInvalidStatus)

	bad = base
	bad.Currency = "XXX"
	require.ErrorIs(t, bad.Validate(), ErrInvalidCurrency)
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList("3, 1,,7")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 7}, ids)

	ids, err = ParseIDList("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseIDList("1,abc")
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = ParseIDList("0")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDateUnmarshal(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-09-30"`)))
	assert.Equal(t, "2024-09-30", d.Format(dateLayout))

	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-09-30T23:15:00Z"`)))
	assert.Equal(t, "2024-09-30", d.Format(dateLayout))

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.True(t, d.IsZero())

	require.Error(t, d.UnmarshalJSON([]byte(`"30/09/2024"`)))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "consulting-september", Slugify("Consulting September"))
	assert.Equal(t, "cafe-creme-2024", Slugify("  Café   Crème -- 2024! "))
	assert.Equal(t, "invoice", Slugify("!!!"))
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"report": true, "report-2": true}
	slug, err := uniqueSlug("report", func(s string) (bool, error) { return taken[s], nil })
	require.NoError(t, err)
	assert.Equal(t, "report-3", slug)
}

func TestTrackingCodesUsePrefixFromShortCode(t *testing.T) {
	gen := NewTrackingCodes("INV")
	gen.intn = func(n int) int {
		assert.Equal(t, 8000, n)
		return 0
	}
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "QT-20240305-1000", gen.Ensure("qt", date))
	assert.Equal(t, "INV-20240305-1000", gen.Ensure("", date))
	assert.Equal(t, "ABCDEFGHIJ-20240305-1000", gen.Ensure("ABCDEFGHIJ", date), "ten characters still expand")
}

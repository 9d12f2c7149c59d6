package invoice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"invoicedesk/pkg/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateBasic(t *testing.T) {
	var d models.Deductions
	d.Set("retention", dec("100"))
	d.Set("tds", dec("20.50"))

	b := Calculate(Input{
		BasicAmount:   dec("1000"),
		GSTPercentage: "18%",
		Deductions:    d,
		AmountPaid:    dec("500"),
		Status:        models.StatusUnderProcess,
	})

	assert.Equal(t, "180.00", b.GSTAmount.StringFixed(2))
	assert.Equal(t, "1180.00", b.TotalAmount.StringFixed(2))
	assert.Equal(t, "120.50", b.TotalDeduction.StringFixed(2))
	assert.Equal(t, "1059.50", b.NetPayable.StringFixed(2))
	assert.Equal(t, "500.00", b.EffectiveAmountPaid.StringFixed(2))
	assert.Equal(t, "559.50", b.Balance.StringFixed(2))
	assert.False(t, b.Terminal)
}

func TestCalculateGSTRules(t *testing.T) {
	tests := []struct {
		name  string
		basic string
		gst   string
		want  string
	}{
		{"no percentage", "1000", "", "0"},
		{"zero basic", "0", "18%", "0"},
		{"negative basic", "-100", "18%", "0"},
		{"five percent", "333.33", "5%", "16.67"},
		{"twelve percent", "100", "12%", "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Calculate(Input{BasicAmount: dec(tt.basic), GSTPercentage: tt.gst})
			assert.True(t, b.GSTAmount.Equal(dec(tt.want)), "got %s", b.GSTAmount)
		})
	}
}

func TestCalculateTerminalStatusZeroesPayable(t *testing.T) {
	var d models.Deductions
	d.Set("penalty", dec("5000"))

	for _, status := range []models.Status{models.StatusCancelled, models.StatusCreditNoteIssued} {
		t.Run(string(status), func(t *testing.T) {
			b := Calculate(Input{
				BasicAmount:   dec("2500"),
				GSTPercentage: "18%",
				Deductions:    d,
				AmountPaid:    dec("99999"),
				Status:        status,
			})
			assert.True(t, b.NetPayable.IsZero())
			assert.True(t, b.Balance.IsZero())
			assert.True(t, b.EffectiveAmountPaid.Equal(b.NetPayable))
			assert.True(t, b.Terminal)
			assert.Equal(t, "2950.00", b.TotalAmount.StringFixed(2))
		})
	}
}

func TestCalculateSumOfDeductions(t *testing.T) {
	var d models.Deductions
	want := decimal.Zero
	for i, f := range models.DeductionFields {
		v := decimal.NewFromFloat(float64(i) + 0.25)
		d.Set(f.Key, v)
		want = want.Add(v)
	}

	b := Calculate(Input{Deductions: d})
	assert.True(t, b.TotalDeduction.Equal(models.Round2(want)))

	empty := Calculate(Input{})
	assert.True(t, empty.TotalDeduction.IsZero())
}

func TestCalculateIsIdempotent(t *testing.T) {
	in := Input{
		BasicAmount:   dec("1234.567"),
		GSTPercentage: "12%",
		AmountPaid:    dec("10"),
		Status:        models.StatusPaid,
	}
	first := Calculate(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Calculate(in))
	}
}

func TestBreakdownDisplayFloorsNegatives(t *testing.T) {
	var d models.Deductions
	d.Set("otherDeduction", dec("2000"))

	b := Calculate(Input{BasicAmount: dec("1000"), Deductions: d, AmountPaid: dec("50")})
	assert.True(t, b.NetPayable.Equal(dec("-1000")))
	assert.True(t, b.Balance.Equal(dec("-1050")))

	shown := b.Display()
	assert.True(t, shown.NetPayable.IsZero())
	assert.True(t, shown.Balance.IsZero())
	assert.True(t, shown.TotalAmount.Equal(dec("1000")))
}

func TestRecalculateFromInvoice(t *testing.T) {
	inv := models.Invoice{
		BasicAmount:        models.NewAmount(dec("5000")),
		GSTPercentage:      "0%",
		AmountPaidByClient: models.NewAmount(dec("5000")),
		Status:             models.StatusPaid,
	}
	b := Recalculate(inv)
	assert.True(t, b.Balance.IsZero())
	assert.True(t, b.NetPayable.Equal(dec("5000")))
}

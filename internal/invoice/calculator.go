// Package invoice derives the computed amounts of an invoice and gates form
// submissions.
//
// Calculate is pure: the same Input always yields the same Breakdown. The
// Breakdown carries the unfloored values sent to the backend (rounded to two
// decimals); Display returns the presentation form where nothing is shown
// below zero.
package invoice

import (
	"github.com/shopspring/decimal"

	"invoicedesk/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// Input is the raw state of the invoice form relevant to the amounts.
type Input struct {
	BasicAmount   decimal.Decimal
	GSTPercentage string
	Deductions    models.Deductions
	AmountPaid    decimal.Decimal
	Status        models.Status
}

// Breakdown holds every derived amount of an invoice.
type Breakdown struct {
	GSTAmount           decimal.Decimal `json:"invoiceGstAmount"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	TotalDeduction      decimal.Decimal `json:"totalDeduction"`
	NetPayable          decimal.Decimal `json:"netPayable"`
	EffectiveAmountPaid decimal.Decimal `json:"amountPaidByClient"`
	Balance             decimal.Decimal `json:"balance"`
	Terminal            bool            `json:"terminal"`
}

// Calculate derives GST, totals, net payable and balance.
//
// Credit-noted and cancelled invoices carry nothing payable: net payable and
// balance are zero and the effective amount paid equals net payable.
func Calculate(in Input) Breakdown {
	gst := decimal.Zero
	if in.BasicAmount.IsPositive() && in.GSTPercentage != "" {
		gst = in.BasicAmount.Mul(models.ParsePercent(in.GSTPercentage)).Div(hundred)
	}
	total := in.BasicAmount.Add(gst)
	deductions := in.Deductions.Sum()

	terminal := in.Status.IsTerminal()
	net := total.Sub(deductions)
	paid := in.AmountPaid
	balance := net.Sub(paid)
	if terminal {
		net = decimal.Zero
		paid = net
		balance = decimal.Zero
	}

	return Breakdown{
		GSTAmount:           models.Round2(gst),
		TotalAmount:         models.Round2(total),
		TotalDeduction:      models.Round2(deductions),
		NetPayable:          models.Round2(net),
		EffectiveAmountPaid: models.Round2(paid),
		Balance:             models.Round2(balance),
		Terminal:            terminal,
	}
}

// Display returns the breakdown with every amount floored at zero.
func (b Breakdown) Display() Breakdown {
	return Breakdown{
		GSTAmount:           models.Floor0(b.GSTAmount),
		TotalAmount:         models.Floor0(b.TotalAmount),
		TotalDeduction:      models.Floor0(b.TotalDeduction),
		NetPayable:          models.Floor0(b.NetPayable),
		EffectiveAmountPaid: models.Floor0(b.EffectiveAmountPaid),
		Balance:             models.Floor0(b.Balance),
		Terminal:            b.Terminal,
	}
}

// Recalculate re-derives the stored aggregates of an existing invoice, for
// example before re-submitting an edited record.
func Recalculate(inv models.Invoice) Breakdown {
	return Calculate(Input{
		BasicAmount:   inv.BasicAmount.Decimal,
		GSTPercentage: inv.GSTPercentage,
		Deductions:    inv.Deductions,
		AmountPaid:    inv.AmountPaidByClient.Decimal,
		Status:        inv.Status,
	})
}

package core

// rates.go accumulates document-level tax and discount amounts.
//
// Each row of a merged document may carry a "tax" and a "discount" amount.
// They are summed per document. A rate no row supplied is left out entirely,
// which keeps an upsert from overwriting an existing value with zero.
//
// Early-payment terms such as "2% 10 NET 30" add a second discount worth
// 2% of the subtotal that expires 10 days after the document date. That
// entry is the only one carrying "expires".

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	earlyTermsRegex = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*%\s*(\d+)\s+NET\s*(\d+)\s*$`)
	netTermsRegex   = regexp.MustCompile(`(?i)^\s*NET\s*(\d+)\s*$`)
)

// Rates holds the summed document-level amounts. Nil means not provided.
type Rates struct {
	Tax      *decimal.Decimal
	Discount *decimal.Decimal
}

// AccumulateRates sums "tax" and "discount" across the rows of one document.
func AccumulateRates(rows []*Object) Rates {
	var rates Rates
	for _, row := range rows {
		if d, ok := row.Decimal("tax"); ok {
			rates.Tax = addRate(rates.Tax, d)
		}
		if d, ok := row.Decimal("discount"); ok {
			rates.Discount = addRate(rates.Discount, d)
		}
	}
	return rates
}

func addRate(sum *decimal.Decimal, d decimal.Decimal) *decimal.Decimal {
	if sum == nil {
		return &d
	}
	total := sum.Add(d)
	return &total
}

// PaymentTerms is a parsed terms string.
type PaymentTerms struct {
	DiscountPercent decimal.Decimal
	DiscountDays    int
	NetDays         int
	HasDiscount     bool
}

// ParsePaymentTerms understands "NET 30" and "2% 10 NET 30".
func ParsePaymentTerms(s string) (PaymentTerms, bool) {
	if m := earlyTermsRegex.FindStringSubmatch(s); m != nil {
		pct, err := decimal.NewFromString(m[1])
		if err != nil {
			return PaymentTerms{}, false
		}
		d1, _ := strconv.Atoi(m[2])
		d2, _ := strconv.Atoi(m[3])
		return PaymentTerms{DiscountPercent: pct, DiscountDays: d1, NetDays: d2, HasDiscount: true}, true
	}
	if m := netTermsRegex.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		return PaymentTerms{NetDays: d}, true
	}
	return PaymentTerms{}, false
}

// EarlyPaymentDiscount returns the discount earned by paying within the
// discount window, rounded to cents, and when that window closes.
func (t PaymentTerms) EarlyPaymentDiscount(subtotal decimal.Decimal, date time.Time) (decimal.Decimal, time.Time) {
	amount := subtotal.Mul(t.DiscountPercent).Div(decimal.NewFromInt(100)).Round(2)
	return amount, date.AddDate(0, 0, t.DiscountDays)
}

// Subtotal sums quantity * unit_cost (or amount) over line entries.
func Subtotal(lines *List) decimal.Decimal {
	total := decimal.Zero
	if lines == nil {
		return total
	}
	for _, line := range lines.Objects() {
		if amt, ok := line.Decimal("amount"); ok {
			total = total.Add(amt)
			continue
		}
		cost, ok := line.Decimal("unit_cost")
		if !ok {
			continue
		}
		qty, ok := line.Decimal("quantity")
		if !ok {
			qty = decimal.NewFromInt(1)
		}
		total = total.Add(cost.Mul(qty))
	}
	return total
}

// applyRates writes the accumulated amounts and the early-payment discount
// onto the merged record.
func applyRates(def Definition, fields *Object, rows []*Object) {
	if def.Rates {
		rates := AccumulateRates(rows)
		fields.Delete("tax")
		fields.Delete("discount")

		discounts := NewList()
		if rates.Discount != nil {
			discounts.Append(amountEntry(*rates.Discount))
		}
		if def.Terms {
			if entry := termsDiscount(def, fields); entry != nil {
				discounts.Append(entry)
			}
		}
		if discounts.Len() > 0 {
			fields.Set("discounts", discounts)
		}
		if rates.Tax != nil {
			fields.Set("taxes", NewList(amountEntry(*rates.Tax)))
		}
		return
	}

	if def.Terms {
		if entry := termsDiscount(def, fields); entry != nil {
			fields.Set("discounts", NewList(entry))
		}
	}
}

// termsDiscount parses payment_terms, fills in a missing due date and
// returns the synthetic early-payment discount if the terms grant one.
func termsDiscount(def Definition, fields *Object) *Object {
	terms, ok := ParsePaymentTerms(strings.TrimSpace(fields.String("payment_terms")))
	if !ok {
		return nil
	}
	date, ok := fields.Time("date")
	if !ok {
		return nil
	}

	if !fields.Has("due_date") {
		fields.Set("due_date", TimeValue(date.AddDate(0, 0, terms.NetDays)))
	}
	if !terms.HasDiscount {
		return nil
	}

	var lines *List
	if def.Lines != nil {
		lines, _ = fields.List(def.Lines.Key)
	}
	amount, expires := terms.EarlyPaymentDiscount(Subtotal(lines), date)
	entry := amountEntry(amount)
	entry.Set("expires", TimeValue(expires))
	return entry
}

func amountEntry(d decimal.Decimal) *Object {
	obj := NewObject()
	obj.Set("amount", NumberValue(d))
	return obj
}

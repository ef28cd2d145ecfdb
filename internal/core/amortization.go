package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Installment is one period of a computed schedule.
type Installment struct {
	Sequence         int
	DueDate          time.Time
	Principal        decimal.Decimal
	Interest         decimal.Decimal
	RemainingBalance decimal.Decimal
}

func (i Installment) Total() decimal.Decimal { return i.Principal.Add(i.Interest) }

var monthsPerYear = decimal.NewFromInt(12)

// ComputeSchedule returns the installments for a loan of principal at
// annualRatePercent over periods monthly installments.
//
// The periodic rate is annualRatePercent/100/12 and installment i falls due i
// calendar months after start, whatever the loan's tenure plan. Every period's
// figures are rounded to cents as they are produced while the running balance
// keeps full precision, so the last remaining balance may sit a cent off zero.
func ComputeSchedule(principal, annualRatePercent decimal.Decimal, periods int, start time.Time, method AmortizationMethod) ([]Installment, error) {
	if !annualRatePercent.IsPositive() {
		return nil, configErr(ErrInvalidRate, "interest rate must be greater than zero, got %s%%", annualRatePercent)
	}
	if periods <= 0 {
		return nil, validationErr(ErrOutOfBounds, "tenure", "tenure must be greater than zero, got %d", periods)
	}
	if !principal.IsPositive() {
		return nil, validationErr(ErrOutOfBounds, "amount", "amount must be greater than zero, got %s", principal)
	}

	rate := annualRatePercent.Div(hundred).Div(monthsPerYear)
	start = DateOnly(start)
	remaining := principal
	schedule := make([]Installment, 0, periods)

	switch method {
	case French:
		// P = principal * r / (1 - (1+r)^-n)
		r := rate.InexactFloat64()
		factor := 1 - math.Pow(1+r, -float64(periods))
		payment := principal.Mul(rate).Div(decimal.NewFromFloat(factor))

		for i := 1; i <= periods; i++ {
			interest := remaining.Mul(rate)
			capital := payment.Sub(interest)
			schedule = append(schedule, installment(i, start, capital, interest, remaining))
			remaining = remaining.Sub(capital)
		}

	case German:
		capital := principal.Div(decimal.NewFromInt(int64(periods)))

		for i := 1; i <= periods; i++ {
			interest := remaining.Mul(rate)
			schedule = append(schedule, installment(i, start, capital, interest, remaining))
			remaining = remaining.Sub(capital)
		}

	default:
		return nil, validationErr(ErrInvalidInput, "amortization_method", "unsupported amortization method %s", method)
	}

	return schedule, nil
}

func installment(seq int, start time.Time, capital, interest, remaining decimal.Decimal) Installment {
	return Installment{
		Sequence:         seq,
		DueDate:          AddMonths(start, seq),
		Principal:        capital.Round(2),
		Interest:         interest.Round(2),
		RemainingBalance: remaining.Sub(capital).Round(2),
	}
}

// AddMonths steps t forward by n calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// DateOnly drops the clock part of t, keeping its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

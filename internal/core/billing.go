package core

// period describes one billing period and how it maps onto a month.
// Both NextBillingDate and NormalizedMonthlyAmount read from this table.
type period struct {
	days, months int
	// monthly = amount * perMonthMul / perMonthDiv
	perMonthMul, perMonthDiv float64
}

var periods = map[Frequency]period{
	Weekly:     {days: 7, perMonthMul: 4, perMonthDiv: 1},
	Monthly:    {months: 1, perMonthMul: 1, perMonthDiv: 1},
	Quarterly:  {months: 3, perMonthMul: 1, perMonthDiv: 3},
	SemiAnnual: {months: 6, perMonthMul: 1, perMonthDiv: 6},
	Annual:     {months: 12, perMonthMul: 1, perMonthDiv: 12},
	// Treated as monthly until custom intervals exist.
	Custom: {months: 1, perMonthMul: 1, perMonthDiv: 1},
}

func periodOf(f Frequency) period {
	if p, ok := periods[f]; ok {
		return p
	}
	return periods[Custom]
}

// NextBillingDate advances current by exactly one period of f.
func NextBillingDate(current Date, f Frequency) Date {
	p := periodOf(f)
	if p.days > 0 {
		return current.AddDays(p.days)
	}
	return current.AddMonths(p.months)
}

// NormalizedMonthlyAmount converts amount billed at f into a monthly
// figure using a fixed four-weeks-per-month approximation.
func NormalizedMonthlyAmount(amount float64, f Frequency) float64 {
	p := periodOf(f)
	return amount * p.perMonthMul / p.perMonthDiv
}

// MonthlyAmount is NormalizedMonthlyAmount applied to s.
func (s Subscription) MonthlyAmount() float64 {
	return NormalizedMonthlyAmount(s.Amount.Major(), s.Frequency)
}

// MarkPaid advances the next billing date by one period. The start date
// is left untouched.
func (s Subscription) MarkPaid() Subscription {
	s.NextBillingDate = NextBillingDate(s.NextBillingDate, s.Frequency)
	return s
}

package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Weekly     Frequency = "WEEKLY"
	Monthly    Frequency = "MONTHLY"
	Quarterly  Frequency = "QUARTERLY"
	SemiAnnual Frequency = "SEMI_ANNUAL"
	Annual     Frequency = "ANNUAL"
	Custom     Frequency = "CUSTOM"
)

const (
	Streaming  Category = "STREAMING"
	Magazine   Category = "MAGAZINE"
	Service    Category = "SERVICE"
	Membership Category = "MEMBERSHIP"
	Club       Category = "CLUB"
	Utility    Category = "UTILITY"
	Software   Category = "SOFTWARE"
	OtherType  Category = "OTHER"
)

const (
	Visa         PaymentType = "VISA"
	Mastercard   PaymentType = "MASTERCARD"
	Discover     PaymentType = "DISCOVER"
	Amex         PaymentType = "AMEX"
	PayPal       PaymentType = "PAYPAL"
	Venmo        PaymentType = "VENMO"
	CashApp      PaymentType = "CASHAPP"
	Affirm       PaymentType = "AFFIRM"
	Klarna       PaymentType = "KLARNA"
	DebitCard    PaymentType = "DEBIT_CARD"
	BankTransfer PaymentType = "BANK_TRANSFER"
	Cash         PaymentType = "CASH"
	OtherPayment PaymentType = "OTHER"
)

const (
	DefaultCurrency           = "USD"
	DefaultReminderDaysBefore = 2
	MaxReminderDaysBefore     = 30
)

type (
	Frequency   string
	Category    string
	PaymentType string

	Date struct {
		time.Time
	}

	// Money is an amount in minor units of Currency.
	Money struct {
		Cents    int64  `json:"cents" validate:"gt=0"`
		Currency string `json:"currency" validate:"len=3,alpha"`
	}

	Subscription struct {
		ID                 string    `json:"id"`
		Name               string    `json:"name" validate:"notblank,max=200"`
		Category           Category  `json:"type" validate:"enum"`
		Amount             Money     `json:"amount"`
		Frequency          Frequency `json:"frequency" validate:"enum"`
		StartDate          Date      `json:"startDate" validate:"required"`
		NextBillingDate    Date      `json:"nextBillingDate" validate:"required"`
		PaymentMethodID    string    `json:"paymentMethodId,omitempty"`
		Notes              string    `json:"notes,omitempty" validate:"max=2000"`
		Active             bool      `json:"isActive"`
		ReminderDaysBefore int       `json:"reminderDaysBefore" validate:"min=0,max=30"`
	}

	PaymentMethod struct {
		ID             string      `json:"id"`
		Nickname       string      `json:"nickname" validate:"notblank,max=100"`
		Type           PaymentType `json:"type" validate:"enum"`
		LastFourDigits string      `json:"lastFourDigits,omitempty" validate:"omitempty,len=4,digits"`
		Icon           string      `json:"icon,omitempty"`
	}

	// PaymentMethodUsage pairs a payment method with the number of
	// subscriptions referencing it.
	PaymentMethodUsage struct {
		PaymentMethod
		SubscriptionCount int `json:"subscriptionCount"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

var (
	frequencies  = []Frequency{Weekly, Monthly, Quarterly, SemiAnnual, Annual, Custom}
	categories   = []Category{Streaming, Magazine, Service, Membership, Club, Utility, Software, OtherType}
	paymentTypes = []PaymentType{Visa, Mastercard, Discover, Amex, PayPal, Venmo, CashApp, Affirm, Klarna, DebitCard, BankTransfer, Cash, OtherPayment}
)

func Frequencies() []Frequency    { return append([]Frequency(nil), frequencies...) }
func Categories() []Category      { return append([]Category(nil), categories...) }
func PaymentTypes() []PaymentType { return append([]PaymentType(nil), paymentTypes...) }

func (f Frequency) IsValid() bool {
	for _, v := range frequencies {
		if v == f {
			return true
		}
	}
	return false
}

func (c Category) IsValid() bool {
	for _, v := range categories {
		if v == c {
			return true
		}
	}
	return false
}

func (p PaymentType) IsValid() bool {
	for _, v := range paymentTypes {
		if v == p {
			return true
		}
	}
	return false
}

// Label returns a human readable form, e.g. SEMI_ANNUAL -> "Semi Annual".
func (f Frequency) Label() string   { return label(string(f)) }
func (c Category) Label() string    { return label(string(c)) }
func (p PaymentType) Label() string { return label(string(p)) }

func label(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonths adds n calendar months, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28 or 29).
func (d Date) AddMonths(n int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}

// DaysUntil returns the number of whole calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	a := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(other.Year(), other.Month(), other.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Major returns the amount in major units for display and aggregation.
// Use Cents for storage and comparisons.
func (m Money) Major() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	return fmt.Sprintf("%s %.2f", m.Currency, m.Major())
}

// Normalize trims user input and applies defaults before validation.
func (s *Subscription) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Notes = strings.TrimSpace(s.Notes)
	s.PaymentMethodID = strings.TrimSpace(s.PaymentMethodID)
	s.Amount.Currency = strings.ToUpper(strings.TrimSpace(s.Amount.Currency))
	if s.Amount.Currency == "" {
		s.Amount.Currency = DefaultCurrency
	}
}

func (s Subscription) Validate() error {
	return validateStruct(s)
}

// HasPaymentMethod reports whether the subscription references a payment method.
func (s Subscription) HasPaymentMethod() bool {
	return s.PaymentMethodID != ""
}

func (p *PaymentMethod) Normalize() {
	p.Nickname = strings.TrimSpace(p.Nickname)
	p.LastFourDigits = strings.TrimSpace(p.LastFourDigits)
}

func (p PaymentMethod) Validate() error {
	return validateStruct(p)
}

// MaskedDigits renders the last four digits as "•••• 1234".
func (p PaymentMethod) MaskedDigits() string {
	if p.LastFourDigits == "" {
		return ""
	}
	return "•••• " + p.LastFourDigits
}

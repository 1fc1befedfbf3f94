package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"subly/internal/core"
)

const (
	CollectionSubscriptions  = "subscriptions"
	CollectionPaymentMethods = "paymentMethods"

	FieldUpdatedAt = "updatedAt"
)

var ErrMalformedDocument = errors.New("malformed document")

// Document is a flat map of primitive scalars: string, bool, int64,
// float64, time.Time or nil.
type Document map[string]any

// FieldKind is the scalar type a document field is written with.
type FieldKind int

const (
	KindString FieldKind = iota + 1
	KindBool
	KindInteger
	KindDouble
	KindTimestamp
)

var fieldKinds = map[string]map[string]FieldKind{
	CollectionSubscriptions: {
		"id":                 KindString,
		"name":               KindString,
		"type":               KindString,
		"amount":             KindDouble,
		"currency":           KindString,
		"frequency":          KindString,
		"startDate":          KindString,
		"nextBillingDate":    KindString,
		"paymentMethodId":    KindString,
		"notes":              KindString,
		"isActive":           KindBool,
		"reminderDaysBefore": KindInteger,
		FieldUpdatedAt:       KindTimestamp,
	},
	CollectionPaymentMethods: {
		"id":             KindString,
		"nickname":       KindString,
		"type":           KindString,
		"lastFourDigits": KindString,
		FieldUpdatedAt:   KindTimestamp,
	},
}

// FieldKinds returns the field types of documents in collection. Backends
// whose wire format cannot tell a zero value from an untyped one decode
// through it.
func FieldKinds(collection string) map[string]FieldKind {
	return fieldKinds[collection]
}

// DocumentPath returns the slash separated location of a document.
func DocumentPath(uid, collection, id string) string {
	return CollectionPath(uid, collection) + "/" + id
}

func CollectionPath(uid, collection string) string {
	return "users/" + uid + "/" + collection
}

// UpdatedAt returns the server-assigned update time, if present.
func (d Document) UpdatedAt() time.Time {
	t, _ := d[FieldUpdatedAt].(time.Time)
	return t
}

func SubscriptionDocument(s core.Subscription) Document {
	var pm any
	if s.PaymentMethodID != "" {
		pm = s.PaymentMethodID
	}
	return Document{
		"id":                 s.ID,
		"name":               s.Name,
		"type":               string(s.Category),
		"amount":             s.Amount.Major(),
		"currency":           s.Amount.Currency,
		"frequency":          string(s.Frequency),
		"startDate":          s.StartDate.String(),
		"nextBillingDate":    s.NextBillingDate.String(),
		"paymentMethodId":    pm,
		"notes":              s.Notes,
		"isActive":           s.Active,
		"reminderDaysBefore": int64(s.ReminderDaysBefore),
	}
}

// PaymentMethodDocument encodes pm without its icon, which only makes sense
// on the device that set it.
func PaymentMethodDocument(pm core.PaymentMethod) Document {
	var digits any
	if pm.LastFourDigits != "" {
		digits = pm.LastFourDigits
	}
	return Document{
		"id":             pm.ID,
		"nickname":       pm.Nickname,
		"type":           string(pm.Type),
		"lastFourDigits": digits,
	}
}

func SubscriptionFromDocument(d Document) (core.Subscription, error) {
	var s core.Subscription
	var err error

	if s.ID, err = d.requireString("id"); err != nil {
		return s, err
	}
	if s.Name, err = d.requireString("name"); err != nil {
		return s, err
	}
	category, err := d.requireString("type")
	if err != nil {
		return s, err
	}
	s.Category = core.Category(category)
	if !s.Category.IsValid() {
		return s, fmt.Errorf("%w: unknown type %q", ErrMalformedDocument, category)
	}
	freq, err := d.requireString("frequency")
	if err != nil {
		return s, err
	}
	s.Frequency = core.Frequency(freq)
	if !s.Frequency.IsValid() {
		return s, fmt.Errorf("%w: unknown frequency %q", ErrMalformedDocument, freq)
	}
	amount, err := d.number("amount")
	if err != nil {
		return s, err
	}
	s.Amount = core.Money{Cents: core.CentsFromMajor(amount), Currency: d.optionalString("currency")}
	if s.Amount.Currency == "" {
		s.Amount.Currency = core.DefaultCurrency
	}
	if s.StartDate, err = d.date("startDate"); err != nil {
		return s, err
	}
	if s.NextBillingDate, err = d.date("nextBillingDate"); err != nil {
		return s, err
	}
	s.PaymentMethodID = d.optionalString("paymentMethodId")
	s.Notes = d.optionalString("notes")
	s.Active = true
	if v, ok := d["isActive"].(bool); ok {
		s.Active = v
	}
	s.ReminderDaysBefore = core.DefaultReminderDaysBefore
	if _, ok := d["reminderDaysBefore"]; ok {
		days, err := d.number("reminderDaysBefore")
		if err != nil {
			return s, err
		}
		if days > core.MaxReminderDaysBefore || days != math.Trunc(days) {
			return s, fmt.Errorf("%w: reminderDaysBefore %v out of range", ErrMalformedDocument, days)
		}
		s.ReminderDaysBefore = int(days)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return s, nil
}

func PaymentMethodFromDocument(d Document) (core.PaymentMethod, error) {
	var pm core.PaymentMethod
	var err error

	if pm.ID, err = d.requireString("id"); err != nil {
		return pm, err
	}
	if pm.Nickname, err = d.requireString("nickname"); err != nil {
		return pm, err
	}
	typ, err := d.requireString("type")
	if err != nil {
		return pm, err
	}
	pm.Type = core.PaymentType(typ)
	if pm.Type == "CREDIT_CARD" {
		pm.Type = core.Visa
	}
	if !pm.Type.IsValid() {
		return pm, fmt.Errorf("%w: unknown payment type %q", ErrMalformedDocument, typ)
	}
	pm.LastFourDigits = d.optionalString("lastFourDigits")
	pm.Normalize()
	if err := pm.Validate(); err != nil {
		return pm, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return pm, nil
}

func (d Document) requireString(key string) (string, error) {
	v, ok := d[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedDocument, key)
	}
	return v, nil
}

func (d Document) optionalString(key string) string {
	v, _ := d[key].(string)
	return v
}

func (d Document) number(key string) (float64, error) {
	var f float64
	switch v := d[key].(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, key, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformedDocument, key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("%w: %s out of range", ErrMalformedDocument, key)
	}
	return f, nil
}

func (d Document) date(key string) (core.Date, error) {
	s, err := d.requireString(key)
	if err != nil {
		return core.Date{}, err
	}
	parsed, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, key, err)
	}
	return parsed, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"subly/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the local source of truth for subscriptions,
// payment methods and settings.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	feed    *changeFeed
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		feed:    newChangeFeed(),
	}

	return repo, nil
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Version increases after every committed mutation; use it as a cache key.
func (r *SQLiteRepository) Version() uint64 {
	return r.feed.version.Load()
}

// Observers returns the number of live observation streams.
func (r *SQLiteRepository) Observers() int {
	return r.feed.count()
}

func (r *SQLiteRepository) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := r.queries.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subscriptionsFromRows(rows)
}

func (r *SQLiteRepository) ListActiveSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := r.queries.ListActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	return subscriptionsFromRows(rows)
}

// ListActiveDueBy returns active subscriptions whose next billing date is on
// or before until.
func (r *SQLiteRepository) ListActiveDueBy(ctx context.Context, until core.Date) ([]core.Subscription, error) {
	rows, err := r.queries.ListActiveDueBy(ctx, until.String())
	if err != nil {
		return nil, fmt.Errorf("list subscriptions due by %s: %w", until, err)
	}
	return subscriptionsFromRows(rows)
}

func (r *SQLiteRepository) GetSubscription(ctx context.Context, id string) (core.Subscription, error) {
	row, err := r.queries.GetSubscription(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return subscriptionFromRow(row)
}

func (r *SQLiteRepository) InsertSubscription(ctx context.Context, s core.Subscription) error {
	if err := r.queries.InsertSubscription(ctx, subscriptionToRow(s)); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	slog.DebugContext(ctx, "Subscription saved to SQLite", "id", s.ID, "name", s.Name)
	r.feed.publish(TopicSubscriptions)
	return nil
}

func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, s core.Subscription) error {
	n, err := r.queries.UpdateSubscription(ctx, subscriptionToRow(s))
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %s: %w", s.ID, core.ErrNotFound)
	}
	r.feed.publish(TopicSubscriptions)
	return nil
}

func (r *SQLiteRepository) DeleteSubscription(ctx context.Context, id string) error {
	n, err := r.queries.DeleteSubscription(ctx, id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %s: %w", id, core.ErrNotFound)
	}
	r.feed.publish(TopicSubscriptions | TopicPaymentMethods)
	return nil
}

func (r *SQLiteRepository) CountSubscriptions(ctx context.Context) (int, error) {
	n, err := r.queries.CountSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) CountSubscriptionsForPaymentMethod(ctx context.Context, paymentMethodID string) (int, error) {
	n, err := r.queries.CountSubscriptionsForPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions for payment method %s: %w", paymentMethodID, err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ListPaymentMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := r.queries.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	out := make([]core.PaymentMethod, 0, len(rows))
	for _, row := range rows {
		out = append(out, paymentMethodFromRow(row))
	}
	return out, nil
}

func (r *SQLiteRepository) ListPaymentMethodUsage(ctx context.Context) ([]core.PaymentMethodUsage, error) {
	rows, err := r.queries.ListPaymentMethodUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payment method usage: %w", err)
	}
	out := make([]core.PaymentMethodUsage, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.PaymentMethodUsage{
			PaymentMethod:     paymentMethodFromRow(row.PaymentMethodRow),
			SubscriptionCount: int(row.SubscriptionCount),
		})
	}
	return out, nil
}

func (r *SQLiteRepository) GetPaymentMethod(ctx context.Context, id string) (core.PaymentMethod, error) {
	row, err := r.queries.GetPaymentMethod(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaymentMethod{}, fmt.Errorf("payment method %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.PaymentMethod{}, fmt.Errorf("get payment method %s: %w", id, err)
	}
	return paymentMethodFromRow(row), nil
}

func (r *SQLiteRepository) InsertPaymentMethod(ctx context.Context, pm core.PaymentMethod) error {
	if err := r.queries.InsertPaymentMethod(ctx, paymentMethodToRow(pm)); err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	r.feed.publish(TopicPaymentMethods)
	return nil
}

func (r *SQLiteRepository) UpdatePaymentMethod(ctx context.Context, pm core.PaymentMethod) error {
	n, err := r.queries.UpdatePaymentMethod(ctx, paymentMethodToRow(pm))
	if err != nil {
		return fmt.Errorf("update payment method %s: %w", pm.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("payment method %s: %w", pm.ID, core.ErrNotFound)
	}
	r.feed.publish(TopicPaymentMethods)
	return nil
}

func (r *SQLiteRepository) DeletePaymentMethod(ctx context.Context, id string) error {
	n, err := r.queries.DeletePaymentMethod(ctx, id)
	if err != nil {
		return fmt.Errorf("delete payment method %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("payment method %s: %w", id, core.ErrNotFound)
	}
	r.feed.publish(TopicPaymentMethods)
	return nil
}

func (r *SQLiteRepository) CountPaymentMethods(ctx context.Context) (int, error) {
	n, err := r.queries.CountPaymentMethods(ctx)
	if err != nil {
		return 0, fmt.Errorf("count payment methods: %w", err)
	}
	return int(n), nil
}

// ImportSnapshot inserts payment methods, then subscriptions, in a single
// transaction.
func (r *SQLiteRepository) ImportSnapshot(ctx context.Context, pms []core.PaymentMethod, subs []core.Subscription) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, pm := range pms {
		if err := q.InsertPaymentMethod(ctx, paymentMethodToRow(pm)); err != nil {
			return fmt.Errorf("import payment method %s: %w", pm.ID, err)
		}
	}
	for _, s := range subs {
		if err := q.InsertSubscription(ctx, subscriptionToRow(s)); err != nil {
			return fmt.Errorf("import subscription %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	r.feed.publish(TopicSubscriptions | TopicPaymentMethods)
	return nil
}

func (r *SQLiteRepository) GetPreferences(ctx context.Context) (core.NotificationPreferences, error) {
	kv, err := r.queries.ListSettings(ctx)
	if err != nil {
		return core.NotificationPreferences{}, fmt.Errorf("list settings: %w", err)
	}
	return core.PreferencesFromSettings(kv)
}

func (r *SQLiteRepository) SavePreferences(ctx context.Context, p core.NotificationPreferences) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for k, v := range p.ToSettings() {
		if err := q.UpsertSetting(ctx, k, v); err != nil {
			return fmt.Errorf("save setting %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}

	r.feed.publish(TopicSettings)
	return nil
}

// ObserveSubscriptions streams every subscription, re-emitting after each change.
func (r *SQLiteRepository) ObserveSubscriptions(ctx context.Context) (<-chan []core.Subscription, error) {
	return observe(ctx, r.feed, TopicSubscriptions, r.ListSubscriptions)
}

func (r *SQLiteRepository) ObserveActiveSubscriptions(ctx context.Context) (<-chan []core.Subscription, error) {
	return observe(ctx, r.feed, TopicSubscriptions, r.ListActiveSubscriptions)
}

// ObserveSubscription streams one subscription; the stream ends once it is deleted.
func (r *SQLiteRepository) ObserveSubscription(ctx context.Context, id string) (<-chan core.Subscription, error) {
	return observe(ctx, r.feed, TopicSubscriptions, func(ctx context.Context) (core.Subscription, error) {
		return r.GetSubscription(ctx, id)
	})
}

func (r *SQLiteRepository) ObservePaymentMethods(ctx context.Context) (<-chan []core.PaymentMethodUsage, error) {
	return observe(ctx, r.feed, TopicPaymentMethods|TopicSubscriptions, r.ListPaymentMethodUsage)
}

func (r *SQLiteRepository) ObservePreferences(ctx context.Context) (<-chan core.NotificationPreferences, error) {
	return observe(ctx, r.feed, TopicSettings, r.GetPreferences)
}

func subscriptionsFromRows(rows []SubscriptionRow) ([]core.Subscription, error) {
	out := make([]core.Subscription, 0, len(rows))
	for _, row := range rows {
		s, err := subscriptionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func subscriptionFromRow(row SubscriptionRow) (core.Subscription, error) {
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("subscription %s start date: %w", row.ID, err)
	}
	next, err := core.ParseDate(row.NextBillingDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("subscription %s next billing date: %w", row.ID, err)
	}
	return core.Subscription{
		ID:                 row.ID,
		Name:               row.Name,
		Category:           core.Category(row.Type),
		Amount:             core.Money{Cents: row.AmountCents, Currency: row.Currency},
		Frequency:          core.Frequency(row.Frequency),
		StartDate:          start,
		NextBillingDate:    next,
		PaymentMethodID:    row.PaymentMethodID.String,
		Notes:              row.Notes.String,
		Active:             row.IsActive,
		ReminderDaysBefore: int(row.ReminderDaysBefore),
	}, nil
}

func subscriptionToRow(s core.Subscription) SubscriptionRow {
	return SubscriptionRow{
		ID:                 s.ID,
		Name:               s.Name,
		Type:               string(s.Category),
		AmountCents:        s.Amount.Cents,
		Currency:           s.Amount.Currency,
		Frequency:          string(s.Frequency),
		StartDate:          s.StartDate.String(),
		NextBillingDate:    s.NextBillingDate.String(),
		PaymentMethodID:    nullString(s.PaymentMethodID),
		Notes:              nullString(s.Notes),
		IsActive:           s.Active,
		ReminderDaysBefore: int64(s.ReminderDaysBefore),
	}
}

func paymentMethodFromRow(row PaymentMethodRow) core.PaymentMethod {
	return core.PaymentMethod{
		ID:             row.ID,
		Nickname:       row.Nickname,
		Type:           core.PaymentType(row.Type),
		LastFourDigits: row.LastFourDigits.String,
		Icon:           row.Icon.String,
	}
}

func paymentMethodToRow(pm core.PaymentMethod) PaymentMethodRow {
	return PaymentMethodRow{
		ID:             pm.ID,
		Nickname:       pm.Nickname,
		Type:           string(pm.Type),
		LastFourDigits: nullString(pm.LastFourDigits),
		Icon:           nullString(pm.Icon),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// SubscriptionRow mirrors a row of the subscriptions table.
type SubscriptionRow struct {
	ID                 string
	Name               string
	Type               string
	AmountCents        int64
	Currency           string
	Frequency          string
	StartDate          string
	NextBillingDate    string
	PaymentMethodID    sql.NullString
	Notes              sql.NullString
	IsActive           bool
	ReminderDaysBefore int64
}

// PaymentMethodRow mirrors a row of the payment_methods table.
type PaymentMethodRow struct {
	ID             string
	Nickname       string
	Type           string
	LastFourDigits sql.NullString
	Icon           sql.NullString
}

type PaymentMethodUsageRow struct {
	PaymentMethodRow
	SubscriptionCount int64
}

const subscriptionColumns = `id, name, type, amount_cents, currency, frequency, start_date,
	next_billing_date, payment_method_id, notes, is_active, reminder_days_before`

func scanSubscription(row interface{ Scan(...any) error }) (SubscriptionRow, error) {
	var i SubscriptionRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Type,
		&i.AmountCents,
		&i.Currency,
		&i.Frequency,
		&i.StartDate,
		&i.NextBillingDate,
		&i.PaymentMethodID,
		&i.Notes,
		&i.IsActive,
		&i.ReminderDaysBefore,
	)
	return i, err
}

func (q *Queries) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]SubscriptionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SubscriptionRow
	for rows.Next() {
		i, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listSubscriptions = `SELECT ` + subscriptionColumns + `
FROM subscriptions
ORDER BY next_billing_date, name`

func (q *Queries) ListSubscriptions(ctx context.Context) ([]SubscriptionRow, error) {
	return q.querySubscriptions(ctx, listSubscriptions)
}

const listActiveSubscriptions = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE is_active = 1
ORDER BY next_billing_date, name`

func (q *Queries) ListActiveSubscriptions(ctx context.Context) ([]SubscriptionRow, error) {
	return q.querySubscriptions(ctx, listActiveSubscriptions)
}

const listActiveDueBy = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE is_active = 1 AND next_billing_date <= ?
ORDER BY next_billing_date, name`

func (q *Queries) ListActiveDueBy(ctx context.Context, until string) ([]SubscriptionRow, error) {
	return q.querySubscriptions(ctx, listActiveDueBy, until)
}

const getSubscription = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE id = ?`

func (q *Queries) GetSubscription(ctx context.Context, id string) (SubscriptionRow, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscription, id))
}

const insertSubscription = `INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertSubscription(ctx context.Context, arg SubscriptionRow) error {
	_, err := q.db.ExecContext(ctx, insertSubscription,
		arg.ID,
		arg.Name,
		arg.Type,
		arg.AmountCents,
		arg.Currency,
		arg.Frequency,
		arg.StartDate,
		arg.NextBillingDate,
		arg.PaymentMethodID,
		arg.Notes,
		arg.IsActive,
		arg.ReminderDaysBefore,
	)
	return err
}

const updateSubscription = `UPDATE subscriptions
SET name = ?, type = ?, amount_cents = ?, currency = ?, frequency = ?, start_date = ?,
	next_billing_date = ?, payment_method_id = ?, notes = ?, is_active = ?,
	reminder_days_before = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateSubscription(ctx context.Context, arg SubscriptionRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSubscription,
		arg.Name,
		arg.Type,
		arg.AmountCents,
		arg.Currency,
		arg.Frequency,
		arg.StartDate,
		arg.NextBillingDate,
		arg.PaymentMethodID,
		arg.Notes,
		arg.IsActive,
		arg.ReminderDaysBefore,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSubscription = `DELETE FROM subscriptions WHERE id = ?`

func (q *Queries) DeleteSubscription(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSubscription, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countSubscriptions = `SELECT COUNT(*) FROM subscriptions`

func (q *Queries) CountSubscriptions(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countSubscriptions).Scan(&count)
	return count, err
}

const countSubscriptionsForPaymentMethod = `SELECT COUNT(*) FROM subscriptions WHERE payment_method_id = ?`

func (q *Queries) CountSubscriptionsForPaymentMethod(ctx context.Context, paymentMethodID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countSubscriptionsForPaymentMethod, paymentMethodID).Scan(&count)
	return count, err
}

const paymentMethodColumns = `id, nickname, type, last_four_digits, icon`

func scanPaymentMethod(row interface{ Scan(...any) error }) (PaymentMethodRow, error) {
	var i PaymentMethodRow
	err := row.Scan(&i.ID, &i.Nickname, &i.Type, &i.LastFourDigits, &i.Icon)
	return i, err
}

const listPaymentMethods = `SELECT ` + paymentMethodColumns + `
FROM payment_methods
ORDER BY nickname`

func (q *Queries) ListPaymentMethods(ctx context.Context) ([]PaymentMethodRow, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentMethods)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentMethodRow
	for rows.Next() {
		i, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listPaymentMethodUsage = `SELECT pm.id, pm.nickname, pm.type, pm.last_four_digits, pm.icon,
	COUNT(s.id) AS subscription_count
FROM payment_methods pm
LEFT JOIN subscriptions s ON s.payment_method_id = pm.id
GROUP BY pm.id
ORDER BY pm.nickname`

func (q *Queries) ListPaymentMethodUsage(ctx context.Context) ([]PaymentMethodUsageRow, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentMethodUsage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentMethodUsageRow
	for rows.Next() {
		var i PaymentMethodUsageRow
		if err := rows.Scan(
			&i.ID,
			&i.Nickname,
			&i.Type,
			&i.LastFourDigits,
			&i.Icon,
			&i.SubscriptionCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPaymentMethod = `SELECT ` + paymentMethodColumns + `
FROM payment_methods
WHERE id = ?`

func (q *Queries) GetPaymentMethod(ctx context.Context, id string) (PaymentMethodRow, error) {
	return scanPaymentMethod(q.db.QueryRowContext(ctx, getPaymentMethod, id))
}

const insertPaymentMethod = `INSERT INTO payment_methods (` + paymentMethodColumns + `)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertPaymentMethod(ctx context.Context, arg PaymentMethodRow) error {
	_, err := q.db.ExecContext(ctx, insertPaymentMethod,
		arg.ID,
		arg.Nickname,
		arg.Type,
		arg.LastFourDigits,
		arg.Icon,
	)
	return err
}

const updatePaymentMethod = `UPDATE payment_methods
SET nickname = ?, type = ?, last_four_digits = ?, icon = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdatePaymentMethod(ctx context.Context, arg PaymentMethodRow) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePaymentMethod,
		arg.Nickname,
		arg.Type,
		arg.LastFourDigits,
		arg.Icon,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deletePaymentMethod = `DELETE FROM payment_methods WHERE id = ?`

func (q *Queries) DeletePaymentMethod(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePaymentMethod, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countPaymentMethods = `SELECT COUNT(*) FROM payment_methods`

func (q *Queries) CountPaymentMethods(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPaymentMethods).Scan(&count)
	return count, err
}

const listSettings = `SELECT key, value FROM settings`

func (q *Queries) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := q.db.QueryContext(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const upsertSetting = `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`

func (q *Queries) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, upsertSetting, key, value)
	return err
}

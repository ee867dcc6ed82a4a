package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/heritix/booking/internal/model"
)

// MySQLStore persists the ledger in MySQL.  It expects the following
// tables (timestamps are DATETIME in UTC; the DSN must set
// parseTime=true&loc=UTC):
//
//	temp_bookings(id PK, event_id, owner, total_amount_cents, status,
//	              payment_order_id, reconcile_note, created_at, expires_at)
//	temp_booking_tickets(id PK AUTO, temp_booking_id FK, seat_id,
//	              category, quantity, price_cents)
//	bookings(reference PK, owner, event_id, total_amount_cents,
//	              payment_ref, payment_status, status, created_at)
//	booking_tickets(id PK AUTO, booking_reference FK, seat_id,
//	              category, quantity, price_cents)
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to the provided database handle.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

const mysqlTime = "2006-01-02 15:04:05"

// insertTickets bulk-inserts ticket rows for one parent record inside
// the provided transaction.
func insertTickets(ctx context.Context, tx *sql.Tx, table, fk, parent string, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := "INSERT INTO " + table + " (" + fk + ", seat_id, category, quantity, price_cents) VALUES "
	args := make([]interface{}, 0, len(tickets)*5)
	for i, tk := range tickets {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, parent, tk.SeatID, tk.Category, tk.Quantity, tk.PriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func scanTickets(rows *sql.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	var tickets []model.Ticket
	for rows.Next() {
		var tk model.Ticket
		if err := rows.Scan(&tk.SeatID, &tk.Category, &tk.Quantity, &tk.PriceCents); err != nil {
			return nil, err
		}
		tickets = append(tickets, tk)
	}
	return tickets, rows.Err()
}

func (s *MySQLStore) CreateTempBooking(ctx context.Context, tb *model.TempBooking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `INSERT INTO temp_bookings
	           (id, event_id, owner, total_amount_cents, status, payment_order_id, reconcile_note, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, q,
		tb.ID, tb.EventID, tb.Owner, tb.TotalAmountCents, tb.Status,
		tb.PaymentOrderID, tb.ReconcileNote,
		tb.CreatedAt.UTC().Format(mysqlTime), tb.ExpiresAt.UTC().Format(mysqlTime),
	); err != nil {
		return err
	}
	if err = insertTickets(ctx, tx, "temp_booking_tickets", "temp_booking_id", tb.ID, tb.Tickets); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MySQLStore) GetTempBooking(ctx context.Context, id string) (*model.TempBooking, error) {
	const q = `SELECT id, event_id, owner, total_amount_cents, status,
	                  payment_order_id, reconcile_note, created_at, expires_at
	           FROM temp_bookings WHERE id = ?`
	tb := &model.TempBooking{}
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&tb.ID, &tb.EventID, &tb.Owner, &tb.TotalAmountCents, &tb.Status,
		&tb.PaymentOrderID, &tb.ReconcileNote, &tb.CreatedAt, &tb.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seat_id, category, quantity, price_cents FROM temp_booking_tickets WHERE temp_booking_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	if tb.Tickets, err = scanTickets(rows); err != nil {
		return nil, err
	}
	return tb, nil
}

func (s *MySQLStore) TransitionTempBooking(ctx context.Context, id, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE temp_bookings SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// distinguish missing from already-transitioned
		var exists int
		err = s.db.QueryRowContext(ctx, `SELECT 1 FROM temp_bookings WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}
		return model.ErrConflict
	}
	return nil
}

func (s *MySQLStore) SetTempBookingOrder(ctx context.Context, id, orderID string) error {
	return s.updateTempField(ctx, `UPDATE temp_bookings SET payment_order_id = ? WHERE id = ?`, orderID, id)
}

func (s *MySQLStore) SetTempBookingReconcileNote(ctx context.Context, id, note string) error {
	return s.updateTempField(ctx, `UPDATE temp_bookings SET reconcile_note = ? WHERE id = ?`, note, id)
}

func (s *MySQLStore) updateTempField(ctx context.Context, query, value, id string) error {
	res, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *MySQLStore) ListExpiredPending(ctx context.Context, now time.Time) ([]*model.TempBooking, error) {
	const q = `SELECT id FROM temp_bookings
	           WHERE status = ? AND expires_at <= ? ORDER BY expires_at`
	rows, err := s.db.QueryContext(ctx, q, model.TempPending, now.UTC().Format(mysqlTime))
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	out := make([]*model.TempBooking, 0, len(ids))
	for _, id := range ids {
		tb, err := s.GetTempBooking(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, tb)
	}
	return out, nil
}

func (s *MySQLStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `INSERT INTO bookings
	           (reference, owner, event_id, total_amount_cents, payment_ref, payment_status, status, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, q,
		b.Reference, b.Owner, b.EventID, b.TotalAmountCents,
		b.PaymentRef, b.PaymentStatus, b.Status, b.CreatedAt.UTC().Format(mysqlTime),
	); err != nil {
		return err
	}
	if err = insertTickets(ctx, tx, "booking_tickets", "booking_reference", b.Reference, b.Tickets); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MySQLStore) GetBookingByReference(ctx context.Context, ref string) (*model.Booking, error) {
	const q = `SELECT reference, owner, event_id, total_amount_cents, payment_ref, payment_status, status, created_at
	           FROM bookings WHERE reference = ?`
	b := &model.Booking{}
	err := s.db.QueryRowContext(ctx, q, ref).Scan(
		&b.Reference, &b.Owner, &b.EventID, &b.TotalAmountCents,
		&b.PaymentRef, &b.PaymentStatus, &b.Status, &b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seat_id, category, quantity, price_cents FROM booking_tickets WHERE booking_reference = ? ORDER BY id`, ref)
	if err != nil {
		return nil, err
	}
	if b.Tickets, err = scanTickets(rows); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *MySQLStore) listBookings(ctx context.Context, query string, args ...interface{}) ([]*model.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var refs []string
	for rows.Next() {
		var ref string
		if scanErr := rows.Scan(&ref); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		refs = append(refs, ref)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	out := make([]*model.Booking, 0, len(refs))
	for _, ref := range refs {
		b, err := s.GetBookingByReference(ctx, ref)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *MySQLStore) ListBookingsByOwner(ctx context.Context, owner string) ([]*model.Booking, error) {
	return s.listBookings(ctx, `SELECT reference FROM bookings WHERE owner = ? ORDER BY created_at`, owner)
}

func (s *MySQLStore) ListBookings(ctx context.Context) ([]*model.Booking, error) {
	return s.listBookings(ctx, `SELECT reference FROM bookings ORDER BY created_at`)
}

func (s *MySQLStore) TransitionBooking(ctx context.Context, ref, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE reference = ? AND status = ?`, to, ref, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err = s.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE reference = ?`, ref).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}
		return model.ErrConflict
	}
	return nil
}

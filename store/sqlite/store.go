// Package sqlite provides a Store backend on SQLite, suitable for
// single-node deployments and the operational CLI.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	lienos "github.com/3piecechickendinner/LeinOS"
	"github.com/3piecechickendinner/LeinOS/deadline"
	"github.com/3piecechickendinner/LeinOS/id"
	"github.com/3piecechickendinner/LeinOS/lien"
	"github.com/3piecechickendinner/LeinOS/notification"
	"github.com/3piecechickendinner/LeinOS/payment"
	lienstore "github.com/3piecechickendinner/LeinOS/store"
	"github.com/3piecechickendinner/LeinOS/tenant"
	"github.com/3piecechickendinner/LeinOS/types"
)

// compile-time interface check
var _ lienstore.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path with WAL
// mode, a busy timeout, and foreign keys enabled. Safe to call on an
// existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("lienos/sqlite: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("lienos/sqlite: connect: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("lienos/sqlite: %q: %w", pragma, err)
		}
	}
	return &Store{db: db}, nil
}

// New wraps an already-configured database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

// DB returns the underlying handle for direct queries.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: %v", lienos.ErrMigrationFailed, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func guard(tenantID tenant.ID) error {
	if tenantID.IsZero() {
		return lienos.ErrMissingTenant
	}
	return nil
}

// mapErr normalizes driver and context errors to the store taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return lienos.ErrTimeout
	}
	return err
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Lien methods

const lienColumns = `tenant_id, id, certificate_number, principal_cents, currency,
	annual_rate_bp, purchase_date, redemption_deadline, status, county, state,
	metadata, revision, created_at, updated_at`

func (s *Store) CreateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	meta, err := encodeMeta(l.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO liens (`+lienColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantID.String(), l.ID.String(), l.CertificateNumber,
		l.Principal.Amount, l.Principal.Currency, l.AnnualRate.BasisPoints(),
		l.PurchaseDate.String(), l.RedemptionDeadline.String(), string(l.Status),
		l.County, l.State, meta, l.Revision,
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return lienos.ErrAlreadyExists
	}
	return mapErr(err)
}

func (s *Store) GetLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) (*lien.Lien, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+lienColumns+` FROM liens WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), lienID.String())
	l, err := scanLien(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lienos.ErrLienNotFound
	}
	return l, mapErr(err)
}

func (s *Store) ListLiens(ctx context.Context, tenantID tenant.ID, filter lien.Filter) ([]*lien.Lien, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	query := `SELECT ` + lienColumns + ` FROM liens WHERE tenant_id = ?`
	args := []any{tenantID.String()}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.County != "" {
		query += ` AND county = ? COLLATE NOCASE`
		args = append(args, filter.County)
	}
	if filter.State != "" {
		query += ` AND state = ? COLLATE NOCASE`
		args = append(args, filter.State)
	}
	if !filter.PurchasedFrom.IsZero() {
		query += ` AND purchase_date >= ?`
		args = append(args, filter.PurchasedFrom.String())
	}
	if !filter.PurchasedTo.IsZero() {
		query += ` AND purchase_date <= ?`
		args = append(args, filter.PurchasedTo.String())
	}
	if !filter.DeadlineFrom.IsZero() {
		query += ` AND redemption_deadline >= ?`
		args = append(args, filter.DeadlineFrom.String())
	}
	if !filter.DeadlineTo.IsZero() {
		query += ` AND redemption_deadline <= ?`
		args = append(args, filter.DeadlineTo.String())
	}
	query += ` ORDER BY redemption_deadline ASC, id ASC`
	query, args = addPaging(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*lien.Lien, 0)
	for rows.Next() {
		l, err := scanLien(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) UpdateLien(ctx context.Context, tenantID tenant.ID, l *lien.Lien) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	meta, err := encodeMeta(l.Metadata)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE liens SET
			certificate_number = ?, principal_cents = ?, currency = ?,
			annual_rate_bp = ?, redemption_deadline = ?, status = ?,
			county = ?, state = ?, metadata = ?,
			revision = revision + 1, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND revision = ?`,
		l.CertificateNumber, l.Principal.Amount, l.Principal.Currency,
		l.AnnualRate.BasisPoints(), l.RedemptionDeadline.String(), string(l.Status),
		l.County, l.State, meta, formatTime(now),
		tenantID.String(), l.ID.String(), l.Revision,
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.lienWriteMiss(ctx, tenantID, l.ID)
	}
	l.Revision++
	l.UpdatedAt = now
	return nil
}

// lienWriteMiss distinguishes a stale revision from a missing row.
func (s *Store) lienWriteMiss(ctx context.Context, tenantID tenant.ID, lienID id.LienID) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM liens WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), lienID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return lienos.ErrLienNotFound
	}
	if err != nil {
		return mapErr(err)
	}
	return lienos.ErrStaleWrite
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLien(row rowScanner) (*lien.Lien, error) {
	var (
		l                    lien.Lien
		tenantRaw            string
		idRaw                string
		cents, rateBP        int64
		currency             string
		purchase, deadlineAt string
		status               string
		meta                 string
		createdAt, updatedAt string
	)
	err := row.Scan(&tenantRaw, &idRaw, &l.CertificateNumber, &cents, &currency,
		&rateBP, &purchase, &deadlineAt, &status, &l.County, &l.State,
		&meta, &l.Revision, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	l.TenantID, err = tenant.Parse(tenantRaw)
	if err != nil {
		return nil, err
	}
	l.ID, err = id.ParseLienID(idRaw)
	if err != nil {
		return nil, err
	}
	l.Principal = types.Cents(cents, currency)
	l.AnnualRate = types.BasisPoints(rateBP)
	if l.PurchaseDate, err = types.ParseDate(purchase); err != nil {
		return nil, err
	}
	if l.RedemptionDeadline, err = types.ParseDate(deadlineAt); err != nil {
		return nil, err
	}
	l.Status = lien.Status(status)
	if err := decodeMeta(meta, &l.Metadata); err != nil {
		return nil, err
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// Payment methods

const paymentColumns = `tenant_id, id, lien_id, amount_cents, currency,
	applied_date, method, reference, metadata, revision, created_at, updated_at`

func (s *Store) CreatePayment(ctx context.Context, tenantID tenant.ID, p *payment.Payment) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	meta, err := encodeMeta(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantID.String(), p.ID.String(), p.LienID.String(),
		p.Amount.Amount, p.Amount.Currency, p.AppliedDate.String(),
		p.Method, p.Reference, meta, p.Revision,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		// The dedupe index covers (lien, date, amount, reference).
		return lienos.ErrDuplicatePayment
	}
	return mapErr(err)
}

func (s *Store) GetPayment(ctx context.Context, tenantID tenant.ID, paymentID id.PaymentID) (*payment.Payment, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), paymentID.String())
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lienos.ErrPaymentNotFound
	}
	return p, mapErr(err)
}

func (s *Store) ListPaymentsByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID) ([]*payment.Payment, error) {
	return s.ListPayments(ctx, tenantID, payment.ListOpts{LienID: lienID})
}

func (s *Store) ListPayments(ctx context.Context, tenantID tenant.ID, opts payment.ListOpts) ([]*payment.Payment, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE tenant_id = ?`
	args := []any{tenantID.String()}
	if !opts.LienID.IsNil() {
		query += ` AND lien_id = ?`
		args = append(args, opts.LienID.String())
	}
	query += ` ORDER BY applied_date ASC, id ASC`
	query, args = addPaging(query, args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) PaymentExists(ctx context.Context, tenantID tenant.ID, p *payment.Payment) (bool, error) {
	if err := guard(tenantID); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM payments
		WHERE tenant_id = ? AND lien_id = ? AND applied_date = ? AND amount_cents = ? AND reference = ?`,
		tenantID.String(), p.LienID.String(), p.AppliedDate.String(),
		p.Amount.Amount, p.Reference).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, mapErr(err)
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var (
		p                    payment.Payment
		tenantRaw            string
		idRaw, lienRaw       string
		cents                int64
		currency, applied    string
		meta                 string
		createdAt, updatedAt string
	)
	err := row.Scan(&tenantRaw, &idRaw, &lienRaw, &cents, &currency,
		&applied, &p.Method, &p.Reference, &meta, &p.Revision,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if p.TenantID, err = tenant.Parse(tenantRaw); err != nil {
		return nil, err
	}
	if p.ID, err = id.ParsePaymentID(idRaw); err != nil {
		return nil, err
	}
	if p.LienID, err = id.ParseLienID(lienRaw); err != nil {
		return nil, err
	}
	p.Amount = types.Cents(cents, currency)
	if p.AppliedDate, err = types.ParseDate(applied); err != nil {
		return nil, err
	}
	if err := decodeMeta(meta, &p.Metadata); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Deadline methods

const deadlineColumns = `tenant_id, id, lien_id, kind, due_date, status,
	fired_thresholds, revision, created_at, updated_at`

func (s *Store) CreateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	fired, err := json.Marshal(firedOrEmpty(inst.FiredThresholds))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deadlines (`+deadlineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantID.String(), inst.ID.String(), inst.LienID.String(),
		string(inst.Kind), inst.DueDate.String(), string(inst.Status),
		string(fired), inst.Revision,
		formatTime(inst.CreatedAt), formatTime(inst.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return lienos.ErrAlreadyExists
	}
	return mapErr(err)
}

func (s *Store) GetDeadline(ctx context.Context, tenantID tenant.ID, deadlineID id.DeadlineID) (*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deadlineColumns+` FROM deadlines WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), deadlineID.String())
	inst, err := scanDeadline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lienos.ErrDeadlineNotFound
	}
	return inst, mapErr(err)
}

func (s *Store) GetDeadlineByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID, kind deadline.Kind) (*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+deadlineColumns+` FROM deadlines
		WHERE tenant_id = ? AND lien_id = ? AND kind = ?`,
		tenantID.String(), lienID.String(), string(kind))
	inst, err := scanDeadline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lienos.ErrDeadlineNotFound
	}
	return inst, mapErr(err)
}

func (s *Store) ListDeadlines(ctx context.Context, tenantID tenant.ID, filter deadline.Filter) ([]*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	query := `SELECT ` + deadlineColumns + ` FROM deadlines WHERE tenant_id = ?`
	args := []any{tenantID.String()}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if !filter.DueFrom.IsZero() {
		query += ` AND due_date >= ?`
		args = append(args, filter.DueFrom.String())
	}
	if !filter.DueTo.IsZero() {
		query += ` AND due_date <= ?`
		args = append(args, filter.DueTo.String())
	}
	query += ` ORDER BY due_date ASC, lien_id ASC`
	query, args = addPaging(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*deadline.Instance, 0)
	for rows.Next() {
		inst, err := scanDeadline(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) UpdateDeadline(ctx context.Context, tenantID tenant.ID, inst *deadline.Instance) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	fired, err := json.Marshal(firedOrEmpty(inst.FiredThresholds))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE deadlines SET
			due_date = ?, status = ?, fired_thresholds = ?,
			revision = revision + 1, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND revision = ?`,
		inst.DueDate.String(), string(inst.Status), string(fired), formatTime(now),
		tenantID.String(), inst.ID.String(), inst.Revision,
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM deadlines WHERE tenant_id = ? AND id = ?`,
			tenantID.String(), inst.ID.String()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return lienos.ErrDeadlineNotFound
		}
		if err != nil {
			return mapErr(err)
		}
		return lienos.ErrStaleWrite
	}
	inst.Revision++
	inst.UpdatedAt = now
	return nil
}

func scanDeadline(row rowScanner) (*deadline.Instance, error) {
	var (
		inst                 deadline.Instance
		tenantRaw            string
		idRaw, lienRaw       string
		kind, due, status    string
		fired                string
		createdAt, updatedAt string
	)
	err := row.Scan(&tenantRaw, &idRaw, &lienRaw, &kind, &due, &status,
		&fired, &inst.Revision, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if inst.TenantID, err = tenant.Parse(tenantRaw); err != nil {
		return nil, err
	}
	if inst.ID, err = id.ParseDeadlineID(idRaw); err != nil {
		return nil, err
	}
	if inst.LienID, err = id.ParseLienID(lienRaw); err != nil {
		return nil, err
	}
	inst.Kind = deadline.Kind(kind)
	if inst.DueDate, err = types.ParseDate(due); err != nil {
		return nil, err
	}
	inst.Status = deadline.Status(status)
	if err := json.Unmarshal([]byte(fired), &inst.FiredThresholds); err != nil {
		return nil, err
	}
	if inst.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inst.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &inst, nil
}

// Notification methods

const notificationColumns = `tenant_id, id, type, lien_id, priority, message,
	dedupe_key, read, read_at, revision, created_at, updated_at`

func (s *Store) CreateNotification(ctx context.Context, tenantID tenant.ID, n *notification.Notification) (*notification.Notification, bool, error) {
	if err := guard(tenantID); err != nil {
		return nil, false, err
	}
	var dedupe sql.NullString
	if n.DedupeKey != "" {
		dedupe = sql.NullString{String: n.DedupeKey, Valid: true}
	}
	lienRaw := ""
	if !n.LienID.IsNil() {
		lienRaw = n.LienID.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantID.String(), n.ID.String(), string(n.Type), lienRaw,
		string(n.Priority), n.Message, dedupe, boolToInt(n.Read), nullTime(n.ReadAt),
		n.Revision, formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	if isUniqueViolation(err) && n.DedupeKey != "" {
		existing, lookupErr := s.getNotificationByDedupe(ctx, tenantID, n.DedupeKey)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, mapErr(err)
	}
	return n, true, nil
}

func (s *Store) getNotificationByDedupe(ctx context.Context, tenantID tenant.ID, key string) (*notification.Notification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE tenant_id = ? AND dedupe_key = ?`,
		tenantID.String(), key)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lienos.ErrNotificationNotFound
	}
	return n, mapErr(err)
}

func (s *Store) GetNotification(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID) (*notification.Notification, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), notificationID.String())
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lienos.ErrNotificationNotFound
	}
	return n, mapErr(err)
}

func (s *Store) ListNotifications(ctx context.Context, tenantID tenant.ID, filter notification.Filter) ([]*notification.Notification, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE tenant_id = ?`
	args := []any{tenantID.String()}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(filter.Priority))
	}
	if !filter.LienID.IsNil() {
		query += ` AND lien_id = ?`
		args = append(args, filter.LienID.String())
	}
	if filter.Unread {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id ASC`
	query, args = addPaging(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	result := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, mapErr(rows.Err())
}

func (s *Store) MarkNotificationRead(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID, readAt time.Time) error {
	if err := guard(tenantID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, read_at = ?, revision = revision + 1, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND read = 0`,
		formatTime(readAt.UTC()), formatTime(time.Now().UTC()),
		tenantID.String(), notificationID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either missing or already read. Already read is fine.
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM notifications WHERE tenant_id = ? AND id = ?`,
			tenantID.String(), notificationID.String()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return lienos.ErrNotificationNotFound
		}
		return mapErr(err)
	}
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, tenantID tenant.ID) (int64, error) {
	if err := guard(tenantID); err != nil {
		return 0, err
	}
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE tenant_id = ? AND read = 0`,
		tenantID.String()).Scan(&count)
	return count, mapErr(err)
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	var (
		n                    notification.Notification
		tenantRaw            string
		idRaw, lienRaw       string
		typ, priority        string
		dedupe               sql.NullString
		read                 int
		readAt               sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&tenantRaw, &idRaw, &typ, &lienRaw, &priority, &n.Message,
		&dedupe, &read, &readAt, &n.Revision, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if n.TenantID, err = tenant.Parse(tenantRaw); err != nil {
		return nil, err
	}
	if n.ID, err = id.ParseNotificationID(idRaw); err != nil {
		return nil, err
	}
	if lienRaw != "" {
		if n.LienID, err = id.ParseLienID(lienRaw); err != nil {
			return nil, err
		}
	}
	n.Type = notification.Type(typ)
	n.Priority = notification.Priority(priority)
	n.DedupeKey = dedupe.String
	n.Read = read != 0
	if readAt.Valid {
		at, err := parseTime(readAt.String)
		if err != nil {
			return nil, err
		}
		n.ReadAt = &at
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// Helpers

func addPaging(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	} else if offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, offset)
	}
	return query, args
}

func encodeMeta(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMeta(raw string, out *map[string]string) error {
	if strings.TrimSpace(raw) == "" || raw == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func firedOrEmpty(fired []int) []int {
	if fired == nil {
		return []int{}
	}
	return fired
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// Package postgres provides a Store backend on PostgreSQL via pgx,
// for multi-node deployments where several engine instances share one
// database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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
	pool *pgxpool.Pool
}

// Open connects a pool from a DSN and verifies connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("lienos/postgres: parse config: %w", err)
	}
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("lienos/postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("lienos/postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Pool returns the underlying pool for direct queries.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS liens (
    tenant_id           TEXT NOT NULL,
    id                  TEXT NOT NULL,
    certificate_number  TEXT NOT NULL DEFAULT '',
    principal_cents     BIGINT NOT NULL DEFAULT 0,
    currency            TEXT NOT NULL DEFAULT 'usd',
    annual_rate_bp      BIGINT NOT NULL DEFAULT 0,
    purchase_date       DATE NOT NULL,
    redemption_deadline DATE NOT NULL,
    status              TEXT NOT NULL DEFAULT 'ACTIVE',
    county              TEXT NOT NULL DEFAULT '',
    state               TEXT NOT NULL DEFAULT '',
    metadata            JSONB NOT NULL DEFAULT '{}',
    revision            BIGINT NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_liens_deadline ON liens (tenant_id, redemption_deadline);
CREATE INDEX IF NOT EXISTS idx_liens_status   ON liens (tenant_id, status);

CREATE TABLE IF NOT EXISTS payments (
    tenant_id    TEXT NOT NULL,
    id           TEXT NOT NULL,
    lien_id      TEXT NOT NULL,
    amount_cents BIGINT NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT 'usd',
    applied_date DATE NOT NULL,
    method       TEXT NOT NULL DEFAULT '',
    reference    TEXT NOT NULL DEFAULT '',
    metadata     JSONB NOT NULL DEFAULT '{}',
    revision     BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_payments_lien ON payments (tenant_id, lien_id, applied_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_dedupe
    ON payments (tenant_id, lien_id, applied_date, amount_cents, reference);

CREATE TABLE IF NOT EXISTS deadlines (
    tenant_id        TEXT NOT NULL,
    id               TEXT NOT NULL,
    lien_id          TEXT NOT NULL,
    kind             TEXT NOT NULL DEFAULT 'redemption',
    due_date         DATE NOT NULL,
    status           TEXT NOT NULL DEFAULT 'PENDING',
    fired_thresholds JSONB NOT NULL DEFAULT '[]',
    revision         BIGINT NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_deadlines_lien_kind ON deadlines (tenant_id, lien_id, kind);
CREATE INDEX IF NOT EXISTS idx_deadlines_due ON deadlines (tenant_id, status, due_date);

CREATE TABLE IF NOT EXISTS notifications (
    tenant_id  TEXT NOT NULL,
    id         TEXT NOT NULL,
    type       TEXT NOT NULL,
    lien_id    TEXT NOT NULL DEFAULT '',
    priority   TEXT NOT NULL DEFAULT 'normal',
    message    TEXT NOT NULL DEFAULT '',
    dedupe_key TEXT,
    read       BOOLEAN NOT NULL DEFAULT FALSE,
    read_at    TIMESTAMPTZ,
    revision   BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_dedupe
    ON notifications (tenant_id, dedupe_key) WHERE dedupe_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_unread  ON notifications (tenant_id, read);
`

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: %v", lienos.ErrMigrationFailed, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func guard(tenantID tenant.ID) error {
	if tenantID.IsZero() {
		return lienos.ErrMissingTenant
	}
	return nil
}

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
	var perr *pgconn.PgError
	return errors.As(err, &perr) && perr.Code == "23505"
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO liens (`+lienColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		tenantID.String(), l.ID.String(), l.CertificateNumber,
		l.Principal.Amount, l.Principal.Currency, l.AnnualRate.BasisPoints(),
		l.PurchaseDate.Time(), l.RedemptionDeadline.Time(), string(l.Status),
		l.County, l.State, meta, l.Revision, l.CreatedAt.UTC(), l.UpdatedAt.UTC(),
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
	row := s.pool.QueryRow(ctx, `
		SELECT `+lienColumns+` FROM liens WHERE tenant_id = $1 AND id = $2`,
		tenantID.String(), lienID.String())
	l, err := scanLien(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lienos.ErrLienNotFound
	}
	return l, mapErr(err)
}

func (s *Store) ListLiens(ctx context.Context, tenantID tenant.ID, filter lien.Filter) ([]*lien.Lien, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	var b sqlBuilder
	b.write(`SELECT `+lienColumns+` FROM liens WHERE tenant_id = `, tenantID.String())
	if filter.Status != "" {
		b.write(` AND status = `, string(filter.Status))
	}
	if filter.County != "" {
		b.write(` AND LOWER(county) = LOWER(`, filter.County)
		b.raw(`)`)
	}
	if filter.State != "" {
		b.write(` AND LOWER(state) = LOWER(`, filter.State)
		b.raw(`)`)
	}
	if !filter.PurchasedFrom.IsZero() {
		b.write(` AND purchase_date >= `, filter.PurchasedFrom.Time())
	}
	if !filter.PurchasedTo.IsZero() {
		b.write(` AND purchase_date <= `, filter.PurchasedTo.Time())
	}
	if !filter.DeadlineFrom.IsZero() {
		b.write(` AND redemption_deadline >= `, filter.DeadlineFrom.Time())
	}
	if !filter.DeadlineTo.IsZero() {
		b.write(` AND redemption_deadline <= `, filter.DeadlineTo.Time())
	}
	b.raw(` ORDER BY redemption_deadline ASC, id ASC`)
	b.paging(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, b.sql.String(), b.args...)
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE liens SET
			certificate_number = $1, principal_cents = $2, currency = $3,
			annual_rate_bp = $4, redemption_deadline = $5, status = $6,
			county = $7, state = $8, metadata = $9,
			revision = revision + 1, updated_at = $10
		WHERE tenant_id = $11 AND id = $12 AND revision = $13`,
		l.CertificateNumber, l.Principal.Amount, l.Principal.Currency,
		l.AnnualRate.BasisPoints(), l.RedemptionDeadline.Time(), string(l.Status),
		l.County, l.State, meta, now,
		tenantID.String(), l.ID.String(), l.Revision,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return s.writeMiss(ctx, "liens", tenantID, l.ID.String(), lienos.ErrLienNotFound)
	}
	l.Revision++
	l.UpdatedAt = now
	return nil
}

// writeMiss distinguishes a stale revision from a missing row.
func (s *Store) writeMiss(ctx context.Context, table string, tenantID tenant.ID, idRaw string, notFound error) error {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+table+` WHERE tenant_id = $1 AND id = $2`,
		tenantID.String(), idRaw).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
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
		l             lien.Lien
		tenantRaw     string
		idRaw         string
		cents, rateBP int64
		currency      string
		purchase, due time.Time
		status        string
		meta          []byte
	)
	err := row.Scan(&tenantRaw, &idRaw, &l.CertificateNumber, &cents, &currency,
		&rateBP, &purchase, &due, &status, &l.County, &l.State,
		&meta, &l.Revision, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if l.TenantID, err = tenant.Parse(tenantRaw); err != nil {
		return nil, err
	}
	if l.ID, err = id.ParseLienID(idRaw); err != nil {
		return nil, err
	}
	l.Principal = types.Cents(cents, currency)
	l.AnnualRate = types.BasisPoints(rateBP)
	l.PurchaseDate = types.DateOf(purchase)
	l.RedemptionDeadline = types.DateOf(due)
	l.Status = lien.Status(status)
	if err := decodeMeta(meta, &l.Metadata); err != nil {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tenantID.String(), p.ID.String(), p.LienID.String(),
		p.Amount.Amount, p.Amount.Currency, p.AppliedDate.Time(),
		p.Method, p.Reference, meta, p.Revision, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return lienos.ErrDuplicatePayment
	}
	return mapErr(err)
}

func (s *Store) GetPayment(ctx context.Context, tenantID tenant.ID, paymentID id.PaymentID) (*payment.Payment, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE tenant_id = $1 AND id = $2`,
		tenantID.String(), paymentID.String())
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	var b sqlBuilder
	b.write(`SELECT `+paymentColumns+` FROM payments WHERE tenant_id = `, tenantID.String())
	if !opts.LienID.IsNil() {
		b.write(` AND lien_id = `, opts.LienID.String())
	}
	b.raw(` ORDER BY applied_date ASC, id ASC`)
	b.paging(opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, b.sql.String(), b.args...)
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
	err := s.pool.QueryRow(ctx, `
		SELECT 1 FROM payments
		WHERE tenant_id = $1 AND lien_id = $2 AND applied_date = $3 AND amount_cents = $4 AND reference = $5`,
		tenantID.String(), p.LienID.String(), p.AppliedDate.Time(),
		p.Amount.Amount, p.Reference).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var (
		p              payment.Payment
		tenantRaw      string
		idRaw, lienRaw string
		cents          int64
		currency       string
		applied        time.Time
		meta           []byte
	)
	err := row.Scan(&tenantRaw, &idRaw, &lienRaw, &cents, &currency,
		&applied, &p.Method, &p.Reference, &meta, &p.Revision,
		&p.CreatedAt, &p.UpdatedAt)
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
	p.AppliedDate = types.DateOf(applied)
	if err := decodeMeta(meta, &p.Metadata); err != nil {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO deadlines (`+deadlineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tenantID.String(), inst.ID.String(), inst.LienID.String(),
		string(inst.Kind), inst.DueDate.Time(), string(inst.Status),
		fired, inst.Revision, inst.CreatedAt.UTC(), inst.UpdatedAt.UTC(),
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
	row := s.pool.QueryRow(ctx, `
		SELECT `+deadlineColumns+` FROM deadlines WHERE tenant_id = $1 AND id = $2`,
		tenantID.String(), deadlineID.String())
	inst, err := scanDeadline(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lienos.ErrDeadlineNotFound
	}
	return inst, mapErr(err)
}

func (s *Store) GetDeadlineByLien(ctx context.Context, tenantID tenant.ID, lienID id.LienID, kind deadline.Kind) (*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+deadlineColumns+` FROM deadlines
		WHERE tenant_id = $1 AND lien_id = $2 AND kind = $3`,
		tenantID.String(), lienID.String(), string(kind))
	inst, err := scanDeadline(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lienos.ErrDeadlineNotFound
	}
	return inst, mapErr(err)
}

func (s *Store) ListDeadlines(ctx context.Context, tenantID tenant.ID, filter deadline.Filter) ([]*deadline.Instance, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	var b sqlBuilder
	b.write(`SELECT `+deadlineColumns+` FROM deadlines WHERE tenant_id = `, tenantID.String())
	if filter.Status != "" {
		b.write(` AND status = `, string(filter.Status))
	}
	if filter.Kind != "" {
		b.write(` AND kind = `, string(filter.Kind))
	}
	if !filter.DueFrom.IsZero() {
		b.write(` AND due_date >= `, filter.DueFrom.Time())
	}
	if !filter.DueTo.IsZero() {
		b.write(` AND due_date <= `, filter.DueTo.Time())
	}
	b.raw(` ORDER BY due_date ASC, lien_id ASC`)
	b.paging(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, b.sql.String(), b.args...)
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE deadlines SET
			due_date = $1, status = $2, fired_thresholds = $3,
			revision = revision + 1, updated_at = $4
		WHERE tenant_id = $5 AND id = $6 AND revision = $7`,
		inst.DueDate.Time(), string(inst.Status), fired, now,
		tenantID.String(), inst.ID.String(), inst.Revision,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return s.writeMiss(ctx, "deadlines", tenantID, inst.ID.String(), lienos.ErrDeadlineNotFound)
	}
	inst.Revision++
	inst.UpdatedAt = now
	return nil
}

func scanDeadline(row rowScanner) (*deadline.Instance, error) {
	var (
		inst           deadline.Instance
		tenantRaw      string
		idRaw, lienRaw string
		kind, status   string
		due            time.Time
		fired          []byte
	)
	err := row.Scan(&tenantRaw, &idRaw, &lienRaw, &kind, &due, &status,
		&fired, &inst.Revision, &inst.CreatedAt, &inst.UpdatedAt)
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
	inst.DueDate = types.DateOf(due)
	inst.Status = deadline.Status(status)
	if err := json.Unmarshal(fired, &inst.FiredThresholds); err != nil {
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
	var dedupe *string
	if n.DedupeKey != "" {
		dedupe = &n.DedupeKey
	}
	lienRaw := ""
	if !n.LienID.IsNil() {
		lienRaw = n.LienID.String()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tenantID.String(), n.ID.String(), string(n.Type), lienRaw,
		string(n.Priority), n.Message, dedupe, n.Read, n.ReadAt,
		n.Revision, n.CreatedAt.UTC(), n.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err) && n.DedupeKey != "" {
		row := s.pool.QueryRow(ctx, `
			SELECT `+notificationColumns+` FROM notifications
			WHERE tenant_id = $1 AND dedupe_key = $2`,
			tenantID.String(), n.DedupeKey)
		existing, lookupErr := scanNotification(row)
		if lookupErr != nil {
			return nil, false, mapErr(lookupErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, mapErr(err)
	}
	return n, true, nil
}

func (s *Store) GetNotification(ctx context.Context, tenantID tenant.ID, notificationID id.NotificationID) (*notification.Notification, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE tenant_id = $1 AND id = $2`,
		tenantID.String(), notificationID.String())
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lienos.ErrNotificationNotFound
	}
	return n, mapErr(err)
}

func (s *Store) ListNotifications(ctx context.Context, tenantID tenant.ID, filter notification.Filter) ([]*notification.Notification, error) {
	if err := guard(tenantID); err != nil {
		return nil, err
	}
	var b sqlBuilder
	b.write(`SELECT `+notificationColumns+` FROM notifications WHERE tenant_id = `, tenantID.String())
	if filter.Type != "" {
		b.write(` AND type = `, string(filter.Type))
	}
	if filter.Priority != "" {
		b.write(` AND priority = `, string(filter.Priority))
	}
	if !filter.LienID.IsNil() {
		b.write(` AND lien_id = `, filter.LienID.String())
	}
	if filter.Unread {
		b.raw(` AND read = FALSE`)
	}
	b.raw(` ORDER BY created_at DESC, id ASC`)
	b.paging(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, b.sql.String(), b.args...)
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $1, revision = revision + 1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4 AND read = FALSE`,
		readAt.UTC(), time.Now().UTC(), tenantID.String(), notificationID.String(),
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		var one int
		err := s.pool.QueryRow(ctx,
			`SELECT 1 FROM notifications WHERE tenant_id = $1 AND id = $2`,
			tenantID.String(), notificationID.String()).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE tenant_id = $1 AND read = FALSE`,
		tenantID.String()).Scan(&count)
	return count, mapErr(err)
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	var (
		n              notification.Notification
		tenantRaw      string
		idRaw, lienRaw string
		typ, priority  string
		dedupe         *string
		readAt         *time.Time
	)
	err := row.Scan(&tenantRaw, &idRaw, &typ, &lienRaw, &priority, &n.Message,
		&dedupe, &n.Read, &readAt, &n.Revision, &n.CreatedAt, &n.UpdatedAt)
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
	if dedupe != nil {
		n.DedupeKey = *dedupe
	}
	n.ReadAt = readAt
	return &n, nil
}

// Helpers

// sqlBuilder numbers placeholders as arguments accumulate.
type sqlBuilder struct {
	sql  strings.Builder
	args []any
}

func (b *sqlBuilder) write(fragment string, arg any) {
	b.args = append(b.args, arg)
	fmt.Fprintf(&b.sql, "%s$%d", fragment, len(b.args))
}

func (b *sqlBuilder) raw(fragment string) {
	b.sql.WriteString(fragment)
}

func (b *sqlBuilder) paging(limit, offset int) {
	if limit > 0 {
		b.write(` LIMIT `, limit)
	}
	if offset > 0 {
		b.write(` OFFSET `, offset)
	}
}

func encodeMeta(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func decodeMeta(raw []byte, out *map[string]string) error {
	if len(raw) == 0 || string(raw) == "{}" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func firedOrEmpty(fired []int) []int {
	if fired == nil {
		return []int{}
	}
	return fired
}

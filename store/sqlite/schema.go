package sqlite

// Every table is partitioned by tenant_id as the leading index column.
// Dates are stored as ISO-8601 TEXT, money as INTEGER minor units,
// threshold sets and metadata as JSON TEXT.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS liens (
    tenant_id           TEXT NOT NULL,
    id                  TEXT NOT NULL,
    certificate_number  TEXT NOT NULL DEFAULT '',
    principal_cents     INTEGER NOT NULL DEFAULT 0,
    currency            TEXT NOT NULL DEFAULT 'usd',
    annual_rate_bp      INTEGER NOT NULL DEFAULT 0,
    purchase_date       TEXT NOT NULL,
    redemption_deadline TEXT NOT NULL,
    status              TEXT NOT NULL DEFAULT 'ACTIVE',
    county              TEXT NOT NULL DEFAULT '',
    state               TEXT NOT NULL DEFAULT '',
    metadata            TEXT NOT NULL DEFAULT '{}',
    revision            INTEGER NOT NULL DEFAULT 0,
    created_at          TEXT NOT NULL,
    updated_at          TEXT NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_liens_deadline ON liens (tenant_id, redemption_deadline);
CREATE INDEX IF NOT EXISTS idx_liens_status   ON liens (tenant_id, status);

CREATE TABLE IF NOT EXISTS payments (
    tenant_id    TEXT NOT NULL,
    id           TEXT NOT NULL,
    lien_id      TEXT NOT NULL,
    amount_cents INTEGER NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT 'usd',
    applied_date TEXT NOT NULL,
    method       TEXT NOT NULL DEFAULT '',
    reference    TEXT NOT NULL DEFAULT '',
    metadata     TEXT NOT NULL DEFAULT '{}',
    revision     INTEGER NOT NULL DEFAULT 0,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL,
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
    due_date         TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'PENDING',
    fired_thresholds TEXT NOT NULL DEFAULT '[]',
    revision         INTEGER NOT NULL DEFAULT 0,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
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
    read       INTEGER NOT NULL DEFAULT 0,
    read_at    TEXT,
    revision   INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_dedupe
    ON notifications (tenant_id, dedupe_key) WHERE dedupe_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_unread  ON notifications (tenant_id, read);
`

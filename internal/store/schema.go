package store

// Schema notes:
//   - days and times of day are stored as canonical ISO strings so the
//     BETWEEN window queries work lexicographically in both drivers
//   - amounts are NUMERIC and scanned into shopspring decimals
//   - allocations carry one row per (payment, lesson) pair; repeated
//     allocations accumulate into that row's quota
//   - associations keep one active row per student; upserts supersede

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS payments (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    payer_name  TEXT NOT NULL,
    day         TEXT NOT NULL,
    time_of_day TEXT NOT NULL DEFAULT '',
    amount      NUMERIC NOT NULL,
    currency    TEXT NOT NULL DEFAULT 'RUB',
    status      TEXT NOT NULL DEFAULT 'pending',
    skipped     INTEGER NOT NULL DEFAULT 0,
    source_id   TEXT UNIQUE,
    created_at  TIMESTAMP NOT NULL,
    updated_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_day ON payments(day);

CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);

CREATE TABLE IF NOT EXISTS lessons (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    student_name TEXT NOT NULL,
    day          TEXT NOT NULL,
    time_of_day  TEXT NOT NULL DEFAULT '',
    cost         NUMERIC NOT NULL DEFAULT 0,
    free         INTEGER NOT NULL DEFAULT 0,
    source_id    TEXT UNIQUE,
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lessons_day ON lessons(day);

CREATE INDEX IF NOT EXISTS idx_lessons_student ON lessons(student_name);

CREATE TABLE IF NOT EXISTS allocations (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    payment_id INTEGER NOT NULL REFERENCES payments(id),
    lesson_id  INTEGER NOT NULL REFERENCES lessons(id),
    quota      NUMERIC NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE(payment_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_allocations_payment ON allocations(payment_id);

CREATE INDEX IF NOT EXISTS idx_allocations_lesson ON allocations(lesson_id);

CREATE TABLE IF NOT EXISTS associations (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    student_name TEXT NOT NULL UNIQUE,
    payer_name   TEXT NOT NULL,
    note         TEXT NOT NULL DEFAULT '',
    valid_from   TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_associations_payer ON associations(payer_name);

CREATE TABLE IF NOT EXISTS rejected_suggestions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    lesson_id   INTEGER NOT NULL REFERENCES lessons(id),
    payment_id  INTEGER NOT NULL REFERENCES payments(id),
    rejected_at TIMESTAMP NOT NULL,
    UNIQUE(lesson_id, payment_id)
)
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS payments (
    id          BIGSERIAL PRIMARY KEY,
    payer_name  TEXT NOT NULL,
    day         TEXT NOT NULL,
    time_of_day TEXT NOT NULL DEFAULT '',
    amount      NUMERIC NOT NULL,
    currency    TEXT NOT NULL DEFAULT 'RUB',
    status      TEXT NOT NULL DEFAULT 'pending',
    skipped     BOOLEAN NOT NULL DEFAULT FALSE,
    source_id   TEXT UNIQUE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_day ON payments(day);

CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);

CREATE TABLE IF NOT EXISTS lessons (
    id           BIGSERIAL PRIMARY KEY,
    student_name TEXT NOT NULL,
    day          TEXT NOT NULL,
    time_of_day  TEXT NOT NULL DEFAULT '',
    cost         NUMERIC NOT NULL DEFAULT 0,
    free         BOOLEAN NOT NULL DEFAULT FALSE,
    source_id    TEXT UNIQUE,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lessons_day ON lessons(day);

CREATE INDEX IF NOT EXISTS idx_lessons_student ON lessons(student_name);

CREATE TABLE IF NOT EXISTS allocations (
    id         BIGSERIAL PRIMARY KEY,
    payment_id BIGINT NOT NULL REFERENCES payments(id),
    lesson_id  BIGINT NOT NULL REFERENCES lessons(id),
    quota      NUMERIC NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE(payment_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_allocations_payment ON allocations(payment_id);

CREATE INDEX IF NOT EXISTS idx_allocations_lesson ON allocations(lesson_id);

CREATE TABLE IF NOT EXISTS associations (
    id           BIGSERIAL PRIMARY KEY,
    student_name TEXT NOT NULL UNIQUE,
    payer_name   TEXT NOT NULL,
    note         TEXT NOT NULL DEFAULT '',
    valid_from   TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_associations_payer ON associations(payer_name);

CREATE TABLE IF NOT EXISTS rejected_suggestions (
    id          BIGSERIAL PRIMARY KEY,
    lesson_id   BIGINT NOT NULL REFERENCES lessons(id),
    payment_id  BIGINT NOT NULL REFERENCES payments(id),
    rejected_at TIMESTAMPTZ NOT NULL,
    UNIQUE(lesson_id, payment_id)
)
`

// Package sqlstore implements store.Store on PostgreSQL via sqlx. It is the
// adapter for deployments that want the content tree in a shared database
// instead of a local bolt file; the engines are oblivious to the switch.
//
// Uniqueness (branch slug per space, key name+namespace per branch, one
// translation per key+language) is delegated to UNIQUE constraints, with
// violations translated into the domain conflict error.
package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    slug       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS spaces (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL REFERENCES projects(id),
    name       TEXT NOT NULL,
    slug       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS branches (
    id               TEXT PRIMARY KEY,
    space_id         TEXT NOT NULL REFERENCES spaces(id),
    name             TEXT NOT NULL,
    slug             TEXT NOT NULL,
    is_default       BOOLEAN NOT NULL DEFAULT FALSE,
    source_branch_id TEXT,
    forked_at        TIMESTAMPTZ,
    created_at       TIMESTAMPTZ NOT NULL,
    UNIQUE (space_id, slug)
);
CREATE TABLE IF NOT EXISTS keys (
    id          TEXT PRIMARY KEY,
    branch_id   TEXT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    namespace   TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (branch_id, name, namespace)
);
CREATE TABLE IF NOT EXISTS translations (
    id         TEXT PRIMARY KEY,
    key_id     TEXT NOT NULL REFERENCES keys(id) ON DELETE CASCADE,
    language   TEXT NOT NULL,
    value      TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL DEFAULT 'pending',
    updated_at TIMESTAMPTZ NOT NULL,
    UNIQUE (key_id, language)
);
`

// DB is a PostgreSQL-backed store.Store.
type DB struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL with the given DSN and bootstraps the schema.
func Open(dsn string) (*DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, domain.Storagef(err, "connect postgres")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, domain.Storagef(err, "bootstrap schema")
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// View runs fn in a read-only transaction.
func (d *DB) View(fn func(store.Tx) error) error {
	return d.run(fn, true)
}

// Update runs fn in a writable transaction, rolling back on error.
func (d *DB) Update(fn func(store.Tx) error) error {
	return d.run(fn, false)
}

func (d *DB) run(fn func(store.Tx) error, readOnly bool) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return domain.Storagef(err, "begin transaction")
	}
	if readOnly {
		if _, err := tx.Exec("SET TRANSACTION READ ONLY"); err != nil {
			_ = tx.Rollback()
			return domain.Storagef(err, "set read only")
		}
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Storagef(err, "commit transaction")
	}
	return nil
}

type sqlTx struct {
	tx *sqlx.Tx
}

// translateErr maps driver errors onto the domain taxonomy.
func translateErr(err error, notFound string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf(notFound, args...)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return domain.Conflictf("duplicate entry: %s", pqErr.Detail)
	}
	return err
}

// Row types with db tags; the domain structs stay storage-agnostic.

type branchRow struct {
	ID             string         `db:"id"`
	SpaceID        string         `db:"space_id"`
	Name           string         `db:"name"`
	Slug           string         `db:"slug"`
	IsDefault      bool           `db:"is_default"`
	SourceBranchID sql.NullString `db:"source_branch_id"`
	ForkedAt       sql.NullTime   `db:"forked_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r branchRow) toDomain() domain.Branch {
	b := domain.Branch{
		ID:        r.ID,
		SpaceID:   r.SpaceID,
		Name:      r.Name,
		Slug:      r.Slug,
		IsDefault: r.IsDefault,
		CreatedAt: r.CreatedAt,
	}
	if r.SourceBranchID.Valid {
		s := r.SourceBranchID.String
		b.SourceBranchID = &s
	}
	if r.ForkedAt.Valid {
		t := r.ForkedAt.Time
		b.ForkedAt = &t
	}
	return b
}

type keyRow struct {
	ID          string    `db:"id"`
	BranchID    string    `db:"branch_id"`
	Name        string    `db:"name"`
	Namespace   string    `db:"namespace"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r keyRow) toDomain() domain.Key {
	return domain.Key(r)
}

type translationRow struct {
	ID        string    `db:"id"`
	KeyID     string    `db:"key_id"`
	Language  string    `db:"language"`
	Value     string    `db:"value"`
	Status    string    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r translationRow) toDomain() domain.Translation {
	return domain.Translation{
		ID:        r.ID,
		KeyID:     r.KeyID,
		Language:  r.Language,
		Value:     r.Value,
		Status:    domain.TranslationStatus(r.Status),
		UpdatedAt: r.UpdatedAt,
	}
}

// Projects

func (t *sqlTx) PutProject(p *domain.Project) error {
	_, err := t.tx.Exec(`INSERT INTO projects (id, name, slug, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, slug = $3`,
		p.ID, p.Name, p.Slug, p.CreatedAt)
	if err != nil {
		return translateErr(err, "project %s", p.ID)
	}
	return nil
}

func (t *sqlTx) GetProject(id string) (*domain.Project, error) {
	var p domain.Project
	err := t.tx.QueryRowx(`SELECT id, name, slug, created_at FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Slug, &p.CreatedAt)
	if err != nil {
		return nil, translateErr(err, "project %s", id)
	}
	return &p, nil
}

func (t *sqlTx) ListProjects() ([]domain.Project, error) {
	rows, err := t.tx.Queryx(`SELECT id, name, slug, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Spaces

func (t *sqlTx) PutSpace(s *domain.Space) error {
	_, err := t.tx.Exec(`INSERT INTO spaces (id, project_id, name, slug, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = $3, slug = $4`,
		s.ID, s.ProjectID, s.Name, s.Slug, s.CreatedAt)
	if err != nil {
		return translateErr(err, "space %s", s.ID)
	}
	return nil
}

func (t *sqlTx) GetSpace(id string) (*domain.Space, error) {
	var s domain.Space
	err := t.tx.QueryRowx(`SELECT id, project_id, name, slug, created_at FROM spaces WHERE id = $1`, id).
		Scan(&s.ID, &s.ProjectID, &s.Name, &s.Slug, &s.CreatedAt)
	if err != nil {
		return nil, translateErr(err, "space %s", id)
	}
	return &s, nil
}

func (t *sqlTx) ListSpaces(projectID string) ([]domain.Space, error) {
	rows, err := t.tx.Queryx(`SELECT id, project_id, name, slug, created_at FROM spaces WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Space
	for rows.Next() {
		var s domain.Space
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Slug, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Branches

func (t *sqlTx) PutBranch(b *domain.Branch) error {
	_, err := t.tx.Exec(`INSERT INTO branches
		(id, space_id, name, slug, is_default, source_branch_id, forked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = $3, slug = $4, is_default = $5`,
		b.ID, b.SpaceID, b.Name, b.Slug, b.IsDefault, b.SourceBranchID, b.ForkedAt, b.CreatedAt)
	if err != nil {
		return translateErr(err, "branch %s", b.ID)
	}
	return nil
}

func (t *sqlTx) GetBranch(id string) (*domain.Branch, error) {
	var r branchRow
	if err := t.tx.Get(&r, `SELECT * FROM branches WHERE id = $1`, id); err != nil {
		return nil, translateErr(err, "branch %s", id)
	}
	b := r.toDomain()
	return &b, nil
}

func (t *sqlTx) GetBranchBySlug(spaceID, slug string) (*domain.Branch, error) {
	var r branchRow
	if err := t.tx.Get(&r, `SELECT * FROM branches WHERE space_id = $1 AND slug = $2`, spaceID, slug); err != nil {
		return nil, translateErr(err, "branch %q in space %s", slug, spaceID)
	}
	b := r.toDomain()
	return &b, nil
}

func (t *sqlTx) ListBranches(spaceID string) ([]domain.Branch, error) {
	var rs []branchRow
	if err := t.tx.Select(&rs, `SELECT * FROM branches WHERE space_id = $1 ORDER BY name`, spaceID); err != nil {
		return nil, err
	}
	out := make([]domain.Branch, len(rs))
	for i, r := range rs {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (t *sqlTx) DeleteBranch(id string) error {
	res, err := t.tx.Exec(`DELETE FROM branches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("branch %s", id)
	}
	return nil
}

// Keys

func (t *sqlTx) CreateKey(k *domain.Key) error {
	_, err := t.tx.Exec(`INSERT INTO keys (id, branch_id, name, namespace, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, k.BranchID, k.Name, k.Namespace, k.Description, k.CreatedAt)
	if err != nil {
		return translateErr(err, "key %s", k.ID)
	}
	return nil
}

func (t *sqlTx) GetKey(id string) (*domain.Key, error) {
	var r keyRow
	if err := t.tx.Get(&r, `SELECT * FROM keys WHERE id = $1`, id); err != nil {
		return nil, translateErr(err, "key %s", id)
	}
	k := r.toDomain()
	return &k, nil
}

func (t *sqlTx) FindKey(branchID, name, namespace string) (*domain.Key, error) {
	var r keyRow
	err := t.tx.Get(&r, `SELECT * FROM keys WHERE branch_id = $1 AND name = $2 AND namespace = $3`,
		branchID, name, namespace)
	if err != nil {
		return nil, translateErr(err, "key %q in branch %s", name, branchID)
	}
	k := r.toDomain()
	return &k, nil
}

func (t *sqlTx) ListKeys(branchID string) ([]domain.Key, error) {
	var rs []keyRow
	if err := t.tx.Select(&rs, `SELECT * FROM keys WHERE branch_id = $1 ORDER BY namespace, name`, branchID); err != nil {
		return nil, err
	}
	out := make([]domain.Key, len(rs))
	for i, r := range rs {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (t *sqlTx) DeleteKey(id string) error {
	res, err := t.tx.Exec(`DELETE FROM keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("key %s", id)
	}
	return nil
}

// Translations

func (t *sqlTx) CreateTranslation(tr *domain.Translation) error {
	_, err := t.tx.Exec(`INSERT INTO translations (id, key_id, language, value, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tr.ID, tr.KeyID, tr.Language, tr.Value, string(tr.Status), tr.UpdatedAt)
	if err != nil {
		return translateErr(err, "translation %s", tr.ID)
	}
	return nil
}

func (t *sqlTx) ListTranslations(keyID string) ([]domain.Translation, error) {
	var rs []translationRow
	if err := t.tx.Select(&rs, `SELECT * FROM translations WHERE key_id = $1 ORDER BY language`, keyID); err != nil {
		return nil, err
	}
	out := make([]domain.Translation, len(rs))
	for i, r := range rs {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (t *sqlTx) FindTranslation(keyID, language string) (*domain.Translation, error) {
	var r translationRow
	err := t.tx.Get(&r, `SELECT * FROM translations WHERE key_id = $1 AND language = $2`, keyID, language)
	if err != nil {
		return nil, translateErr(err, "translation %q for key %s", language, keyID)
	}
	tr := r.toDomain()
	return &tr, nil
}

func (t *sqlTx) UpdateTranslation(id, value string, status domain.TranslationStatus, updatedAt time.Time) error {
	res, err := t.tx.Exec(`UPDATE translations SET value = $2, status = $3, updated_at = $4 WHERE id = $1`,
		id, value, string(status), updatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("translation %s", id)
	}
	return nil
}

var _ store.Store = (*DB)(nil)

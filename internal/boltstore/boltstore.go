// Package boltstore implements store.Store on top of bbolt.
//
// Entities are stored as JSON under per-entity buckets keyed by id. Two
// index buckets enforce the uniqueness rules and make the hot lookups
// single gets instead of scans: branch slugs within a space, and
// (name, namespace) within a branch. Composite index keys join their parts
// with a NUL byte so names containing separators cannot collide.
package boltstore

import (
	"bytes"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

// Buckets
var (
	bucketProjects     = []byte("projects")
	bucketSpaces       = []byte("spaces")
	bucketBranches     = []byte("branches")
	bucketBranchSlugs  = []byte("branch-slugs") // spaceID \0 slug -> branchID
	bucketKeys         = []byte("keys")
	bucketKeyNames     = []byte("key-names") // branchID \0 name \0 namespace -> keyID
	bucketTranslations = []byte("translations")
	bucketTransByKey   = []byte("translations-by-key") // keyID \0 language -> translationID
)

var allBuckets = [][]byte{
	bucketProjects, bucketSpaces, bucketBranches, bucketBranchSlugs,
	bucketKeys, bucketKeyNames, bucketTranslations, bucketTransByKey,
}

// DB is a bbolt-backed store.Store.
type DB struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the database at path and ensures all
// buckets exist.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0666, nil)
	if err != nil {
		return nil, domain.Storagef(err, "open %s", path)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, domain.Storagef(err, "create buckets")
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error { return d.db.Close() }

// View runs fn in a read-only transaction.
func (d *DB) View(fn func(store.Tx) error) error {
	return d.db.View(func(tx *bbolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

// Update runs fn in a writable transaction. An error from fn rolls the whole
// transaction back.
func (d *DB) Update(fn func(store.Tx) error) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTx{tx: tx})
	})
}

type boltTx struct {
	tx *bbolt.Tx
}

// indexKey joins parts with NUL.
func indexKey(parts ...string) []byte {
	return bytes.Join(stringsToBytes(parts), []byte{0})
}

func stringsToBytes(parts []string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func putJSON(b *bbolt.Bucket, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(id), data)
}

// Projects

func (t *boltTx) PutProject(p *domain.Project) error {
	return putJSON(t.tx.Bucket(bucketProjects), p.ID, p)
}

func (t *boltTx) GetProject(id string) (*domain.Project, error) {
	data := t.tx.Bucket(bucketProjects).Get([]byte(id))
	if data == nil {
		return nil, domain.NotFoundf("project %s", id)
	}
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *boltTx) ListProjects() ([]domain.Project, error) {
	var out []domain.Project
	err := t.tx.Bucket(bucketProjects).ForEach(func(_, v []byte) error {
		var p domain.Project
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// Spaces

func (t *boltTx) PutSpace(s *domain.Space) error {
	return putJSON(t.tx.Bucket(bucketSpaces), s.ID, s)
}

func (t *boltTx) GetSpace(id string) (*domain.Space, error) {
	data := t.tx.Bucket(bucketSpaces).Get([]byte(id))
	if data == nil {
		return nil, domain.NotFoundf("space %s", id)
	}
	var s domain.Space
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *boltTx) ListSpaces(projectID string) ([]domain.Space, error) {
	var out []domain.Space
	err := t.tx.Bucket(bucketSpaces).ForEach(func(_, v []byte) error {
		var s domain.Space
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		if s.ProjectID == projectID {
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

// Branches

func (t *boltTx) PutBranch(b *domain.Branch) error {
	slugs := t.tx.Bucket(bucketBranchSlugs)
	idx := indexKey(b.SpaceID, b.Slug)
	if existing := slugs.Get(idx); existing != nil && string(existing) != b.ID {
		return domain.Conflictf("branch slug %q already exists in space", b.Slug)
	}
	if err := slugs.Put(idx, []byte(b.ID)); err != nil {
		return err
	}
	return putJSON(t.tx.Bucket(bucketBranches), b.ID, b)
}

func (t *boltTx) GetBranch(id string) (*domain.Branch, error) {
	data := t.tx.Bucket(bucketBranches).Get([]byte(id))
	if data == nil {
		return nil, domain.NotFoundf("branch %s", id)
	}
	var b domain.Branch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *boltTx) GetBranchBySlug(spaceID, slug string) (*domain.Branch, error) {
	id := t.tx.Bucket(bucketBranchSlugs).Get(indexKey(spaceID, slug))
	if id == nil {
		return nil, domain.NotFoundf("branch %q in space %s", slug, spaceID)
	}
	return t.GetBranch(string(id))
}

func (t *boltTx) ListBranches(spaceID string) ([]domain.Branch, error) {
	var out []domain.Branch
	err := t.tx.Bucket(bucketBranches).ForEach(func(_, v []byte) error {
		var b domain.Branch
		if err := json.Unmarshal(v, &b); err != nil {
			return err
		}
		if b.SpaceID == spaceID {
			out = append(out, b)
		}
		return nil
	})
	return out, err
}

func (t *boltTx) DeleteBranch(id string) error {
	b, err := t.GetBranch(id)
	if err != nil {
		return err
	}
	keys, err := t.ListKeys(id)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := t.DeleteKey(k.ID); err != nil {
			return err
		}
	}
	if err := t.tx.Bucket(bucketBranchSlugs).Delete(indexKey(b.SpaceID, b.Slug)); err != nil {
		return err
	}
	return t.tx.Bucket(bucketBranches).Delete([]byte(id))
}

// Keys

func (t *boltTx) CreateKey(k *domain.Key) error {
	names := t.tx.Bucket(bucketKeyNames)
	idx := indexKey(k.BranchID, k.Name, k.Namespace)
	if names.Get(idx) != nil {
		return domain.Conflictf("key %q already exists in branch", k.Name)
	}
	if err := names.Put(idx, []byte(k.ID)); err != nil {
		return err
	}
	return putJSON(t.tx.Bucket(bucketKeys), k.ID, k)
}

func (t *boltTx) GetKey(id string) (*domain.Key, error) {
	data := t.tx.Bucket(bucketKeys).Get([]byte(id))
	if data == nil {
		return nil, domain.NotFoundf("key %s", id)
	}
	var k domain.Key
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (t *boltTx) FindKey(branchID, name, namespace string) (*domain.Key, error) {
	id := t.tx.Bucket(bucketKeyNames).Get(indexKey(branchID, name, namespace))
	if id == nil {
		return nil, domain.NotFoundf("key %q in branch %s", name, branchID)
	}
	return t.GetKey(string(id))
}

func (t *boltTx) ListKeys(branchID string) ([]domain.Key, error) {
	var out []domain.Key
	prefix := append(indexKey(branchID), 0)
	c := t.tx.Bucket(bucketKeyNames).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		key, err := t.GetKey(string(v))
		if err != nil {
			return nil, err
		}
		out = append(out, *key)
	}
	return out, nil
}

func (t *boltTx) DeleteKey(id string) error {
	k, err := t.GetKey(id)
	if err != nil {
		return err
	}
	trs, err := t.ListTranslations(id)
	if err != nil {
		return err
	}
	byKey := t.tx.Bucket(bucketTransByKey)
	for _, tr := range trs {
		if err := t.tx.Bucket(bucketTranslations).Delete([]byte(tr.ID)); err != nil {
			return err
		}
		if err := byKey.Delete(indexKey(tr.KeyID, tr.Language)); err != nil {
			return err
		}
	}
	if err := t.tx.Bucket(bucketKeyNames).Delete(indexKey(k.BranchID, k.Name, k.Namespace)); err != nil {
		return err
	}
	return t.tx.Bucket(bucketKeys).Delete([]byte(id))
}

// Translations

func (t *boltTx) CreateTranslation(tr *domain.Translation) error {
	byKey := t.tx.Bucket(bucketTransByKey)
	idx := indexKey(tr.KeyID, tr.Language)
	if byKey.Get(idx) != nil {
		return domain.Conflictf("translation %q already exists for key", tr.Language)
	}
	if err := byKey.Put(idx, []byte(tr.ID)); err != nil {
		return err
	}
	return putJSON(t.tx.Bucket(bucketTranslations), tr.ID, tr)
}

func (t *boltTx) getTranslation(id string) (*domain.Translation, error) {
	data := t.tx.Bucket(bucketTranslations).Get([]byte(id))
	if data == nil {
		return nil, domain.NotFoundf("translation %s", id)
	}
	var tr domain.Translation
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (t *boltTx) ListTranslations(keyID string) ([]domain.Translation, error) {
	var out []domain.Translation
	prefix := append(indexKey(keyID), 0)
	c := t.tx.Bucket(bucketTransByKey).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		tr, err := t.getTranslation(string(v))
		if err != nil {
			return nil, err
		}
		out = append(out, *tr)
	}
	return out, nil
}

func (t *boltTx) FindTranslation(keyID, language string) (*domain.Translation, error) {
	id := t.tx.Bucket(bucketTransByKey).Get(indexKey(keyID, language))
	if id == nil {
		return nil, domain.NotFoundf("translation %q for key %s", language, keyID)
	}
	return t.getTranslation(string(id))
}

func (t *boltTx) UpdateTranslation(id, value string, status domain.TranslationStatus, updatedAt time.Time) error {
	tr, err := t.getTranslation(id)
	if err != nil {
		return err
	}
	tr.Value = value
	tr.Status = status
	tr.UpdatedAt = updatedAt
	return putJSON(t.tx.Bucket(bucketTranslations), tr.ID, tr)
}

var _ store.Store = (*DB)(nil)

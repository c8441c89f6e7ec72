// Package snapshot serializes a branch's full key/translation set to a
// portable archive: zstd-compressed JSON carrying a BLAKE3 fingerprint of
// the canonical content. The fingerprint makes exports tamper-evident and
// doubles as a cheap whole-branch equality check.
package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/weftworks/weft/internal/domain"
	"github.com/weftworks/weft/internal/store"
)

// FormatVersion identifies the snapshot layout. Readers reject versions
// they do not know.
const FormatVersion = 1

// Translation is one language entry of a snapshot key.
type Translation struct {
	Language string                   `json:"language"`
	Value    string                   `json:"value"`
	Status   domain.TranslationStatus `json:"status"`
}

// Key is one translation unit of a snapshot.
type Key struct {
	Name         string        `json:"name"`
	Namespace    string        `json:"namespace,omitempty"`
	Description  string        `json:"description,omitempty"`
	Translations []Translation `json:"translations"`
}

// Snapshot is the exported form of a branch's content.
type Snapshot struct {
	Version     int       `json:"version"`
	BranchName  string    `json:"branch_name"`
	BranchSlug  string    `json:"branch_slug"`
	Fingerprint string    `json:"fingerprint"`
	ExportedAt  time.Time `json:"exported_at"`
	Keys        []Key     `json:"keys"`
}

// Build reads a branch's content into a Snapshot, fingerprint included.
func Build(s store.Store, branchID string) (*Snapshot, error) {
	var snap *Snapshot
	err := s.View(func(tx store.Tx) error {
		branch, err := tx.GetBranch(branchID)
		if err != nil {
			return err
		}
		keys, err := tx.ListKeys(branchID)
		if err != nil {
			return err
		}
		snap = &Snapshot{
			Version:    FormatVersion,
			BranchName: branch.Name,
			BranchSlug: branch.Slug,
			ExportedAt: time.Now(),
		}
		for _, k := range keys {
			translations, err := tx.ListTranslations(k.ID)
			if err != nil {
				return err
			}
			sk := Key{Name: k.Name, Namespace: k.Namespace, Description: k.Description}
			for _, tr := range translations {
				sk.Translations = append(sk.Translations, Translation{
					Language: tr.Language,
					Value:    tr.Value,
					Status:   tr.Status,
				})
			}
			sort.Slice(sk.Translations, func(i, j int) bool {
				return sk.Translations[i].Language < sk.Translations[j].Language
			})
			snap.Keys = append(snap.Keys, sk)
		}
		sort.Slice(snap.Keys, func(i, j int) bool {
			if snap.Keys[i].Namespace != snap.Keys[j].Namespace {
				return snap.Keys[i].Namespace < snap.Keys[j].Namespace
			}
			return snap.Keys[i].Name < snap.Keys[j].Name
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	snap.Fingerprint = fingerprint(snap.Keys)
	return snap, nil
}

// Fingerprint returns the BLAKE3 hex fingerprint of a branch's content.
// Two branches with identical key/translation sets have the same
// fingerprint regardless of entity ids or timestamps.
func Fingerprint(s store.Store, branchID string) (string, error) {
	snap, err := Build(s, branchID)
	if err != nil {
		return "", err
	}
	return snap.Fingerprint, nil
}

// fingerprint hashes the canonical form of the sorted keys: every field
// NUL-separated, records newline-separated.
func fingerprint(keys []Key) string {
	h := blake3.New(32, nil)
	for _, k := range keys {
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", k.Name, k.Namespace, k.Description)
		for _, tr := range k.Translations {
			fmt.Fprintf(h, "%s\x00%s\x00%s\n", tr.Language, tr.Value, tr.Status)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Write serializes a branch to w as zstd-compressed JSON.
func Write(s store.Store, branchID string, w io.Writer) error {
	snap, err := Build(s, branchID)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// Read decodes a snapshot from r and verifies its fingerprint.
func Read(r io.Reader) (*Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var snap Snapshot
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != FormatVersion {
		return nil, domain.Validationf("unsupported snapshot version %d", snap.Version)
	}
	if got := fingerprint(snap.Keys); got != snap.Fingerprint {
		return nil, domain.Validationf("snapshot fingerprint mismatch: archive corrupted or modified")
	}
	return &snap, nil
}

// Restore loads a snapshot's content into an empty branch. The whole import
// is one transaction; a branch that already has keys is rejected.
func Restore(s store.Store, branchID string, snap *Snapshot) error {
	now := time.Now()
	return s.Update(func(tx store.Tx) error {
		if _, err := tx.GetBranch(branchID); err != nil {
			return err
		}
		existing, err := tx.ListKeys(branchID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return domain.Invariantf("branch is not empty: refusing to import over %d keys", len(existing))
		}
		for _, sk := range snap.Keys {
			key := &domain.Key{
				ID:          uuid.NewString(),
				BranchID:    branchID,
				Name:        sk.Name,
				Namespace:   sk.Namespace,
				Description: sk.Description,
				CreatedAt:   now,
			}
			if err := tx.CreateKey(key); err != nil {
				return err
			}
			for _, str := range sk.Translations {
				tr := &domain.Translation{
					ID:        uuid.NewString(),
					KeyID:     key.ID,
					Language:  str.Language,
					Value:     str.Value,
					Status:    str.Status,
					UpdatedAt: now,
				}
				if err := tx.CreateTranslation(tr); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

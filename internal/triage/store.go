// Package triage records what editors did about queued claims.
package triage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/antibody/internal/model"
	"go.etcd.io/bbolt"
)

var (
	bucketRemediations = []byte("remediations")
	bucketByClaim      = []byte("remediations_by_claim")
)

// Store is the remediation log backed by bbolt
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (or creates) the log at path
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create triage dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open triage log: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRemediations); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketByClaim)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init triage buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// claimKey orders a claim's entries by time: claimID 0x00 unixNano(8, big endian) remediationID
func claimKey(claimID string, ts time.Time, id string) []byte {
	var key bytes.Buffer
	key.WriteString(claimID)
	key.WriteByte(0)
	var nanos [8]byte
	binary.BigEndian.PutUint64(nanos[:], uint64(ts.UnixNano()))
	key.Write(nanos[:])
	key.WriteString(id)
	return key.Bytes()
}

// Put stores a remediation and indexes it by claim
func (s *Store) Put(r model.Remediation) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal remediation: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRemediations).Put([]byte(r.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketByClaim).Put(claimKey(r.ClaimID, r.Timestamp, r.ID), []byte(r.ID))
	})
}

// Get returns one remediation by ID
func (s *Store) Get(id string) (*model.Remediation, error) {
	var r model.Remediation
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRemediations).Get([]byte(id))
		if data == nil {
			return model.NotFound("remediation", id)
		}
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// History returns a claim's remediations, newest first
func (s *Store) History(claimID string) ([]model.Remediation, error) {
	prefix := append([]byte(claimID), 0)
	var out []model.Remediation

	err := s.db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRemediations)
		c := tx.Bucket(bucketByClaim).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			data := records.Get(v)
			if data == nil {
				continue
			}
			var r model.Remediation
			if err := json.Unmarshal(data, &r); err != nil {
				return fmt.Errorf("decode remediation %s: %w", v, err)
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Index is oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountByAction tallies remediations per action
func (s *Store) CountByAction() (map[model.RemediationAction]int, int, error) {
	counts := make(map[model.RemediationAction]int)
	total := 0

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRemediations).ForEach(func(k, v []byte) error {
			var r struct {
				Action model.RemediationAction `json:"action"`
			}
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode remediation %s: %w", k, err)
			}
			counts[r.Action]++
			total++
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return counts, total, nil
}

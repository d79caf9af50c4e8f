package roster

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/roster-scan/internal/scanning"
)

const bucketName = "extractions"

// BoltStore implements EntryStore using BoltDB so extractions and edits
// survive a restart. Each namespace is a nested bucket keyed by identity.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Load retrieves the entry for identity
func (b *BoltStore) Load(namespace, identity string) (scanning.RecordSet, bool, error) {
	var records scanning.RecordSet
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		ns := tx.Bucket([]byte(bucketName)).Bucket([]byte(namespace))
		if ns == nil {
			return nil
		}
		data := ns.Get([]byte(identity))
		if data == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("unmarshaling entry %s: %w", identity, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if found && records == nil {
		records = scanning.RecordSet{}
	}
	return records, found, nil
}

// Save stores the entry for identity, creating the namespace bucket if needed
func (b *BoltStore) Save(namespace, identity string, records scanning.RecordSet) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		ns, err := tx.Bucket([]byte(bucketName)).CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return fmt.Errorf("creating namespace bucket: %w", err)
		}
		data, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		return ns.Put([]byte(identity), data)
	})
}

// Delete removes the entry for identity
func (b *BoltStore) Delete(namespace, identity string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		ns := tx.Bucket([]byte(bucketName)).Bucket([]byte(namespace))
		if ns == nil {
			return nil
		}
		return ns.Delete([]byte(identity))
	})
}

// List returns the identities of namespace in key order
func (b *BoltStore) List(namespace string) ([]string, error) {
	ids := make([]string, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		ns := tx.Bucket([]byte(bucketName)).Bucket([]byte(namespace))
		if ns == nil {
			return nil
		}
		return ns.ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Namespaces lists the namespaces holding at least one bucket
func (b *BoltStore) Namespaces() ([]string, error) {
	names := make([]string, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Purge drops the namespace bucket
func (b *BoltStore) Purge(namespace string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket([]byte(bucketName)).DeleteBucket([]byte(namespace))
		if err == bbolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}

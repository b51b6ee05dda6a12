package metricstore

import (
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// upgrade moves the schema to target in a single transaction: every
// catalogued namespace is re-created with its records and sequence carried
// over, then the missing namespace is added. If another writer already
// reached target the transaction is a no-op and the caller re-checks.
func (s *Store) upgrade(target uint64, videoID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if btoi(meta.Get(versionKey)) >= target {
			return nil
		}
		catalog := meta.Bucket(catalogKey)

		var names [][]byte
		err := catalog.ForEach(func(k, _ []byte) error {
			names = append(names, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := recreate(tx, name); err != nil {
				return errors.Wrapf(err, "migrate namespace %q", name)
			}
		}

		if _, err := tx.CreateBucketIfNotExists([]byte(videoID)); err != nil {
			return errors.Wrapf(err, "create namespace %q", videoID)
		}
		if err := catalog.Put([]byte(videoID), []byte{}); err != nil {
			return err
		}
		return meta.Put(versionKey, itob(target))
	})
}

type kv struct{ k, v []byte }

// recreate drops and rebuilds a namespace bucket with identical contents
// and sequence. A catalogued namespace whose bucket has vanished comes back
// empty.
func recreate(tx *bolt.Tx, name []byte) error {
	old := tx.Bucket(name)
	if old == nil {
		_, err := tx.CreateBucket(name)
		return err
	}

	seq := old.Sequence()
	records, err := snapshot(old)
	if err != nil {
		return err
	}
	var index []kv
	if idx := old.Bucket(indexBucket); idx != nil {
		if index, err = snapshot(idx); err != nil {
			return err
		}
	}

	if err := tx.DeleteBucket(name); err != nil {
		return err
	}
	b, err := tx.CreateBucket(name)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := b.Put(r.k, r.v); err != nil {
			return err
		}
	}
	if err := b.SetSequence(seq); err != nil {
		return err
	}
	if len(index) == 0 {
		return nil
	}
	idx, err := b.CreateBucket(indexBucket)
	if err != nil {
		return err
	}
	for _, e := range index {
		if err := idx.Put(e.k, e.v); err != nil {
			return err
		}
	}
	return nil
}

// snapshot copies the plain key/value pairs of b, skipping nested buckets.
// Copies are needed because the bucket's pages are released on delete.
func snapshot(b *bolt.Bucket) ([]kv, error) {
	var out []kv
	err := b.ForEach(func(k, v []byte) error {
		if v == nil {
			return nil
		}
		out = append(out, kv{
			k: append([]byte(nil), k...),
			v: append([]byte(nil), v...),
		})
		return nil
	})
	return out, err
}

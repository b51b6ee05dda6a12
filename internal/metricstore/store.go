package metricstore

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"chunk-player/internal/platform/logger"
)

const (
	// InitialVersion is the schema version of a freshly created store.
	InitialVersion uint64 = 2

	// DefaultMaxUpgrades caps the version bumps a single OpenNamespace may perform.
	DefaultMaxUpgrades = 16

	// DefaultLockTimeout bounds how long Open waits for the file lock.
	DefaultLockTimeout = time.Second
)

var (
	// Internal names start with a NUL byte so they never collide with a video id.
	metaBucket  = []byte("\x00meta")
	indexBucket = []byte("\x00ids")
	catalogKey  = []byte("namespaces")
	versionKey  = []byte("version")
)

// Store is a durable metric store with one namespace per video id. Each
// namespace is a bbolt bucket keyed by an autoincrementing sequence, so
// records come back in insertion order and keys are never reused.
//
// The schema version mirrors the browser database the records were first
// collected in: adding a namespace bumps the version, and every upgrade
// carries all existing namespaces over.
type Store struct {
	db  *bolt.DB
	log *slog.Logger

	maxUpgrades int
	lockTimeout time.Duration

	// mu serializes namespace creation; bbolt serializes everything else.
	mu       sync.Mutex
	upgrades int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithMaxUpgrades sets the version bump budget of OpenNamespace.
func WithMaxUpgrades(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxUpgrades = n
		}
	}
}

// WithLockTimeout sets how long Open waits for another process to release the file.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// Open opens or creates the store at path.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		log:         logger.Discard(),
		maxUpgrades: DefaultMaxUpgrades,
		lockTimeout: DefaultLockTimeout,
	}
	for _, o := range opts {
		o(s)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: s.lockTimeout})
	if err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "open %s: %v", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if meta.Get(versionKey) == nil {
			if err := meta.Put(versionKey, itob(InitialVersion)); err != nil {
				return err
			}
		}
		_, err = meta.CreateBucketIfNotExists(catalogKey)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(ErrStorageUnavailable, "initialize %s: %v", path, err)
	}

	s.db = db
	return s, nil
}

// Close releases the file. The store is unusable afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Version returns the current schema version, or 0 if it cannot be read.
func (s *Store) Version() uint64 {
	var v uint64
	_ = s.db.View(func(tx *bolt.Tx) error {
		v = btoi(tx.Bucket(metaBucket).Get(versionKey))
		return nil
	})
	return v
}

// Upgrades returns how many upgrade transactions this Store has committed.
func (s *Store) Upgrades() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upgrades
}

// Namespaces lists the namespaces sorted by name.
func (s *Store) Namespaces() ([]string, error) {
	names := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Bucket(catalogKey).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(ErrStorageUnavailable, "list namespaces: %v", err)
	}
	return names, nil
}

// OpenNamespace makes sure a namespace for videoID exists. If it does not,
// the schema is upgraded to the next version, creating it. Opening an
// existing namespace does not write.
func (s *Store) OpenNamespace(videoID string) error {
	if videoID == "" || videoID[0] == 0 {
		return errors.Wrapf(ErrInvalidNamespace, "%q", videoID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; ; attempt++ {
		exists, version, err := s.lookup(videoID)
		if err != nil {
			return errors.Wrapf(ErrStorageUnavailable, "read schema: %v", err)
		}
		if exists {
			return nil
		}
		if attempt >= s.maxUpgrades {
			break
		}

		target := version + 1
		s.log.Info("namespace missing, upgrading schema",
			slog.String("namespace", videoID),
			slog.Uint64("from_version", version),
			slog.Uint64("to_version", target))

		if err := s.upgrade(target, videoID); err != nil {
			lastErr = err
			s.log.Warn("schema upgrade failed",
				slog.String("namespace", videoID),
				slog.Uint64("to_version", target),
				slog.String("error", err.Error()))
			continue
		}
		s.upgrades++
	}

	if lastErr != nil {
		return errors.Wrapf(ErrStorageUnavailable, "namespace %q not created after %d upgrades: %v", videoID, s.maxUpgrades, lastErr)
	}
	return errors.Wrapf(ErrStorageUnavailable, "namespace %q not created after %d upgrades", videoID, s.maxUpgrades)
}

func (s *Store) lookup(videoID string) (exists bool, version uint64, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		version = btoi(tx.Bucket(metaBucket).Get(versionKey))
		exists = tx.Bucket([]byte(videoID)) != nil
		return nil
	})
	return exists, version, err
}

// Put appends rec to the namespace of videoID.
func (s *Store) Put(videoID string, rec Record) error {
	if rec.ID == "" {
		return &WriteError{Namespace: videoID, Err: ErrMissingID}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return &WriteError{Namespace: videoID, Err: err}
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := namespaceBucket(tx, videoID)
		if b == nil {
			return ErrNamespaceMissing
		}
		idx, err := b.CreateBucketIfNotExists(indexBucket)
		if err != nil {
			return err
		}
		if idx.Get([]byte(rec.ID)) != nil {
			return errors.Wrapf(ErrDuplicateID, "%q", rec.ID)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := itob(seq)
		if err := b.Put(key, payload); err != nil {
			return err
		}
		return idx.Put([]byte(rec.ID), key)
	})
	if err != nil {
		return &WriteError{Namespace: videoID, Err: err}
	}
	return nil
}

// GetAll returns every record of the namespace in insertion order. The
// result is a snapshot; concurrent writers are not blocked.
func (s *Store) GetAll(videoID string) ([]Record, error) {
	records := []Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := namespaceBucket(tx, videoID)
		if b == nil {
			return errors.Wrapf(ErrNamespaceMissing, "%q", videoID)
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if v == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrapf(err, "decode record %d", btoi(k))
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func namespaceBucket(tx *bolt.Tx, videoID string) *bolt.Bucket {
	if videoID == "" || videoID[0] == 0 {
		return nil
	}
	return tx.Bucket([]byte(videoID))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

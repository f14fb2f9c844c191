package link

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/meshwire/meshwire/pkg/frame"
)

// LogEntry accumulates per-peer traffic counters. The mesh engine updates
// it for each successful transmission to the peer and each frame from the
// peer that passes admission; dropped duplicates are not counted.
type LogEntry struct {
	SentFrames     uint64 `json:"sent_frames"`
	SentBytes      uint64 `json:"sent_bytes"`
	ReceivedFrames uint64 `json:"received_frames"`
	ReceivedBytes  uint64 `json:"received_bytes"`
}

// AddSent records one transmitted frame of n bytes.
func (e *LogEntry) AddSent(n int) {
	e.SentFrames++
	e.SentBytes += uint64(n)
}

// AddReceived records one received frame of n bytes.
func (e *LogEntry) AddReceived(n int) {
	e.ReceivedFrames++
	e.ReceivedBytes += uint64(n)
}

// LogStore stores per-peer traffic log entries.
type LogStore interface {
	Entry(peer frame.Addr) (*LogEntry, error)
	Record(peer frame.Addr, entry *LogEntry) error
}

type inMemoryLogStore struct {
	entries map[frame.Addr]*LogEntry
	mu      sync.Mutex
}

// InMemoryLogStore implements in-memory LogStore.
func InMemoryLogStore() LogStore {
	return &inMemoryLogStore{entries: map[frame.Addr]*LogEntry{}}
}

func (ls *inMemoryLogStore) Entry(peer frame.Addr) (*LogEntry, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	entry := ls.entries[peer]
	if entry == nil {
		entry = &LogEntry{}
		ls.entries[peer] = entry
	}
	out := *entry
	return &out, nil
}

func (ls *inMemoryLogStore) Record(peer frame.Addr, entry *LogEntry) error {
	ls.mu.Lock()
	e := *entry
	ls.entries[peer] = &e
	ls.mu.Unlock()
	return nil
}

type fileLogStore struct {
	dir string
}

// FileLogStore implements LogStore on a directory of JSON files.
func FileLogStore(dir string) LogStore {
	return &fileLogStore{dir}
}

func (ls *fileLogStore) Entry(peer frame.Addr) (*LogEntry, error) {
	f, err := os.Open(ls.path(peer))
	if err != nil {
		if os.IsNotExist(err) {
			return &LogEntry{}, nil
		}
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	entry := &LogEntry{}
	if err := json.NewDecoder(f).Decode(entry); err != nil {
		return nil, errors.Wrap(err, "json")
	}
	return entry, nil
}

func (ls *fileLogStore) Record(peer frame.Addr, entry *LogEntry) error {
	f, err := os.OpenFile(ls.path(peer), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return errors.Wrap(err, "json")
	}
	return nil
}

func (ls *fileLogStore) path(peer frame.Addr) string {
	return filepath.Join(ls.dir, fmt.Sprintf("%x.log", peer[:]))
}

var boltDBBucket = []byte("linklog")

type boltDBLogStore struct {
	db *bbolt.DB
}

// BoltDBLogStore implements LogStore on top of BoltDB. Traffic counters
// survive restarts; protocol state never does.
func BoltDBLogStore(path string) (LogStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(boltDBBucket); err != nil {
			return fmt.Errorf("failed to create bucket: %s", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &boltDBLogStore{db: db}, nil
}

func (ls *boltDBLogStore) Entry(peer frame.Addr) (*LogEntry, error) {
	entry := &LogEntry{}
	err := ls.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltDBBucket)
		v := b.Get(peer[:])
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, entry)
	})
	return entry, err
}

func (ls *boltDBLogStore) Record(peer frame.Addr, entry *LogEntry) error {
	return ls.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltDBBucket)
		v, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(peer[:], v)
	})
}

// Close closes the underlying BoltDB instance.
func (ls *boltDBLogStore) Close() error {
	if ls == nil {
		return nil
	}
	return ls.db.Close()
}

package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"dieter/pkg/models"
)

// DefaultStoreName is the record name the workstation snapshot lives under
const DefaultStoreName = "dieter-pro-store"

// ErrNoSnapshot is returned by a Store when nothing has been saved under a name
var ErrNoSnapshot = errors.New("no snapshot stored")

// Snapshot is the durable form of the ledger and credit balance
type Snapshot struct {
	Tracks  []models.Track        `json:"tracks"`
	Videos  []models.VideoProject `json:"videos"`
	Lyrics  []models.LyricEntry   `json:"lyrics"`
	Stems   []models.StemResult   `json:"stems"`
	Credits int                   `json:"credits"`
}

// Store loads and saves named snapshots
type Store interface {
	Load(name string) (*Snapshot, error)
	Save(name string, snap *Snapshot) error
}

// EncodeSnapshot serialises a snapshot to its flat JSON record
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}
	data, err := json.Marshal(snap.normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a JSON record. Missing collections decode as empty.
// The balance is returned as stored; Open clamps a negative one to zero.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	out := snap.normalized()
	return &out, nil
}

// normalized returns a copy with non-nil collections that shares no backing
// arrays with s
func (s *Snapshot) normalized() Snapshot {
	return Snapshot{
		Tracks:  append([]models.Track{}, s.Tracks...),
		Videos:  append([]models.VideoProject{}, s.Videos...),
		Lyrics:  append([]models.LyricEntry{}, s.Lyrics...),
		Stems:   append([]models.StemResult{}, s.Stems...),
		Credits: s.Credits,
	}
}

// MemoryStore keeps encoded snapshots in memory. It round-trips through
// JSON so it behaves like a durable backend.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	saves   int
	failErr error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Load implements Store
func (m *MemoryStore) Load(name string) (*Snapshot, error) {
	m.mu.Lock()
	data, ok := m.records[name]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoSnapshot
	}
	return DecodeSnapshot(data)
}

// Save implements Store
func (m *MemoryStore) Save(name string, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.records[name] = data
	m.saves++
	return nil
}

// Put stores raw bytes under name, bypassing encoding
func (m *MemoryStore) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[name] = append([]byte(nil), data...)
}

// Raw returns the stored bytes for name
func (m *MemoryStore) Raw(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.records[name]
	return append([]byte(nil), data...), ok
}

// Saves reports how many successful saves have happened
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailWith makes every subsequent Save return err; nil restores normal saves
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

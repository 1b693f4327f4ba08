package database

import (
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"dieter/internal/ledger"
	"dieter/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestDatabase(t *testing.T) (*Database, string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDatabase(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dbPath
}

func TestDatabase(t *testing.T) {
	db, _ := newTestDatabase(t)
	created := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := db.Load("nothing-here")
		if !errors.Is(err, ledger.ErrNoSnapshot) {
			t.Errorf("Expected ErrNoSnapshot, got %v", err)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		snap := &ledger.Snapshot{
			Tracks: []models.Track{{
				ID: "t1", Title: "Midnight Drive", Genre: "Lo-Fi", Mood: "Chill",
				BPM: 90, Duration: 15, VoiceModel: "No Vocals",
				AudioURL: "https://media.example/t1.mp3", CreatedAt: created,
			}},
			Stems: []models.StemResult{{
				ID: "s1", OriginalFile: "mix.wav",
				Stems:     models.Stems{Drums: "https://media.example/d.mp3", Bass: "https://media.example/b.mp3"},
				CreatedAt: created,
			}},
			Credits: 640,
		}

		if err := db.Save(ledger.DefaultStoreName, snap); err != nil {
			t.Fatalf("Failed to save snapshot: %v", err)
		}

		got, err := db.Load(ledger.DefaultStoreName)
		if err != nil {
			t.Fatalf("Failed to load snapshot: %v", err)
		}
		if got.Credits != 640 {
			t.Errorf("Expected credits 640, got %d", got.Credits)
		}
		if !reflect.DeepEqual(got.Tracks, snap.Tracks) {
			t.Errorf("Expected tracks %+v, got %+v", snap.Tracks, got.Tracks)
		}
		if got.Stems[0].Stems.Vocals != "" || got.Stems[0].Stems.Drums == "" {
			t.Errorf("Unexpected stems: %+v", got.Stems[0].Stems)
		}
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		if err := db.Save("overwrite", &ledger.Snapshot{Credits: 1}); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		if err := db.Save("overwrite", &ledger.Snapshot{Credits: 2}); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
		got, err := db.Load("overwrite")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if got.Credits != 2 {
			t.Errorf("Expected latest save to win, got credits %d", got.Credits)
		}
		if _, err := db.UpdatedAt("overwrite"); err != nil {
			t.Errorf("Expected updated_at to be readable: %v", err)
		}
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		if err := db.putRaw("corrupt", "{oops", SchemaVersion); err != nil {
			t.Fatalf("Failed to seed corrupt payload: %v", err)
		}
		if _, err := db.Load("corrupt"); err == nil {
			t.Error("Expected decode error for corrupt payload")
		}
	})

	t.Run("VersionMismatchStillLoads", func(t *testing.T) {
		if err := db.putRaw("future", `{"credits":42}`, SchemaVersion+1); err != nil {
			t.Fatalf("Failed to seed payload: %v", err)
		}
		got, err := db.Load("future")
		if err != nil {
			t.Fatalf("Expected mismatched version to load, got %v", err)
		}
		if got.Credits != 42 {
			t.Errorf("Expected credits 42, got %d", got.Credits)
		}
	})
}

func TestDatabaseBacksLedger(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	db, err := NewDatabase(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	l := ledger.Open(db, ledger.Options{InitialCredits: 650, MaxCredits: 1000, Logger: logger})
	l.AddTrack(models.Track{ID: "t1", Title: "Midnight Drive", BPM: 90, Duration: 15, CreatedAt: time.Now().UTC().Truncate(time.Second)})
	l.Debit(10)
	before := l.Snapshot()
	db.Close()

	// Reopen as a new process would
	db, err = NewDatabase(dbPath, logger)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	restored := ledger.Open(db, ledger.Options{InitialCredits: 650, MaxCredits: 1000, Logger: logger})
	if restored.Balance() != 640 {
		t.Errorf("Expected balance 640 after restart, got %d", restored.Balance())
	}
	after := restored.Snapshot()
	if len(after.Tracks) != 1 || after.Tracks[0].ID != "t1" || !after.Tracks[0].CreatedAt.Equal(before.Tracks[0].CreatedAt) {
		t.Errorf("Expected restored track t1, got %+v", after.Tracks)
	}
}

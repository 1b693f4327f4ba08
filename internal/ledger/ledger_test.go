package ledger

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"dieter/pkg/models"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestLedger(store Store) *Ledger {
	return Open(store, Options{InitialCredits: 650, MaxCredits: 1000, Logger: quietLogger()})
}

func testTrack(id string, created time.Time) models.Track {
	return models.Track{
		ID:         id,
		Title:      "Track " + id,
		Genre:      "Lo-Fi",
		Mood:       "Chill",
		BPM:        90,
		Duration:   15,
		VoiceModel: "No Vocals",
		AudioURL:   "https://media.example/" + id + ".mp3",
		CreatedAt:  created,
	}
}

func TestLedgerScenario(t *testing.T) {
	l := newTestLedger(NewMemoryStore())

	l.AddTrack(models.Track{ID: "t1", Title: "Midnight Drive", Genre: "Lo-Fi", BPM: 90, Duration: 15})
	balance := l.Debit(10)

	if balance != 640 {
		t.Errorf("Expected balance 640, got %d", balance)
	}
	if l.Balance() != 640 {
		t.Errorf("Expected stored balance 640, got %d", l.Balance())
	}
	tracks := l.Tracks()
	if len(tracks) != 1 || tracks[0].ID != "t1" {
		t.Fatalf("Expected track collection head t1, got %+v", tracks)
	}
}

func TestLedgerAddRemove(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("AddPrependsNewestFirst", func(t *testing.T) {
		l := newTestLedger(nil)
		l.AddTrack(testTrack("a", base))
		l.AddTrack(testTrack("b", base.Add(time.Minute)))
		l.AddTrack(testTrack("c", base.Add(2*time.Minute)))

		var ids []string
		for _, tr := range l.Tracks() {
			ids = append(ids, tr.ID)
		}
		if !reflect.DeepEqual(ids, []string{"c", "b", "a"}) {
			t.Errorf("Expected order [c b a], got %v", ids)
		}
	})

	t.Run("RemoveIsIdempotent", func(t *testing.T) {
		l := newTestLedger(nil)
		l.AddTrack(testTrack("a", base))
		l.AddTrack(testTrack("b", base))

		if !l.RemoveTrack("a") {
			t.Error("Expected first removal to report true")
		}
		if l.RemoveTrack("a") {
			t.Error("Expected second removal to be a no-op")
		}
		if l.RemoveTrack("missing") {
			t.Error("Expected removal of unknown id to be a no-op")
		}
		if got := len(l.Tracks()); got != 1 {
			t.Errorf("Expected 1 track left, got %d", got)
		}
	})

	t.Run("DuplicateIDReplacesEntry", func(t *testing.T) {
		l := newTestLedger(nil)
		l.AddTrack(testTrack("a", base))
		l.AddTrack(testTrack("b", base))
		again := testTrack("a", base.Add(time.Hour))
		again.Title = "Second take"
		l.AddTrack(again)

		tracks := l.Tracks()
		if len(tracks) != 2 {
			t.Fatalf("Expected 2 tracks, got %d", len(tracks))
		}
		if tracks[0].ID != "a" || tracks[0].Title != "Second take" {
			t.Errorf("Expected replaced entry at head, got %+v", tracks[0])
		}
	})

	t.Run("OtherCollections", func(t *testing.T) {
		l := newTestLedger(nil)
		l.AddVideo(models.VideoProject{ID: "v1", Title: "Neon", Duration: 5, CreatedAt: base})
		l.AddLyric(models.LyricEntry{ID: "l1", Title: "Hip-Hop - Summer", CreatedAt: base})
		l.AddStem(models.StemResult{ID: "s1", OriginalFile: "song.mp3", CreatedAt: base})

		if len(l.Videos()) != 1 || len(l.Lyrics()) != 1 || len(l.Stems()) != 1 {
			t.Fatal("Expected one entry in each collection")
		}
		if !l.RemoveVideo("v1") || !l.RemoveLyric("l1") || !l.RemoveStem("s1") {
			t.Error("Expected removals to succeed")
		}
		if l.RemoveVideo("v1") || l.RemoveLyric("l1") || l.RemoveStem("s1") {
			t.Error("Expected repeated removals to be no-ops")
		}
		if len(l.Videos())+len(l.Lyrics())+len(l.Stems()) != 0 {
			t.Error("Expected all collections to be empty")
		}
	})

	t.Run("ReadsReturnCopies", func(t *testing.T) {
		l := newTestLedger(nil)
		l.AddTrack(testTrack("a", base))
		tracks := l.Tracks()
		tracks[0].Title = "mutated"

		got, ok := l.Track("a")
		if !ok || got.Title == "mutated" {
			t.Error("Expected ledger entry to be unaffected by caller mutation")
		}
	})
}

func TestLedgerUniqueIDsUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := newTestLedger(nil)

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("t%d", rng.Intn(20))
		if rng.Intn(3) == 0 {
			l.RemoveTrack(id)
		} else {
			l.AddTrack(testTrack(id, time.Unix(int64(i), 0).UTC()))
		}

		seen := make(map[string]bool)
		for _, tr := range l.Tracks() {
			if seen[tr.ID] {
				t.Fatalf("Duplicate id %s after op %d", tr.ID, i)
			}
			seen[tr.ID] = true
		}
	}
}

func TestCreditAccount(t *testing.T) {
	tests := []struct {
		name    string
		initial int
		ops     []int // positive credits, negative debits
		want    int
	}{
		{"debit within balance", 650, []int{-10}, 640},
		{"debit clamps at zero", 5, []int{-10}, 0},
		{"credit exceeds display max", 990, []int{50}, 1040},
		{"mixed sequence", 20, []int{-15, -15, 30, -5}, 25},
		{"negative initial raised to zero", -5, []int{-1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := NewCreditAccount(tt.initial, 1000)
			for _, op := range tt.ops {
				if op < 0 {
					acct.Debit(-op)
				} else {
					acct.Credit(op)
				}
				if acct.Balance() < 0 {
					t.Fatalf("Balance went negative: %d", acct.Balance())
				}
			}
			if acct.Balance() != tt.want {
				t.Errorf("Expected balance %d, got %d", tt.want, acct.Balance())
			}
		})
	}

	t.Run("NeverNegativeRandom", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		acct := NewCreditAccount(650, 1000)
		for i := 0; i < 1000; i++ {
			if rng.Intn(2) == 0 {
				acct.Debit(rng.Intn(200))
			} else {
				acct.Credit(rng.Intn(50))
			}
			if acct.Balance() < 0 {
				t.Fatalf("Balance went negative at step %d", i)
			}
		}
	})

	t.Run("Fraction", func(t *testing.T) {
		acct := NewCreditAccount(1500, 1000)
		if acct.Fraction() != 1 {
			t.Errorf("Expected fraction capped at 1, got %v", acct.Fraction())
		}
		acct = NewCreditAccount(250, 1000)
		if acct.Fraction() != 0.25 {
			t.Errorf("Expected fraction 0.25, got %v", acct.Fraction())
		}
	})
}

func TestLedgerPersistence(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("RoundTrip", func(t *testing.T) {
		store := NewMemoryStore()
		l := newTestLedger(store)
		l.AddTrack(testTrack("t1", base))
		l.AddVideo(models.VideoProject{ID: "v1", Title: "Neon", Prompt: "neon city", VideoURL: "https://v/1.mp4", Duration: 5, CreatedAt: base})
		l.AddLyric(models.LyricEntry{ID: "l1", Title: "Pop - Rain", Genre: "Pop", Mood: "Hopeful", Content: "[Verse 1]", CreatedAt: base})
		l.AddStem(models.StemResult{ID: "s1", OriginalFile: "a.wav", Stems: models.Stems{Drums: "https://s/d.mp3"}, CreatedAt: base})
		l.Debit(35)

		before := l.Snapshot()
		restored := newTestLedger(store)
		after := restored.Snapshot()

		if !reflect.DeepEqual(before, after) {
			t.Errorf("Restored state differs:\nbefore %+v\nafter  %+v", before, after)
		}
		if restored.Balance() != 615 {
			t.Errorf("Expected restored balance 615, got %d", restored.Balance())
		}
	})

	t.Run("EveryMutationSaves", func(t *testing.T) {
		store := NewMemoryStore()
		l := newTestLedger(store)
		l.AddTrack(testTrack("t1", base))
		l.Debit(10)
		l.Credit(5)
		l.RemoveTrack("t1")
		l.RemoveTrack("t1") // no-op, nothing to save

		if store.Saves() != 4 {
			t.Errorf("Expected 4 saves, got %d", store.Saves())
		}
	})

	t.Run("MissingSnapshotUsesDefaults", func(t *testing.T) {
		l := newTestLedger(NewMemoryStore())
		if l.Balance() != 650 {
			t.Errorf("Expected initial balance 650, got %d", l.Balance())
		}
		if len(l.Tracks()) != 0 {
			t.Error("Expected no tracks")
		}
	})

	t.Run("CorruptSnapshotUsesDefaults", func(t *testing.T) {
		store := NewMemoryStore()
		store.Put(DefaultStoreName, []byte("{not json"))
		l := newTestLedger(store)
		if l.Balance() != 650 || len(l.Tracks()) != 0 {
			t.Error("Expected corrupt snapshot to be treated as empty state")
		}
	})

	t.Run("SaveFailureKeepsMemoryState", func(t *testing.T) {
		store := NewMemoryStore()
		l := newTestLedger(store)
		store.FailWith(errors.New("disk full"))

		l.AddTrack(testTrack("t1", base))
		l.Debit(10)

		if _, ok := l.Track("t1"); !ok {
			t.Error("Expected track to remain in memory after failed save")
		}
		if l.Balance() != 640 {
			t.Errorf("Expected balance 640, got %d", l.Balance())
		}
	})

	t.Run("EmptyCollectionsEncodeAsArrays", func(t *testing.T) {
		data, err := EncodeSnapshot(&Snapshot{Credits: 650})
		if err != nil {
			t.Fatalf("Failed to encode: %v", err)
		}
		want := `{"tracks":[],"videos":[],"lyrics":[],"stems":[],"credits":650}`
		if string(data) != want {
			t.Errorf("Expected %s, got %s", want, data)
		}
	})

	t.Run("LegacyRecordDecodes", func(t *testing.T) {
		raw := `{"tracks":[{"id":"x","title":"Old","genre":"Pop","mood":"Happy","duration":15,"audioUrl":"u","createdAt":"2024-01-02T03:04:05.000Z","bpm":120,"voiceModel":"No Vocals"}],"credits":600}`
		snap, err := DecodeSnapshot([]byte(raw))
		if err != nil {
			t.Fatalf("Failed to decode: %v", err)
		}
		if len(snap.Tracks) != 1 || snap.Tracks[0].BPM != 120 || snap.Credits != 600 {
			t.Errorf("Unexpected decode result: %+v", snap)
		}
		if snap.Videos == nil || snap.Lyrics == nil || snap.Stems == nil {
			t.Error("Expected missing collections to decode as empty slices")
		}
	})

	t.Run("NegativeCreditsKeepAssets", func(t *testing.T) {
		store := NewMemoryStore()
		store.Put(DefaultStoreName, []byte(`{"tracks":[{"id":"t1","title":"Keep","audioUrl":"u","createdAt":"2025-03-01T12:00:00Z"}],"credits":-4}`))
		l := newTestLedger(store)
		if l.Balance() != 0 {
			t.Errorf("Expected negative balance clamped to 0, got %d", l.Balance())
		}
		if _, ok := l.Track("t1"); !ok {
			t.Error("Expected tracks to survive a negative stored balance")
		}
	})
}

func TestLedgerRemovalListeners(t *testing.T) {
	l := newTestLedger(nil)
	l.AddTrack(testTrack("t1", time.Now()))

	var got []string
	l.OnTrackRemoved(func(id string) {
		// Listeners run outside the lock, so reading back must not deadlock
		if _, ok := l.Track(id); ok {
			t.Errorf("Expected %s to be gone when listener runs", id)
		}
		got = append(got, id)
	})

	l.RemoveTrack("t1")
	l.RemoveTrack("t1")

	if !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("Expected one notification for t1, got %v", got)
	}
}

package cache

import (
	"testing"
	"time"

	"dieter/internal/metadata"
)

func TestProbeCache(t *testing.T) {
	t.Run("SetAndGet", func(t *testing.T) {
		pc := NewProbeCache(time.Minute)
		defer pc.Close()

		pc.SetInfo("https://media.example/a.mp3", metadata.Info{Format: ".mp3", Duration: 15 * time.Second})
		info, ok := pc.GetInfo("https://media.example/a.mp3")
		if !ok {
			t.Fatal("Expected cached info")
		}
		if info.Duration != 15*time.Second {
			t.Errorf("Expected 15s, got %v", info.Duration)
		}
		if _, ok := pc.GetInfo("https://media.example/other.mp3"); ok {
			t.Error("Expected miss for unknown URL")
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		pc := NewProbeCache(time.Millisecond)
		defer pc.Close()

		pc.SetInfo("u", metadata.Info{Format: ".wav"})
		time.Sleep(5 * time.Millisecond)
		if _, ok := pc.GetInfo("u"); ok {
			t.Error("Expected expired entry to be a miss")
		}
	})

	t.Run("WrongTypeIsMiss", func(t *testing.T) {
		pc := NewProbeCache(time.Minute)
		defer pc.Close()

		pc.Set("u", "not an info")
		if _, ok := pc.GetInfo("u"); ok {
			t.Error("Expected type mismatch to be a miss")
		}
		pc.Delete("u")
		if pc.Size() != 0 {
			t.Errorf("Expected empty cache, got %d items", pc.Size())
		}
	})

	t.Run("CloseTwice", func(t *testing.T) {
		pc := NewProbeCache(time.Minute)
		pc.Close()
		pc.Close()
	})
}

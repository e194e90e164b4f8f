package cache

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"kitchencart/internal/model"
	"kitchencart/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingKV struct{}

func (failingKV) Get(string) (string, bool, error) { return "", false, errors.New("io error") }
func (failingKV) Set(string, string) error         { return errors.New("io error") }
func (failingKV) Remove(string) error              { return errors.New("io error") }

func TestSaveLoadClear(t *testing.T) {
	kv := storage.NewMemoryStore()
	cache := New(kv, testLogger())

	rec := model.PastKitchenRecord{
		KitchenID: "k1",
		Name:      "Tandoor House",
		Image:     "https://cdn.example/k1.jpg",
		ItemCount: 3,
	}
	cache.Save("owner-a", rec)

	got := cache.Load("owner-a")
	if got == nil {
		t.Fatal("Load() returned nil after Save()")
	}
	if *got != rec {
		t.Errorf("Load() = %+v, want %+v", *got, rec)
	}

	// Records are namespaced per owner
	if other := cache.Load("owner-b"); other != nil {
		t.Errorf("Load() for different owner = %+v, want nil", other)
	}

	cache.Clear("owner-a")
	if after := cache.Load("owner-a"); after != nil {
		t.Errorf("Load() after Clear() = %+v, want nil", after)
	}
}

func TestSave_OverwritesCompletely(t *testing.T) {
	cache := New(storage.NewMemoryStore(), testLogger())

	cache.Save("o", model.PastKitchenRecord{KitchenID: "k1", Name: "First", Image: "a.jpg", ItemCount: 5})
	cache.Save("o", model.PastKitchenRecord{KitchenID: "k2", Name: "Second", ItemCount: 1})

	got := cache.Load("o")
	if got == nil {
		t.Fatal("Load() returned nil")
	}
	// No field from the first record may survive the overwrite
	if got.KitchenID != "k2" || got.Name != "Second" || got.Image != "" || got.ItemCount != 1 {
		t.Errorf("Load() = %+v, want complete second record", *got)
	}
}

func TestStorageFailure_DegradesToMiss(t *testing.T) {
	cache := New(failingKV{}, testLogger())

	// Save and Clear must not panic or surface errors
	cache.Save("o", model.PastKitchenRecord{KitchenID: "k1", ItemCount: 1})
	cache.Clear("o")

	// Load fails open: a broken store looks like no known past kitchen
	if got := cache.Load("o"); got != nil {
		t.Errorf("Load() with broken storage = %+v, want nil", got)
	}
}

func TestLoad_CorruptRecordIsMiss(t *testing.T) {
	kv := storage.NewMemoryStore()
	kv.Set(keyPrefix+"o", "{not json")

	cache := New(kv, testLogger())
	if got := cache.Load("o"); got != nil {
		t.Errorf("Load() of corrupt record = %+v, want nil", got)
	}
}

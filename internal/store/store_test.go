package store

import (
	"log/slog"
	"os"
	"reflect"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func setupTestDB(t *testing.T) (*bolt.DB, func()) {
	tmpfile, err := os.CreateTemp("", "store_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpfile.Close()

	db, err := bolt.Open(tmpfile.Name(), 0600, nil)
	if err != nil {
		os.Remove(tmpfile.Name())
		t.Fatalf("failed to open db: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(tmpfile.Name())
	}

	return db, cleanup
}

func setupStore(t *testing.T) (*Store, func()) {
	db, cleanup := setupTestDB(t)
	s, err := New(db, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		cleanup()
		t.Fatalf("New() error = %v", err)
	}
	return s, cleanup
}

func TestActiveMap_RoundTrip(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	if m := s.ReadActiveMap(); m != nil {
		t.Errorf("ReadActiveMap() = %v on empty store, want nil", m)
	}

	want := map[string]string{"g1": "t1", "g2": "t2"}
	if err := s.WriteActiveMap(want); err != nil {
		t.Fatalf("WriteActiveMap() error = %v", err)
	}

	if got := s.ReadActiveMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("ReadActiveMap() = %v, want %v", got, want)
	}
}

func TestSetActiveTemplate_MergesSelection(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	if err := s.WriteActiveMap(map[string]string{"g1": "t1"}); err != nil {
		t.Fatalf("WriteActiveMap() error = %v", err)
	}
	if err := s.SetActiveTemplate("g2", "t9"); err != nil {
		t.Fatalf("SetActiveTemplate() error = %v", err)
	}
	if err := s.SetActiveTemplate("g1", "t5"); err != nil {
		t.Fatalf("SetActiveTemplate() error = %v", err)
	}

	want := map[string]string{"g1": "t5", "g2": "t9"}
	if got := s.ReadActiveMap(); !reflect.DeepEqual(got, want) {
		t.Errorf("ReadActiveMap() = %v, want %v", got, want)
	}
}

func TestSaveOverride_PreservesLocales(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	if err := s.SaveOverride("t1", Override{Body: map[string]string{"en": "Y"}}); err != nil {
		t.Fatalf("SaveOverride() error = %v", err)
	}
	if err := s.SaveOverride("t1", Override{Body: map[string]string{"es": "X"}}); err != nil {
		t.Fatalf("SaveOverride() error = %v", err)
	}

	got := s.ReadOverrides()["t1"].Body
	want := map[string]string{"en": "Y", "es": "X"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Body = %v, want %v (existing locale must survive)", got, want)
	}
}

func TestSaveOverride_Idempotent(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ov := Override{
		Body:      map[string]string{"en": "Hello"},
		Name:      "Welcome",
		UpdatedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	if err := s.SaveOverride("t1", ov); err != nil {
		t.Fatalf("SaveOverride() error = %v", err)
	}
	first := s.ReadOverrides()

	if err := s.SaveOverride("t1", ov); err != nil {
		t.Fatalf("SaveOverride() error = %v", err)
	}
	second := s.ReadOverrides()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("applying the same override twice changed the record: %v vs %v", first, second)
	}
}

func TestSaveOverride_ScalarMerge(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	s.SaveOverride("t1", Override{Name: "First", Subject: "Sub"})
	s.SaveOverride("t1", Override{Description: "Desc"})

	got := s.ReadOverrides()["t1"]
	if got.Name != "First" || got.Subject != "Sub" || got.Description != "Desc" {
		t.Errorf("override = %+v, want scalars merged not replaced", got)
	}
}

func TestRead_CorruptDataTreatedAsEmpty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	s, err := New(db, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		if err := b.Put(keyActiveMap, []byte("{not json")); err != nil {
			return err
		}
		return b.Put(keyOverrides, []byte("[1,2,3]"))
	})
	if err != nil {
		t.Fatalf("failed to plant corrupt data: %v", err)
	}

	if m := s.ReadActiveMap(); m != nil {
		t.Errorf("ReadActiveMap() = %v for corrupt record, want nil", m)
	}
	if m := s.ReadOverrides(); m != nil {
		t.Errorf("ReadOverrides() = %v for corrupt record, want nil", m)
	}

	// Writes still work after a corrupt read.
	if err := s.SetActiveTemplate("g1", "t1"); err != nil {
		t.Fatalf("SetActiveTemplate() after corrupt read error = %v", err)
	}
	if got := s.ReadActiveMap(); got["g1"] != "t1" {
		t.Errorf("ReadActiveMap() = %v after recovery write", got)
	}
}

func TestRead_TruncatedDataNotPartiallyReturned(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	s, err := New(db, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// A valid prefix followed by garbage: Unmarshal populates "g1"
	// before it fails, and that partial map must never escape.
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		if err := b.Put(keyActiveMap, []byte(`{"g1":"t1",]`)); err != nil {
			return err
		}
		return b.Put(keyOverrides, []byte(`{"t1":{"name":"Welcome"},]`))
	})
	if err != nil {
		t.Fatalf("failed to plant corrupt data: %v", err)
	}

	if m := s.ReadActiveMap(); m != nil {
		t.Errorf("ReadActiveMap() = %v for truncated record, want nil", m)
	}
	if m := s.ReadOverrides(); m != nil {
		t.Errorf("ReadOverrides() = %v for truncated record, want nil", m)
	}
}

func TestSubscribe_NotifiedAfterCommit(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	if err := s.SetActiveTemplate("g1", "t1"); err != nil {
		t.Fatalf("SetActiveTemplate() error = %v", err)
	}
	if err := s.SaveOverride("t1", Override{Body: map[string]string{"en": "x"}}); err != nil {
		t.Fatalf("SaveOverride() error = %v", err)
	}

	ev := <-events
	if ev.Kind != EventActiveMap || ev.GroupID != "g1" || ev.TemplateID != "t1" {
		t.Errorf("first event = %+v, want active-map change for g1/t1", ev)
	}

	ev = <-events
	if ev.Kind != EventOverrides || ev.TemplateID != "t1" {
		t.Errorf("second event = %+v, want override change for t1", ev)
	}

	// The write had committed by the time the event arrived.
	if got := s.ReadActiveMap()["g1"]; got != "t1" {
		t.Errorf("ReadActiveMap()[g1] = %q after notification, want %q", got, "t1")
	}
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	events, unsubscribe := s.Subscribe()
	unsubscribe()

	if err := s.SetActiveTemplate("g1", "t1"); err != nil {
		t.Fatalf("SetActiveTemplate() error = %v", err)
	}

	if _, open := <-events; open {
		t.Error("channel should be closed after unsubscribe")
	}
}

package history

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := openTestStore(t)

	if err := store.Record("m1", "cube", KindAnimate); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entry, err := store.Get("m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.ModelID != "m1" || entry.Name != "cube" || entry.Kind != KindAnimate {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Status != "pending" {
		t.Errorf("status = %q, want pending", entry.Status)
	}
	if entry.SubmittedAt.IsZero() {
		t.Error("expected submitted_at to be set")
	}
}

func TestRecord_DuplicateIsNoOp(t *testing.T) {
	store := openTestStore(t)

	if err := store.Record("m1", "cube", KindAnimate); err != nil {
		t.Fatal(err)
	}
	if err := store.Record("m1", "other", KindGenerate); err != nil {
		t.Fatalf("duplicate Record: %v", err)
	}

	entry, err := store.Get("m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Name != "cube" || entry.Kind != KindAnimate {
		t.Errorf("entry = %+v, want the original record kept", entry)
	}
}

func TestGet_Unknown(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("error = %v, want sql.ErrNoRows", err)
	}
}

func TestUpdateStage(t *testing.T) {
	store := openTestStore(t)

	if err := store.Record("m1", "cube", KindAnimate); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateStage("m1", "rigging", "processing"); err != nil {
		t.Fatalf("UpdateStage: %v", err)
	}

	entry, err := store.Get("m1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Stage != "rigging" || entry.Status != "processing" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Terminal() {
		t.Error("processing must not be terminal")
	}

	if err := store.UpdateStage("m1", "thumbnails_generation_finished", "done"); err != nil {
		t.Fatal(err)
	}
	entry, err = store.Get("m1")
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Terminal() {
		t.Error("done must be terminal")
	}
}

func TestList(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := store.Record(id, id, KindAnimate); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
}

func TestPending(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"m1", "m2", "m3", "m4"} {
		if err := store.Record(id, id, KindGenerate); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.UpdateStage("m2", "thumbnails_generation_finished", "done"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateStage("m3", "rigging_failed", "failed"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateStage("m4", "rigging", "processing"); err != nil {
		t.Fatal(err)
	}

	pending, err := store.Pending()
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2 (m1, m4)", len(pending))
	}
	got := map[string]bool{}
	for _, e := range pending {
		got[e.ModelID] = true
	}
	if !got["m1"] || !got["m4"] {
		t.Errorf("pending IDs = %v, want m1 and m4", got)
	}
}

package draft

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileKV_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	if err != nil {
		t.Fatal(err)
	}
	bridge, _ := NewBridge(kv, "user/1", nil)
	ctx := context.Background()

	if err := bridge.Save(ctx, sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// a fresh instance must see the same data
	reopened, _ := NewFileKV(dir)
	again, _ := NewBridge(reopened, "user/1", nil)
	got, err := again.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.RangeDates["101"]) != 2 {
		t.Errorf("range = %v", got.RangeDates["101"])
	}
	if _, err := os.Stat(filepath.Join(dir, "user%2F1.json")); err != nil {
		t.Errorf("expected escaped file name: %v", err)
	}
}

func TestFileKV_DamagedFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "user-1.json"), []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	kv, _ := NewFileKV(dir)
	bridge, _ := NewBridge(kv, "user-1", nil)

	got, err := bridge.Load(context.Background())
	if err != nil {
		t.Fatalf("damaged file should not error: %v", err)
	}
	if len(got.RangeDates) != 0 {
		t.Errorf("expected empty state, got %+v", got)
	}
}

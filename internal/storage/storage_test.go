package storage

import (
	"bytes"
	"os"
	"testing"
)

func TestEncodeDecodeCuckooSnapshot(t *testing.T) {
	keys := []uint64{1, 2, 0xdeadbeefcafe, ^uint64(0)}
	moves := []uint16{0, 1, 1234, 65535}

	blob := EncodeCuckooSnapshot(keys, moves)
	gotKeys, gotMoves, ok := DecodeCuckooSnapshot(blob)
	if !ok {
		t.Fatal("DecodeCuckooSnapshot reported not ok for its own encoding")
	}
	if len(gotKeys) != len(keys) || len(gotMoves) != len(moves) {
		t.Fatalf("length mismatch: got %d keys / %d moves", len(gotKeys), len(gotMoves))
	}
	for i := range keys {
		if gotKeys[i] != keys[i] {
			t.Errorf("key %d: got %x, want %x", i, gotKeys[i], keys[i])
		}
		if gotMoves[i] != moves[i] {
			t.Errorf("move %d: got %d, want %d", i, gotMoves[i], moves[i])
		}
	}
}

func TestDecodeCuckooSnapshotRejectsCorrupt(t *testing.T) {
	if _, _, ok := DecodeCuckooSnapshot([]byte{1, 2, 3}); ok {
		t.Error("expected DecodeCuckooSnapshot to reject a too-short blob")
	}
	if _, _, ok := DecodeCuckooSnapshot(nil); ok {
		t.Error("expected DecodeCuckooSnapshot to reject a nil blob")
	}
}

func TestCuckooCacheSaveLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "chessplay-storage-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(tmpDir)
	t.Setenv("XDG_DATA_HOME", tmpDir)

	cache, err := OpenCuckooCache()
	if err != nil {
		t.Fatalf("OpenCuckooCache: %v", err)
	}
	defer cache.Close()

	want := EncodeCuckooSnapshot([]uint64{10, 20, 30}, []uint16{1, 2, 3})
	if err := cache.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := cache.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load reported no cached blob after Save")
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Load returned %v, want %v", got, want)
	}
}

func TestDataPaths(t *testing.T) {
	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if dataDir == "" {
		t.Error("GetDataDir returned empty path")
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf("Data directory was not created: %s", dataDir)
	}
}

package logfilemgr

import (
	"os"
	"path/filepath"
	"testing"

	"waldb/pkg/types"
)

func TestParseFilenameStrict(t *testing.T) {
	tests := []struct {
		name    string
		wantIdx uint64
		wantErr bool
	}{
		{"log000000000001.tokulog", 1, false},
		{"log1.tokulog", 1, false},
		{"log000000000042.tokulog", 42, false},
		{"log000000000001.tokulog.bak", 0, true},
		{"xlog000000000001.tokulog", 0, true},
		{"log000000000001.tokulogx", 0, true},
		{"log.tokulog", 0, true},
		{"notalogfile.txt", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, err := ParseFilename(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFilename(%q) = %d, nil, want error", tt.name, idx)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFilename(%q): %v", tt.name, err)
			}
			if idx != tt.wantIdx {
				t.Errorf("ParseFilename(%q) = %d, want %d", tt.name, idx, tt.wantIdx)
			}
		})
	}
}

func TestFileNameRoundTrip(t *testing.T) {
	name := FileName(42)
	idx, err := ParseFilename(name)
	if err != nil {
		t.Fatalf("ParseFilename(%q): %v", name, err)
	}
	if idx != 42 {
		t.Errorf("round trip index = %d, want 42", idx)
	}
}

func TestInitScansDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, idx := range []uint64{0, 1, 3} {
		if err := os.WriteFile(filepath.Join(dir, FileName(idx)), []byte("x"), 0o644); err != nil {
			t.Fatalf("write log file: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "not-a-log-file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write decoy file: %v", err)
	}

	m, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got, want := m.NumLogFiles(), 3; got != want {
		t.Fatalf("NumLogFiles = %d, want %d", got, want)
	}
	entries := m.Entries()
	for i, want := range []uint64{0, 1, 3} {
		if entries[i].Index != want {
			t.Errorf("entries[%d].Index = %d, want %d", i, entries[i].Index, want)
		}
	}
}

func TestNextUnusedIndexSkipsGaps(t *testing.T) {
	m := New()
	if got := m.NextUnusedIndex(); got != 0 {
		t.Errorf("NextUnusedIndex on empty manager = %d, want 0", got)
	}

	m.Add(0, types.LSN(10))
	m.Add(1, types.LSN(20))
	m.Add(3, types.LSN(30))

	if got := m.NextUnusedIndex(); got != 4 {
		t.Errorf("NextUnusedIndex = %d, want 4 (max+1, gaps not reused)", got)
	}

	m.DeleteOldest() // removes index 0
	if got := m.NextUnusedIndex(); got != 4 {
		t.Errorf("NextUnusedIndex after trim = %d, want still 4", got)
	}
}

func TestGetOldestAndDelete(t *testing.T) {
	m := New()
	if _, ok := m.GetOldest(); ok {
		t.Fatalf("GetOldest on empty manager: ok = true")
	}

	m.Add(5, types.LSN(100))
	m.Add(6, types.LSN(200))

	oldest, ok := m.GetOldest()
	if !ok || oldest.Index != 5 {
		t.Fatalf("GetOldest = %+v, %v, want index 5", oldest, ok)
	}

	m.DeleteOldest()
	oldest, ok = m.GetOldest()
	if !ok || oldest.Index != 6 {
		t.Fatalf("GetOldest after delete = %+v, %v, want index 6", oldest, ok)
	}
}

func TestUpdateLastLSN(t *testing.T) {
	m := New()
	m.Add(0, types.LSN(1))
	m.UpdateLastLSN(0, types.LSN(99))

	entries := m.Entries()
	if entries[0].MaxLSN != types.LSN(99) {
		t.Errorf("MaxLSN = %v, want 99", entries[0].MaxLSN)
	}
}

func TestGetNewest(t *testing.T) {
	m := New()
	if _, ok := m.GetNewest(); ok {
		t.Fatalf("GetNewest on empty manager: ok = true")
	}
	m.Add(0, types.LSN(1))
	m.Add(1, types.LSN(2))
	newest, ok := m.GetNewest()
	if !ok || newest.Index != 1 {
		t.Fatalf("GetNewest = %+v, %v, want index 1", newest, ok)
	}
}

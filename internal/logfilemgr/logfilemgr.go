// Package logfilemgr tracks the set of on-disk log files belonging to one
// logger instance: their index numbers and the highest LSN known to have
// been written to each. It answers the questions the logger core needs
// while appending and rolling over ("what's the next unused index", "which
// file is oldest", "has the oldest file's last write been superseded by
// trim") without itself touching the filesystem beyond the initial
// directory scan.
package logfilemgr

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"waldb/pkg/types"
)

// filenamePattern is a strict full match: "log" + one or more digits +
// ".tokulog" and nothing else. A name with a trailing suffix (a stray
// ".bak", a partial write like ".tmp") is not a log file, matching the
// original is_a_logfile's `name[n] == 0` check after sscanf.
var filenamePattern = regexp.MustCompile(`^log(\d+)\.tokulog$`)

// ErrNotLogFile is returned by ParseFilename when a name does not match the
// strict log file pattern.
var ErrNotLogFile = fmt.Errorf("logfilemgr: not a log file name")

// FileName formats the canonical on-disk name for log file index.
func FileName(index uint64) string {
	return fmt.Sprintf("log%012d.tokulog", index)
}

// ParseFilename extracts the index from a log file name, or ErrNotLogFile
// if name doesn't match the strict pattern.
func ParseFilename(name string) (uint64, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, ErrNotLogFile
	}
	idx, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrNotLogFile, name, err)
	}
	return idx, nil
}

// Entry is one tracked log file.
type Entry struct {
	Index  uint64
	MaxLSN types.LSN
}

// Manager is the in-memory catalog of a logger's on-disk log files, kept
// sorted by index (oldest first).
type Manager struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{}
}

// Init scans dir for existing log files and populates the Manager from
// them, sorted by index. MaxLSN for each discovered file is left at zero;
// the logger fills it in from the file's header/contents as it is opened.
func Init(dir string) (*Manager, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("logfilemgr: read dir %s: %w", dir, err)
	}

	m := New()
	for _, de := range ents {
		if de.IsDir() {
			continue
		}
		idx, err := ParseFilename(de.Name())
		if err != nil {
			continue
		}
		m.entries = append(m.entries, Entry{Index: idx})
	}
	sort.Slice(m.entries, func(i, j int) bool { return m.entries[i].Index < m.entries[j].Index })
	return m, nil
}

// Add registers a newly created log file.
func (m *Manager) Add(index uint64, maxLSN types.LSN) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Index: index, MaxLSN: maxLSN})
}

// UpdateLastLSN records the highest LSN known to be present in the log
// file at index. Called after every group-commit flush of the active file.
func (m *Manager) UpdateLastLSN(index uint64, lsn types.LSN) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].Index == index {
			m.entries[i].MaxLSN = lsn
			return
		}
	}
}

// NumLogFiles returns the number of tracked log files.
func (m *Manager) NumLogFiles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// GetOldest returns the oldest tracked entry (lowest index). ok is false
// if there are no tracked log files.
func (m *Manager) GetOldest() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[0], true
}

// GetNewest returns the newest tracked entry (highest index), which is
// always the currently-active log file while the logger is open.
func (m *Manager) GetNewest() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return Entry{}, false
	}
	return m.entries[len(m.entries)-1], true
}

// DeleteOldest removes the oldest tracked entry from the catalog. It does
// not touch the filesystem; the caller deletes the underlying file itself
// and only then calls DeleteOldest, so a failed delete leaves the entry in
// the catalog.
func (m *Manager) DeleteOldest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return
	}
	m.entries = m.entries[1:]
}

// Entries returns a snapshot of all tracked entries, oldest first.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// NextUnusedIndex returns the smallest index guaranteed not to collide with
// any tracked log file: the maximum tracked index plus one, not the count
// of tracked files — trim can leave gaps in the index sequence, and those
// gaps must never be reused (a reused index could make an old, partially
// overwritten file plausible again during a later scan).
func (m *Manager) NextUnusedIndex() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return 0
	}
	max := m.entries[0].Index
	for _, e := range m.entries {
		if e.Index > max {
			max = e.Index
		}
	}
	return max + 1
}

package types

import (
	"time"
)

// Common system-wide constants
const (
	// DefaultMaxVersions is the number of snapshots retained per file.
	// Rationale: ten versions cover a working session of edits without
	// letting the history subtree grow unbounded; older states belong
	// in version control, not the bank.
	DefaultMaxVersions = 10

	// DefaultLockTimeout bounds how long a writer polls for the
	// sentinel lock before giving up with a LockTimeoutError.
	DefaultLockTimeout = 30 * time.Second

	// DefaultLockPollInterval is the fixed delay between lock
	// acquisition attempts.
	DefaultLockPollInterval = 100 * time.Millisecond

	// DefaultMinSectionLength filters trivial sections out of
	// duplicate detection. Sections shorter than this are never
	// reported, exact or similar.
	DefaultMinSectionLength = 50

	// DefaultSimilarityThreshold is the score at or above which a
	// section pair is reported as similar (scores of exactly 1.0 are
	// reported as exact duplicates instead).
	DefaultSimilarityThreshold = 0.85

	// DefaultDebounceWindow is how long the watcher waits for a path
	// to go quiet before delivering a single coalesced event.
	DefaultDebounceWindow = time.Second

	// IndexFileName is the canonical on-disk index, kept directly
	// under the bank root next to the tracked files.
	IndexFileName = "memory-bank.index.json"

	// HistoryDirName holds one subdirectory of snapshots per file.
	HistoryDirName = "history"

	// AnalyticsFileName holds optional, non-critical usage analytics.
	// Losing or corrupting it never affects correctness.
	AnalyticsFileName = "analytics.toml"
)

// Category is the priority tag assigned to a tracked file. Categories
// seed the static layer of the dependency graph: core files are loaded
// before context files, context before progress notes.
type Category uint8

const (
	CategoryCore Category = iota
	CategoryContext
	CategoryProgress
	CategoryCustom
)

func (c Category) String() string {
	switch c {
	case CategoryCore:
		return "core"
	case CategoryContext:
		return "context"
	case CategoryProgress:
		return "progress"
	case CategoryCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Section is one heading-delimited region of a tracked file. Sections
// are derived from content and recomputed on every write; they are
// owned by their TrackedFile and never persisted independently.
type Section struct {
	Heading   string `json:"heading"`
	Level     int    `json:"level"` // 1-6
	StartLine int    `json:"start_line"`
	Hash      string `json:"hash,omitempty"`
	Content   string `json:"-"` // derived, never serialized
}

// TrackedFile is the metadata record for one logical file in the bank.
// The Hash field always equals the hash of the last successful write;
// any mismatch against on-disk content signals an external edit.
type TrackedFile struct {
	Name         string    `json:"name"`
	Hash         string    `json:"hash"`
	FastHash     uint64    `json:"fast_hash"`
	SizeBytes    int64     `json:"size_bytes"`
	TokenCount   int       `json:"token_count"`
	Sections     []Section `json:"sections,omitempty"`
	VersionCount int       `json:"version_count"`
	ReadCount    int64     `json:"read_count"`
	WriteCount   int64     `json:"write_count"`
	LastModified time.Time `json:"last_modified"`
	Category     Category  `json:"category"`
}

// Clone returns a deep copy. In-memory index records are replaced
// wholesale rather than mutated, so concurrent readers never observe a
// half-updated record; Clone is the first step of every mutation.
func (f *TrackedFile) Clone() *TrackedFile {
	cp := *f
	cp.Sections = make([]Section, len(f.Sections))
	copy(cp.Sections, f.Sections)
	return &cp
}

// VersionSnapshot describes one retained historical version of a file.
// Content is stored in its own file under the history subtree; this
// struct is the sidecar metadata.
type VersionSnapshot struct {
	Name        string    `json:"name"`
	Version     int       `json:"version"`
	Hash        string    `json:"hash"`
	SizeBytes   int64     `json:"size_bytes"`
	TokenCount  int       `json:"token_count"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// EdgeKind distinguishes the three dependency edge flavors. Static
// edges form the fixed priority hierarchy seeded at construction; the
// other kinds are discovered from content and supplied externally.
type EdgeKind uint8

const (
	EdgeStatic EdgeKind = iota
	EdgeReference
	EdgeTransclusion
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeStatic:
		return "static"
	case EdgeReference:
		return "reference"
	case EdgeTransclusion:
		return "transclusion"
	default:
		return "unknown"
	}
}

// DependencyEdge is a directed edge in the dependency graph.
type DependencyEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// DuplicateKind marks whether a reported pair is byte-identical or
// merely similar above threshold.
type DuplicateKind uint8

const (
	DuplicateExact DuplicateKind = iota
	DuplicateSimilar
)

func (k DuplicateKind) String() string {
	if k == DuplicateExact {
		return "exact"
	}
	return "similar"
}

// DuplicatePair reports two sections with overlapping content.
// Pairs are ephemeral: recomputed per scan, never persisted.
type DuplicatePair struct {
	FileA      string
	SectionA   string
	FileB      string
	SectionB   string
	Similarity float64 // 1.0 for exact
	Kind       DuplicateKind
}

// EventType classifies a watcher notification.
type EventType uint8

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileEvent is one debounced out-of-band change observed on disk.
type FileEvent struct {
	Path string
	Type EventType
}

// AccessKind tags usage-counter updates on the index.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// SectionParser is the content->sections collaborator interface. The
// bank only depends on this; internal/sections provides the default
// markdown heading implementation.
type SectionParser interface {
	Parse(content string) []Section
}

// Package session provides the durable, append-only conversation store.
//
// Each conversation owns one directory under the store root, named
// conversation1, conversation2, … in creation order. The directory holds a
// metadata.json file (title plus the ordered segment list) and the
// synthesized audio files referenced by it. Appends rewrite the full
// metadata file through a temp-file rename so a crash mid-write can never
// corrupt a previously good record.
//
// The store assumes a single writer process per session directory. Reads
// (Load, List) are safe at any time.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Load and audio path resolution when no record
// exists for the requested session.
var ErrNotFound = errors.New("session not found")

const (
	metadataFile  = "metadata.json"
	sessionPrefix = "conversation"
)

// SegmentRecord is one persisted audio segment. The JSON shape is the wire
// format served to clients and must stay stable.
type SegmentRecord struct {
	// ID is the segment's session-scoped index: unique, 1-based, strictly
	// increasing in append order. Gaps are permitted (a consumed index whose
	// synthesis failed is never reused), duplicates are not.
	ID int `json:"id"`

	// Voice is the display label for the synthesis voice, e.g. "Voice 2".
	Voice string `json:"voice"`

	// Filename is the audio file within the session directory.
	Filename string `json:"filename"`

	// Text is the dialogue that was synthesized.
	Text string `json:"text"`

	// URL is the retrieval locator, built from the public base URL, the
	// session identifier, and Filename.
	URL string `json:"url"`
}

// Metadata is the full persisted record of one conversation.
type Metadata struct {
	Title    string          `json:"title"`
	Segments []SegmentRecord `json:"segments"`
}

// Summary is one entry in the session listing.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Store owns the session root directory and all metadata reads and writes.
type Store struct {
	root string

	mu sync.Mutex // serializes metadata writes
}

// NewStore opens (creating if needed) the session root directory.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("session store: create root %q: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the session root directory path.
func (s *Store) Root() string { return s.root }

// Session is the handle for the one conversation this process appends to. It
// carries the running index counter; the counter is advanced once per
// extracted segment and is never rewound, so indices stay unique even when a
// segment's synthesis fails.
type Session struct {
	id   string
	dir  string
	next int
}

// ID returns the session identifier (the directory name).
func (c *Session) ID() string { return c.id }

// Dir returns the absolute session directory path.
func (c *Session) Dir() string { return c.dir }

// RunningIndex returns the last index handed out.
func (c *Session) RunningIndex() int { return c.next }

// Advance consumes and returns the next index.
func (c *Session) Advance() int {
	c.next++
	return c.next
}

// Create allocates a never-before-used session identifier by probing
// conversation1, conversation2, … and taking the first ordinal with no
// directory on disk. The directory is created immediately so a concurrent
// restart cannot claim the same name. Failure is fatal to the caller: the
// process cannot run without a session.
func (s *Store) Create() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 1; ; i++ {
		id := fmt.Sprintf("%s%d", sessionPrefix, i)
		dir := filepath.Join(s.root, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return &Session{id: id, dir: dir}, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return nil, fmt.Errorf("session store: create %q: %w", id, err)
	}
}

// Open reattaches to an existing session and rebuilds the running index from
// persisted state. The counter resumes from the highest stored segment ID,
// not the segment count: failed syntheses leave index gaps, and counting
// would re-issue indices that already name audio files on disk.
func (s *Store) Open(id string) (*Session, error) {
	dir, err := s.sessionDir(id)
	if err != nil {
		return nil, err
	}
	meta, err := s.Load(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Session{id: id, dir: dir}, nil
		}
		return nil, err
	}
	next := 0
	if n := len(meta.Segments); n > 0 {
		next = meta.Segments[n-1].ID
	}
	return &Session{id: id, dir: dir, next: next}, nil
}

// Load returns the persisted record for a session, or ErrNotFound when no
// metadata has been written yet. A session directory with no metadata is
// indistinguishable from an unknown id; neither has a record to serve.
func (s *Store) Load(id string) (*Metadata, error) {
	dir, err := s.sessionDir(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("session store: load %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("session store: load %q: %w", id, err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("session store: decode %q metadata: %w", id, err)
	}
	return &meta, nil
}

// Append merges newSegments into the session's record and writes it back.
// On the first append for a session the supplied title becomes the permanent
// title; on every later append the stored title wins and the argument is
// ignored. Previously stored segments are never removed or reordered: the
// stored sequence is exactly the concatenation of all appends in call order.
func (s *Store) Append(id, title string, newSegments []SegmentRecord) error {
	dir, err := s.sessionDir(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.Load(id)
	switch {
	case errors.Is(err, ErrNotFound):
		meta = &Metadata{Title: title}
	case err != nil:
		return err
	}
	meta.Segments = append(meta.Segments, newSegments...)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session store: append %q: %w", id, err)
	}
	return writeFileAtomic(filepath.Join(dir, metadataFile), meta)
}

// List returns all known sessions, most recently modified first. Titles fall
// back to the raw session id when no metadata exists or it cannot be read.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}

	type candidate struct {
		Summary
		modTime int64
	}
	var found []candidate
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), sessionPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		c := candidate{
			Summary: Summary{ID: e.Name(), Title: e.Name()},
			modTime: info.ModTime().UnixNano(),
		}
		if meta, err := s.Load(e.Name()); err == nil && meta.Title != "" {
			c.Title = meta.Title
		}
		found = append(found, c)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].modTime > found[j].modTime })

	out := make([]Summary, len(found))
	for i, c := range found {
		out[i] = c.Summary
	}
	return out, nil
}

// WriteAudio stores synthesized audio bytes verbatim under the session
// directory. No transcoding or inspection is performed.
func (s *Store) WriteAudio(id, filename string, data []byte) error {
	dir, err := s.sessionDir(id)
	if err != nil {
		return err
	}
	if err := validName(filename); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		return fmt.Errorf("session store: write audio %q/%q: %w", id, filename, err)
	}
	return nil
}

// AudioPath resolves the on-disk path for a stored audio file, rejecting
// identifiers that would escape the session directory. ErrNotFound is
// returned when the file does not exist.
func (s *Store) AudioPath(id, filename string) (string, error) {
	dir, err := s.sessionDir(id)
	if err != nil {
		return "", err
	}
	if err := validName(filename); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("session store: audio %q/%q: %w", id, filename, ErrNotFound)
		}
		return "", fmt.Errorf("session store: audio %q/%q: %w", id, filename, err)
	}
	return path, nil
}

// AssetPath resolves a loose file stored directly under the session root,
// outside any conversation directory. Session directories themselves are not
// assets.
func (s *Store) AssetPath(filename string) (string, error) {
	if err := validName(filename); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filename)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("session store: asset %q: %w", filename, ErrNotFound)
		}
		return "", fmt.Errorf("session store: asset %q: %w", filename, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("session store: asset %q: %w", filename, ErrNotFound)
	}
	return path, nil
}

// sessionDir validates id and returns its directory path. Validation happens
// before any filesystem access so a hostile id can never address files
// outside the store root.
func (s *Store) sessionDir(id string) (string, error) {
	if err := validName(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id), nil
}

// validName accepts plain file-name components only: no separators, no
// parent references, nothing empty or hidden.
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("session store: invalid name %q: %w", name, ErrNotFound)
	}
	return nil
}

// writeFileAtomic writes v as indented JSON to path via a temp file in the
// same directory followed by a rename. Readers observe either the previous
// complete record or the new one, never a partial write.
func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("session store: encode metadata: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("session store: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session store: write metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("session store: sync metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session store: close metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("session store: commit metadata: %w", err)
	}
	return nil
}

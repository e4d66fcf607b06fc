package correction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dgallion1/docstruct/internal/doctree"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ErrProfileNotFound is returned when no profile exists for a document.
var ErrProfileNotFound = errors.New("correction profile not found")

// ErrNoCorrections is returned when saving a document with nothing applied.
var ErrNoCorrections = errors.New("no applied corrections")

// ErrUnknownNode is returned when reviewing a node the document does not have.
var ErrUnknownNode = errors.New("unknown node")

// Patterns identify documents a profile can be replayed against.
type Patterns struct {
	Fingerprint   string   `json:"fingerprint" yaml:"fingerprint"`
	TitleSlug     string   `json:"title_slug" yaml:"title_slug"`
	ChapterTitles []string `json:"chapter_titles" yaml:"chapter_titles"`
}

// SavedCorrections is a persisted correction profile.
type SavedCorrections struct {
	DocumentID  string       `json:"document_id" yaml:"document_id"`
	Corrections []Correction `json:"corrections" yaml:"corrections"`
	Patterns    Patterns     `json:"patterns" yaml:"patterns"`
	SavedAt     time.Time    `json:"saved_at" yaml:"saved_at"`
}

// ProfileStore persists correction profiles keyed by document ID.
type ProfileStore interface {
	Save(ctx context.Context, p SavedCorrections) error
	Load(ctx context.Context, docID string) (SavedCorrections, error)
	List(ctx context.Context) ([]string, error)
}

var (
	nonSlug  = regexp.MustCompile(`[^a-z0-9-]`)
	dashRuns = regexp.MustCompile(`-+`)
)

// minJaccard is the chapter-title overlap needed to treat two documents as the same.
const minJaccard = 0.6

// Slugify converts s to a path-safe slug. Accents are folded to their base letters.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(strings.ToLower(strings.TrimSpace(s))) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := nonSlug.ReplaceAllString(b.String(), "-")
	out = dashRuns.ReplaceAllString(out, "-")
	out = strings.Trim(out, "-")
	if len(out) > 50 {
		out = strings.TrimRight(out[:50], "-")
	}
	return out
}

// DocumentID derives a stable identity for a document from its title,
// falling back to the filename and then to the content hash.
func DocumentID(title, filename, contentHash string) string {
	if id := Slugify(title); id != "" {
		return id
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if id := Slugify(base); id != "" && filename != "" {
		return id
	}
	if len(contentHash) >= 12 {
		return "doc-" + contentHash[:12]
	}
	return "doc"
}

func normalizeTitle(t string) string {
	return strings.ToLower(strings.Join(strings.Fields(norm.NFC.String(t)), " "))
}

// Fingerprint hashes the normalized chapter titles in order.
func Fingerprint(titles []string) string {
	h := sha256.New()
	for _, t := range titles {
		h.Write([]byte(normalizeTitle(t)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DetectedTitles returns chapter titles as detected, before any retitling.
func DetectedTitles(d *doctree.DocumentStructure) []string {
	titles := make([]string, 0, len(d.Chapters))
	for _, ch := range d.Chapters {
		t := ch.Title
		if ch.Correction != nil && ch.Correction.OriginalTitle != "" {
			t = ch.Correction.OriginalTitle
		}
		titles = append(titles, t)
	}
	return titles
}

// PatternsFor builds the replay patterns for d.
func PatternsFor(d *doctree.DocumentStructure) Patterns {
	titles := DetectedTitles(d)
	return Patterns{
		Fingerprint:   Fingerprint(titles),
		TitleSlug:     Slugify(d.Metadata.Title),
		ChapterTitles: titles,
	}
}

// Matches reports whether d is recognizably the document p was saved for:
// same fingerprint, or enough chapter titles in common.
func (p Patterns) Matches(d *doctree.DocumentStructure) bool {
	titles := DetectedTitles(d)
	if p.Fingerprint != "" && p.Fingerprint == Fingerprint(titles) {
		return true
	}
	return jaccard(p.ChapterTitles, titles) >= minJaccard
}

func jaccard(a, b []string) float64 {
	set := func(list []string) map[string]bool {
		m := make(map[string]bool, len(list))
		for _, s := range list {
			if n := normalizeTitle(s); n != "" {
				m[n] = true
			}
		}
		return m
	}
	sa, sb := set(a), set(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for k := range sa {
		if sb[k] {
			inter++
		}
	}
	return float64(inter) / float64(len(sa)+len(sb)-inter)
}

// MemoryStore keeps profiles in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]SavedCorrections
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]SavedCorrections)}
}

func (m *MemoryStore) Save(_ context.Context, p SavedCorrections) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.DocumentID] = p
	return nil
}

func (m *MemoryStore) Load(_ context.Context, docID string) (SavedCorrections, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[docID]
	if !ok {
		return SavedCorrections{}, ErrProfileNotFound
	}
	return p, nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// FileStore keeps one YAML file per profile in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(docID string) string {
	return filepath.Join(f.dir, Slugify(docID)+".yaml")
}

func (f *FileStore) Save(_ context.Context, p SavedCorrections) error {
	if Slugify(p.DocumentID) == "" {
		return fmt.Errorf("save profile: empty document id")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := f.path(p.DocumentID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, f.path(p.DocumentID)); err != nil {
		return fmt.Errorf("commit profile: %w", err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, docID string) (SavedCorrections, error) {
	var p SavedCorrections
	data, err := os.ReadFile(f.path(docID))
	if errors.Is(err, os.ErrNotExist) {
		return p, ErrProfileNotFound
	}
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", docID, err)
	}
	return p, nil
}

func (f *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}

package content

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lixenwraith/csf-player/score"
)

// Score root layout
const (
	DataDirName   = "data"
	ScoresDirName = "scores"
)

var ErrNotDirectory = errors.New("not a directory")

// Root is a loaded score root directory: metadata, parsed tracks and assets
type Root struct {
	Dir    string
	Meta   Meta
	Scores []score.Score

	mu   sync.RWMutex
	data map[string]string
}

// Open reads metadata and parses every score under dir; assets are read on demand
func Open(dir string) (*Root, error) {
	log := slog.Default().With(slog.String("component", "content"))

	metaBytes, err := os.ReadFile(filepath.Join(dir, MetaFileName))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	meta, err := ParseMeta(metaBytes)
	if err != nil {
		return nil, err
	}

	dataDir := filepath.Join(dir, DataDirName)
	if err := requireDir(dataDir); err != nil {
		return nil, err
	}
	scoresDir := filepath.Join(dir, ScoresDirName)
	if err := requireDir(scoresDir); err != nil {
		return nil, err
	}

	names, err := walkFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	parser := score.NewParser(names)

	scorePaths, err := walkFiles(scoresDir)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	scores := make([]score.Score, 0, len(scorePaths))
	for _, name := range scorePaths {
		path := filepath.Join(scoresDir, filepath.FromSlash(name))
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read score: %w", err)
		}
		s, err := parser.Parse(string(text))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		scores = append(scores, s)
		log.Debug("score parsed", slog.String("score", name), slog.Int("measures", len(s.Measures)))
	}

	r := &Root{
		Dir:    dir,
		Meta:   meta,
		Scores: scores,
		data:   make(map[string]string),
	}

	info, err := os.Stat(r.AudioPath())
	if err != nil {
		return nil, fmt.Errorf("audio file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("audio file %s: not a regular file", r.AudioPath())
	}

	log.Info("score root opened",
		slog.String("dir", dir),
		slog.Int("bpm", meta.BPM),
		slog.Int("tracks", len(scores)),
		slog.Int("assets", len(names)))

	return r, nil
}

// OpenEager opens dir and preloads every asset into memory
func OpenEager(dir string) (*Root, error) {
	r, err := Open(dir)
	if err != nil {
		return nil, err
	}
	if err := r.LoadAllData(); err != nil {
		return nil, err
	}
	return r, nil
}

// AudioPath returns the audio file path resolved against the root
func (r *Root) AudioPath() string {
	return filepath.Join(r.Dir, filepath.FromSlash(r.Meta.AudioFilePath))
}

// LoadAllData reads every asset under the data directory into memory
func (r *Root) LoadAllData() error {
	dataDir := filepath.Join(r.Dir, DataDirName)
	names, err := walkFiles(dataDir)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}

	data := make(map[string]string, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dataDir, filepath.FromSlash(name)))
		if err != nil {
			return fmt.Errorf("read asset: %w", err)
		}
		data[name] = string(b)
	}

	r.mu.Lock()
	r.data = data
	r.mu.Unlock()
	return nil
}

// Lookup returns the asset text for name, reading from disk when not preloaded
// Any failure is reported as not found
func (r *Root) Lookup(name string) (string, bool) {
	r.mu.RLock()
	text, ok := r.data[name]
	r.mu.RUnlock()
	if ok {
		return text, true
	}

	if !fs.ValidPath(name) {
		return "", false
	}
	b, err := os.ReadFile(filepath.Join(r.Dir, DataDirName, filepath.FromSlash(name)))
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Index resolves every score into its render-ready form, in track order
func (r *Root) Index() []score.IndexedScore {
	tracks := make([]score.IndexedScore, len(r.Scores))
	for i, s := range r.Scores {
		tracks[i] = score.Index(s, r)
	}
	return tracks
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	return nil
}

// walkFiles lists regular files under dir as slash-separated relative paths, in lexical order
func walkFiles(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	return names, err
}

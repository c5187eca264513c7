// Package stage keeps downloaded photos on disk, one directory per page, until the destination confirms them.
//
// A page directory's contents are the only run state the migration needs:
//
//   - no directory: the page was never fetched
//   - directory with an unfinished manifest: a download was interrupted
//   - directory with photo files: fetched but not yet confirmed uploaded
//   - directory without photo files: already migrated and retired
//
// [Stage.Create] only ever publishes a page directory that already holds a manifest, so an empty directory can only
// be the result of [Stage.Retire].
package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/shared"
)

const manifestName = ".manifest.json"

// PageState is the resume state of one page directory.
type PageState int

const (
	Missing PageState = iota
	Pending
	Staged
	Retired
)

func (s PageState) String() string {
	switch s {
	case Missing:
		return "missing"
	case Pending:
		return "pending"
	case Staged:
		return "staged"
	case Retired:
		return "retired"
	default:
		return "unknown"
	}
}

// Manifest is the hidden per-page record of what was downloaded.
type Manifest struct {
	Page       int                  `json:"page"`
	Downloaded bool                 `json:"downloaded"`
	Photos     []models.StagedPhoto `json:"photos"`
}

// Lookup returns the manifest entry for sourceID.
func (m *Manifest) Lookup(sourceID string) (models.StagedPhoto, bool) {
	for _, p := range m.Photos {
		if p.SourceID == sourceID {
			return p, true
		}
	}
	return models.StagedPhoto{}, false
}

// Put adds or replaces the entry for p.SourceID.
func (m *Manifest) Put(p models.StagedPhoto) {
	for i := range m.Photos {
		if m.Photos[i].SourceID == p.SourceID {
			m.Photos[i] = p
			return
		}
	}
	m.Photos = append(m.Photos, p)
}

// Stage is a disk-backed holding area rooted at a working directory.
type Stage struct {
	root string
}

// New returns a Stage rooted at root. The root is created lazily.
func New(root string) *Stage {
	return &Stage{root: root}
}

func (s *Stage) Root() string { return s.root }

// Dir returns the directory for page.
func (s *Stage) Dir(page int) string {
	return filepath.Join(s.root, strconv.Itoa(page))
}

// PhotoPath returns the local path a source photo is staged at.
func (s *Stage) PhotoPath(page int, sourceID string) string {
	return filepath.Join(s.Dir(page), sourceID+".jpg")
}

// TempPath returns the hidden path a download is written to before it is stamped and renamed into place.
func (s *Stage) TempPath(page int, sourceID string) string {
	return filepath.Join(s.Dir(page), "."+sourceID+".jpg.part")
}

// Exists reports whether the page directory exists.
func (s *Stage) Exists(page int) bool {
	info, err := os.Stat(s.Dir(page))
	return err == nil && info.IsDir()
}

// Create makes the page directory holding an unfinished manifest.
//
// The directory is assembled under a hidden sibling and renamed into place, so a page directory never exists without
// either a manifest or photos. An existing page directory is left as it is.
func (s *Stage) Create(page int) error {
	if s.Exists(page) {
		return nil
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("%w: failed to create stage root: %v", shared.ErrStage, err)
	}

	tmp := filepath.Join(s.root, "."+strconv.Itoa(page)+".tmp")
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("%w: failed to clear %s: %v", shared.ErrStage, tmp, err)
	}
	if err := os.Mkdir(tmp, 0755); err != nil {
		return fmt.Errorf("%w: failed to create page %d: %v", shared.ErrStage, page, err)
	}

	data, err := encodeManifest(page, &Manifest{})
	if err == nil {
		err = os.WriteFile(filepath.Join(tmp, manifestName), data, 0644)
	}
	if err == nil {
		err = os.Rename(tmp, s.Dir(page))
	}
	if err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("%w: failed to create page %d: %v", shared.ErrStage, page, err)
	}
	return nil
}

// IsEmpty reports whether the page directory holds no photo files.
func (s *Stage) IsEmpty(page int) (bool, error) {
	files, err := s.Files(page)
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}

// Files lists the photo files of a page in name order. Hidden files are not photos.
func (s *Stage) Files(page int) ([]string, error) {
	entries, err := os.ReadDir(s.Dir(page))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read page %d: %v", shared.ErrStage, page, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(s.Dir(page), e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Inspect classifies a page directory.
func (s *Stage) Inspect(page int) (PageState, error) {
	if !s.Exists(page) {
		return Missing, nil
	}

	m, err := s.ReadManifest(page)
	switch {
	case err == nil && !m.Downloaded:
		return Pending, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return Missing, err
	}

	empty, err := s.IsEmpty(page)
	if err != nil {
		return Missing, err
	}
	if empty {
		return Retired, nil
	}
	return Staged, nil
}

// ReadManifest loads a page's manifest. A page without one returns an error matching [fs.ErrNotExist].
func (s *Stage) ReadManifest(page int) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(page), manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: failed to read manifest for page %d: %v", shared.ErrStage, page, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: corrupt manifest for page %d: %v", shared.ErrStage, page, err)
	}
	return &m, nil
}

// WriteManifest replaces a page's manifest atomically.
func (s *Stage) WriteManifest(page int, m *Manifest) error {
	data, err := encodeManifest(page, m)
	if err != nil {
		return err
	}

	path := filepath.Join(s.Dir(page), manifestName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write manifest for page %d: %v", shared.ErrStage, page, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to commit manifest for page %d: %v", shared.ErrStage, page, err)
	}
	return nil
}

func encodeManifest(page int, m *Manifest) ([]byte, error) {
	m.Page = page
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode manifest: %v", shared.ErrStage, err)
	}
	return data, nil
}

// Photos returns the staged photos of a page, one per photo file on disk.
//
// Metadata comes from the manifest when the file is listed there; files without an entry carry only their source id.
func (s *Stage) Photos(page int) ([]models.StagedPhoto, error) {
	files, err := s.Files(page)
	if err != nil {
		return nil, err
	}

	m, err := s.ReadManifest(page)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		m = &Manifest{}
	}

	byName := make(map[string]models.StagedPhoto, len(m.Photos))
	for _, p := range m.Photos {
		byName[filepath.Base(p.LocalPath)] = p
	}

	photos := make([]models.StagedPhoto, 0, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		p, ok := byName[name]
		if !ok {
			p = models.StagedPhoto{SourceID: strings.TrimSuffix(name, filepath.Ext(name))}
		}
		p.LocalPath = f
		photos = append(photos, p)
	}
	return photos, nil
}

// Retire deletes every file in the page directory, photos first and the manifest last.
//
// The directory itself is kept so the next run sees the page as migrated.
func (s *Stage) Retire(page int) error {
	entries, err := os.ReadDir(s.Dir(page))
	if err != nil {
		return fmt.Errorf("%w: failed to read page %d: %v", shared.ErrStage, page, err)
	}

	for _, e := range entries {
		if e.IsDir() || e.Name() == manifestName {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir(page), e.Name())); err != nil {
			return fmt.Errorf("%w: failed to retire %s: %v", shared.ErrStage, e.Name(), err)
		}
	}

	if err := os.Remove(filepath.Join(s.Dir(page), manifestName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove manifest for page %d: %v", shared.ErrStage, page, err)
	}
	return nil
}

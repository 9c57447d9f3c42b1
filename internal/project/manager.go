package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wcscanner/server/internal/rig"
	"gopkg.in/yaml.v3"
)

// Manager implements rig.Projects over a base directory.
type Manager struct {
	dir    string
	now    func() time.Time
	thumbs *thumbCache
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now, thumbs: newThumbCache()}
}

// Dir returns the base directory.
func (m *Manager) Dir() string {
	return m.dir
}

// EnsureBaseDir creates the base directory if it does not exist.
func (m *Manager) EnsureBaseDir() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating project dir: %w", err)
	}
	return nil
}

func (m *Manager) projectDir(name string) string {
	return filepath.Join(m.dir, name)
}

func (m *Manager) archivePath(name string) string {
	return filepath.Join(m.dir, name+".zip")
}

func (m *Manager) Create(ctx context.Context, spec rig.ProjectSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta := &Metadata{
		Name:                spec.Name,
		Description:         spec.Description,
		PicturesPerRotation: spec.PicturesPerRotation,
		Resolution:          spec.Resolution,
		CreatedAt:           m.now().UTC().Truncate(time.Second),
	}
	if err := meta.validate(); err != nil {
		return err
	}

	dir := m.projectDir(spec.Name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrProjectExists, spec.Name)
		}
		return fmt.Errorf("creating project %s: %w", spec.Name, err)
	}
	if err := os.Mkdir(filepath.Join(dir, picturesDir), 0o755); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("creating pictures dir: %w", err)
	}
	if err := m.saveMetadata(dir, meta); err != nil {
		os.RemoveAll(dir)
		return err
	}

	log.Printf("Created project %s (%d pictures/rotation at %s)", meta.Name, meta.PicturesPerRotation, meta.Resolution)
	return nil
}

// saveMetadata writes project.yaml using a temp-file-then-rename pattern.
func (m *Manager) saveMetadata(dir string, meta *Metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".project-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, metadataFile)); err != nil {
		return fmt.Errorf("renaming metadata file: %w", err)
	}
	committed = true
	return nil
}

// Load reads the metadata of one project.
func (m *Manager) Load(name string) (*Metadata, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(m.projectDir(name), metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata of %s: %w", name, err)
	}
	// The directory name is authoritative.
	meta.Name = name
	return &meta, nil
}

// PicturesDir returns the directory the capture loop writes into.
func (m *Manager) PicturesDir(name string) (string, error) {
	if _, err := m.Load(name); err != nil {
		return "", err
	}
	return filepath.Join(m.projectDir(name), picturesDir), nil
}

// List returns all projects sorted by name. Directories without readable
// metadata are skipped.
func (m *Manager) List(ctx context.Context) ([]rig.ProjectSummary, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading project dir: %w", err)
	}

	result := make([]rig.ProjectSummary, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || ValidateName(entry.Name()) != nil {
			continue
		}
		meta, err := m.Load(entry.Name())
		if err != nil {
			if !errors.Is(err, ErrProjectNotFound) {
				log.Printf("Skipping project %s: %v", entry.Name(), err)
			}
			continue
		}
		result = append(result, m.summarize(meta))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Manager) summarize(meta *Metadata) rig.ProjectSummary {
	s := rig.ProjectSummary{
		Name:                meta.Name,
		Description:         meta.Description,
		PicturesPerRotation: meta.PicturesPerRotation,
		Resolution:          meta.Resolution,
		CreatedAt:           meta.CreatedAt,
	}

	dir := m.projectDir(meta.Name)
	pictures := filepath.Join(dir, picturesDir)
	var newest string
	var newestMod time.Time
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		s.SizeBytes += info.Size()
		if filepath.Dir(path) != pictures {
			return nil
		}
		s.PictureCount++
		if !isJPEG(path) {
			return nil
		}
		mod := info.ModTime()
		if newest == "" || mod.After(newestMod) || (mod.Equal(newestMod) && path > newest) {
			newest, newestMod = path, mod
		}
		return nil
	})
	if newest != "" {
		s.PreviewData = m.thumbs.get(meta.Name, newest, newestMod)
	}

	if _, err := os.Stat(m.archivePath(meta.Name)); err == nil {
		s.Zipped = true
	}
	return s
}

// Delete removes the project directory and its archive.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.Load(name); err != nil {
		return err
	}
	if err := os.RemoveAll(m.projectDir(name)); err != nil {
		return fmt.Errorf("removing project %s: %w", name, err)
	}
	if err := os.Remove(m.archivePath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing archive of %s: %w", name, err)
	}
	m.thumbs.forget(name)
	log.Printf("Removed project %s", name)
	return nil
}

// ArchivePath returns the path of an existing project archive.
func (m *Manager) ArchivePath(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	path := m.archivePath(name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrArchiveNotFound, name)
	}
	return path, nil
}

func isJPEG(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jpg" || ext == ".jpeg"
}

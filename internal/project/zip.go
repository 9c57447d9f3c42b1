package project

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Zip archives the project into <base>/<name>.zip, replacing any previous
// archive. Entries are stored under a top-level <name>/ folder.
func (m *Manager) Zip(ctx context.Context, name string) (string, error) {
	if _, err := m.Load(name); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(m.dir, "."+name+"-*.zip.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	if err := addDir(ctx, zw, m.projectDir(name), name); err != nil {
		zw.Close()
		tmp.Close()
		return "", fmt.Errorf("archiving %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("finishing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing archive: %w", err)
	}

	dst := m.archivePath(name)
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("renaming archive: %w", err)
	}
	committed = true

	log.Printf("Zipped project %s to %s", name, dst)
	return dst, nil
}

func addDir(ctx context.Context, zw *zip.Writer, root, prefix string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = prefix + "/" + filepath.ToSlash(rel)
		// JPEGs do not compress further.
		if isJPEG(path) {
			hdr.Method = zip.Store
		} else {
			hdr.Method = zip.Deflate
		}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
}

// Package scanner drives the camera and turntable through capture loops.
package scanner

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/wcscanner/server/internal/project"
)

// Camera takes pictures. Capture writes a JPEG of the given size to path;
// Preview returns a small JPEG frame.
type Camera interface {
	Capture(ctx context.Context, path string, width, height int) error
	Preview(ctx context.Context) ([]byte, error)
}

// Turntable rotates the bed; positive degrees turn clockwise.
type Turntable interface {
	Rotate(ctx context.Context, degrees float64) error
}

// Projects is the part of project storage the capture loop needs.
type Projects interface {
	Load(name string) (*project.Metadata, error)
	PicturesDir(name string) (string, error)
}

type Scanner struct {
	camera   Camera
	table    Turntable
	projects Projects
	passes   int
	settle   time.Duration
	now      func() time.Time
}

// New returns a scanner taking passes full rotations per capture loop and
// waiting settle after every turn before the next shot.
func New(camera Camera, table Turntable, projects Projects, passes int, settle time.Duration) *Scanner {
	if passes <= 0 {
		passes = 1
	}
	return &Scanner{
		camera:   camera,
		table:    table,
		projects: projects,
		passes:   passes,
		settle:   settle,
		now:      time.Now,
	}
}

// RunCaptureLoop photographs the project through s.passes full rotations of
// PicturesPerRotation shots each. File names carry the loop start time so
// repeated loops never overwrite earlier pictures.
func (s *Scanner) RunCaptureLoop(ctx context.Context, name string) error {
	meta, err := s.projects.Load(name)
	if err != nil {
		return err
	}
	dir, err := s.projects.PicturesDir(name)
	if err != nil {
		return err
	}
	width, height, err := project.ParseResolution(meta.Resolution)
	if err != nil {
		return err
	}

	perRotation := meta.PicturesPerRotation
	step := 360.0 / float64(perRotation)
	stamp := s.now().UTC().Format("20060102T150405")
	total := s.passes * perRotation

	log.Printf("[scanner] Capture loop for %s: %d passes x %d pictures at %dx%d", name, s.passes, perRotation, width, height)
	start := time.Now()

	shot := 0
	for pass := 1; pass <= s.passes; pass++ {
		for i := 1; i <= perRotation; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, fmt.Sprintf("%s_p%d_%04d.jpg", stamp, pass, i))
			if err := s.camera.Capture(ctx, path, width, height); err != nil {
				return fmt.Errorf("capturing picture %d/%d: %w", shot+1, total, err)
			}
			shot++
			if err := s.table.Rotate(ctx, step); err != nil {
				return fmt.Errorf("rotating after picture %d/%d: %w", shot, total, err)
			}
			if err := s.wait(ctx); err != nil {
				return err
			}
		}
	}

	log.Printf("[scanner] Capture loop for %s done: %d pictures in %s", name, shot, time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Scanner) wait(ctx context.Context) error {
	if s.settle <= 0 {
		return nil
	}
	t := time.NewTimer(s.settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PreviewFrame grabs one frame as a data URL usable directly as an image
// source by clients.
func (s *Scanner) PreviewFrame(ctx context.Context) (string, error) {
	frame, err := s.camera.Preview(ctx)
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame), nil
}

func (s *Scanner) Rotate(ctx context.Context, degrees float64) error {
	return s.table.Rotate(ctx, degrees)
}

package rig

import (
	"context"
	"fmt"
	"sync"
)

// Guard serializes calls into the collaborators. The camera and turntable
// share one lock: the rig runs a single hardware operation at a time.
// Project storage and mail each have their own lock.
func Guard(s Services) Services {
	hw := &sync.Mutex{}
	return Services{
		Capture:  &guardedCapture{mu: hw, next: s.Capture},
		Rotation: &guardedRotation{mu: hw, next: s.Rotation},
		Projects: &guardedProjects{next: s.Projects},
		Uploader: &guardedUploader{next: s.Uploader},
		System:   &wrappedSystem{next: s.System},
	}
}

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrCollaborator, op, err)
}

type guardedCapture struct {
	mu   *sync.Mutex
	next Capture
}

func (g *guardedCapture) RunCaptureLoop(ctx context.Context, project string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fail("capture loop", g.next.RunCaptureLoop(ctx, project))
}

func (g *guardedCapture) PreviewFrame(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	frame, err := g.next.PreviewFrame(ctx)
	return frame, fail("preview", err)
}

type guardedRotation struct {
	mu   *sync.Mutex
	next Rotation
}

func (g *guardedRotation) Rotate(ctx context.Context, degrees float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fail("rotate", g.next.Rotate(ctx, degrees))
}

type guardedProjects struct {
	mu   sync.Mutex
	next Projects
}

func (g *guardedProjects) Create(ctx context.Context, spec ProjectSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fail("create project", g.next.Create(ctx, spec))
}

func (g *guardedProjects) List(ctx context.Context) ([]ProjectSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	list, err := g.next.List(ctx)
	return list, fail("list projects", err)
}

func (g *guardedProjects) Delete(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fail("delete project", g.next.Delete(ctx, name))
}

func (g *guardedProjects) Zip(ctx context.Context, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	path, err := g.next.Zip(ctx, name)
	return path, fail("zip project", err)
}

type guardedUploader struct {
	mu   sync.Mutex
	next Uploader
}

func (g *guardedUploader) EmailZip(ctx context.Context, project, zipPath, recipient string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fail("email zip", g.next.EmailZip(ctx, project, zipPath, recipient))
}

// Disk usage is a read-only host query and needs no lock.
type wrappedSystem struct {
	next SystemInfo
}

func (w *wrappedSystem) DiskUsage(ctx context.Context) (DiskUsage, error) {
	du, err := w.next.DiskUsage(ctx)
	return du, fail("disk usage", err)
}

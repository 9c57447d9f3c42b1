package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wcscanner/server/internal/rig"
)

// recorder counts collaborator calls by name.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeRig struct {
	*recorder
	degrees      []float64
	projects     []rig.ProjectSummary
	listErr      error
	createErr    error
	zipErr       error
	diskErr      error
	previewPanic bool
	disk         rig.DiskUsage
}

func newFakeRig() *fakeRig {
	return &fakeRig{
		recorder: &recorder{},
		projects: []rig.ProjectSummary{{Name: "vase1", PicturesPerRotation: 12, Resolution: "640x480"}},
		disk:     rig.DiskUsage{Total: 100, Used: 40, Free: 60},
	}
}

func (f *fakeRig) services() rig.Services {
	return rig.Services{Capture: f, Rotation: f, Projects: f, Uploader: f, System: f}
}

func (f *fakeRig) RunCaptureLoop(ctx context.Context, project string) error {
	f.record("capture:" + project)
	return nil
}

func (f *fakeRig) PreviewFrame(ctx context.Context) (string, error) {
	f.record("preview")
	if f.previewPanic {
		panic("camera exploded")
	}
	return "data:image/jpeg;base64,AAAA", nil
}

func (f *fakeRig) Rotate(ctx context.Context, degrees float64) error {
	f.mu.Lock()
	f.degrees = append(f.degrees, degrees)
	f.mu.Unlock()
	f.record("rotate")
	return nil
}

func (f *fakeRig) Create(ctx context.Context, spec rig.ProjectSpec) error {
	f.record("create:" + spec.Name)
	return f.createErr
}

func (f *fakeRig) List(ctx context.Context) ([]rig.ProjectSummary, error) {
	f.record("list")
	return f.projects, f.listErr
}

func (f *fakeRig) Delete(ctx context.Context, name string) error {
	f.record("delete:" + name)
	return nil
}

func (f *fakeRig) Zip(ctx context.Context, name string) (string, error) {
	f.record("zip:" + name)
	return "/tmp/" + name + ".zip", f.zipErr
}

func (f *fakeRig) EmailZip(ctx context.Context, project, zipPath, recipient string) error {
	f.record("email:" + project + ":" + recipient)
	return nil
}

func (f *fakeRig) DiskUsage(ctx context.Context) (rig.DiskUsage, error) {
	if f.diskErr != nil {
		return rig.DiskUsage{}, f.diskErr
	}
	return f.disk, nil
}

func (f *fakeRig) Degrees() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.degrees...)
}

// fakeTransport collects the frames a session writes.
type fakeTransport struct {
	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("closed")
	}
	t.written = append(t.written, data)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) Written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.written...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

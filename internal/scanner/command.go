package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const previewWidth, previewHeight = 640, 480

// expand substitutes {key} placeholders in every argument.
func expand(argv []string, vars map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, "{"+k+"}", v)
		}
		out[i] = arg
	}
	return out
}

func run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%s not found: %w", argv[0], err)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// CommandCamera shells out to a still-capture program such as raspistill.
// The command must write a JPEG to {output} at {width}x{height}.
type CommandCamera struct {
	Argv    []string
	TempDir string
}

func (c *CommandCamera) Capture(ctx context.Context, path string, width, height int) error {
	return run(ctx, expand(c.Argv, map[string]string{
		"output": path,
		"width":  strconv.Itoa(width),
		"height": strconv.Itoa(height),
	}))
}

func (c *CommandCamera) Preview(ctx context.Context) ([]byte, error) {
	f, err := os.CreateTemp(c.TempDir, "preview-*.jpg")
	if err != nil {
		return nil, err
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := c.Capture(ctx, path, previewWidth, previewHeight); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Clean(path))
}

// CommandTurntable runs Argv with {degrees} replaced by the signed angle.
type CommandTurntable struct {
	Argv []string
}

func (t *CommandTurntable) Rotate(ctx context.Context, degrees float64) error {
	return run(ctx, expand(t.Argv, map[string]string{
		"degrees": strconv.FormatFloat(degrees, 'f', -1, 64),
	}))
}

// Ready runs the optional ready command, e.g. to light a status LED once the
// server accepts connections.
func Ready(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	return run(ctx, argv)
}

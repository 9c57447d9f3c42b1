// Package project stores scan projects on the local filesystem. Each
// project is a directory under the base directory holding a project.yaml
// metadata file and a pictures/ directory.
package project

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	metadataFile = "project.yaml"
	picturesDir  = "pictures"
	maxNameLen   = 128
	maxPerRot    = 360
)

var (
	ErrInvalidName     = errors.New("invalid project name")
	ErrInvalidSpec     = errors.New("invalid project settings")
	ErrProjectExists   = errors.New("project already exists")
	ErrProjectNotFound = errors.New("project not found")
	ErrArchiveNotFound = errors.New("project archive not found")
)

// Metadata is persisted as project.yaml.
type Metadata struct {
	Name                string    `yaml:"name"`
	Description         string    `yaml:"description"`
	PicturesPerRotation int       `yaml:"pictures_per_rotation"`
	Resolution          string    `yaml:"resolution"`
	CreatedAt           time.Time `yaml:"created_at"`
}

// ValidateName rejects names that are not a single plain path element.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLen)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// ParseResolution splits a "WIDTHxHEIGHT" string such as "1640x1232".
func ParseResolution(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: resolution %q is not WIDTHxHEIGHT", ErrInvalidSpec, s)
	}
	width, err = strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("%w: resolution %q has a bad width", ErrInvalidSpec, s)
	}
	height, err = strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("%w: resolution %q has a bad height", ErrInvalidSpec, s)
	}
	return width, height, nil
}

func (m *Metadata) validate() error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}
	if m.PicturesPerRotation <= 0 || m.PicturesPerRotation > maxPerRot {
		return fmt.Errorf("%w: pictures per rotation must be between 1 and %d, got %d",
			ErrInvalidSpec, maxPerRot, m.PicturesPerRotation)
	}
	if _, _, err := ParseResolution(m.Resolution); err != nil {
		return err
	}
	return nil
}

// Package rig defines the services the control server drives: the scanning
// hardware, project storage, mail upload and host information.
package rig

import (
	"context"
	"errors"
	"time"
)

// ErrCollaborator wraps every error returned by a service call made on
// behalf of a client command.
var ErrCollaborator = errors.New("collaborator failure")

type Capture interface {
	// RunCaptureLoop photographs the named project through its configured
	// rotations, storing pictures under the project.
	RunCaptureLoop(ctx context.Context, project string) error
	// PreviewFrame grabs one frame and returns it as a data URL.
	PreviewFrame(ctx context.Context) (string, error)
}

type Rotation interface {
	// Rotate turns the bed by degrees; positive is clockwise.
	Rotate(ctx context.Context, degrees float64) error
}

// ProjectSpec holds the metadata supplied when creating a project.
type ProjectSpec struct {
	Name                string
	Description         string
	PicturesPerRotation int
	Resolution          string
}

// ProjectSummary is one entry of the project list sent to clients.
// PreviewData is a base64 JPEG thumbnail without a data: prefix, empty when
// the project has no pictures yet.
type ProjectSummary struct {
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	PicturesPerRotation int       `json:"pict_per_rotation"`
	Resolution          string    `json:"pict_res"`
	PictureCount        int       `json:"picture_count"`
	SizeBytes           int64     `json:"size_bytes"`
	Zipped              bool      `json:"zipped"`
	CreatedAt           time.Time `json:"created_at"`
	PreviewData         string    `json:"preview_data"`
}

type Projects interface {
	Create(ctx context.Context, spec ProjectSpec) error
	List(ctx context.Context) ([]ProjectSummary, error)
	Delete(ctx context.Context, name string) error
	// Zip archives the project and returns the archive path.
	Zip(ctx context.Context, name string) (string, error)
}

type Uploader interface {
	EmailZip(ctx context.Context, project, zipPath, recipient string) error
}

// DiskUsage is reported in bytes.
type DiskUsage struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
}

type SystemInfo interface {
	DiskUsage(ctx context.Context) (DiskUsage, error)
}

// Services bundles the collaborators used by the dispatcher.
type Services struct {
	Capture  Capture
	Rotation Rotation
	Projects Projects
	Uploader Uploader
	System   SystemInfo
}

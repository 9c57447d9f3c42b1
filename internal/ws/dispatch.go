package ws

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/wcscanner/server/internal/command"
	"github.com/wcscanner/server/internal/rig"
)

// Outcome says what the connection handler does after a command ran.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeBroadcastState
	OutcomeBroadcastEvent
	OutcomeReply
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBroadcastState:
		return "broadcast_state"
	case OutcomeBroadcastEvent:
		return "broadcast_event"
	case OutcomeReply:
		return "reply"
	default:
		return "none"
	}
}

// Result carries the outcome and, for events and replies, the message.
type Result struct {
	Outcome Outcome
	Message any
}

// Dispatcher runs commands against the rig services.
type Dispatcher struct {
	services rig.Services
}

func NewDispatcher(services rig.Services) *Dispatcher {
	return &Dispatcher{services: services}
}

// DownloadPath is where a zipped project can be fetched over HTTP.
func DownloadPath(project string) string {
	return "/download/" + url.PathEscape(project)
}

// Dispatch executes cmd and reports what should be sent afterwards. A
// non-nil error means the collaborator call failed and nothing should be
// broadcast.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command) (Result, error) {
	s := d.services

	switch c := cmd.(type) {
	case command.LoopCapture:
		if err := s.Capture.RunCaptureLoop(ctx, c.ProjectName); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeBroadcastState}, nil

	case command.CreateProject:
		err := s.Projects.Create(ctx, rig.ProjectSpec{
			Name:                c.ProjectName,
			Description:         c.Description,
			PicturesPerRotation: c.PicturesPerRotation,
			Resolution:          c.Resolution,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeBroadcastState}, nil

	case command.TurnBed:
		if err := s.Rotation.Rotate(ctx, c.SignedDegrees()); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeBroadcastState}, nil

	case command.RequestProjectInfo:
		projects, err := s.Projects.List(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Outcome: OutcomeReply,
			Message: ProjectsData{Type: MsgProjectsData, Data: nonNil(projects)},
		}, nil

	case command.UploadEmailProject:
		zipPath, err := s.Projects.Zip(ctx, c.ProjectName)
		if err != nil {
			return Result{}, err
		}
		if err := s.Uploader.EmailZip(ctx, c.ProjectName, zipPath, c.EmailTo); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeBroadcastState}, nil

	case command.RemoveProject:
		if err := s.Projects.Delete(ctx, c.ProjectName); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeBroadcastState}, nil

	case command.ZipData:
		if _, err := s.Projects.Zip(ctx, c.ProjectName); err != nil {
			return Result{}, err
		}
		return Result{
			Outcome: OutcomeBroadcastEvent,
			Message: DownloadReady{
				Type:        MsgDownloadReady,
				ProjectName: c.ProjectName,
				URL:         DownloadPath(c.ProjectName),
			},
		}, nil

	case command.CameraPreview:
		frame, err := s.Capture.PreviewFrame(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Outcome: OutcomeReply,
			Message: CameraPreview{Type: MsgCameraPreview, Data: frame},
		}, nil

	case command.Unrecognized:
		log.Printf("unsupported action %q: %s", c.Tag, c.Raw)
		return Result{Outcome: OutcomeNone}, nil
	}

	return Result{}, fmt.Errorf("%w: %T", command.ErrUnknownAction, cmd)
}

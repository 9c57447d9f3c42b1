// Package command decodes inbound client messages into typed commands.
package command

// Action tags as they appear in the "action" field.
const (
	ActionLoopCapture        = "loop_capture"
	ActionCreateProject      = "create_project"
	ActionTurnBedCW          = "turn_bed_cw"
	ActionTurnBedCCW         = "turn_bed_ccw"
	ActionRequestProjectInfo = "request_project_info"
	ActionUploadEmail        = "request_upload_email_project"
	ActionRemoveProject      = "request_remove_project"
	ActionZipData            = "request_zip_data"
	ActionCameraPreview      = "camera_preview"
)

// aliases maps legacy spellings still sent by older clients.
var aliases = map[string]string{
	"turn_bed_CW":    ActionTurnBedCW,
	"turn_bed_CCW":   ActionTurnBedCCW,
	"delete_project": ActionRemoveProject,
}

// Command is one decoded client request. The concrete types below are the
// only implementations.
type Command interface {
	Action() string
	command()
}

type LoopCapture struct {
	ProjectName string
}

type CreateProject struct {
	ProjectName         string
	Description         string
	PicturesPerRotation int
	Resolution          string
}

// TurnBed rotates the turntable by Degrees. CounterClockwise commands carry
// the magnitude as sent; the dispatcher applies the sign.
type TurnBed struct {
	Degrees          float64
	CounterClockwise bool
}

type RequestProjectInfo struct{}

type UploadEmailProject struct {
	ProjectName string
	EmailTo     string
}

type RemoveProject struct {
	ProjectName string
}

type ZipData struct {
	ProjectName string
}

type CameraPreview struct{}

// Unrecognized carries a message whose action is not known.
type Unrecognized struct {
	Tag string
	Raw []byte
}

func (LoopCapture) Action() string        { return ActionLoopCapture }
func (CreateProject) Action() string      { return ActionCreateProject }
func (RequestProjectInfo) Action() string { return ActionRequestProjectInfo }
func (UploadEmailProject) Action() string { return ActionUploadEmail }
func (RemoveProject) Action() string      { return ActionRemoveProject }
func (ZipData) Action() string            { return ActionZipData }
func (CameraPreview) Action() string      { return ActionCameraPreview }
func (u Unrecognized) Action() string     { return u.Tag }

func (t TurnBed) Action() string {
	if t.CounterClockwise {
		return ActionTurnBedCCW
	}
	return ActionTurnBedCW
}

// SignedDegrees is the rotation to request from the turntable: positive for
// clockwise, negative for counter-clockwise.
func (t TurnBed) SignedDegrees() float64 {
	if t.CounterClockwise {
		return -t.Degrees
	}
	return t.Degrees
}

func (LoopCapture) command()        {}
func (CreateProject) command()      {}
func (TurnBed) command()            {}
func (RequestProjectInfo) command() {}
func (UploadEmailProject) command() {}
func (RemoveProject) command()      {}
func (ZipData) command()            {}
func (CameraPreview) command()      {}
func (Unrecognized) command()       {}

package ws

import (
	"github.com/wcscanner/server/internal/rig"
)

type MessageType string

const (
	MsgStateData     MessageType = "state_data"
	MsgDownloadReady MessageType = "download_ready"
	MsgCameraPreview MessageType = "camera_preview"
	MsgProjectsData  MessageType = "projects_data"
	MsgError         MessageType = "error"
)

// StateData is the full system snapshot broadcast after every state change.
type StateData struct {
	Type          MessageType          `json:"type"`
	ProjectData   []rig.ProjectSummary `json:"project_data"`
	DiskUsageData rig.DiskUsage        `json:"disk_usage_data"`
}

type DownloadReady struct {
	Type        MessageType `json:"type"`
	ProjectName string      `json:"project_name"`
	URL         string      `json:"url,omitempty"`
}

type CameraPreview struct {
	Type MessageType `json:"type"`
	Data string      `json:"data"`
}

// ProjectsData answers request_project_info, in the shape existing clients
// already handle.
type ProjectsData struct {
	Type MessageType          `json:"type"`
	Data []rig.ProjectSummary `json:"data"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Action  string      `json:"action,omitempty"`
	Message string      `json:"message"`
}

func newErrorMessage(action string, err error) ErrorMessage {
	return ErrorMessage{Type: MsgError, Action: action, Message: err.Error()}
}

func nonNil(p []rig.ProjectSummary) []rig.ProjectSummary {
	if p == nil {
		return []rig.ProjectSummary{}
	}
	return p
}

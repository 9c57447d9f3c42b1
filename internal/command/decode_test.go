package command

import (
	"errors"
	"testing"
)

func TestDecodeKnownActions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
	}{
		{
			name: "loop capture",
			raw:  `{"action":"loop_capture","project_name":"vase1"}`,
			want: LoopCapture{ProjectName: "vase1"},
		},
		{
			name: "create project with numeric ppr",
			raw:  `{"action":"create_project","project_name":"vase1","description":"blue vase","pict_per_rotation":24,"pict_res":"1640x1232"}`,
			want: CreateProject{ProjectName: "vase1", Description: "blue vase", PicturesPerRotation: 24, Resolution: "1640x1232"},
		},
		{
			name: "create project with string ppr",
			raw:  `{"action":"create_project","project_name":"p","description":"","pict_per_rotation":"12","pict_res":"640x480"}`,
			want: CreateProject{ProjectName: "p", PicturesPerRotation: 12, Resolution: "640x480"},
		},
		{
			name: "turn cw",
			raw:  `{"action":"turn_bed_cw","plateau_degree":30}`,
			want: TurnBed{Degrees: 30},
		},
		{
			name: "turn ccw string degrees",
			raw:  `{"action":"turn_bed_ccw","plateau_degree":"12.5"}`,
			want: TurnBed{Degrees: 12.5, CounterClockwise: true},
		},
		{
			name: "legacy uppercase cw",
			raw:  `{"action":"turn_bed_CW","plateau_degree":"45"}`,
			want: TurnBed{Degrees: 45},
		},
		{
			name: "legacy uppercase ccw",
			raw:  `{"action":"turn_bed_CCW","plateau_degree":45}`,
			want: TurnBed{Degrees: 45, CounterClockwise: true},
		},
		{
			name: "project info",
			raw:  `{"action":"request_project_info"}`,
			want: RequestProjectInfo{},
		},
		{
			name: "upload email",
			raw:  `{"action":"request_upload_email_project","project_name":"vase1","email_to":"a@b.c"}`,
			want: UploadEmailProject{ProjectName: "vase1", EmailTo: "a@b.c"},
		},
		{
			name: "remove project",
			raw:  `{"action":"request_remove_project","project_name":"vase1"}`,
			want: RemoveProject{ProjectName: "vase1"},
		},
		{
			name: "legacy delete project",
			raw:  `{"action":"delete_project","project_name":"vase1"}`,
			want: RemoveProject{ProjectName: "vase1"},
		},
		{
			name: "zip",
			raw:  `{"action":"request_zip_data","project_name":"vase1"}`,
			want: ZipData{ProjectName: "vase1"},
		},
		{
			name: "camera preview",
			raw:  `{"action":"camera_preview"}`,
			want: CameraPreview{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeUnrecognized(t *testing.T) {
	raw := `{"action":"self_destruct","countdown":3}`
	got, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	u, ok := got.(Unrecognized)
	if !ok {
		t.Fatalf("Decode() = %T, want Unrecognized", got)
	}
	if u.Tag != "self_destruct" || u.Action() != "self_destruct" {
		t.Errorf("Tag = %q, want self_destruct", u.Tag)
	}
	if string(u.Raw) != raw {
		t.Errorf("Raw = %q, want original message", u.Raw)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `action=loop_capture`},
		{"array", `[1,2,3]`},
		{"null", `null`},
		{"string", `"loop_capture"`},
		{"empty", ``},
		{"no action", `{"project_name":"vase1"}`},
		{"non-string action", `{"action":7}`},
		{"bad degrees", `{"action":"turn_bed_cw","plateau_degree":"ninety"}`},
		{"degrees object", `{"action":"turn_bed_cw","plateau_degree":{"v":1}}`},
		{"nan degrees", `{"action":"turn_bed_ccw","plateau_degree":"NaN"}`},
		{"fractional ppr", `{"action":"create_project","project_name":"p","description":"d","pict_per_rotation":2.5,"pict_res":"640x480"}`},
		{"numeric project name", `{"action":"loop_capture","project_name":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("Decode() error = %v, want ErrMalformedMessage", err)
			}
			if got != nil {
				t.Errorf("Decode() command = %#v, want nil", got)
			}
		})
	}
}

func TestDecodeMissingField(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"loop capture", `{"action":"loop_capture"}`},
		{"create without res", `{"action":"create_project","project_name":"p","description":"d","pict_per_rotation":3}`},
		{"create without description", `{"action":"create_project","project_name":"p","pict_per_rotation":3,"pict_res":"640x480"}`},
		{"turn without degrees", `{"action":"turn_bed_cw"}`},
		{"turn with null degrees", `{"action":"turn_bed_ccw","plateau_degree":null}`},
		{"upload without recipient", `{"action":"request_upload_email_project","project_name":"p"}`},
		{"remove", `{"action":"request_remove_project"}`},
		{"zip", `{"action":"request_zip_data"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("Decode() error = %v, want ErrMissingField", err)
			}
			if got != nil {
				t.Errorf("Decode() command = %#v, want nil", got)
			}
		})
	}
}

func TestTurnBedSignedDegrees(t *testing.T) {
	if got := (TurnBed{Degrees: 30}).SignedDegrees(); got != 30 {
		t.Errorf("cw SignedDegrees() = %v, want 30", got)
	}
	if got := (TurnBed{Degrees: 30, CounterClockwise: true}).SignedDegrees(); got != -30 {
		t.Errorf("ccw SignedDegrees() = %v, want -30", got)
	}
}

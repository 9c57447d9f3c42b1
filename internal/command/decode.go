package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingField     = errors.New("missing field")
	ErrUnknownAction    = errors.New("unknown action")
)

type fields map[string]json.RawMessage

// Decode parses one inbound message. Unknown actions decode to Unrecognized
// without error; structural problems return ErrMalformedMessage and absent
// required fields return ErrMissingField.
func Decode(raw []byte) (Command, error) {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedMessage)
	}

	action, err := f.str("action")
	if err != nil {
		if errors.Is(err, ErrMissingField) {
			return nil, fmt.Errorf("%w: no action", ErrMalformedMessage)
		}
		return nil, err
	}
	if canonical, ok := aliases[action]; ok {
		action = canonical
	}

	switch action {
	case ActionLoopCapture:
		name, err := f.str("project_name")
		if err != nil {
			return nil, wrap(action, err)
		}
		return LoopCapture{ProjectName: name}, nil

	case ActionCreateProject:
		var c CreateProject
		if c.ProjectName, err = f.str("project_name"); err != nil {
			return nil, wrap(action, err)
		}
		if c.Description, err = f.str("description"); err != nil {
			return nil, wrap(action, err)
		}
		if c.PicturesPerRotation, err = f.integer("pict_per_rotation"); err != nil {
			return nil, wrap(action, err)
		}
		if c.Resolution, err = f.str("pict_res"); err != nil {
			return nil, wrap(action, err)
		}
		return c, nil

	case ActionTurnBedCW, ActionTurnBedCCW:
		deg, err := f.float("plateau_degree")
		if err != nil {
			return nil, wrap(action, err)
		}
		return TurnBed{Degrees: deg, CounterClockwise: action == ActionTurnBedCCW}, nil

	case ActionRequestProjectInfo:
		return RequestProjectInfo{}, nil

	case ActionUploadEmail:
		var c UploadEmailProject
		if c.ProjectName, err = f.str("project_name"); err != nil {
			return nil, wrap(action, err)
		}
		if c.EmailTo, err = f.str("email_to"); err != nil {
			return nil, wrap(action, err)
		}
		return c, nil

	case ActionRemoveProject:
		name, err := f.str("project_name")
		if err != nil {
			return nil, wrap(action, err)
		}
		return RemoveProject{ProjectName: name}, nil

	case ActionZipData:
		name, err := f.str("project_name")
		if err != nil {
			return nil, wrap(action, err)
		}
		return ZipData{ProjectName: name}, nil

	case ActionCameraPreview:
		return CameraPreview{}, nil
	}

	return Unrecognized{Tag: action, Raw: append([]byte(nil), raw...)}, nil
}

func wrap(action string, err error) error {
	return fmt.Errorf("%s: %w", action, err)
}

func (f fields) get(name string) (json.RawMessage, bool) {
	v, ok := f[name]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

func (f fields) str(name string) (string, error) {
	v, ok := f.get(name)
	if !ok {
		return "", fmt.Errorf("%w %q", ErrMissingField, name)
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%w: field %q is not a string", ErrMalformedMessage, name)
	}
	return s, nil
}

// float accepts a JSON number or a numeric string; older clients send
// numbers as strings.
func (f fields) float(name string) (float64, error) {
	v, ok := f.get(name)
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrMissingField, name)
	}

	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if json.Unmarshal(v, &s) != nil {
			return 0, fmt.Errorf("%w: field %q is not a number", ErrMalformedMessage, name)
		}
		n, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %q: %v", ErrMalformedMessage, name, err)
		}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: field %q is not finite", ErrMalformedMessage, name)
	}
	return n, nil
}

func (f fields) integer(name string) (int, error) {
	n, err := f.float(name)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("%w: field %q is not an integer", ErrMalformedMessage, name)
	}
	return int(n), nil
}

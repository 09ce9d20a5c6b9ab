// Package simlink speaks the simulator's socket.io-style event protocol and
// serves it over websockets.
//
// A frame is the engine.io message type "4" and socket.io event type "2"
// followed by a JSON array: 42["telemetry",{...}]. Commands go back as
// 42["steer",{...}], and frames that carry no data are answered with
// 42["manual",{}] so the simulator hands control to the keyboard.
package simlink

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/mpc.driver/internal/faults"
	"github.com/banshee-data/mpc.driver/internal/frame"
	"github.com/banshee-data/mpc.driver/internal/mpc"
	"github.com/banshee-data/mpc.driver/internal/units"
)

const (
	eventPrefix = "42"

	EventTelemetry = "telemetry"
	EventSteer     = "steer"
	EventManual    = "manual"
)

// ManualFrame asks the simulator for manual driving.
const ManualFrame = `42["manual",{}]`

// IsEvent reports whether frame is a socket.io event. Anything else (pings,
// handshakes) is ignored without a reply.
func IsEvent(frame string) bool {
	return len(frame) > len(eventPrefix) && strings.HasPrefix(frame, eventPrefix)
}

// ExtractPayload returns the JSON array inside an event frame. A frame that
// mentions null anywhere, or lacks an opening [ and a closing }], carries
// no data.
func ExtractPayload(frame string) (string, bool) {
	if strings.Contains(frame, "null") {
		return "", false
	}
	b1 := strings.Index(frame, "[")
	b2 := strings.LastIndex(frame, "}]")
	if b1 < 0 || b2 < 0 || b2 < b1 {
		return "", false
	}
	return frame[b1 : b2+2], true
}

// DecodeEvent splits a payload into its event name and data object.
func DecodeEvent(payload string) (string, json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &parts); err != nil {
		return "", nil, fmt.Errorf("%w: event payload: %v", faults.ErrInvalidInput, err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: empty event payload", faults.ErrInvalidInput)
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %v", faults.ErrInvalidInput, err)
	}
	var data json.RawMessage
	if len(parts) > 1 {
		data = parts[1]
	}
	return name, data, nil
}

// Telemetry is one simulator sample. Positions are global map coordinates,
// psi is in radians, speed is in the simulator's unit and steering_angle
// uses the simulator's sign convention.
type Telemetry struct {
	PtsX          []float64 `json:"ptsx"`
	PtsY          []float64 `json:"ptsy"`
	X             float64   `json:"x"`
	Y             float64   `json:"y"`
	Psi           float64   `json:"psi"`
	Speed         float64   `json:"speed"`
	SteeringAngle float64   `json:"steering_angle"`
	Throttle      float64   `json:"throttle"`
}

// DecodeTelemetry parses the data object of a telemetry event.
func DecodeTelemetry(data json.RawMessage) (Telemetry, error) {
	if len(data) == 0 {
		return Telemetry{}, fmt.Errorf("%w: telemetry without data", faults.ErrInvalidInput)
	}
	var t Telemetry
	if err := json.Unmarshal(data, &t); err != nil {
		return Telemetry{}, fmt.Errorf("%w: telemetry: %v", faults.ErrInvalidInput, err)
	}
	if len(t.PtsX) != len(t.PtsY) {
		return Telemetry{}, fmt.Errorf("%w: ptsx/ptsy lengths differ (%d != %d)", faults.ErrInvalidInput, len(t.PtsX), len(t.PtsY))
	}
	return t, nil
}

// Observation converts a sample to the controller's units and steering
// convention. This is the only place incoming speed and steering are
// converted.
func (t Telemetry) Observation(speedUnit string) mpc.Observation {
	return mpc.Observation{
		WaypointsX: t.PtsX,
		WaypointsY: t.PtsY,
		Pose:       frame.Pose{X: t.X, Y: t.Y, Psi: t.Psi},
		Speed:      units.ToMPS(t.Speed, speedUnit),
		Steer:      -t.SteeringAngle,
	}
}

// SteerMessage is the data object of a steer event. Paths are in the
// vehicle frame.
type SteerMessage struct {
	SteeringAngle float64   `json:"steering_angle"` // normalised to [-1, 1], simulator convention
	Throttle      float64   `json:"throttle"`
	MPCX          []float64 `json:"mpc_x"`
	MPCY          []float64 `json:"mpc_y"`
	NextX         []float64 `json:"next_x"`
	NextY         []float64 `json:"next_y"`
}

// NewSteerMessage converts a command for the actuator: the steering sign is
// inverted and the angle divided by maxSteer.
func NewSteerMessage(cmd mpc.Command, maxSteer float64) (SteerMessage, error) {
	if !(maxSteer > 0) {
		return SteerMessage{}, errors.New("steering limit must be positive")
	}
	m := SteerMessage{
		SteeringAngle: clamp(-cmd.Steer/maxSteer, -1, 1),
		Throttle:      cmd.Throttle,
		MPCX:          make([]float64, 0, len(cmd.Predicted)),
		MPCY:          make([]float64, 0, len(cmd.Predicted)),
		NextX:         make([]float64, 0, len(cmd.Reference)),
		NextY:         make([]float64, 0, len(cmd.Reference)),
	}
	for _, p := range cmd.Predicted {
		m.MPCX = append(m.MPCX, p.X)
		m.MPCY = append(m.MPCY, p.Y)
	}
	for _, p := range cmd.Reference {
		m.NextX = append(m.NextX, p.X)
		m.NextY = append(m.NextY, p.Y)
	}
	return m, nil
}

// EncodeSteer frames m as a steer event.
func EncodeSteer(m SteerMessage) (string, error) {
	for _, v := range []float64{m.SteeringAngle, m.Throttle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("%w: non-finite actuator value", faults.ErrNumericalFailure)
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode steer: %w", err)
	}
	return `42["steer",` + string(data) + `]`, nil
}

func clamp(v, lo, hi float64) float64 {
	v = math.Max(lo, math.Min(hi, v))
	if v == 0 {
		v = 0 // no "-0" on the wire
	}
	return v
}

package linkmux

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/mpc.driver/internal/monitoring"
	"github.com/banshee-data/mpc.driver/internal/mpc"
	"github.com/banshee-data/mpc.driver/internal/simlink"
	"github.com/banshee-data/mpc.driver/internal/timeutil"
	"github.com/banshee-data/mpc.driver/internal/units"
)

func init() {
	monitoring.SetLogger(nil)
}

type fixedStepper struct {
	mu    sync.Mutex
	steps int
}

func (f *fixedStepper) Step(mpc.Observation) (mpc.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps++
	return mpc.Command{Throttle: 0.5, Status: "converged"}, nil
}

func (f *fixedStepper) RecordLatency(time.Duration) {}

const telemetryLine = `42["telemetry",{"ptsx":[1,2,3,4],"ptsy":[0,0,0,0],"x":0,"y":0,"psi":0,"speed":10,"steering_angle":0,"throttle":0}]`

func TestDriveAnswersTelemetry(t *testing.T) {
	port, device, replies := newPipePort()
	m := New[Porter](port)
	stepper := &fixedStepper{}
	session := &simlink.Session{
		Controller: stepper,
		Clock:      timeutil.NewMockClock(time.Now()),
		SpeedUnit:  units.MPH,
		MaxSteer:   units.DegToRad(25),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Drive(ctx, m, session) }()

	stop := make(chan struct{})
	go feed(device, telemetryLine, stop)

	scan := bufio.NewScanner(replies)
	if !scan.Scan() {
		t.Fatalf("no reply: %v", scan.Err())
	}
	close(stop)
	if got := scan.Text(); !strings.HasPrefix(got, `42["steer",{"steering_angle":0,"throttle":0.5`) {
		t.Errorf("reply = %q", got)
	}

	// Drain any replies to frames still in flight so Close is not blocked.
	go func() {
		for scan.Scan() {
		}
	}()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Drive() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Drive did not stop")
	}
	m.Close()
}

func TestDriveEndOfLink(t *testing.T) {
	port, device, _ := newPipePort()
	m := New[Porter](port)
	session := &simlink.Session{Controller: &fixedStepper{}, Clock: timeutil.NewMockClock(time.Now()), MaxSteer: 1}
	device.Close()
	if err := Drive(context.Background(), m, session); err != nil {
		t.Errorf("Drive() = %v, want nil at end of link", err)
	}
}

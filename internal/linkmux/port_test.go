package linkmux

import (
	"io"
	"testing"

	"go.bug.st/serial"
)

// pipePort is a Porter whose far end is driven by the test: lines written to
// device are read by the mux, and frames the mux sends come out of replies.
type pipePort struct {
	in  *io.PipeReader
	out *io.PipeWriter
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *pipePort) Close() error {
	p.in.Close()
	return p.out.Close()
}

func newPipePort() (port *pipePort, device *io.PipeWriter, replies *io.PipeReader) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	return &pipePort{in: inR, out: outW}, inW, outR
}

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		parity  string
		wantErr bool
	}{
		{"even word", PortOptions{Parity: "even"}, "E", false},
		{"odd letter", PortOptions{Parity: " o "}, "O", false},
		{"none word", PortOptions{Parity: "NONE"}, "N", false},
		{"bad parity", PortOptions{Parity: "mark"}, "", true},
		{"seven data bits", PortOptions{DataBits: 7}, "N", false},
		{"too many data bits", PortOptions{DataBits: 9}, "", true},
		{"two stop bits", PortOptions{StopBits: 2}, "N", false},
		{"three stop bits", PortOptions{StopBits: 3}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.Parity != tt.parity {
				t.Errorf("Parity = %q, want %q", got.Parity, tt.parity)
			}
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.BaudRate != 9600 || mode.DataBits != 7 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("Parity = %v, want EvenParity", mode.Parity)
	}

	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.StopBits != serial.OneStopBit || mode.Parity != serial.NoParity {
		t.Errorf("default mode = %+v", mode)
	}

	if _, err := (PortOptions{StopBits: 5}).SerialMode(); err == nil {
		t.Error("expected error for invalid stop bits")
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := Open("/dev/does-not-exist-mpc", PortOptions{}); err == nil {
		t.Error("expected error opening a missing device")
	}
}

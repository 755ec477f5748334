// Package portaudio captures microphone audio through the system's default
// input device via PortAudio.
package portaudio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/ethanwacker/batcomputer/pkg/capture"
)

// Compile-time assertions.
var (
	_ capture.Opener = (*Opener)(nil)
	_ capture.Device = (*device)(nil)
)

// Opener opens the default PortAudio input device. The PortAudio runtime is
// initialised on first open and terminated when the last device closes.
type Opener struct {
	mu   sync.Mutex
	open int
}

// NewOpener returns a PortAudio-backed [capture.Opener].
func NewOpener() *Opener {
	return &Opener{}
}

// Open implements [capture.Opener].
func (o *Opener) Open(sampleRate, bufferSize int) (capture.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.open == 0 {
		if err := portaudio.Initialize(); err != nil {
			return nil, fmt.Errorf("portaudio: initialize: %w", err)
		}
	}

	buf := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		if o.open == 0 {
			portaudio.Terminate()
		}
		return nil, classify(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		if o.open == 0 {
			portaudio.Terminate()
		}
		return nil, fmt.Errorf("%w: portaudio: start stream: %v", capture.ErrDeviceStart, err)
	}

	o.open++
	return &device{opener: o, stream: stream, buf: buf}, nil
}

func (o *Opener) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open--
	if o.open == 0 {
		portaudio.Terminate()
	}
}

// classify maps open failures onto the capture sentinels so the session layer
// can tell permission denials from other device-start failures. Both are
// terminal, but the operator guidance differs.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access denied") {
		return fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: portaudio: open stream: %v", capture.ErrDeviceStart, err)
}

type device struct {
	opener *Opener
	stream *portaudio.Stream
	buf    []int16

	closeOnce sync.Once
	closeErr  error
}

// Read implements [capture.Device]. PortAudio fills the stream's bound buffer
// whole, so each read yields exactly one buffer of samples.
func (d *device) Read(buf []int16) (int, error) {
	if err := d.stream.Read(); err != nil {
		return 0, fmt.Errorf("portaudio: read stream: %w", err)
	}
	n := copy(buf, d.buf)
	return n, nil
}

// Close implements [capture.Device].
func (d *device) Close() error {
	d.closeOnce.Do(func() {
		if err := d.stream.Stop(); err != nil {
			d.closeErr = fmt.Errorf("portaudio: stop stream: %w", err)
		}
		if err := d.stream.Close(); err != nil && d.closeErr == nil {
			d.closeErr = fmt.Errorf("portaudio: close stream: %w", err)
		}
		d.opener.release()
	})
	return d.closeErr
}

// Package mock provides test doubles for the capture package interfaces.
//
// Use Opener to verify the sample rate and buffer size callers request, and
// Device to script the audio a consumer reads.
package mock

import (
	"io"
	"sync"

	"github.com/ethanwacker/batcomputer/pkg/capture"
)

// OpenCall records a single invocation of Opener.Open.
type OpenCall struct {
	SampleRate int
	BufferSize int
}

// Opener is a mock implementation of capture.Opener.
type Opener struct {
	mu sync.Mutex

	// Device is returned by Open. If nil, Open returns a new empty Device.
	Device capture.Device

	// OpenErr, if non-nil, is returned as the error from Open.
	OpenErr error

	// OpenCalls records every call to Open.
	OpenCalls []OpenCall
}

// Open records the call and returns Device, OpenErr.
func (o *Opener) Open(sampleRate, bufferSize int) (capture.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.OpenCalls = append(o.OpenCalls, OpenCall{SampleRate: sampleRate, BufferSize: bufferSize})
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	if o.Device != nil {
		return o.Device, nil
	}
	return &Device{}, nil
}

// OpenCallCount returns the number of Open calls. Thread-safe.
func (o *Opener) OpenCallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.OpenCalls)
}

// Ensure Opener implements capture.Opener at compile time.
var _ capture.Opener = (*Opener)(nil)

// Device is a mock implementation of capture.Device. Reads drain Samples;
// once exhausted, ReadErr (or io.EOF) is returned.
type Device struct {
	mu sync.Mutex

	// Samples is the audio returned by successive Read calls.
	Samples []int16

	// ReadErr is returned once Samples is drained. Defaults to io.EOF.
	ReadErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	off int
}

// Read copies the next chunk of Samples into buf.
func (d *Device) Read(buf []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.off >= len(d.Samples) {
		if d.ReadErr != nil {
			return 0, d.ReadErr
		}
		return 0, io.EOF
	}
	n := copy(buf, d.Samples[d.off:])
	d.off += n
	return n, nil
}

// Close records the call and returns CloseErr.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// Ensure Device implements capture.Device at compile time.
var _ capture.Device = (*Device)(nil)

// Package capture abstracts microphone input behind a small device contract.
// At most one device should be open at a time; the listening session owns the
// stream while active and releases it for one-shot recordings such as
// authentication samples.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// ErrPermissionDenied reports that the host refused microphone access. It is
// terminal: the session must not retry on it.
var ErrPermissionDenied = errors.New("capture: microphone permission denied")

// ErrDeviceStart reports that the audio device could not be opened or started
// for a reason other than permissions (no input device, the host API failed).
// Also terminal for the listening session: retrying an absent microphone just
// churns, and the condition is reported to the operator instead.
var ErrDeviceStart = errors.New("capture: audio device could not start")

// Opener opens audio capture devices.
type Opener interface {
	// Open starts capturing mono PCM at sampleRate with the given buffer
	// size in samples. The returned device is exclusive until closed.
	Open(sampleRate, bufferSize int) (Device, error)
}

// Device is an open capture stream.
type Device interface {
	// Read fills buf with the next chunk of samples and returns how many
	// were written. It blocks until audio is available or the stream fails.
	Read(buf []int16) (int, error)

	// Close stops the stream and releases the microphone.
	Close() error
}

// Record captures roughly seconds of audio from a freshly opened device and
// returns the samples. It honours ctx between reads, so a cancelled context
// stops the recording early with ctx.Err().
func Record(ctx context.Context, opener Opener, sampleRate int, seconds float64) ([]int16, error) {
	const bufferSize = 1024

	dev, err := opener.Open(sampleRate, bufferSize)
	if err != nil {
		return nil, fmt.Errorf("capture: open device: %w", err)
	}
	defer dev.Close()

	want := int(float64(sampleRate) * seconds)
	out := make([]int16, 0, want)
	buf := make([]int16, bufferSize)
	for len(out) < want {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := dev.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("capture: read: %w", err)
		}
		out = append(out, buf[:n]...)
	}
	return out[:want], nil
}

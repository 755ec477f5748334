// Package portaudio plays synthesised PCM through the system's default output
// device.
package portaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
)

const playbackBufferSize = 1024

// Compile-time assertion that Player satisfies tts.Player.
var _ tts.Player = (*Player)(nil)

// Player implements tts.Player on a PortAudio output stream. Playback is
// serialised: one utterance plays at a time.
type Player struct {
	mu sync.Mutex
}

// NewPlayer returns a PortAudio-backed [tts.Player].
func NewPlayer() *Player {
	return &Player{}
}

// Play writes pcm to the default output device, blocking until the last
// buffer is submitted or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []int16, sampleRate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	buf := make([]int16, playbackBufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("portaudio: open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(pcm); off += playbackBufferSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, pcm[off:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("portaudio: write output stream: %w", err)
		}
	}
	return nil
}

// Package coqui implements tts.Speaker against a locally-running Coqui TTS
// server (ghcr.io/coqui-ai/tts-cpu). Synthesis is one GET /api/tts call per
// utterance; the WAV response is unwrapped and handed to the configured
// player.
package coqui

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
)

const (
	ttsEndpoint    = "/api/tts"
	defaultTimeout = 30 * time.Second
)

// Compile-time interface assertion.
var _ tts.Speaker = (*Speaker)(nil)

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

// WithSpeakerID sets the speaker_id query parameter for multi-speaker models.
func WithSpeakerID(id string) Option {
	return func(s *Speaker) { s.speakerID = id }
}

// WithTimeout sets the per-request HTTP timeout. Default 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Speaker) { s.httpClient.Timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Speaker) { s.httpClient = hc }
}

// Speaker implements tts.Speaker backed by a Coqui TTS server. Safe for
// concurrent use; utterances are synthesised independently.
type Speaker struct {
	serverURL  string
	speakerID  string
	httpClient *http.Client
	player     tts.Player
}

// New creates a Speaker targeting the TTS server at serverURL
// (e.g. "http://localhost:5002"). Synthesised audio plays through player.
func New(serverURL string, player tts.Player, opts ...Option) (*Speaker, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	if player == nil {
		return nil, errors.New("coqui: player must not be nil")
	}
	s := &Speaker{
		serverURL:  strings.TrimRight(serverURL, "/"),
		player:     player,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Speak synthesises the utterance and plays it, blocking until done. The
// utterance volume scales the PCM before playback; rate and pitch are left to
// the model, which does not expose them over the standard API.
func (s *Speaker) Speak(ctx context.Context, u tts.Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return nil
	}

	params := url.Values{}
	params.Set("text", u.Text)
	if s.speakerID != "" {
		params.Set("speaker_id", s.speakerID)
	}
	if u.Locale != "" {
		params.Set("language_id", u.Locale)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.serverURL+ttsEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("coqui: GET %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coqui: GET %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("coqui: read WAV response: %w", err)
	}

	info, err := parseWAV(wav)
	if err != nil {
		return err
	}
	if info.Channels != 1 {
		return fmt.Errorf("coqui: expected mono audio, got %d channels", info.Channels)
	}

	pcm := decodePCM(wav[info.DataOffset:], u.Volume)
	return s.player.Play(ctx, pcm, info.SampleRate)
}

// decodePCM converts little-endian 16-bit PCM bytes to samples, applying the
// volume gain.
func decodePCM(data []byte, volume float64) []int16 {
	if volume <= 0 || volume > 1 {
		volume = 1
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = int16(float64(s) * volume)
	}
	return out
}

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int
	SampleRate int
	Channels   int
}

// parseWAV walks the RIFF chunks to find the fmt and data sub-chunks. The
// fmt chunk size varies between encoders, so a fixed 44-byte offset is not
// safe.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: response is not a RIFF/WAVE file")
	}

	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return wavInfo{}, errors.New("coqui: WAV data chunk precedes fmt chunk")
			}
			info.DataOffset = offset + 8
			return info, nil
		}

		// Chunks are word-aligned.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("coqui: WAV response missing data chunk")
}

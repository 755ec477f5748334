package coqui

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethanwacker/batcomputer/pkg/provider/tts"
	"github.com/ethanwacker/batcomputer/pkg/provider/tts/mock"
)

// buildWAV assembles a minimal RIFF/WAVE file around the given PCM.
func buildWAV(sampleRate, channels int, pcm []int16) []byte {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	var out []byte
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(data)))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1) // PCM
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(sampleRate*channels*2))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels*2))
	out = binary.LittleEndian.AppendUint16(out, 16)

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, data...)
	return out
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", &mock.Player{}); err == nil {
		t.Error("empty server URL accepted")
	}
	if _, err := New("http://localhost:5002", nil); err == nil {
		t.Error("nil player accepted")
	}
}

func TestSpeak(t *testing.T) {
	t.Parallel()

	pcm := []int16{0, 100, -100, 32000}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/api/tts" {
			t.Errorf("path = %q; want /api/tts", got)
		}
		if got := r.URL.Query().Get("text"); got != "At your service, sir." {
			t.Errorf("text = %q", got)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(buildWAV(22050, 1, pcm))
	}))
	defer srv.Close()

	player := &mock.Player{}
	s, err := New(srv.URL, player)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := s.Speak(context.Background(), tts.NewUtterance("At your service, sir.")); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if len(player.PlayCalls) != 1 {
		t.Fatalf("Play called %d times; want 1", len(player.PlayCalls))
	}
	call := player.PlayCalls[0]
	if call.SampleRate != 22050 {
		t.Errorf("sample rate = %d; want 22050", call.SampleRate)
	}
	if len(call.Samples) != len(pcm) {
		t.Fatalf("len(samples) = %d; want %d", len(call.Samples), len(pcm))
	}
	for i := range pcm {
		if call.Samples[i] != pcm[i] {
			t.Errorf("samples[%d] = %d; want %d", i, call.Samples[i], pcm[i])
		}
	}
}

func TestSpeak_EmptyTextIsNoOp(t *testing.T) {
	t.Parallel()

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	player := &mock.Player{}
	s, err := New(srv.URL, player)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Speak(context.Background(), tts.NewUtterance("   ")); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if requests != 0 {
		t.Errorf("server saw %d requests; want 0", requests)
	}
	if len(player.PlayCalls) != 0 {
		t.Errorf("Play called %d times; want 0", len(player.PlayCalls))
	}
}

func TestSpeak_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := New(srv.URL, &mock.Player{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Speak(context.Background(), tts.NewUtterance("hello")); err == nil {
		t.Fatal("Speak err = nil; want error on 500")
	}
}

func TestSpeak_RejectsStereo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buildWAV(22050, 2, []int16{1, 2, 3, 4}))
	}))
	defer srv.Close()

	s, err := New(srv.URL, &mock.Player{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Speak(context.Background(), tts.NewUtterance("hello")); err == nil {
		t.Fatal("Speak err = nil; want mono check failure")
	}
}

func TestParseWAV(t *testing.T) {
	t.Parallel()

	wav := buildWAV(16000, 1, []int16{1, 2, 3})
	info, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 {
		t.Errorf("info = %+v; want 16000 Hz mono", info)
	}
	if info.DataOffset != 44 {
		t.Errorf("DataOffset = %d; want 44 for a canonical header", info.DataOffset)
	}
}

func TestParseWAV_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wav  []byte
	}{
		{"not riff", []byte("OggS this is not a wave file at all")},
		{"truncated", []byte("RIFF")},
		{"missing data chunk", buildWAV(16000, 1, []int16{1})[:36]},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseWAV(tt.wav); err == nil {
				t.Error("parseWAV err = nil; want error")
			}
		})
	}
}

func TestDecodePCM_Volume(t *testing.T) {
	t.Parallel()

	raw := make([]byte, 4)
	pos, neg := int16(1000), int16(-1000)
	binary.LittleEndian.PutUint16(raw[0:], uint16(pos))
	binary.LittleEndian.PutUint16(raw[2:], uint16(neg))

	tests := []struct {
		name   string
		volume float64
		want   []int16
	}{
		{"full", 1, []int16{1000, -1000}},
		{"half", 0.5, []int16{500, -500}},
		{"zero falls back to full", 0, []int16{1000, -1000}},
		{"above one falls back to full", 1.5, []int16{1000, -1000}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := decodePCM(raw, tt.volume)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d; want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %d; want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

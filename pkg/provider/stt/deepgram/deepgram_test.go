package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/ethanwacker/batcomputer/pkg/provider/stt"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") err = nil; want error")
	}
}

func TestBuildURL_Defaults(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	q := u.Query()
	for param, want := range map[string]string{
		"model":           "nova-3",
		"language":        "en",
		"punctuate":       "true",
		"interim_results": "true",
		"encoding":        "linear16",
		"sample_rate":     "16000",
		"channels":        "1",
	} {
		if got := q.Get(param); got != want {
			t.Errorf("%s = %q; want %q", param, got, want)
		}
	}
}

func TestBuildURL_ConfigOverrides(t *testing.T) {
	t.Parallel()

	p, err := New("key", WithModel("base"), WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := p.buildURL(stt.StreamConfig{SampleRate: 8000, Language: "de"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	q := u.Query()
	if got := q.Get("model"); got != "base" {
		t.Errorf("model = %q; want base", got)
	}
	if got := q.Get("language"); got != "de" {
		t.Errorf("language = %q; want config language to win", got)
	}
	if got := q.Get("sample_rate"); got != "8000" {
		t.Errorf("sample_rate = %q; want 8000", got)
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		wantOK   bool
		wantText string
		wantFin  bool
	}{
		{
			name:     "final result",
			data:     `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"computer hello","confidence":0.98}]}}`,
			wantOK:   true,
			wantText: "computer hello",
			wantFin:  true,
		},
		{
			name:     "interim result",
			data:     `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"computer he"}]}}`,
			wantOK:   true,
			wantText: "computer he",
			wantFin:  false,
		},
		{
			name:   "metadata message",
			data:   `{"type":"Metadata","request_id":"abc"}`,
			wantOK: false,
		},
		{
			name:   "no alternatives",
			data:   `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
			wantOK: false,
		},
		{
			name:   "empty transcript",
			data:   `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`,
			wantOK: false,
		},
		{
			name:   "invalid json",
			data:   `{{{`,
			wantOK: false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, ok := parseResponse([]byte(tt.data))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v; want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if tr.Text != tt.wantText || tr.Final != tt.wantFin {
				t.Errorf("transcript = %+v; want text %q final %v", tr, tt.wantText, tt.wantFin)
			}
		})
	}
}

// newResultsServer starts a WebSocket server that answers a CloseStream
// message with one final Results payload.
func newResultsServer(t *testing.T, transcript string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && strings.Contains(string(data), "CloseStream") {
				payload := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"` + transcript + `","confidence":0.95}]}}`
				_ = c.Write(ctx, websocket.MessageText, []byte(payload))
				return
			}
		}
	}))
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := newResultsServer(t, "i am vengeance i am the night")
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	p, err := New("key", WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Transcribe(context.Background(), make([]int16, 1600), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "i am vengeance i am the night" {
		t.Errorf("Transcribe = %q", got)
	}
}

func TestStartStream_DialError(t *testing.T) {
	t.Parallel()

	p, err := New("key", WithEndpoint("ws://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.StartStream(context.Background(), stt.StreamConfig{}); err == nil {
		t.Fatal("StartStream err = nil; want dial error")
	}
}

func TestSession_SendAudioAfterClose(t *testing.T) {
	t.Parallel()

	srv := newResultsServer(t, "ignored")
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	p, err := New("key", WithEndpoint(endpoint))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	handle, err := p.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := handle.SendAudio(make([]int16, 160)); err == nil {
		t.Error("SendAudio after Close err = nil; want error")
	}
}

// Package voiceauth verifies speaker identity for sensitive commands.
//
// Authentication is two-staged: the sample must first contain the expected
// challenge phrase (checked against its transcript), and only then is the
// speaker scored against enrolled profiles by weighted acoustic similarity.
// A phrase mismatch always yields zero confidence, regardless of how closely
// the voice matches.
package voiceauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/ethanwacker/batcomputer/internal/observe"
	"github.com/ethanwacker/batcomputer/internal/voiceauth/extract"
)

// DefaultThreshold is the minimum weighted similarity for a match.
const DefaultThreshold = 0.85

// Scoring weights. Voiceprint similarity dominates; spectral shape and pitch
// contour refine.
const (
	printWeight    = 0.5
	spectralWeight = 0.3
	pitchWeight    = 0.2
)

// Transcriber converts one buffered audio sample to text. The streaming
// transcription providers also satisfy this for batch use.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

// Result is the outcome of one authentication attempt.
type Result struct {
	// Matched reports whether any enrolled profile cleared the threshold.
	Matched bool

	// Name is the best-matching profile's name when Matched is true.
	Name string

	// Confidence is the weighted similarity of the best candidate. It is 0
	// when the challenge phrase was not spoken.
	Confidence float64

	// Transcript is what the transcriber heard, kept for diagnostics.
	Transcript string
}

// Option is a functional option for configuring an [Authenticator].
type Option func(*Authenticator)

// WithThreshold overrides [DefaultThreshold].
func WithThreshold(t float64) Option {
	return func(a *Authenticator) { a.threshold = t }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *Authenticator) { a.logger = l }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Authenticator) { a.metrics = m }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// Authenticator enrolls and verifies voice profiles. Safe for concurrent use
// as long as its collaborators are.
type Authenticator struct {
	store       Store
	extractor   extract.Extractor
	transcriber Transcriber
	threshold   float64
	logger      *slog.Logger
	metrics     *observe.Metrics
	now         func() time.Time
}

// NewAuthenticator creates an Authenticator over the given collaborators.
func NewAuthenticator(store Store, ex extract.Extractor, tr Transcriber, opts ...Option) (*Authenticator, error) {
	if store == nil {
		return nil, errors.New("voiceauth: store must not be nil")
	}
	if ex == nil {
		return nil, errors.New("voiceauth: extractor must not be nil")
	}
	if tr == nil {
		return nil, errors.New("voiceauth: transcriber must not be nil")
	}
	a := &Authenticator{
		store:       store,
		extractor:   ex,
		transcriber: tr,
		threshold:   DefaultThreshold,
		logger:      slog.Default(),
		metrics:     observe.DefaultMetrics(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Enroll extracts features from the sample and stores them under name,
// replacing any existing profile with that name.
func (a *Authenticator) Enroll(ctx context.Context, name string, pcm []int16, sampleRate int) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, errors.New("voiceauth: profile name must not be empty")
	}

	feats, err := a.extractor.Extract(pcm, sampleRate)
	if err != nil {
		return Profile{}, fmt.Errorf("voiceauth: extract enrollment features: %w", err)
	}

	p := Profile{
		Name:             name,
		VoicePrint:       feats.VoicePrint,
		SpectralFeatures: feats.Spectral,
		PitchProfile:     feats.Pitch,
		CreatedAt:        a.now(),
	}
	if err := a.store.Put(ctx, p); err != nil {
		return Profile{}, fmt.Errorf("voiceauth: store profile %q: %w", name, err)
	}

	a.logger.Info("voice profile enrolled", "name", name)
	return p, nil
}

// Authenticate verifies the sample against all enrolled profiles.
//
// The sample's transcript must contain expectedPhrase (compared with
// punctuation and case stripped); otherwise the attempt fails with zero
// confidence and no similarity scoring takes place. When the phrase check
// passes, the best-scoring profile at or above the threshold is the match
// and its LastUsed timestamp is updated.
func (a *Authenticator) Authenticate(ctx context.Context, pcm []int16, sampleRate int, expectedPhrase string) (Result, error) {
	start := a.now()
	defer func() {
		a.metrics.AuthDuration.Record(ctx, a.now().Sub(start).Seconds())
	}()

	transcript, err := a.transcriber.Transcribe(ctx, pcm, sampleRate)
	if err != nil {
		a.metrics.RecordAuthAttempt(ctx, "error")
		return Result{}, fmt.Errorf("voiceauth: transcribe sample: %w", err)
	}
	res := Result{Transcript: transcript}

	if !strings.Contains(normalizePhrase(transcript), normalizePhrase(expectedPhrase)) {
		a.logger.Info("authentication rejected: challenge phrase not spoken",
			"transcript", transcript)
		a.metrics.RecordAuthAttempt(ctx, "phrase_mismatch")
		return res, nil
	}

	feats, err := a.extractor.Extract(pcm, sampleRate)
	if err != nil {
		a.metrics.RecordAuthAttempt(ctx, "error")
		return Result{}, fmt.Errorf("voiceauth: extract sample features: %w", err)
	}

	profiles, err := a.store.List(ctx)
	if err != nil {
		a.metrics.RecordAuthAttempt(ctx, "error")
		return Result{}, fmt.Errorf("voiceauth: list profiles: %w", err)
	}

	var bestName string
	var bestScore float64
	for _, p := range profiles {
		score := a.score(p, feats)
		if score > bestScore {
			bestName, bestScore = p.Name, score
		}
	}
	res.Confidence = bestScore

	if bestScore < a.threshold {
		a.logger.Info("authentication rejected: below threshold",
			"best", bestName, "confidence", bestScore, "threshold", a.threshold)
		a.metrics.RecordAuthAttempt(ctx, "rejected")
		return res, nil
	}

	res.Matched = true
	res.Name = bestName
	if err := a.store.Touch(ctx, bestName, a.now()); err != nil {
		a.logger.Warn("failed to update profile last-used time", "name", bestName, "error", err)
	}

	a.logger.Info("authentication succeeded", "name", bestName, "confidence", bestScore)
	a.metrics.RecordAuthAttempt(ctx, "matched")
	return res, nil
}

// score computes the weighted similarity between a stored profile and the
// freshly extracted features.
func (a *Authenticator) score(p Profile, f extract.Features) float64 {
	return printWeight*Cosine(bytesToFloats(p.VoicePrint), bytesToFloats(f.VoicePrint)) +
		spectralWeight*FeatureSim(p.SpectralFeatures, f.Spectral) +
		pitchWeight*FeatureSim(p.PitchProfile, f.Pitch)
}

// normalizePhrase lowercases and strips everything but letters, digits, and
// single spaces, so "I am vengeance, I am the night!" matches the stored
// phrase regardless of the transcriber's punctuation habits.
func normalizePhrase(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

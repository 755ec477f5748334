package voiceauth

import (
	"context"
	"sync"
	"time"
)

// Profile is an enrolled voice identity. Profiles are created by enrollment,
// overwritten by re-enrollment under the same name, and mutated only to
// update LastUsed on a successful match.
type Profile struct {
	// Name uniquely identifies the profile; enrollment under an existing
	// name replaces the stored profile.
	Name string

	// VoicePrint is the byte-encoded voice signature compared by cosine
	// similarity.
	VoicePrint []byte

	// SpectralFeatures is the ordered spectral band energy vector.
	SpectralFeatures []float64

	// PitchProfile is the ordered pitch contour vector.
	PitchProfile []float64

	CreatedAt time.Time
	LastUsed  time.Time
}

// Store persists voice profiles. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put inserts or replaces the profile keyed by its name.
	Put(ctx context.Context, p Profile) error

	// List returns all stored profiles.
	List(ctx context.Context) ([]Profile, error)

	// Touch sets the LastUsed timestamp of the named profile. Unknown
	// names are a no-op.
	Touch(ctx context.Context, name string, at time.Time) error
}

// Compile-time assertion that MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory [Store]. It is the default profile
// store for single-household deployments and tests.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{profiles: make(map[string]Profile)}
}

// Put implements [Store.Put].
func (s *MemStore) Put(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.Name] = p
	return nil
}

// List implements [Store.List].
func (s *MemStore) List(_ context.Context) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

// Touch implements [Store.Touch].
func (s *MemStore) Touch(_ context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[name]
	if !ok {
		return nil
	}
	p.LastUsed = at
	s.profiles[name] = p
	return nil
}

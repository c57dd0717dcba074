package estimator

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
)

// Provider supplies the unranked candidates for a pair of trimmed,
// validated addresses.
type Provider interface {
	Candidates(ctx context.Context, from, to string) ([]RouteCandidate, error)
}

// SyntheticProvider derives candidates from the route hash of the two
// addresses. It is deterministic in its inputs.
type SyntheticProvider struct {
	// Hash overrides RouteHash. Tests use it to pin exact figures.
	Hash HashFunc
}

// Candidates implements Provider.
func (p SyntheticProvider) Candidates(ctx context.Context, from, to string) ([]RouteCandidate, error) {
	hash := p.Hash
	if hash == nil {
		hash = RouteHash
	}
	return Synthesize(hash(from, to)), nil
}

//go:embed routes.json
var defaultFixture []byte

// FixtureProvider serves the same pre-built candidates for every address pair.
type FixtureProvider struct {
	routes []RouteCandidate
}

// DefaultFixture returns a FixtureProvider over the embedded route set.
func DefaultFixture() *FixtureProvider {
	p, err := NewFixtureProvider(defaultFixture)
	if err != nil {
		panic(fmt.Sprintf("embedded route fixture is invalid: %v", err))
	}
	return p
}

// EmbeddedFixture names the built-in route set as a fixture source.
const EmbeddedFixture = "embedded"

// OpenFixture returns the embedded route set for EmbeddedFixture and loads
// the file at source otherwise.
func OpenFixture(source string) (*FixtureProvider, error) {
	if source == EmbeddedFixture {
		return DefaultFixture(), nil
	}
	return LoadFixtureFile(source)
}

// LoadFixture reads a JSON array of candidates from r.
func LoadFixture(r io.Reader) (*FixtureProvider, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading route fixture: %w", err)
	}
	return NewFixtureProvider(data)
}

// LoadFixtureFile reads a JSON route fixture from path.
func LoadFixtureFile(path string) (*FixtureProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening route fixture: %w", err)
	}
	defer f.Close()

	return LoadFixture(f)
}

// NewFixtureProvider decodes and validates a JSON array of candidates.
func NewFixtureProvider(data []byte) (*FixtureProvider, error) {
	var routes []RouteCandidate
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("decoding route fixture: %w", err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("route fixture is empty")
	}

	for i, r := range routes {
		if !r.Mode.Valid() {
			return nil, fmt.Errorf("route %d: unknown mode %q", i, r.Mode)
		}
		if r.DistanceKm <= 0 {
			return nil, fmt.Errorf("route %d: distance must be positive, got %v", i, r.DistanceKm)
		}
		if r.TimeMin < 0 || r.CO2g < 0 || r.Score < 0 {
			return nil, fmt.Errorf("route %d: time, co2 and score must not be negative", i)
		}
	}

	return &FixtureProvider{routes: routes}, nil
}

// Candidates implements Provider. Every call returns a fresh copy.
func (p *FixtureProvider) Candidates(ctx context.Context, from, to string) ([]RouteCandidate, error) {
	return slices.Clone(p.routes), nil
}

// Len returns the number of routes in the fixture.
func (p *FixtureProvider) Len() int {
	return len(p.routes)
}

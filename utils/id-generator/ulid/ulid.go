package ulid

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Audit record ids. They sort by creation time, and ids drawn from one
// Generator in the same millisecond keep increasing.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator reads randomness from crypto/rand when entropy is nil.
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// At returns an id stamped with t. It panics only if the entropy source
// fails or the per-millisecond space is exhausted.
func (g *Generator) At(t time.Time) ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy)
}

func (g *Generator) Next() string {
	return g.At(time.Now()).String()
}

var shared = sync.OnceValue(func() *Generator { return NewGenerator(nil) })

// Next draws from the process-wide generator.
func Next() string {
	return shared().Next()
}

// Timestamp parses s and returns the time embedded in it.
func Timestamp(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}

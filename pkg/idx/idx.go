// Package idx generates lexicographically sortable ULID identifiers. The SDK
// uses them to correlate outgoing requests via the request-id header.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type ID string

// Zero is the empty ID.
const Zero ID = ""

// ErrInvalid reports a malformed ULID string.
var ErrInvalid = errors.New("idx: invalid ulid")

// generator hands out ULIDs from a monotonic entropy source. The source is
// not safe for concurrent use, hence the mutex.
type generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var global = sync.OnceValue(func() *generator {
	return &generator{entropy: ulid.Monotonic(rand.Reader, 0)}
})

func (g *generator) at(t time.Time) ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ID(ulid.MustNew(ulid.Timestamp(t), g.entropy).String())
}

// New returns a new ID stamped with the current UTC time.
func New() ID {
	return global().at(time.Now().UTC())
}

// NewAt returns an ID stamped with t. Servers with an adjustable clock use it
// so IDs sort by their own notion of time.
func NewAt(t time.Time) ID {
	return global().at(t.UTC())
}

// Parse validates s as a ULID.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, ErrInvalid
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return Zero, ErrInvalid
	}
	return ID(s), nil
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id == Zero }

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

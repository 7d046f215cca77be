// Package eventid generates the deduplication identifiers shared by the
// pixel call and the server event of one funnel transition.
package eventid

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Prefix starts every identifier.
const Prefix = "evt_"

// Generator produces evt_<32 hex random>_<unix ms> identifiers. The time
// component never repeats or goes backwards for a given Generator.
type Generator struct {
	mu   sync.Mutex
	last int64

	now    func() time.Time
	random func() (uuid.UUID, error)

	fallback atomic.Uint64
	pid      uint64
}

// NewGenerator returns a Generator backed by crypto/rand and the wall clock.
func NewGenerator() *Generator {
	return &Generator{
		now:    time.Now,
		random: uuid.NewRandom,
		pid:    uint64(os.Getpid()),
	}
}

// New returns a fresh identifier. It never fails.
func (g *Generator) New() string {
	return Prefix + g.randomPart() + "_" + strconv.FormatInt(g.nextMillis(), 10)
}

func (g *Generator) nextMillis() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return ms
}

func (g *Generator) randomPart() string {
	u, err := g.random()
	if err == nil {
		return hex.EncodeToString(u[:])
	}
	// Entropy source failed: a per-process counter keeps the slot unique.
	n := g.fallback.Add(1)
	return fmt.Sprintf("%016x%016x", g.pid, n)
}

// Valid reports whether id has the generator's shape.
func Valid(id string) bool {
	rest, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return false
	}
	random, millis, ok := strings.Cut(rest, "_")
	if !ok || len(random) != 32 {
		return false
	}
	if _, err := hex.DecodeString(random); err != nil {
		return false
	}
	_, err := strconv.ParseInt(millis, 10, 64)
	return err == nil
}

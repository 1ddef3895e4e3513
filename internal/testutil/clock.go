package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock returns a fixed time. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator returns sequential IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{prefix: "id"}
}

// NewStubTokenGenerator returns sequential share tokens: "tok-1", "tok-2", etc.
func NewStubTokenGenerator() *StubIDGenerator {
	return &StubIDGenerator{prefix: "tok"}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// ScriptedIDGenerator returns the given values in order, then repeats the
// last one. Used to force token collisions.
type ScriptedIDGenerator struct {
	mu     sync.Mutex
	values []string
	calls  int
}

func NewScriptedIDGenerator(values ...string) *ScriptedIDGenerator {
	return &ScriptedIDGenerator{values: values}
}

func (g *ScriptedIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.values) {
		i = len(g.values) - 1
	}
	g.calls++
	return g.values[i]
}

// Calls returns how many values were handed out.
func (g *ScriptedIDGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

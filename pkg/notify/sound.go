package notify

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var ErrNotPrimed = errors.New("sound not primed by a user gesture yet")

// Sound is the attention chime. Play is best-effort; dispatcher callers
// swallow its errors.
type Sound interface {
	// Prime marks the sound as allowed to play. Called once, on the first
	// user interaction gesture.
	Prime()
	Play() error
}

// bellSound rings the terminal bell. Stands in for browser audio in the demo
// client and services.
type bellSound struct {
	mu     sync.Mutex
	primed bool
	out    io.Writer
}

func (s *bellSound) Prime() {
	s.mu.Lock()
	s.primed = true
	s.mu.Unlock()
}

func (s *bellSound) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.primed {
		return ErrNotPrimed
	}
	_, err := fmt.Fprint(s.out, "\a")
	return err
}

var (
	soundOnce   sync.Once
	sharedSound Sound
)

// SharedSound returns the process-wide sound handle, lazily created on first
// use and reused thereafter.
func SharedSound() Sound {
	soundOnce.Do(func() {
		sharedSound = &bellSound{out: os.Stderr}
	})
	return sharedSound
}

package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows progress on the error stream while work runs. Off a
// terminal it prints nothing until it finishes.
type Spinner struct {
	w       io.Writer
	styles  *Styles
	animate bool

	mu      sync.Mutex
	message string
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a stopped spinner.
func (r *Renderer) NewSpinner(message string) *Spinner {
	return &Spinner{w: r.errOut, styles: r.styles, animate: r.isTTY, message: message}
}

// Start begins animating.
func (s *Spinner) Start() {
	if !s.animate || s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			_, _ = fmt.Fprintf(s.w, "\r\033[K%s %s", spinnerFrames[i%len(spinnerFrames)], s.message)
			s.mu.Unlock()
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Update replaces the message.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
	_, _ = fmt.Fprint(s.w, "\r\033[K")
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(message string) {
	s.Stop()
	_, _ = fmt.Fprintf(s.w, "%s %s\n", s.styles.StatusSuccess.String(), message)
}

// Fail stops the spinner and prints a failure line.
func (s *Spinner) Fail(message string) {
	s.Stop()
	_, _ = fmt.Fprintf(s.w, "%s %s\n", s.styles.StatusFailed.String(), message)
}

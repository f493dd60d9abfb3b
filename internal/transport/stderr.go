package transport

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// stderrRingSize bounds how much of a subprocess's early standard error
// is retained for annotating a connect failure (§4.1: "buffer the first
// portion ... until connect succeeds or fails").
const stderrRingSize = 4096

// serverColors gives each forwarded server a stable color so concurrent
// stdio servers are visually distinguishable on the shared diagnostic
// stream. NO_COLOR or a non-terminal stderr disables coloring.
var serverColors = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgYellow),
	color.New(color.FgMagenta),
	color.New(color.FgGreen),
	color.New(color.FgBlue),
	color.New(color.FgRed),
}

func colorFor(name string) *color.Color {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*31 + uint32(name[i])
	}
	return serverColors[int(h)%len(serverColors)]
}

// stderrForwarder tees a subprocess's stderr, line by line, to the
// controlling terminal's diagnostic stream prefixed with the server
// name (so interactive auth prompts stay visible), while buffering the
// first stderrRingSize bytes for connect-error annotation.
type stderrForwarder struct {
	mu      sync.Mutex
	buf     []byte
	done    chan struct{}
	capture bool
}

func newStderrForwarder(serverName string, r io.Reader) *stderrForwarder {
	f := &stderrForwarder{done: make(chan struct{}), capture: true}
	go f.run(serverName, r)
	return f
}

func (f *stderrForwarder) run(serverName string, r io.Reader) {
	defer close(f.done)
	c := colorFor(serverName)
	prefix := fmt.Sprintf("[%s] ", serverName)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		f.mu.Lock()
		if f.capture && len(f.buf) < stderrRingSize {
			remaining := stderrRingSize - len(f.buf)
			chunk := line + "\n"
			if len(chunk) > remaining {
				chunk = chunk[:remaining]
			}
			f.buf = append(f.buf, chunk...)
		}
		f.mu.Unlock()

		if color.NoColor {
			fmt.Fprintln(os.Stderr, prefix+line)
		} else {
			c.Fprintln(os.Stderr, prefix+line)
		}
	}
}

// Captured returns the stderr bytes buffered so far.
func (f *stderrForwarder) Captured() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.buf)
}

// StopCapture halts growth of the capture buffer once connect has
// succeeded; the forwarder keeps streaming lines to the terminal for
// the lifetime of the session.
func (f *stderrForwarder) StopCapture() {
	f.mu.Lock()
	f.capture = false
	f.mu.Unlock()
}

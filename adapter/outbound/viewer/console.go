package viewer

import (
	"fmt"
	"io"
	"sync"
)

// Console mirrors channel output to a writer. Whenever the channel being
// written changes, a "==> name <==" header is printed first, the way tail
// prints multiple files.
type Console struct {
	out     io.Writer
	mu      sync.Mutex
	current string
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) write(name, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.switchTo(name)
	io.WriteString(c.out, text)
}

func (c *Console) focus(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switchTo(name)
}

// caller holds the lock
func (c *Console) switchTo(name string) {
	if c.current == name {
		return
	}
	if c.current != "" {
		io.WriteString(c.out, "\n")
	}
	fmt.Fprintf(c.out, "==> %s <==\n", name)
	c.current = name
}

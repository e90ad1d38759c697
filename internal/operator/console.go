package operator

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
)

// Prompts shown when a command needs a value.
const (
	DiameterPrompt = "Enter the real diameter of the ball (mm): "
	DensityPrompt  = "Enter the density factor (g/cm3): "
)

// Console collects operator actions from a line reader and from window keys.
//
// Lines are read by a background goroutine; Pending and Key must be called
// from the measurement loop goroutine only.
type Console struct {
	lines    chan string
	out      io.Writer
	queued   []Action
	awaiting Kind
}

// NewConsole starts reading commands from r. Prompts are written to out.
func NewConsole(r io.Reader, out io.Writer) *Console {
	c := &Console{
		lines: make(chan string, 16),
		out:   out,
	}
	go scan(r, c.lines)
	return c
}

func scan(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("operator input closed", "error", err)
	}
}

// Key handles a key press from the preview window. Calibrate and density
// keys open a prompt whose value is taken from the next console line.
func (c *Console) Key(key int) {
	kind, ok := FromKey(key)
	if !ok {
		return
	}
	switch kind {
	case Calibrate, SetDensityFactor:
		c.prompt(kind)
	default:
		c.queued = append(c.queued, Action{Kind: kind})
	}
}

// Pending returns the actions completed since the last call without
// blocking.
func (c *Console) Pending() []Action {
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				c.lines = nil
				continue
			}
			c.handleLine(line)
		default:
			out := c.queued
			c.queued = nil
			return out
		}
	}
}

func (c *Console) handleLine(line string) {
	if c.awaiting != 0 {
		kind := c.awaiting
		c.awaiting = 0
		c.queued = append(c.queued, Action{Kind: kind, Value: line})
		return
	}

	a, needsValue, ok := ParseCommand(line)
	if !ok {
		if line != "" {
			fmt.Fprintf(c.out, "unknown command %q (c, d, card, q)\n", line)
		}
		return
	}
	if needsValue {
		c.prompt(a.Kind)
		return
	}
	c.queued = append(c.queued, a)
}

func (c *Console) prompt(kind Kind) {
	c.awaiting = kind
	switch kind {
	case Calibrate:
		fmt.Fprint(c.out, DiameterPrompt)
	case SetDensityFactor:
		fmt.Fprint(c.out, DensityPrompt)
	}
}

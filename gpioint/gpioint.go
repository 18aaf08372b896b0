// Package gpioint adapts a GPIO chardev line into a card.Signal,
// turning go-gpiocdev's callback-based edge events into a blocking
// wait with a timeout.
package gpioint

import (
	"errors"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/basepi/gcmemcard/card"
)

var errTimeout = errors.New("gpioint: timed out waiting for falling edge")

// Line is a gpiocdev-backed card.Signal. The card's completion line
// idles high and pulses low once a long-running command finishes, so
// the line is requested with a pull-up bias and falling-edge
// detection.
type Line struct {
	line   *gpiocdev.Line
	events chan struct{}
}

var _ card.Signal = (*Line)(nil)

// Open requests offset on chip (e.g. "gpiochip0") as a falling-edge
// input.
func Open(chip string, offset int) (*Line, error) {
	l := &Line{events: make(chan struct{}, 1)}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(l.handleEvent),
	)
	if err != nil {
		return nil, err
	}
	l.line = line
	return l, nil
}

func (l *Line) handleEvent(gpiocdev.LineEvent) {
	select {
	case l.events <- struct{}{}:
	default:
	}
}

// WaitFallingEdge implements card.Signal.
func (l *Line) WaitFallingEdge(timeout time.Duration) error {
	select {
	case <-l.events:
		return nil
	case <-time.After(timeout):
		return errTimeout
	}
}

// Close releases the underlying chardev line.
func (l *Line) Close() error {
	return l.line.Close()
}

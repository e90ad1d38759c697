// Package operator turns operator input into discrete measurement actions.
//
// Actions arrive from a line-oriented console (stdin) or from single key
// presses in a preview window. They are queued and handed to the measurement
// loop between frames; this package never touches the calibration itself.
//
// Console commands:
//
//	c [mm]       calibrate with the ball's real diameter
//	d [g/cm3]    set the density factor
//	card         read the real diameter from a calibration card
//	q            quit
//
// A bare "c" or "d" prompts for the value on the next line, as does pressing
// c or d in the preview window.
package operator

import (
	"fmt"
	"strings"
)

// Kind identifies an operator action.
type Kind int

const (
	// Calibrate establishes the pixel-to-millimetre ratio.
	Calibrate Kind = iota + 1
	// SetDensityFactor sets grams per cubic centimetre.
	SetDensityFactor
	// CalibrateFromCard calibrates with a diameter read from a printed card.
	CalibrateFromCard
	// Quit ends the measurement session.
	Quit
)

// String returns the command name of the kind.
func (k Kind) String() string {
	switch k {
	case Calibrate:
		return "calibrate"
	case SetDensityFactor:
		return "set_density_factor"
	case CalibrateFromCard:
		return "calibrate_from_card"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Action is one operator request. Value holds the raw text the operator
// typed; it is validated by the calibration, not here.
type Action struct {
	Kind  Kind
	Value string
}

// ParseCommand parses one console line. needsValue reports a calibrate or
// density command typed without its value, which the caller should prompt
// for. Blank and unknown lines return ok false.
func ParseCommand(line string) (a Action, needsValue bool, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Action{}, false, false
	}

	var kind Kind
	switch strings.ToLower(fields[0]) {
	case "c", "cal", "calibrate":
		kind = Calibrate
	case "d", "density", "factor":
		kind = SetDensityFactor
	case "card":
		return Action{Kind: CalibrateFromCard}, false, true
	case "q", "quit", "exit":
		return Action{Kind: Quit}, false, true
	default:
		return Action{}, false, false
	}

	value := strings.TrimSpace(strings.Join(fields[1:], " "))
	return Action{Kind: kind, Value: value}, value == "", true
}

// FromKey maps a preview-window key code to an action kind. Codes are the
// values returned by the window's key polling.
func FromKey(key int) (Kind, bool) {
	switch key {
	case 'c', 'C':
		return Calibrate, true
	case 'd', 'D':
		return SetDensityFactor, true
	case 'k', 'K':
		return CalibrateFromCard, true
	case 'q', 'Q', 27:
		return Quit, true
	default:
		return 0, false
	}
}

package practice

import "fmt"

// Item is one sign the learner must produce. ExpectedLabel is compared against
// recognizer output after normalization.
type Item struct {
	ID            string
	ExpectedLabel string
}

// Mode selects the capture device, recognizer route, and poll cadence.
type Mode string

const (
	ModeStatic   Mode = "static"
	ModeSequence Mode = "sequence"
	ModeSpeech   Mode = "speech"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStatic, ModeSequence, ModeSpeech:
		return Mode(s), nil
	case "":
		return ModeStatic, nil
	default:
		return "", fmt.Errorf("unknown practice mode %q", s)
	}
}

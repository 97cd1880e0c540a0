package types

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrUnsortedInput      = errors.New("unsorted input")
)

// MalformedTimestampError identifies the input row whose timestamp could not
// be placed on the timeline.
type MalformedTimestampError struct {
	Table   string
	Row     int
	VideoID string
	Field   string
	Value   string
	Err     error
}

func (e *MalformedTimestampError) Error() string {
	msg := fmt.Sprintf("%s row %d (video %q): %s %q", e.Table, e.Row, e.VideoID, e.Field, e.Value)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": " + ErrMalformedTimestamp.Error()
}

func (e *MalformedTimestampError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedTimestamp
}

// UnsortedInputError reports where a sequence broke (video_id, end) order.
type UnsortedInputError struct {
	Stage   string
	VideoID string
	Index   int
}

func (e *UnsortedInputError) Error() string {
	return fmt.Sprintf("%s: %s at index %d (video %q)", e.Stage, ErrUnsortedInput, e.Index, e.VideoID)
}

func (e *UnsortedInputError) Unwrap() error { return ErrUnsortedInput }

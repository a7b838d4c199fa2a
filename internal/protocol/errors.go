package protocol

import "errors"

var (
	ErrShortHeader   = errors.New("protocol: short packet header")
	ErrBadFamily     = errors.New("protocol: unknown message family")
	ErrShortPayload  = errors.New("protocol: truncated payload")
	ErrStringTooLong = errors.New("protocol: string exceeds field limit")
)

// Package protocol implements the master control wire format: an 8-byte
// common header followed by a fixed, ordered sequence of little-endian
// fields per message type.
//
// Encode methods produce a complete packet including the common header.
// Decode functions consume only the payload that follows the header; callers
// strip the header with ParseHeader first.
package protocol

package hl7

import "errors"

// Canonical content-failure errors. The exact texts are recorded verbatim in
// the status database and consumed by downstream monitoring, so they must not
// change between releases.
var (
	// ErrNoMessages means a log file was readable but no message block could
	// be located in it.
	ErrNoMessages = errors.New("Log did not contain any HL7 messages")

	// ErrNotParsable means a staged payload is not structurally valid HL7.
	ErrNotParsable = errors.New("File is not parsable as HL7")

	// ErrEmptyContent means a message block carried no payload at all.
	ErrEmptyContent = errors.New("HL7 message content is empty")

	// ErrMissingTimestampHeader means a message block opened without a
	// timestamp header line. Interface engines emit this shape when they
	// re-log the previous message's content.
	ErrMissingTimestampHeader = errors.New("HL7 content did not contain a timestamp header line; this usually means it is a repeat of the previous message's HL7 content")
)

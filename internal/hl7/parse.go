package hl7

import (
	"bytes"
	"strings"
	"time"
)

// mshFieldCount is the minimum number of pipe-delimited fields a message
// header segment must carry for the report columns to be extractable
// (through MSH-10, the control id).
const mshFieldCount = 10

// Report is the analytical projection of one HL7 message.
type Report struct {
	MessageDT          *time.Time
	MessageType        string
	MessageControlID   string
	SendingApplication string
	SendingFacility    string
	RawMessage         string
}

// Parse validates a staged payload as HL7 and extracts the report columns.
// It returns ErrEmptyContent for a blank payload and ErrNotParsable when the
// content does not open with a usable MSH segment.
func Parse(content []byte) (*Report, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, ErrEmptyContent
	}

	segments := splitSegments(string(trimmed))
	if len(segments) == 0 {
		return nil, ErrNotParsable
	}

	msh := segments[0]
	if !strings.HasPrefix(msh, "MSH|") {
		return nil, ErrNotParsable
	}

	fields := strings.Split(msh, "|")
	if len(fields) < mshFieldCount {
		return nil, ErrNotParsable
	}

	// MSH-1 is the field separator itself, so fields[i] holds MSH-(i+1):
	// fields[2]=MSH-3 sending application, fields[3]=MSH-4 sending facility,
	// fields[6]=MSH-7 message datetime, fields[8]=MSH-9 message type,
	// fields[9]=MSH-10 control id.
	return &Report{
		MessageDT:          parseMessageDT(fields[6]),
		MessageType:        strings.ReplaceAll(fields[8], "^", " "),
		MessageControlID:   fields[9],
		SendingApplication: fields[2],
		SendingFacility:    fields[3],
		RawMessage:         string(trimmed),
	}, nil
}

// splitSegments splits a message into its segments, tolerating any of the
// \r, \n, or \r\n separators seen in staged payloads.
func splitSegments(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var segments []string
	for _, seg := range strings.Split(normalized, "\n") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// parseMessageDT extracts a timestamp from an MSH-7 value, accepting the
// usual yyyyMMddHHmmss precision or a bare yyyyMMdd date. Sub-second digits
// and timezone offsets are ignored.
func parseMessageDT(value string) *time.Time {
	digits := value
	if i := strings.IndexAny(digits, ".+-"); i >= 0 {
		digits = digits[:i]
	}

	var layout string
	switch {
	case len(digits) >= 14:
		digits, layout = digits[:14], "20060102150405"
	case len(digits) >= 8:
		digits, layout = digits[:8], "20060102"
	default:
		return nil
	}

	ts, err := time.Parse(layout, digits)
	if err != nil {
		return nil
	}
	return &ts
}

// Package hl7 locates HL7 messages inside raw interface-engine log files and
// parses individual messages into the analytical schema. It deliberately
// implements only the structural contract the ingest pipeline needs, not a
// full HL7 grammar.
package hl7

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strings"
)

// headerLine matches a message timestamp header: yyyyMMddHHmmss plus up to
// four sub-second/sequence digits, alone on its line.
var headerLine = regexp.MustCompile(`^\d{14,18}$`)

// mllpFraming strips MLLP start/end-of-block bytes that interface engines
// leave embedded in their log output.
var mllpFraming = strings.NewReplacer("\x0b", "", "\x1c", "")

// Message is one block located in a log file. TimestampHeader is the raw
// digit string from the block's header line, empty when the block opened with
// bare segment content (the repeat-content shape).
type Message struct {
	Index           int
	TimestampHeader string
	Payload         []byte
}

// Headerless reports whether the block had no timestamp header line, which
// usually means it repeats the previous message's content.
func (m Message) Headerless() bool {
	return m.TimestampHeader == ""
}

// Empty reports whether the block carried no payload.
func (m Message) Empty() bool {
	return len(bytes.TrimSpace(m.Payload)) == 0
}

// Split scans a raw log file for message blocks. A block opens at a timestamp
// header line, or at an MSH segment when no block holds one yet: an MSH line
// arriving while the open block already carries its MSH segment is re-logged
// content, so it closes the block and opens a new headerless one. Each block
// runs to the next block or EOF. Interface chatter before the first block is
// skipped. Split is purely structural: empty or unparsable payloads are
// returned as messages for the caller to classify.
func Split(r io.Reader) ([]Message, error) {
	var (
		messages []Message
		current  *Message
		payload  []string
		mshSeen  bool
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Payload = []byte(strings.TrimSpace(strings.Join(payload, "\n")))
		messages = append(messages, *current)
		current = nil
		payload = nil
		mshSeen = false
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(mllpFraming.Replace(scanner.Text()), "\r")

		switch {
		case headerLine.MatchString(strings.TrimSpace(line)):
			flush()
			current = &Message{Index: len(messages), TimestampHeader: strings.TrimSpace(line)}
		case strings.HasPrefix(line, "MSH|") && (current == nil || mshSeen):
			flush()
			current = &Message{Index: len(messages)}
			payload = append(payload, line)
			mshSeen = true
		case current != nil:
			payload = append(payload, line)
			if strings.HasPrefix(line, "MSH|") {
				mshSeen = true
			}
		default:
			// Chatter outside any block (TCP session noise) is dropped.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return messages, nil
}

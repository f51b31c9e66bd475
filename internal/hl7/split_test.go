package hl7

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoMessageLog = `199504020707509258
MSH|^~\&|EPIC|WUSM|||19950402070750||ORU^R01|2837|P|2.3
PID|1||123456||DOE^JANE
OBX|1|TX|||Report text line one
199504020930172230
MSH|^~\&|EPIC|WUSM|||19950402093017||ORU^R01|2838|P|2.3
PID|1||654321||DOE^JOHN
`

func TestSplitTwoMessages(t *testing.T) {
	messages, err := Split(strings.NewReader(twoMessageLog))
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, 0, messages[0].Index)
	assert.Equal(t, "199504020707509258", messages[0].TimestampHeader)
	assert.True(t, strings.HasPrefix(string(messages[0].Payload), "MSH|"))
	assert.Contains(t, string(messages[0].Payload), "DOE^JANE")
	assert.NotContains(t, string(messages[0].Payload), "DOE^JOHN")

	assert.Equal(t, 1, messages[1].Index)
	assert.Equal(t, "199504020930172230", messages[1].TimestampHeader)
	assert.Contains(t, string(messages[1].Payload), "DOE^JOHN")
}

func TestSplitSkipsInterfaceChatter(t *testing.T) {
	log := "connection accepted from 10.0.0.12:42831\n" +
		"ACK received\n" +
		twoMessageLog +
		"connection closed\n"

	messages, err := Split(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	// Trailing chatter lands in the open block; the splitter is structural and
	// the parser rejects it later if it corrupts the payload.
	assert.Equal(t, "199504020707509258", messages[0].TimestampHeader)
}

func TestSplitStripsMLLPFraming(t *testing.T) {
	log := "199504020707509258\n\x0bMSH|^~\\&|EPIC|WUSM|||19950402070750||ORU^R01|2837|P|2.3\r\nPID|1||123456\x1c\r\n"

	messages, err := Split(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	payload := string(messages[0].Payload)
	assert.True(t, strings.HasPrefix(payload, "MSH|"))
	assert.NotContains(t, payload, "\x0b")
	assert.NotContains(t, payload, "\x1c")
}

func TestSplitNoMessages(t *testing.T) {
	messages, err := Split(strings.NewReader("random bytes\nnothing structured here\n"))
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSplitHeaderlessRepeat(t *testing.T) {
	log := `200710211522316785
MSH|^~\&|EPIC|WUSM|||20071021152231||ORU^R01|9901|P|2.3
PID|1||111222
`
	// The same content re-logged without its header line.
	log += "MSH|^~\\&|EPIC|WUSM|||20071021152231||ORU^R01|9901|P|2.3\nPID|1||111222\n"

	t.Log("second block opens at a bare MSH segment")
	messages, err := Split(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.False(t, messages[0].Headerless())
	assert.Equal(t, 1, strings.Count(string(messages[0].Payload), "MSH|"))
	assert.True(t, messages[1].Headerless())
	assert.Equal(t, 1, messages[1].Index)
	assert.False(t, messages[1].Empty())
}

func TestSplitEmptyMessageBlock(t *testing.T) {
	log := "201901061030450011\n\n201901061144050012\nMSH|^~\\&|EPIC|WUSM|||20190106114405||ORU^R01|7|P|2.3\n"

	messages, err := Split(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.True(t, messages[0].Empty())
	assert.False(t, messages[0].Headerless())
	assert.False(t, messages[1].Empty())
}

func TestSplitGarbagePayloadStillExtracted(t *testing.T) {
	log := "201608291211093942\nthis is not HL7 at all\njust some text\n"

	messages, err := Split(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.False(t, messages[0].Empty())
	assert.Equal(t, "201608291211093942", messages[0].TimestampHeader)
}

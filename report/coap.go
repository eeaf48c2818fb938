package report

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-coap"
)

// TokenSize is the length of the random request token.
const TokenSize = 8

// buildRequest builds the confirmable POST carrying the report payload.
func buildRequest(path string, payload []byte) (coap.Message, error) {
	token := make([]byte, TokenSize)
	if _, err := rand.Read(token); err != nil {
		return coap.Message{}, fmt.Errorf("generate token: %w", err)
	}

	var id [2]byte
	if _, err := rand.Read(id[:]); err != nil {
		return coap.Message{}, fmt.Errorf("generate message id: %w", err)
	}

	msg := coap.Message{
		Type:      coap.Confirmable,
		Code:      coap.POST,
		MessageID: binary.BigEndian.Uint16(id[:]),
		Token:     token,
		Payload:   payload,
	}
	msg.SetPathString(path)
	return msg, nil
}

// isEmptyAck reports whether m acknowledges req without a response,
// which means the response will follow separately.
func isEmptyAck(m, req coap.Message) bool {
	return m.Type == coap.Acknowledgement && m.Code == 0 && m.MessageID == req.MessageID
}

// isReset reports whether the server rejected req.
func isReset(m, req coap.Message) bool {
	return m.Type == coap.Reset && m.MessageID == req.MessageID
}

// isSuccess reports whether code is in the 2.xx class.
func isSuccess(code coap.COAPCode) bool {
	return code>>5 == 2
}

// ackFor builds the empty ACK for a separate confirmable response.
func ackFor(m coap.Message) ([]byte, error) {
	ack := coap.Message{
		Type:      coap.Acknowledgement,
		MessageID: m.MessageID,
	}
	return ack.MarshalBinary()
}

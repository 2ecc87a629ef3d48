package net

import (
	"bytes"
	"encoding/json"
	"fmt"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
)

// DecodeMessage parses one line into a message envelope. The body must be a
// JSON object.
func DecodeMessage(line []byte) (maelstrom.Message, error) {
	var msg maelstrom.Message

	if err := json.Unmarshal(line, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	body := bytes.TrimSpace(msg.Body)
	if len(body) == 0 || body[0] != '{' {
		return msg, fmt.Errorf("%w: body is not an object", ErrMalformedMessage)
	}

	return msg, nil
}

// EncodeMessage returns the single-line encoding of msg, without the trailing
// newline.
func EncodeMessage(msg maelstrom.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// NewMessage encodes body into an envelope from src to dest.
func NewMessage(src, dest string, body Body) (maelstrom.Message, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return maelstrom.Message{}, err
	}

	return maelstrom.Message{
		Src:  src,
		Dest: dest,
		Body: raw,
	}, nil
}

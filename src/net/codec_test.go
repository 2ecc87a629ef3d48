package net

import (
	"encoding/json"
	"errors"
	"testing"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":3,"message":5}}`))
	require.NoError(t, err)
	require.Equal(t, "c1", msg.Src)
	require.Equal(t, "n1", msg.Dest)

	header, err := DecodeHeader(msg.Body)
	require.NoError(t, err)
	require.Equal(t, TypeBroadcast, header.Type)
	require.Equal(t, 3, header.MsgID)

	var body BroadcastRequest
	require.NoError(t, DecodeBody(msg.Body, &body))
	require.Equal(t, store.IntValue(5), body.Message)
	require.Equal(t, 3, body.MsgID)
}

func TestDecodeMessageMalformed(t *testing.T) {
	for _, line := range []string{
		`not json`,
		`{"src":"c1","dest":"n1"`,
		`{"src":"c1","dest":"n1","body":[1,2]}`,
		`{"src":"c1","dest":"n1"}`,
	} {
		_, err := DecodeMessage([]byte(line))
		require.True(t, errors.Is(err, ErrMalformedMessage), "%s: %v", line, err)
	}
}

func TestDecodeBodyMalformed(t *testing.T) {
	var body BroadcastRequest
	err := DecodeBody(json.RawMessage(`{"type":"broadcast","message":{"a":1}}`), &body)

	var rpcErr *maelstrom.RPCError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, maelstrom.MalformedRequest, rpcErr.Code)
}

func TestNewMessage(t *testing.T) {
	body := &ReadResponse{
		Header:   NewHeader(TypeReadOK),
		Messages: []store.Value{"1", `"two"`},
	}
	body.MsgID = 4
	body.InReplyTo = 2

	msg, err := NewMessage("n1", "c1", body)
	require.NoError(t, err)

	line, err := EncodeMessage(msg)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"src":"n1","dest":"c1","body":{"type":"read_ok","msg_id":4,"in_reply_to":2,"messages":[1,"two"]}}`,
		string(line))
}

func TestNewErrorBody(t *testing.T) {
	body := NewErrorBody(maelstrom.NewRPCError(maelstrom.NotSupported, "unknown type"))
	body.InReplyTo = 9

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"error","in_reply_to":9,"code":10,"text":"unknown type"}`, string(raw))
}

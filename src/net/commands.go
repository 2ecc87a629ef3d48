package net

import (
	"encoding/json"
	"fmt"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/mosaicnetworks/murmur/src/store"
)

// Message types
const (
	TypeInit        = "init"
	TypeInitOK      = "init_ok"
	TypeTopology    = "topology"
	TypeTopologyOK  = "topology_ok"
	TypeBroadcast   = "broadcast"
	TypeBroadcastOK = "broadcast_ok"
	TypeRead        = "read"
	TypeReadOK      = "read_ok"
	TypeGossip      = "gossip"
	TypeGossipOK    = "gossip_ok"
	TypeEcho        = "echo"
	TypeEchoOK      = "echo_ok"
	TypeGenerate    = "generate"
	TypeGenerateOK  = "generate_ok"
	TypeError       = "error"
)

// Body is implemented by every message body. It exposes the fields common to
// all bodies.
type Body interface {
	GetHeader() *maelstrom.MessageBody
}

// Header carries type, msg_id, in_reply_to, and for error bodies, code and
// text. It is embedded in every body.
type Header struct {
	maelstrom.MessageBody
}

// NewHeader ...
func NewHeader(typ string) Header {
	return Header{maelstrom.MessageBody{Type: typ}}
}

// GetHeader implements the Body interface.
func (h *Header) GetHeader() *maelstrom.MessageBody {
	return &h.MessageBody
}

// NewErrorBody returns an error body carrying the code and text of err.
func NewErrorBody(err *maelstrom.RPCError) *Header {
	h := NewHeader(TypeError)
	h.Code = err.Code
	h.Text = err.Text
	return &h
}

// InitRequest is the first message a node receives. It assigns the node its
// id and lists every node of the cluster.
type InitRequest struct {
	Header
	NodeID  string   `json:"node_id"`
	NodeIDs []string `json:"node_ids"`
}

// TopologyRequest assigns the neighbors of every node.
type TopologyRequest struct {
	Header
	Topology map[string][]string `json:"topology"`
}

// BroadcastRequest submits a value to the cluster.
type BroadcastRequest struct {
	Header
	Message store.Value `json:"message"`
}

// ReadResponse lists every value known to a node.
type ReadResponse struct {
	Header
	Messages []store.Value `json:"messages"`
}

// GossipRequest carries a batch of values from a node to one of its
// neighbors.
type GossipRequest struct {
	Header
	Messages []store.Value `json:"messages"`
}

// GossipResponse acknowledges a GossipRequest. Messages lists the values that
// were incorporated. When it is empty, the whole batch identified by
// in_reply_to is acknowledged.
type GossipResponse struct {
	Header
	Messages []store.Value `json:"messages,omitempty"`
}

// EchoMessage is used for both echo and echo_ok.
type EchoMessage struct {
	Header
	Echo json.RawMessage `json:"echo"`
}

// GenerateResponse carries a cluster-wide unique id.
type GenerateResponse struct {
	Header
	ID string `json:"id"`
}

// DecodeHeader reads the common fields of a raw body.
func DecodeHeader(raw json.RawMessage) (maelstrom.MessageBody, error) {
	var header maelstrom.MessageBody
	if err := json.Unmarshal(raw, &header); err != nil {
		return header, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return header, nil
}

// DecodeBody unmarshals raw into body. Failures are reported as
// malformed-request RPC errors so that they can be returned to the sender.
func DecodeBody(raw json.RawMessage, body Body) error {
	if err := json.Unmarshal(raw, body); err != nil {
		return maelstrom.NewRPCError(maelstrom.MalformedRequest, err.Error())
	}
	return nil
}

package net

import (
	"errors"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrMalformedMessage is returned when an inbound line is not a valid
	// message envelope.
	ErrMalformedMessage = errors.New("malformed message")
)

// Transport provides an interface for network transports to allow a node to
// communicate with the harness, its clients, and other nodes.
type Transport interface {

	// Listen starts delivering inbound messages to the Consumer channel. It
	// blocks until the input is exhausted or the transport is closed.
	Listen()

	// Consumer returns the channel of inbound messages. It is closed when no
	// more messages will be delivered.
	Consumer() <-chan maelstrom.Message

	// Err returns the error that stopped the transport, if any. End of input
	// is not an error.
	Err() error

	// Send delivers one message. It does not wait for any reply.
	Send(msg maelstrom.Message) error

	// Close permanently closes a transport, stopping any associated goroutines
	// and freeing other resources.
	Close() error
}

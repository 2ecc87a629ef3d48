package net

import (
	"errors"
	"fmt"
	"sync"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
)

const inmemConsumerBuffer = 1024

var (
	// ErrNoRoute is returned when the destination is unknown or disconnected.
	ErrNoRoute = errors.New("no route to destination")

	// ErrBufferFull is returned when the destination does not consume its
	// messages fast enough. The message is lost.
	ErrBufferFull = errors.New("destination buffer full")
)

// FilterFunc decides whether a message may be delivered.
type FilterFunc func(msg maelstrom.Message) bool

// InmemTransport Implements the Transport interface, to allow murmur nodes to
// be tested in-memory without going through a harness.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan maelstrom.Message
	localAddr  string
	peers      map[string]*InmemTransport
	filter     FilterFunc
	shutdown   bool
	shutdownCh chan struct{}
}

// NewInmemTransport is used to initialize a new transport.
func NewInmemTransport(addr string) *InmemTransport {
	return &InmemTransport{
		consumerCh: make(chan maelstrom.Message, inmemConsumerBuffer),
		localAddr:  addr,
		peers:      make(map[string]*InmemTransport),
		shutdownCh: make(chan struct{}),
	}
}

// Listen blocks until the transport is closed. Messages are delivered by their
// senders.
func (i *InmemTransport) Listen() {
	<-i.shutdownCh
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan maelstrom.Message {
	return i.consumerCh
}

// Err implements the Transport interface.
func (i *InmemTransport) Err() error {
	return nil
}

// LocalAddr returns the address of this transport.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Send implements the Transport interface. It never blocks.
func (i *InmemTransport) Send(msg maelstrom.Message) error {
	i.RLock()
	peer, ok := i.peers[msg.Dest]
	filter := i.filter
	shutdown := i.shutdown
	i.RUnlock()

	if shutdown {
		return ErrTransportShutdown
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRoute, msg.Dest)
	}

	if filter != nil && !filter(msg) {
		return nil
	}

	return peer.deliver(msg)
}

func (i *InmemTransport) deliver(msg maelstrom.Message) error {
	i.RLock()
	defer i.RUnlock()

	if i.shutdown {
		return fmt.Errorf("%w: %s", ErrNoRoute, i.localAddr)
	}

	select {
	case i.consumerCh <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// SetFilter installs a filter applied to every outgoing message. A nil filter
// delivers everything.
func (i *InmemTransport) SetFilter(filter FilterFunc) {
	i.Lock()
	defer i.Unlock()
	i.filter = filter
}

// Connect is used to connect this transport to another transport for
// a given peer name. This allows for local routing.
func (i *InmemTransport) Connect(peer string, trans *InmemTransport) {
	i.Lock()
	defer i.Unlock()
	i.peers[peer] = trans
}

// Disconnect is used to remove the ability to route to a given peer.
func (i *InmemTransport) Disconnect(peer string) {
	i.Lock()
	defer i.Unlock()
	delete(i.peers, peer)
}

// DisconnectAll is used to remove all routes to peers.
func (i *InmemTransport) DisconnectAll() {
	i.Lock()
	defer i.Unlock()
	i.peers = make(map[string]*InmemTransport)
}

// Close is used to permanently disable the transport. The consumer channel is
// closed, which signals end of input to the reader.
func (i *InmemTransport) Close() error {
	i.Lock()
	defer i.Unlock()

	if i.shutdown {
		return nil
	}

	i.shutdown = true
	i.peers = make(map[string]*InmemTransport)
	close(i.shutdownCh)
	close(i.consumerCh)

	return nil
}

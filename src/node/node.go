package node

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node/state"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/sirupsen/logrus"
)

var (
	// ErrProtocol marks errors after which the node cannot continue.
	ErrProtocol = errors.New("protocol error")

	// ErrNotInitialized is returned when the first message is not init.
	ErrNotInitialized = fmt.Errorf("%w: node not initialized", ErrProtocol)
)

// StoreFactory opens the value store of a node once its identity is known.
type StoreFactory func(nodeID string, nodeIDs []string) (store.Store, error)

// InmemStoreFactory ...
func InmemStoreFactory(nodeID string, nodeIDs []string) (store.Store, error) {
	return store.NewInmemStore(), nil
}

// HandlerFunc processes one inbound message. Returning a *maelstrom.RPCError
// sends an error body with that code to the sender. Any other error is
// reported as a crash.
type HandlerFunc func(msg maelstrom.Message) error

// Node defines a murmur node
type Node struct {
	// The node's state is initially Initializing, Running once the init
	// message is processed, and Shutdown when the input is exhausted.
	state.Manager

	conf   *config.Config
	logger *logrus.Entry

	// core is nil until init. It is protected by coreLock, as are nodeID and
	// ids.
	core     *Core
	coreLock sync.Mutex
	nodeID   string
	ids      IDGenerator

	storeFactory StoreFactory

	trans net.Transport
	netCh <-chan maelstrom.Message

	handlers map[string]HandlerFunc

	controlTimer *ControlTimer

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	msgID        int64
	start        time.Time
	gossipSent   int64
	acksReceived int64
}

// NewNode is a factory method that returns a Node instance
func NewNode(conf *config.Config, storeFactory StoreFactory, trans net.Transport) *Node {
	if storeFactory == nil {
		storeFactory = InmemStoreFactory
	}

	node := &Node{
		conf:         conf,
		logger:       conf.Logger(),
		storeFactory: storeFactory,
		trans:        trans,
		netCh:        trans.Consumer(),
		controlTimer: NewFixedControlTimer(),
		shutdownCh:   make(chan struct{}),
		start:        time.Now(),
	}

	node.handlers = map[string]HandlerFunc{
		net.TypeInit:      node.handleInit,
		net.TypeTopology:  node.handleTopology,
		net.TypeBroadcast: node.handleBroadcast,
		net.TypeRead:      node.handleRead,
		net.TypeGossip:    node.handleGossip,
		net.TypeGossipOK:  node.handleGossipOK,
		net.TypeEcho:      node.handleEcho,
		net.TypeGenerate:  node.handleGenerate,
		net.TypeError:     node.handleError,
	}

	return node
}

// Handle registers a handler for a message type, replacing any existing one.
// It must be called before Run.
func (n *Node) Handle(typ string, handler HandlerFunc) {
	n.handlers[typ] = handler
}

// Run invokes the main loop of the node. It returns nil when the input is
// exhausted or the node is shut down, and an error wrapping ErrProtocol, or a
// transport error, when the node cannot continue.
func (n *Node) Run() error {
	go n.trans.Listen()

	// The ControlTimer is only armed while some value is pending for some
	// neighbor.
	n.GoFunc(func() { n.controlTimer.Run(0) })

	for {
		select {
		case msg, ok := <-n.netCh:
			if !ok {
				err := n.trans.Err()
				if err != nil {
					n.logger.WithError(err).Error("Transport")
				} else {
					n.logger.Debug("End of input")
				}
				n.Shutdown()
				return err
			}

			if err := n.processMessage(msg); err != nil {
				n.logger.WithError(err).Error("Processing message")
				n.Shutdown()
				return err
			}

			n.resetTimer()
		case <-n.controlTimer.TickCh():
			n.gossip()
			n.resetTimer()
		case <-n.shutdownCh:
			return nil
		}
	}
}

// Shutdown stops the node's goroutines, closes the transport, and closes the
// store. Pending gossip is abandoned.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.SetState(state.Shutdown)
		close(n.shutdownCh)

		n.controlTimer.Shutdown()
		n.WaitRoutines()

		if err := n.trans.Close(); err != nil {
			n.logger.WithError(err).Error("Closing transport")
		}

		n.coreLock.Lock()
		defer n.coreLock.Unlock()
		if n.core != nil {
			if err := n.core.store.Close(); err != nil {
				n.logger.WithError(err).Error("Closing store")
			}
		}
	})
}

// ID returns the id assigned by init, or "" before that.
func (n *Node) ID() string {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	return n.nodeID
}

func (n *Node) processMessage(msg maelstrom.Message) error {
	header, err := net.DecodeHeader(msg.Body)
	if err != nil {
		return err
	}

	// init arrives before the node knows its id
	label := n.nodeID
	if label == "" {
		label = msg.Dest
	}
	telemetry.MessagesReceived.WithLabelValues(label, header.Type).Inc()

	if n.GetState() == state.Initializing && header.Type != net.TypeInit {
		return fmt.Errorf("%w: received %q from %s", ErrNotInitialized, header.Type, msg.Src)
	}

	handler, ok := n.handlers[header.Type]
	if !ok {
		if header.InReplyTo != 0 {
			n.logger.WithFields(logrus.Fields{
				"type":        header.Type,
				"src":         msg.Src,
				"in_reply_to": header.InReplyTo,
			}).Debug("Ignoring unknown reply")
			return nil
		}
		n.replyError(msg.Src, header.MsgID,
			maelstrom.NewRPCError(maelstrom.NotSupported, fmt.Sprintf("unsupported message type %q", header.Type)))
		return nil
	}

	wasInitializing := n.GetState() == state.Initializing

	err = handler(msg)
	if err == nil {
		return nil
	}

	if wasInitializing {
		return fmt.Errorf("%w: init: %v", ErrProtocol, err)
	}

	var rpcErr *maelstrom.RPCError
	if !errors.As(err, &rpcErr) {
		n.logger.WithError(err).WithField("type", header.Type).Error("Handler")
		rpcErr = maelstrom.NewRPCError(maelstrom.Crash, err.Error())
	}

	if header.InReplyTo != 0 {
		n.logger.WithError(rpcErr).WithField("type", header.Type).Warn("Failed to process reply")
		return nil
	}

	n.replyError(msg.Src, header.MsgID, rpcErr)

	return nil
}

// send assigns the next msg_id to body and sends it to dest. Delivery failures
// are only logged; gossip retries and clients resend.
func (n *Node) send(dest string, body net.Body) int {
	header := body.GetHeader()
	header.MsgID = int(atomic.AddInt64(&n.msgID, 1))

	msg, err := net.NewMessage(n.nodeID, dest, body)
	if err != nil {
		n.logger.WithError(err).WithField("type", header.Type).Error("Encoding message")
		return header.MsgID
	}

	if err := n.trans.Send(msg); err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"dest": dest,
			"type": header.Type,
		}).Debug("Send")
	}

	return header.MsgID
}

func (n *Node) reply(dest string, inReplyTo int, body net.Body) {
	body.GetHeader().InReplyTo = inReplyTo
	n.send(dest, body)
}

func (n *Node) replyError(dest string, inReplyTo int, rpcErr *maelstrom.RPCError) {
	telemetry.ErrorsSent.WithLabelValues(n.nodeID, strconv.Itoa(rpcErr.Code)).Inc()

	n.logger.WithFields(logrus.Fields{
		"dest": dest,
		"code": rpcErr.Code,
		"text": rpcErr.Text,
	}).Debug("Replying with error")

	n.reply(dest, inReplyTo, net.NewErrorBody(rpcErr))
}

// gossip sends every neighbor the batch of values it has not acknowledged.
func (n *Node) gossip() {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.core == nil {
		return
	}

	for _, batch := range n.core.PendingBatches() {
		req := &net.GossipRequest{
			Header:   net.NewHeader(net.TypeGossip),
			Messages: batch.Values,
		}

		batch.MsgID = n.send(batch.Neighbor, req)
		n.core.RecordInflight(batch)

		atomic.AddInt64(&n.gossipSent, 1)
		telemetry.GossipSent.WithLabelValues(n.nodeID).Inc()
		telemetry.GossipValuesSent.WithLabelValues(n.nodeID).Add(float64(len(batch.Values)))

		n.logger.WithFields(logrus.Fields{
			"neighbor": batch.Neighbor,
			"msg_id":   batch.MsgID,
			"values":   len(batch.Values),
		}).Debug("Gossip")
	}
}

// resetTimer arms the retry timer if something is pending and the timer is not
// already armed.
func (n *Node) resetTimer() {
	n.coreLock.Lock()
	busy := n.core != nil && n.core.Busy()
	n.coreLock.Unlock()

	if busy && !n.controlTimer.IsSet() {
		n.controlTimer.Reset(n.conf.HeartbeatTimeout)
	}
}

// updateGauges refreshes the store and pending gauges. Must be called with
// coreLock held.
func (n *Node) updateGauges() {
	telemetry.StoreValues.WithLabelValues(n.nodeID).Set(float64(n.core.Len()))
	for neighbor, count := range n.core.PendingCounts() {
		telemetry.PendingRecords.WithLabelValues(n.nodeID, neighbor).Set(float64(count))
	}
}

package node

import (
	"sync/atomic"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node/state"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/sirupsen/logrus"
)

func (n *Node) handleInit(msg maelstrom.Message) error {
	var req net.InitRequest
	if err := net.DecodeBody(msg.Body, &req); err != nil {
		return err
	}

	if n.GetState() != state.Initializing {
		return maelstrom.NewRPCError(maelstrom.PreconditionFailed, "node already initialized")
	}

	if req.NodeID == "" {
		return maelstrom.NewRPCError(maelstrom.MalformedRequest, "missing node_id")
	}

	strategy, err := peers.ParseStrategy(n.conf.Topology)
	if err != nil {
		return err
	}

	ids, err := NewIDGenerator(n.conf.IDStrategy, req.NodeID)
	if err != nil {
		return err
	}

	st, err := n.storeFactory(req.NodeID, req.NodeIDs)
	if err != nil {
		return err
	}

	topology := peers.NewTopology(strategy, n.conf.Fanout)
	topology.Init(req.NodeID, req.NodeIDs)

	n.coreLock.Lock()
	n.nodeID = req.NodeID
	n.ids = ids
	n.logger = n.logger.WithField("this_id", req.NodeID)
	n.core = NewCore(topology, st, n.logger)
	bootstrapped := n.core.Bootstrap()
	n.updateGauges()
	n.coreLock.Unlock()

	if bootstrapped > 0 {
		telemetry.ValuesAdded.WithLabelValues(req.NodeID, "bootstrap").Add(float64(bootstrapped))
	}

	n.SetState(state.Running)

	n.logger.WithFields(logrus.Fields{
		"nodes":        len(req.NodeIDs),
		"topology":     strategy,
		"neighbors":    topology.Neighbors().IDs(),
		"bootstrapped": bootstrapped,
	}).Info("Initialized")

	resp := net.NewHeader(net.TypeInitOK)
	n.reply(msg.Src, req.MsgID, &resp)

	return nil
}

func (n *Node) handleTopology(msg maelstrom.Message) error {
	var req net.TopologyRequest
	if err := net.DecodeBody(msg.Body, &req); err != nil {
		return err
	}

	n.coreLock.Lock()
	_, removed := n.core.SetTopology(req.Topology)
	for _, id := range removed {
		telemetry.ForgetPending(n.nodeID, id)
	}
	n.updateGauges()
	n.coreLock.Unlock()

	resp := net.NewHeader(net.TypeTopologyOK)
	n.reply(msg.Src, req.MsgID, &resp)

	return nil
}

func (n *Node) handleBroadcast(msg maelstrom.Message) error {
	var req net.BroadcastRequest
	if err := net.DecodeBody(msg.Body, &req); err != nil {
		return err
	}

	if req.Message.IsEmpty() {
		return maelstrom.NewRPCError(maelstrom.MalformedRequest, "missing message")
	}

	n.coreLock.Lock()
	added, err := n.core.AddValue(req.Message)
	if err == nil && added {
		n.updateGauges()
	}
	n.coreLock.Unlock()

	if err != nil {
		return err
	}

	if added {
		telemetry.ValuesAdded.WithLabelValues(n.nodeID, "client").Inc()
	}

	resp := net.NewHeader(net.TypeBroadcastOK)
	n.reply(msg.Src, req.MsgID, &resp)

	return nil
}

func (n *Node) handleRead(msg maelstrom.Message) error {
	var req net.Header
	if err := net.DecodeBody(msg.Body, &req); err != nil {
		return err
	}

	n.coreLock.Lock()
	values := n.core.Values()
	n.coreLock.Unlock()

	resp := &net.ReadResponse{
		Header:   net.NewHeader(net.TypeReadOK),
		Messages: values,
	}
	n.reply(msg.Src, req.MsgID, resp)

	return nil
}

// handleGossip merges a batch from another node and acknowledges it. If the
// store fails, no ack is sent so that the sender retries.
func (n *Node) handleGossip(msg maelstrom.Message) error {
	var req net.GossipRequest
	if err := net.DecodeBody(msg.Body, &req); err != nil {
		return err
	}

	n.coreLock.Lock()
	fresh, err := n.core.Merge(msg.Src, req.Messages)
	if err == nil && len(fresh) > 0 {
		n.updateGauges()
	}
	n.coreLock.Unlock()

	if err != nil {
		n.logger.WithError(err).WithField("from", msg.Src).Error("Merge")
		return maelstrom.NewRPCError(maelstrom.TemporarilyUnavailable, err.Error())
	}

	if len(fresh) > 0 {
		telemetry.ValuesAdded.WithLabelValues(n.nodeID, "gossip").Add(float64(len(fresh)))
	}

	resp := &net.GossipResponse{
		Header:   net.NewHeader(net.TypeGossipOK),
		Messages: req.Messages,
	}
	n.reply(msg.Src, req.MsgID, resp)

	return nil
}

func (n *Node) handleGossipOK(msg maelstrom.Message) error {
	var resp net.GossipResponse
	if err := net.DecodeBody(msg.Body, &resp); err != nil {
		return err
	}

	n.coreLock.Lock()
	n.core.Ack(msg.Src, resp.InReplyTo, resp.Messages)
	n.updateGauges()
	n.coreLock.Unlock()

	atomic.AddInt64(&n.acksReceived, 1)
	telemetry.AcksReceived.WithLabelValues(n.nodeID).Inc()

	return nil
}

func (n *Node) handleEcho(msg maelstrom.Message) error {
	var req net.EchoMessage
	if err := net.DecodeBody(msg.Body, &req); err != nil {
		return err
	}

	resp := &net.EchoMessage{
		Header: net.NewHeader(net.TypeEchoOK),
		Echo:   req.Echo,
	}
	n.reply(msg.Src, req.MsgID, resp)

	return nil
}

func (n *Node) handleGenerate(msg maelstrom.Message) error {
	var req net.Header
	if err := net.DecodeBody(msg.Body, &req); err != nil {
		return err
	}

	id, err := n.ids.Next()
	if err != nil {
		return err
	}

	resp := &net.GenerateResponse{
		Header: net.NewHeader(net.TypeGenerateOK),
		ID:     id,
	}
	n.reply(msg.Src, req.MsgID, resp)

	return nil
}

// handleError logs error bodies. They are never answered.
func (n *Node) handleError(msg maelstrom.Message) error {
	var body net.Header
	if err := net.DecodeBody(msg.Body, &body); err != nil {
		return err
	}

	n.logger.WithFields(logrus.Fields{
		"src":         msg.Src,
		"in_reply_to": body.InReplyTo,
		"code":        body.Code,
		"text":        body.Text,
	}).Warn("Received error")

	return nil
}

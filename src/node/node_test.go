package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node/state"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	rpcTimeout     = 5 * time.Second
	convergeWithin = 10 * time.Second
)

/*******************************************************************************
Test client
*******************************************************************************/

type testClient struct {
	t     *testing.T
	id    string
	trans *net.InmemTransport
	msgID int
}

// rpc sends body to dest and waits for the reply to it. Other messages are
// discarded.
func (c *testClient) rpc(dest string, body net.Body) (maelstrom.MessageBody, json.RawMessage) {
	c.msgID++
	body.GetHeader().MsgID = c.msgID

	msg, err := net.NewMessage(c.id, dest, body)
	require.NoError(c.t, err)
	require.NoError(c.t, c.trans.Send(msg))

	timeout := time.After(rpcTimeout)
	for {
		select {
		case resp, ok := <-c.trans.Consumer():
			require.True(c.t, ok, "client transport closed")

			header, err := net.DecodeHeader(resp.Body)
			require.NoError(c.t, err)

			if header.InReplyTo == c.msgID {
				require.Equal(c.t, dest, resp.Src)
				return header, resp.Body
			}
		case <-timeout:
			c.t.Fatalf("no reply from %s to %s", dest, body.GetHeader().Type)
		}
	}
}

func (c *testClient) init(dest string, ids []string) {
	header, _ := c.rpc(dest, &net.InitRequest{
		Header:  net.NewHeader(net.TypeInit),
		NodeID:  dest,
		NodeIDs: ids,
	})
	require.Equal(c.t, net.TypeInitOK, header.Type)
}

func (c *testClient) broadcast(dest string, value store.Value) {
	header, _ := c.rpc(dest, &net.BroadcastRequest{
		Header:  net.NewHeader(net.TypeBroadcast),
		Message: value,
	})
	require.Equal(c.t, net.TypeBroadcastOK, header.Type)
}

func (c *testClient) read(dest string) []store.Value {
	req := net.NewHeader(net.TypeRead)
	header, raw := c.rpc(dest, &req)
	require.Equal(c.t, net.TypeReadOK, header.Type)

	var resp net.ReadResponse
	require.NoError(c.t, json.Unmarshal(raw, &resp))
	require.NotNil(c.t, resp.Messages)

	sort.Sort(store.Values(resp.Messages))
	return resp.Messages
}

/*******************************************************************************
Test cluster
*******************************************************************************/

type testCluster struct {
	t       *testing.T
	ids     []string
	network *net.Network
	nodes   map[string]*Node
	done    map[string]chan error
	client  *testClient
}

func newTestCluster(t *testing.T, n int, setup func(*config.Config)) *testCluster {
	ids := []string{}
	for i := 1; i <= n; i++ {
		ids = append(ids, fmt.Sprintf("n%d", i))
	}

	cluster := &testCluster{
		t:       t,
		ids:     ids,
		network: net.NewNetwork(int64(n)),
		nodes:   make(map[string]*Node),
		done:    make(map[string]chan error),
	}

	for _, id := range ids {
		conf := config.NewTestConfig(t, common.TestLogLevel)
		if setup != nil {
			setup(conf)
		}

		node := NewNode(conf, nil, cluster.network.Add(id))
		done := make(chan error, 1)
		go func() {
			done <- node.Run()
		}()

		cluster.nodes[id] = node
		cluster.done[id] = done
	}

	cluster.client = cluster.newClient("c1")

	return cluster
}

func (c *testCluster) newClient(id string) *testClient {
	return &testClient{
		t:     c.t,
		id:    id,
		trans: c.network.AddClient(id),
	}
}

func (c *testCluster) init() {
	for _, id := range c.ids {
		c.client.init(id, c.ids)
	}
}

func (c *testCluster) shutdown() {
	for _, id := range c.ids {
		c.nodes[id].Shutdown()
		select {
		case <-c.done[id]:
		case <-time.After(rpcTimeout):
			c.t.Fatalf("%s did not stop", id)
		}
	}
	c.network.Close()
}

// waitConverged polls every node until it reads exactly expected.
func (c *testCluster) waitConverged(ids []string, expected []store.Value) {
	sort.Sort(store.Values(expected))

	deadline := time.Now().Add(convergeWithin)
	for _, id := range ids {
		for {
			got := c.client.read(id)
			if fmt.Sprint(got) == fmt.Sprint(expected) {
				break
			}
			if time.Now().After(deadline) {
				c.t.Fatalf("%s did not converge: expected %v, got %v", id, expected, got)
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
}

/*******************************************************************************
Scenarios
*******************************************************************************/

func TestSingleNode(t *testing.T) {
	cluster := newTestCluster(t, 1, nil)
	defer cluster.shutdown()
	cluster.init()

	cluster.client.broadcast("n1", v(5))
	require.Equal(t, []store.Value{v(5)}, cluster.client.read("n1"))

	// nothing to gossip about with no neighbors
	require.Empty(t, cluster.nodes["n1"].GetPending())
	require.Equal(t, state.Running, cluster.nodes["n1"].GetState())

	received := testutil.ToFloat64(telemetry.MessagesReceived.WithLabelValues("n1", net.TypeBroadcast))
	require.GreaterOrEqual(t, received, 1.0)
}

func TestThreeNodesConverge(t *testing.T) {
	cluster := newTestCluster(t, 3, nil)
	defer cluster.shutdown()
	cluster.init()

	cluster.client.broadcast("n1", v(1))
	cluster.client.broadcast("n2", v(2))
	cluster.client.broadcast("n3", v(3))

	cluster.waitConverged(cluster.ids, []store.Value{v(1), v(2), v(3)})

	// eventually every value is acknowledged and the timer goes quiet
	require.Eventually(t, func() bool {
		for _, node := range cluster.nodes {
			for _, values := range node.GetPending() {
				if len(values) != 0 {
					return false
				}
			}
		}
		return true
	}, convergeWithin, 20*time.Millisecond)
}

func TestPartitionHeals(t *testing.T) {
	cluster := newTestCluster(t, 5, nil)
	defer cluster.shutdown()
	cluster.init()

	left := []string{"n1", "n2"}
	right := []string{"n3", "n4", "n5"}
	cluster.network.Partition(left, right)

	x := store.Value(`"x"`)
	y := store.Value(`"y"`)
	cluster.client.broadcast("n1", x)
	cluster.client.broadcast("n3", y)

	// local adds are visible immediately
	require.Equal(t, []store.Value{x}, cluster.client.read("n1"))

	cluster.waitConverged(left, []store.Value{x})
	cluster.waitConverged(right, []store.Value{y})

	// values keep waiting for the other side
	pending := cluster.nodes["n1"].GetPending()
	require.Equal(t, []store.Value{x}, pending["n3"])
	require.Eventually(t, func() bool {
		return len(cluster.nodes["n1"].GetPending()["n2"]) == 0
	}, convergeWithin, 20*time.Millisecond)

	cluster.network.Heal()

	cluster.waitConverged(cluster.ids, []store.Value{x, y})
}

func TestDuplicateGossip(t *testing.T) {
	cluster := newTestCluster(t, 1, nil)
	defer cluster.shutdown()
	cluster.init()

	for i := 0; i < 2; i++ {
		header, raw := cluster.client.rpc("n1", &net.GossipRequest{
			Header:   net.NewHeader(net.TypeGossip),
			Messages: []store.Value{v(1), v(2)},
		})
		require.Equal(t, net.TypeGossipOK, header.Type)

		var resp net.GossipResponse
		require.NoError(t, json.Unmarshal(raw, &resp))
		require.Equal(t, []store.Value{v(1), v(2)}, resp.Messages)
	}

	require.Equal(t, []store.Value{v(1), v(2)}, cluster.client.read("n1"))
}

func TestGenerateUnique(t *testing.T) {
	for _, strategy := range []string{"counter", "uuid"} {
		t.Run(strategy, func(t *testing.T) {
			cluster := newTestCluster(t, 3, func(conf *config.Config) {
				conf.IDStrategy = strategy
			})
			defer cluster.shutdown()
			cluster.init()

			var lock sync.Mutex
			var wg sync.WaitGroup
			seen := make(map[string]bool)

			for i, id := range cluster.ids {
				client := cluster.newClient(fmt.Sprintf("g%d", i))
				wg.Add(1)
				go func(client *testClient, id string) {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						req := net.NewHeader(net.TypeGenerate)
						_, raw := client.rpc(id, &req)

						var resp net.GenerateResponse
						if err := json.Unmarshal(raw, &resp); err != nil {
							t.Error(err)
							return
						}

						lock.Lock()
						if seen[resp.ID] {
							t.Errorf("duplicate id %s", resp.ID)
						}
						seen[resp.ID] = true
						lock.Unlock()
					}
				}(client, id)
			}

			wg.Wait()
			require.Len(t, seen, 150)
		})
	}
}

func TestLossyNetworkConverges(t *testing.T) {
	cluster := newTestCluster(t, 4, nil)
	defer cluster.shutdown()
	cluster.init()

	cluster.network.SetDropRate(0.4)

	expected := []store.Value{}
	for i := 0; i < 20; i++ {
		cluster.client.broadcast(cluster.ids[i%4], v(i))
		expected = append(expected, v(i))
	}

	cluster.waitConverged(cluster.ids, expected)
}

func TestTopologyLine(t *testing.T) {
	cluster := newTestCluster(t, 3, nil)
	defer cluster.shutdown()
	cluster.init()

	line := map[string][]string{
		"n1": {"n2"},
		"n2": {"n1", "n3"},
		"n3": {"n2"},
	}
	for _, id := range cluster.ids {
		header, _ := cluster.client.rpc(id, &net.TopologyRequest{
			Header:   net.NewHeader(net.TypeTopology),
			Topology: line,
		})
		require.Equal(t, net.TypeTopologyOK, header.Type)
	}

	cluster.client.broadcast("n1", v(7))
	cluster.waitConverged(cluster.ids, []store.Value{v(7)})

	require.Equal(t, "n2", cluster.nodes["n1"].GetStats()["neighbors"])
}

func TestTreeTopology(t *testing.T) {
	cluster := newTestCluster(t, 7, func(conf *config.Config) {
		conf.Topology = "tree"
		conf.Fanout = 2
	})
	defer cluster.shutdown()
	cluster.init()

	cluster.client.broadcast("n7", v(1))
	cluster.client.broadcast("n4", v(2))
	cluster.waitConverged(cluster.ids, []store.Value{v(1), v(2)})

	require.Equal(t, "n2,n3", cluster.nodes["n1"].GetStats()["neighbors"])
}

/*******************************************************************************
Errors
*******************************************************************************/

func TestNotInitialized(t *testing.T) {
	network := net.NewNetwork(1)
	defer network.Close()

	node := NewNode(config.NewTestConfig(t, common.TestLogLevel), nil, network.Add("n1"))
	done := make(chan error, 1)
	go func() { done <- node.Run() }()

	client := &testClient{t: t, id: "c1", trans: network.AddClient("c1")}

	req := net.NewHeader(net.TypeRead)
	req.MsgID = 1
	msg, err := net.NewMessage("c1", "n1", &req)
	require.NoError(t, err)
	require.NoError(t, client.trans.Send(msg))

	select {
	case err := <-done:
		require.True(t, errors.Is(err, ErrNotInitialized))
		require.True(t, errors.Is(err, ErrProtocol))
	case <-time.After(rpcTimeout):
		t.Fatal("node should have stopped")
	}

	require.Equal(t, state.Shutdown, node.GetState())
}

func TestApplicationErrors(t *testing.T) {
	cluster := newTestCluster(t, 1, nil)
	defer cluster.shutdown()
	cluster.init()

	unknown := net.NewHeader("frobnicate")
	header, _ := cluster.client.rpc("n1", &unknown)
	require.Equal(t, net.TypeError, header.Type)
	require.Equal(t, maelstrom.NotSupported, header.Code)

	header, _ = cluster.client.rpc("n1", &net.InitRequest{
		Header:  net.NewHeader(net.TypeInit),
		NodeID:  "n1",
		NodeIDs: []string{"n1"},
	})
	require.Equal(t, net.TypeError, header.Type)
	require.Equal(t, maelstrom.PreconditionFailed, header.Code)

	header, _ = cluster.client.rpc("n1", &net.BroadcastRequest{
		Header: net.NewHeader(net.TypeBroadcast),
	})
	require.Equal(t, net.TypeError, header.Type)
	require.Equal(t, maelstrom.MalformedRequest, header.Code)

	header, _ = cluster.client.rpc("n1", &rawBroadcast{
		Header:  net.NewHeader(net.TypeBroadcast),
		Message: json.RawMessage(`{"a":1}`),
	})
	require.Equal(t, net.TypeError, header.Type)
	require.Equal(t, maelstrom.MalformedRequest, header.Code)

	// the node is still serving
	cluster.client.broadcast("n1", v(1))
	require.Equal(t, []store.Value{v(1)}, cluster.client.read("n1"))
}

// rawBroadcast carries a message that is not a valid value.
type rawBroadcast struct {
	net.Header
	Message json.RawMessage `json:"message"`
}

func TestEcho(t *testing.T) {
	cluster := newTestCluster(t, 1, nil)
	defer cluster.shutdown()
	cluster.init()

	header, raw := cluster.client.rpc("n1", &net.EchoMessage{
		Header: net.NewHeader(net.TypeEcho),
		Echo:   json.RawMessage(`"Please echo 35"`),
	})
	require.Equal(t, net.TypeEchoOK, header.Type)

	var resp net.EchoMessage
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, `"Please echo 35"`, string(resp.Echo))
}

func TestStatsBeforeInit(t *testing.T) {
	network := net.NewNetwork(1)
	defer network.Close()

	node := NewNode(config.NewTestConfig(t, common.TestLogLevel), nil, network.Add("n1"))

	stats := node.GetStats()
	require.Equal(t, "Initializing", stats["state"])
	require.Equal(t, "0", stats["values"])
	require.Empty(t, node.GetValues())
	require.Equal(t, "", node.ID())
}

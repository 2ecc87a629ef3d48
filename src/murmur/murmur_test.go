package murmur

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/stretchr/testify/require"
)

const (
	initN1    = `{"src":"c1","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1"]}}`
	readN1    = `{"src":"c1","dest":"n1","body":{"type":"read","msg_id":9}}`
	initN1Of2 = `{"src":"c1","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1","n2"]}}`
)

func broadcastLine(msgID int, value string) string {
	return fmt.Sprintf(`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":%d,"message":%s}}`,
		msgID, value)
}

// run feeds lines to a fresh engine and returns the error of Run and every
// body written to the output.
func run(t *testing.T, conf *config.Config, lines ...string) ([]json.RawMessage, error) {
	var out bytes.Buffer
	conf.Input = strings.NewReader(strings.Join(lines, "\n") + "\n")
	conf.Output = &out

	engine := NewMurmur(conf)
	require.NoError(t, engine.Init())

	err := engine.Run()

	bodies := []json.RawMessage{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		msg, derr := net.DecodeMessage([]byte(line))
		require.NoError(t, derr)
		require.Equal(t, "n1", msg.Src)
		bodies = append(bodies, msg.Body)
	}

	return bodies, err
}

// replyTo returns the body answering msgID. Gossip to other nodes may be
// interleaved with client replies.
func replyTo(t *testing.T, bodies []json.RawMessage, msgID int) json.RawMessage {
	for _, b := range bodies {
		header, err := net.DecodeHeader(b)
		require.NoError(t, err)
		if header.InReplyTo == msgID && header.Type != net.TypeGossip {
			return b
		}
	}
	t.Fatalf("no reply to %d", msgID)
	return nil
}

func readValues(t *testing.T, body json.RawMessage) []store.Value {
	var resp net.ReadResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, net.TypeReadOK, resp.Type)
	return resp.Messages
}

func TestRunStdio(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)

	bodies, err := run(t, conf,
		initN1,
		"",
		broadcastLine(2, "5"),
		broadcastLine(3, `"five"`),
		readN1,
	)
	require.NoError(t, err)
	require.Len(t, bodies, 4)

	types := []string{}
	for _, b := range bodies {
		header, err := net.DecodeHeader(b)
		require.NoError(t, err)
		types = append(types, header.Type)
	}
	require.Equal(t, []string{"init_ok", "broadcast_ok", "broadcast_ok", "read_ok"}, types)

	header, _ := net.DecodeHeader(bodies[3])
	require.Equal(t, 9, header.InReplyTo)
	require.Equal(t, 4, header.MsgID)

	require.Equal(t, []store.Value{`"five"`, "5"}, readValues(t, bodies[3]))
}

func TestRunMalformedLine(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)

	bodies, err := run(t, conf, initN1, `{"src":"c1",`, readN1)
	require.Error(t, err)
	require.True(t, errors.Is(err, net.ErrMalformedMessage))
	require.Len(t, bodies, 1)
}

func TestRunNotInitialized(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)

	bodies, err := run(t, conf, readN1)
	require.True(t, errors.Is(err, node.ErrNotInitialized))
	require.Empty(t, bodies)
}

func TestInitRejectsBadConfig(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.Topology = "ring"
	require.Error(t, NewMurmur(conf).Init())

	conf = config.NewTestConfig(t, common.TestLogLevel)
	conf.IDStrategy = "snowflake"
	require.Error(t, NewMurmur(conf).Init())

	conf = config.NewTestConfig(t, common.TestLogLevel)
	conf.HeartbeatTimeout = 0
	require.Error(t, NewMurmur(conf).Init())
}

func TestBootstrapStore(t *testing.T) {
	dir := t.TempDir()

	newConf := func(bootstrap bool) *config.Config {
		conf := config.NewTestConfig(t, common.TestLogLevel)
		conf.SetDataDir(dir)
		conf.DatabaseDir = filepath.Join(dir, "db")
		conf.Store = true
		conf.Bootstrap = bootstrap
		return conf
	}

	_, err := run(t, newConf(false), initN1Of2, broadcastLine(2, "1"), broadcastLine(3, "2"))
	require.NoError(t, err)

	// values survive a restart with bootstrap
	bodies, err := run(t, newConf(true), initN1Of2, readN1)
	require.NoError(t, err)
	require.Equal(t, []store.Value{"1", "2"}, readValues(t, replyTo(t, bodies, 9)))

	// without bootstrap the old database is moved aside
	bodies, err = run(t, newConf(false), initN1Of2, readN1)
	require.NoError(t, err)
	require.Empty(t, readValues(t, replyTo(t, bodies, 9)))

	_, statErr := os.Stat(filepath.Join(dir, "db", "n1(1)"))
	require.NoError(t, statErr)
}

func TestStoreFreshDatabaseDir(t *testing.T) {
	dbDir := filepath.Join(t.TempDir(), "missing", "badger_db")

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.DatabaseDir = dbDir
	conf.Store = true

	bodies, err := run(t, conf, initN1, broadcastLine(2, "7"), readN1)
	require.NoError(t, err)
	require.Equal(t, []store.Value{"7"}, readValues(t, replyTo(t, bodies, 9)))

	_, statErr := os.Stat(filepath.Join(dbDir, "n1"))
	require.NoError(t, statErr)
}

func TestBootstrapWrongNode(t *testing.T) {
	dir := t.TempDir()

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.DatabaseDir = dir
	conf.Store = true

	_, err := run(t, conf, initN1Of2)
	require.NoError(t, err)

	s, err := store.NewBadgerStore(filepath.Join(dir, "n1"), common.NewTestEntry(t, common.TestLogLevel))
	require.NoError(t, err)
	require.NoError(t, s.SetRecord(&store.Record{NodeID: "n2", NodeIDs: []string{"n1", "n2"}}))
	require.NoError(t, s.Close())

	conf = config.NewTestConfig(t, common.TestLogLevel)
	conf.DatabaseDir = dir
	conf.Bootstrap = true

	bodies, err := run(t, conf, initN1Of2)
	require.Error(t, err)
	require.Empty(t, bodies)
}

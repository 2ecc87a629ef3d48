package murmur

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/net"
	"github.com/mosaicnetworks/murmur/src/node"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/service"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/mosaicnetworks/murmur/src/telemetry"
	"github.com/mosaicnetworks/murmur/src/version"
	"github.com/sirupsen/logrus"
)

// Murmur is a struct containing the key elements of a murmur node
type Murmur struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Service   *service.Service
	logger    *logrus.Entry
}

// NewMurmur is a factory method to produce a Murmur instance.
func NewMurmur(c *config.Config) *Murmur {
	engine := &Murmur{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the murmur node. The node itself only learns its id when
// the init message arrives, so the store is opened lazily from there.
func (m *Murmur) Init() error {
	if err := m.validateConfig(); err != nil {
		m.logger.WithError(err).Error("murmur.go:Init() validateConfig")
		return err
	}

	if err := m.initTransport(); err != nil {
		m.logger.WithError(err).Error("murmur.go:Init() initTransport")
		return err
	}

	if err := m.initNode(); err != nil {
		m.logger.WithError(err).Error("murmur.go:Init() initNode")
		return err
	}

	if err := m.initService(); err != nil {
		m.logger.WithError(err).Error("murmur.go:Init() initService")
		return err
	}

	telemetry.SetBuildInfo(version.Version)

	return nil
}

// Run processes protocol messages until end of input or a fatal protocol
// error, which is returned.
func (m *Murmur) Run() error {
	if m.Service != nil {
		go m.Service.Serve()
		defer m.Service.Close()
	}

	return m.Node.Run()
}

func (m *Murmur) validateConfig() error {
	if _, err := peers.ParseStrategy(m.Config.Topology); err != nil {
		return err
	}

	if _, err := node.NewIDGenerator(m.Config.IDStrategy, ""); err != nil {
		return err
	}

	if m.Config.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeat must be positive, got %v", m.Config.HeartbeatTimeout)
	}

	if m.Config.Fanout < 1 {
		return fmt.Errorf("fanout must be at least 1, got %d", m.Config.Fanout)
	}

	// Bootstrap implies Store
	if m.Config.Bootstrap {
		m.Config.Store = true
	}

	m.logger.WithFields(logrus.Fields{
		"heartbeat": m.Config.HeartbeatTimeout,
		"topology":  m.Config.Topology,
		"fanout":    m.Config.Fanout,
		"ids":       m.Config.IDStrategy,
		"store":     m.Config.Store,
		"bootstrap": m.Config.Bootstrap,
		"db":        m.Config.DatabaseDir,
		"service":   m.Config.ServiceAddr,
	}).Debug("Config")

	return nil
}

func (m *Murmur) initTransport() error {
	in := m.Config.Input
	if in == nil {
		in = os.Stdin
	}

	out := m.Config.Output
	if out == nil {
		out = os.Stdout
	}

	m.Transport = net.NewStdioTransport(in, out, m.logger.WithField("component", "transport"))

	return nil
}

func (m *Murmur) initNode() error {
	var factory node.StoreFactory = node.InmemStoreFactory
	if m.Config.Store {
		factory = m.badgerStoreFactory
	}

	m.Node = node.NewNode(m.Config, factory, m.Transport)

	return nil
}

func (m *Murmur) initService() error {
	if m.Config.ServiceAddr != "" {
		m.Service = service.NewService(m.Config.ServiceAddr, m.Node, m.logger)
	}
	return nil
}

// badgerStoreFactory opens the database of nodeID. Unless bootstrapping, an
// existing database is moved aside and a fresh one is created. The cluster
// membership is recorded with the values.
func (m *Murmur) badgerStoreFactory(nodeID string, nodeIDs []string) (store.Store, error) {
	path := m.Config.NodeDatabaseDir(nodeID)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	if !m.Config.Bootstrap {
		if err := backupDir(path); err != nil {
			return nil, err
		}
	}

	m.logger.WithField("path", path).Debug("Attempting to load or create database")

	s, err := store.NewBadgerStore(path, m.logger.WithField("this_id", nodeID))
	if err != nil {
		return nil, err
	}

	if m.Config.Bootstrap {
		record, err := s.GetRecord()
		switch {
		case err == nil && record.NodeID != nodeID:
			s.Close()
			return nil, fmt.Errorf("database %s belongs to node %s", path, record.NodeID)
		case err == nil:
			m.logger.WithFields(logrus.Fields{
				"values":   s.Len(),
				"node_ids": record.NodeIDs,
			}).Debug("Loaded database")
		}
	}

	if err := s.SetRecord(&store.Record{NodeID: nodeID, NodeIDs: nodeIDs}); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// backupDir renames path to the first free "path(n)". It does nothing if path
// does not exist.
func backupDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	for i := 1; ; i++ {
		dest := fmt.Sprintf("%s(%d)", path, i)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return os.Rename(path, dest)
		}
	}
}

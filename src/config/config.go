package config

import (
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// databases
	DefaultBadgerFile = "badger_db"

	// DefaultConfigFile is the name, without extension, of the optional
	// configuration file in the data directory.
	DefaultConfigFile = "murmur"
)

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultLogFile          = ""
	DefaultHeartbeatTimeout = 200 * time.Millisecond
	DefaultTopology         = "harness"
	DefaultFanout           = 4
	DefaultIDStrategy       = "counter"
	DefaultStore            = false
	DefaultBootstrap        = false
	DefaultServiceAddr      = ""
)

// Config contains all the configuration properties of a murmur node.
type Config struct {
	// DataDir is the top-level directory containing murmur configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// HeartbeatTimeout is the retry interval of the gossip timer. Pending
	// values are resent to every neighbor that has not acknowledged them, once
	// per interval, until they are.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// Topology selects how neighbors are chosen: harness, mesh, or tree.
	Topology string `mapstructure:"topology"`

	// Fanout is the maximum number of children per node in the tree topology.
	Fanout int `mapstructure:"fanout"`

	// IDStrategy selects how generate builds unique ids: counter or uuid.
	IDStrategy string `mapstructure:"ids"`

	// Store activates persistent storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Bootstrap determines whether or not to load values from an existing
	// database. Forces Store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// ServiceAddr is the address:port of the optional HTTP service. It is
	// disabled when empty.
	ServiceAddr string `mapstructure:"service-listen"`

	// Input and Output are the protocol streams. They default to stdin and
	// stdout.
	Input  io.Reader `mapstructure:"-"`
	Output io.Writer `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		LogFile:          DefaultLogFile,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		Topology:         DefaultTopology,
		Fanout:           DefaultFanout,
		IDStrategy:       DefaultIDStrategy,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		Bootstrap:        DefaultBootstrap,
		ServiceAddr:      DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests. The heartbeat is shortened so that tests
// converge quickly.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.HeartbeatTimeout = 20 * time.Millisecond
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level murmur directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// NodeDatabaseDir returns the directory of the Badger database of a node.
func (c *Config) NodeDatabaseDir(nodeID string) string {
	return filepath.Join(c.DatabaseDir, nodeID)
}

// Logger returns a formatted logrus Entry, with prefix set to "murmur". When
// LogFile is set, entries of every level are also appended to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Out = os.Stderr
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "murmur")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level murmur config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Murmur")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Murmur")
		} else {
			return filepath.Join(home, ".murmur")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

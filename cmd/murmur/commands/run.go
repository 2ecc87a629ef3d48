package commands

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mosaicnetworks/murmur/src/config"
	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a murmur node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMurmur,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMurmur(cmd *cobra.Command, args []string) error {
	engine := murmur.NewMurmur(&_config.Murmur)

	if err := engine.Init(); err != nil {
		_config.Murmur.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	go func() {
		if _, ok := <-signalCh; ok {
			_config.Murmur.Logger().Info("Received signal, shutting down")
			engine.Node.Shutdown()
		}
	}()

	if err := engine.Run(); err != nil {
		_config.Murmur.Logger().WithError(err).Error("Node stopped")
		return err
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.Murmur.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Murmur.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Murmur.LogFile, "Also write logs to this file")

	// Gossip
	cmd.Flags().Duration("heartbeat", _config.Murmur.HeartbeatTimeout, "Time between gossip retries")
	cmd.Flags().String("topology", _config.Murmur.Topology, "Neighbor selection: harness, mesh, tree")
	cmd.Flags().Int("fanout", _config.Murmur.Fanout, "Children per node in the tree topology")
	cmd.Flags().String("ids", _config.Murmur.IDStrategy, "Unique id strategy for generate: counter, uuid")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Murmur.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Murmur.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Murmur.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Bool("bootstrap", _config.Murmur.Bootstrap, "Load from database")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Murmur.SetDataDir(_config.Murmur.DataDir)

	logFields := logrus.Fields{
		"murmur.DataDir":          _config.Murmur.DataDir,
		"murmur.LogLevel":         _config.Murmur.LogLevel,
		"murmur.LogFile":          _config.Murmur.LogFile,
		"murmur.HeartbeatTimeout": _config.Murmur.HeartbeatTimeout,
		"murmur.Topology":         _config.Murmur.Topology,
		"murmur.Fanout":           _config.Murmur.Fanout,
		"murmur.IDStrategy":       _config.Murmur.IDStrategy,
		"murmur.ServiceAddr":      _config.Murmur.ServiceAddr,
		"murmur.Store":            _config.Murmur.Store,
	}

	if _config.Murmur.Store {
		logFields["murmur.DatabaseDir"] = _config.Murmur.DatabaseDir
		logFields["murmur.Bootstrap"] = _config.Murmur.Bootstrap
	}

	_config.Murmur.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// MURMUR_HEARTBEAT, MURMUR_SERVICE_LISTEN, ...
	viper.SetEnvPrefix("murmur")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/murmur.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigFile) // name of config file (without extension)
	viper.AddConfigPath(_config.Murmur.DataDir)   // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Murmur.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Murmur.Logger().Debugf("No config file found in: %s", _config.Murmur.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

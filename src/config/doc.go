// Package config defines the configuration for a murmur node.
//
// Regardless of how murmur is started, directly from Go code or as a standalone
// process from the command line, it uses the Config object defined in this
// package to store and forward configuration options. The data directory,
// Config.DataDir, may contain a murmur.toml (or .yaml, .json) file with the
// same keys as the command line flags. When persistent storage is enabled,
// every node keeps its Badger database in a sub-directory of
// Config.DatabaseDir named after its node id:
//
//  murmur.toml // (optional) configuration file
//  badger_db/n1 // (optional) values and membership record of node n1
//
// Logs are written to stderr, never stdout, because stdout carries the
// protocol.
package config

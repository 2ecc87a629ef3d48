package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for murmur
var RootCmd = &cobra.Command{
	Use:              "murmur",
	Short:            "gossip broadcast node",
	Long:             "murmur is a broadcast node for distributed systems test harnesses. It speaks JSON lines on stdin/stdout and gossips values to its neighbors until they acknowledge them.",
	TraverseChildren: true,
}

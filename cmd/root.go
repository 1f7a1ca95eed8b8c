package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joomcode/redisnet/cmd/bench"
	"github.com/joomcode/redisnet/cmd/client"
	"github.com/joomcode/redisnet/cmd/util"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "redisnet",
		Short: "pipelined redis client",
		Long: fmt.Sprintf(`redisnet (v%s)

Command-line client for redis built on pipelined connector:
requests are written and answered in order over single connection.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: util.BindCommandFlags,
		PersistentPostRun: util.DumpMetrics,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of redisnet",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("redisnet v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupConnFlags(RootCmd)

	RootCmd.AddCommand(client.Commands()...)
	RootCmd.AddCommand(bench.PoolBenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

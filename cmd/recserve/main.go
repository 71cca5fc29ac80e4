// Command recserve 提供预计算推荐与在线推荐的 HTTP 服务。
//
//	recserve serve --config recserve.yaml
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "recserve",
	Short:         "Recommendation service: precomputed tables and online similar-item recommendations",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

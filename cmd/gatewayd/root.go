package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is stamped at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "gatewayd",
	Short:   "gatewayd serves the simobotlist real-time event gateway",
	Version: Version,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("listen", "", "HTTP listen address (default :8080)")
	flags.String("events-topic", "", "bus topic carrying domain events")
	flags.Duration("cache-ttl", 0, "read-through cache TTL (default 1m)")
	flags.Int("outbound-queue", 0, "per-session outbound queue size (default 64)")
	flags.String("sqlite", "", "catalog sqlite database path (empty: in-memory store)")
	flags.String("jwt-secret", "", "secret verifying user tokens")
	flags.Bool("metrics", true, "register Prometheus collectors and serve /metrics")

	viper.SetEnvPrefix("GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"listen", "events-topic", "cache-ttl", "outbound-queue", "sqlite", "jwt-secret", "metrics"} {
		must(viper.BindPFlag(name, flags.Lookup(name)))
	}

	rootCmd.AddCommand(serveCmd)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

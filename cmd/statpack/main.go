// Command statpack builds static analytical reports from JSON data models.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/statpack/statpack/config"
)

var (
	flagConfig    string
	flagIndent    int
	flagCompact   bool
	flagChunkSize string
	flagFailFast  bool
	flagOut       string
	flagCacheDir  string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "statpack",
	Short:         "Build static analytical report pages from JSON data models",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "path to a YAML config file")
	pf.IntVar(&flagIndent, "indent", 0, "indentation width of the encoded JSON")
	pf.BoolVar(&flagCompact, "compact", false, "encode JSON on a single line")
	pf.StringVar(&flagChunkSize, "chunk-size", "", "HTML chunk size (e.g. 64KB)")
	pf.BoolVar(&flagFailFast, "fail-fast", false, "stop at the first failing report")
	pf.StringVarP(&flagOut, "out", "o", ".", "output directory for generated pages")
	pf.StringVar(&flagCacheDir, "cache-dir", "", "cache directory (disabled when empty)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig merges the config file (if any) with command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if flagConfig != "" {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = &config.Config{}
	}
	flags := cmd.Flags()
	if flags.Changed("indent") {
		cfg.Indent = flagIndent
	}
	if flagCompact {
		cfg.Indent = nil
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = flagChunkSize
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = flagFailFast
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = flagCacheDir
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "statpack: %s\n", err)
		os.Exit(1)
	}
}

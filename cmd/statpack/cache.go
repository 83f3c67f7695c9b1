package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/statpack/statpack/cache"
	"github.com/statpack/statpack/internal/format"
)

var defaultColorizer = format.Colorizer{
	LabelCode: []byte("\033[1;34m"),
	ValueCode: []byte("\033[32m"),
	DimCode:   []byte("\033[2m"),
	ResetCode: []byte("\033[0m"),
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the report cache",
}

var cacheLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List cached reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openCache(cmd)
		if err != nil {
			return err
		}
		return listEntries(mgr)
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete every cached report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openCache(cmd)
		if err != nil {
			return err
		}
		return mgr.Clear()
	},
}

func init() {
	cacheCmd.AddCommand(cacheLsCmd, cacheCleanCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache(cmd *cobra.Command) (*cache.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.CacheDir == "" {
		return nil, errors.New("no cache directory, use --cache-dir or the config file")
	}
	return cache.New(cfg.CacheDir, cache.Options{})
}

func listEntries(mgr *cache.Manager) (err error) {
	defer format.CatchPrinterError(&err)

	var colorizer *format.Colorizer
	var stdout io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) {
		colorizer = &defaultColorizer
		stdout = colorable.NewColorableStdout()
	}

	out := bufio.NewWriter(stdout)
	printer := &format.DefaultPrinter{Writer: out, IndentSize: 2, Flusher: out}
	defer printer.Flush()

	entries := mgr.Entries()
	var total datasize.ByteSize
	for _, e := range entries {
		colorizer.PrintLabel(printer, []byte(e.Name))
		printer.Indent()
		colorizer.PrintDim(printer, []byte("size "))
		colorizer.PrintValue(printer, []byte(datasize.ByteSize(e.Size).HumanReadable()))
		printer.NewLine()
		colorizer.PrintDim(printer, []byte("built "))
		colorizer.PrintValue(printer, []byte(e.ModTime.Format("2006-01-02 15:04:05")))
		printer.Dedent()
		total += datasize.ByteSize(e.Size)
	}
	printer.PrintBytes(fmt.Appendf(nil, "%d entries, %s", len(entries), total.HumanReadable()))
	printer.NewLine()
	return nil
}

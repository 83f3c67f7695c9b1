package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/statpack/statpack"
	"github.com/statpack/statpack/cache"
	"github.com/statpack/statpack/htmlpage"
)

var generateCmd = &cobra.Command{
	Use:   "generate [files...]",
	Short: "Build an HTML report page for each JSON model file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	models := make([]statpack.Model, 0, len(args))
	for _, path := range args {
		model, err := loadModel(path)
		if err != nil {
			return err
		}
		models = append(models, model)
	}

	chunkSize, err := cfg.ChunkBytes()
	if err != nil {
		return err
	}
	sinks := statpack.MultiSink{&statpack.HTMLSink{
		Dir: flagOut,
		Embedder: htmlpage.Embedder{
			Title:     cfg.Title,
			ChunkSize: chunkSize,
		},
	}}
	if cfg.CacheDir != "" {
		budget, err := cfg.CacheBudgetBytes()
		if err != nil {
			return err
		}
		mgr, err := cache.New(cfg.CacheDir, cache.Options{Budget: budget})
		if err != nil {
			return err
		}
		sinks = append(sinks, &statpack.CacheSink{Cache: mgr})
	}

	opts, err := cfg.EncodeOptions()
	if err != nil {
		return err
	}
	pipeline := &statpack.Pipeline{
		Options:  opts,
		Workers:  cfg.Workers(),
		FailFast: cfg.FailFast,
	}
	return pipeline.Run(cmd.Context(), models, sinks)
}

// loadModel decodes one JSON model file; the report is named after the file.
func loadModel(path string) (statpack.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return statpack.Model{}, err
	}
	defer f.Close()

	var data any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(f).Decode(&data); err != nil {
		return statpack.Model{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return statpack.Model{Name: name, Data: data}, nil
}

package statpack

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/statpack/statpack/cache"
	"github.com/statpack/statpack/htmlpage"
)

// FileSink writes each payload to <Dir>/<name>.json.
type FileSink struct {
	Dir string
}

func (s *FileSink) Write(ctx context.Context, name string, r io.Reader) error {
	return writeFile(ctx, filepath.Join(s.Dir, name+".json"), func(f io.Writer) error {
		_, err := io.Copy(f, r)
		return err
	})
}

// HTMLSink renders each payload to <Dir>/<name>.html using an Embedder.
type HTMLSink struct {
	Dir      string
	Embedder htmlpage.Embedder
}

func (s *HTMLSink) Write(ctx context.Context, name string, r io.Reader) error {
	e := s.Embedder
	if e.Title == "" {
		e.Title = name
	}
	return writeFile(ctx, filepath.Join(s.Dir, name+".html"), func(f io.Writer) error {
		return e.WritePage(f, r)
	})
}

// CacheSink stores each payload in a cache.Manager.
type CacheSink struct {
	Cache *cache.Manager
}

func (s *CacheSink) Write(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.Cache.Put(name, r)
	return err
}

// MultiSink fans one payload out to several sinks.  The payload is re-read
// for each sink through an io.TeeReader chain, so every sink still sees the
// stream exactly once.
type MultiSink []Sink

func (s MultiSink) Write(ctx context.Context, name string, r io.Reader) error {
	if len(s) == 0 {
		_, err := io.Copy(io.Discard, r)
		return err
	}
	// all but the last sink read through a pipe fed by a tee
	errs := make(chan error, len(s)-1)
	writers := make([]*io.PipeWriter, 0, len(s)-1)
	for _, sink := range s[:len(s)-1] {
		pr, pw := io.Pipe()
		r = io.TeeReader(r, pw)
		writers = append(writers, pw)
		go func(sink Sink, pr *io.PipeReader) {
			err := sink.Write(ctx, name, pr)
			pr.CloseWithError(err)
			errs <- err
		}(sink, pr)
	}
	err := s[len(s)-1].Write(ctx, name, r)
	for _, pw := range writers {
		pw.CloseWithError(err)
	}
	for range writers {
		if werr := <-errs; err == nil {
			err = werr
		}
	}
	return err
}

func writeFile(ctx context.Context, path string, fill func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	err = fill(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

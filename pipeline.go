package statpack

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/statpack/statpack/stream"
)

// A Model is one report to build: a name used for the output artifact and
// the data to encode.  Data may contain deferred values and record or byte
// producers (see the stream package); the pipeline streams them through
// without buffering whole reports.
type Model struct {
	Name string
	Data any
}

// A Sink receives the encoded payload of one model.  Write must consume r
// before returning; the payload is produced on demand as r is read.
type Sink interface {
	Write(ctx context.Context, name string, r io.Reader) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, name string, r io.Reader) error

func (f SinkFunc) Write(ctx context.Context, name string, r io.Reader) error {
	return f(ctx, name, r)
}

// A Pipeline encodes models and delivers them to a sink.
type Pipeline struct {
	// Options configure every encoder the pipeline creates.
	Options []stream.Option

	// Workers bounds how many models are built concurrently.  Zero or
	// negative means no limit.
	Workers int

	// FailFast makes the first model failure cancel the whole run.  When
	// false, failures are logged and the other models still build; Run
	// returns the first error encountered.
	FailFast bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Run builds every model and writes it to sink.  See FailFast for the error
// policy.
func (p *Pipeline) Run(ctx context.Context, models []Model, sink Sink) error {
	log := p.logger()
	g, ctx := errgroup.WithContext(ctx)
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}

	var firstErr error
	errs := make(chan error, len(models))

	for _, model := range models {
		model := model
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Debug("building report", "name", model.Name)
			err := p.buildOne(ctx, model, sink)
			if err == nil {
				log.Info("report built", "name", model.Name)
				return nil
			}
			if p.FailFast {
				return fmt.Errorf("building %q: %w", model.Name, err)
			}
			log.Error("report failed", "name", model.Name, "error", err)
			errs <- fmt.Errorf("building %q: %w", model.Name, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	close(errs)
	for err := range errs {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pipeline) buildOne(ctx context.Context, model Model, sink Sink) error {
	enc := stream.NewEncoder(model.Data, p.Options...)
	defer enc.Close()
	return sink.Write(ctx, model.Name, enc)
}

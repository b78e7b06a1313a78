// Package pipeline runs the device read loop and the forwarding loop.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/framer"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/observer"
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/parser"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultQueueSize = 64

// Forwarder delivers one event. Errors are already reported by the forwarder;
// the pipeline only counts them.
type Forwarder interface {
	Forward(ctx context.Context, ev parser.Event) error
}

type Options struct {
	QueueSize     int
	MaxLineLength int
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Lines          int64
	Parsed         int64
	ProtocolErrors int64
	Forwarded      int64
	Failed         int64
	Abandoned      int64
}

type counters struct {
	lines, parsed, protocolErrors, forwarded, failed, abandoned atomic.Int64
}

// Pipeline couples a reader goroutine to a single sender through a bounded
// FIFO queue. A full queue blocks the reader; events are never dropped.
type Pipeline struct {
	forwarder Forwarder
	observer  observer.Observer
	logger    *zap.Logger
	opts      Options
	stats     counters
}

func New(fwd Forwarder, obs observer.Observer, logger *zap.Logger, opts Options) *Pipeline {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = framer.DefaultMaxLineLength
	}
	return &Pipeline{
		forwarder: fwd,
		observer:  obs,
		logger:    logger,
		opts:      opts,
	}
}

// Stats returns the counters accumulated over every Run.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Lines:          p.stats.lines.Load(),
		Parsed:         p.stats.parsed.Load(),
		ProtocolErrors: p.stats.protocolErrors.Load(),
		Forwarded:      p.stats.forwarded.Load(),
		Failed:         p.stats.failed.Load(),
		Abandoned:      p.stats.abandoned.Load(),
	}
}

// Run consumes src until it stops or ctx is cancelled. When the source stops
// on its own, queued events are still sent and the framer's stop error is
// returned. On cancellation src is closed if it is an io.Closer, queued
// events are abandoned and Run returns nil.
func (p *Pipeline) Run(ctx context.Context, src io.Reader) error {
	queue := make(chan parser.Event, p.opts.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	if c, ok := src.(io.Closer); ok {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				_ = c.Close()
			case <-done:
			}
		}()
	}

	var stopErr error
	g.Go(func() error {
		defer close(queue)
		stopErr = p.read(gctx, src, queue)
		return nil
	})
	g.Go(func() error {
		p.send(gctx, queue)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return stopErr
}

func (p *Pipeline) read(ctx context.Context, src io.Reader, queue chan<- parser.Event) error {
	fr := framer.New(src, p.opts.MaxLineLength)
	for {
		line, err := fr.Next()
		if err != nil {
			if errors.Is(err, framer.ErrReaderStopped) {
				return err
			}
			p.stats.protocolErrors.Add(1)
			p.observer.ProtocolError(line, err)
			continue
		}
		p.stats.lines.Add(1)

		ev, err := parser.Parse(line)
		if err != nil {
			p.stats.protocolErrors.Add(1)
			p.observer.ProtocolError(line, err)
			continue
		}
		p.stats.parsed.Add(1)

		select {
		case queue <- ev:
		case <-ctx.Done():
			p.stats.abandoned.Add(1)
			return ctx.Err()
		}
	}
}

func (p *Pipeline) send(ctx context.Context, queue <-chan parser.Event) {
	// an in-flight send finishes even if shutdown starts meanwhile
	sendCtx := context.WithoutCancel(ctx)

	var abandoned int64
	for ev := range queue {
		if ctx.Err() != nil {
			abandoned++
			continue
		}
		if err := p.forwarder.Forward(sendCtx, ev); err != nil {
			p.stats.failed.Add(1)
			continue
		}
		if _, ok := parser.Reading(ev); ok {
			p.stats.forwarded.Add(1)
		}
	}

	if abandoned > 0 {
		p.stats.abandoned.Add(abandoned)
		p.logger.Warn("Abandoned queued events at shutdown", zap.Int64("count", abandoned))
	}
}

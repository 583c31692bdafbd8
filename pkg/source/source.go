// Package source provides the raw byte feeds consumed by the protocol
// decoder: a serial receiver, a TCP bridge and recorded-file replay.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/racelogger/laptimer-go/log"
)

// Source is a raw byte stream. Read returns io.EOF when the feed ends,
// which only happens for file replay.
type Source interface {
	io.ReadCloser
	// Describe names the source for logging.
	Describe() string
}

var ErrUnsupportedSource = errors.New("unsupported source")

type Options struct {
	// BaudRate applies to serial sources; 0 picks the default.
	BaudRate int
	// ReplayBytesPerSec paces file replay; 0 picks the default, a
	// negative value disables pacing.
	ReplayBytesPerSec int
}

// New opens the source described by spec. Supported forms:
//
//	serial:/dev/ttyUSB0
//	tcp:host:port
//	file:recording.ubx
func New(ctx context.Context, spec string, opts Options) (Source, error) {
	scheme, rest, found := strings.Cut(spec, ":")
	if !found || rest == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, spec)
	}
	switch scheme {
	case "serial":
		return NewSerial(rest, opts.BaudRate)
	case "tcp":
		return NewTCP(ctx, rest)
	case "file":
		return NewFileReplay(rest, opts.ReplayBytesPerSec)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, scheme)
	}
}

const pumpChunkSize = 512

// Pump reads chunks from src and hands them to fn until ctx is done or the
// source ends. Read errors after a cancelled context are not reported.
func Pump(ctx context.Context, src Source, fn func([]byte)) error {
	l := log.GetLogger("source")
	l.Info("pumping source", log.String("source", src.Describe()))
	buf := make([]byte, pumpChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			fn(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.Info("source drained", log.String("source", src.Describe()))
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading %s: %w", src.Describe(), err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

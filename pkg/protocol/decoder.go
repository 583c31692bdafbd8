// Package protocol decodes the binary stream of the positioning receiver
// into Fix records. The framing is UBX style: two sync bytes, class, id, a
// little-endian 16 bit payload length, the payload and a two byte Fletcher
// checksum over class..payload. Corrupted input is dropped silently; the
// decoder resynchronizes on the next sync pair.
package protocol

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/model"
)

const (
	sync1 = 0xB5
	sync2 = 0x62

	headerLen   = 6
	checksumLen = 2

	dataMsgClass = 0xFF
	dataMsgID    = 0x01
	dataMsgLen   = 80
)

type Decoder struct {
	buf []byte
	now func() time.Time
	l   *log.Logger

	// counters are read by the metric reader's goroutine
	decoded atomic.Int64
	dropped atomic.Int64
	ignored atomic.Int64
}

type Option func(*Decoder)

// WithClock replaces the wall clock used for the timestamp fallback.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		d.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(d *Decoder) {
		d.l = l
	}
}

func NewDecoder(opts ...Option) *Decoder {
	ret := &Decoder{
		now: time.Now,
		l:   log.Default().Named("protocol"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.setupMetrics()
	return ret
}

func (d *Decoder) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("laptimer.protocol")
	register := func(metricName, desc string, valueProvider func() int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(valueProvider())
				return nil
			})); err != nil {
			d.l.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("laptimer.protocol.decoded", "Number of decoded data messages",
		d.decoded.Load)
	register("laptimer.protocol.dropped", "Number of dropped frames",
		d.dropped.Load)
	register("laptimer.protocol.ignored", "Number of ignored message types",
		d.ignored.Load)
}

// Decode appends chunk to the internal buffer and returns all fixes that
// became complete with this chunk. Chunk boundaries are arbitrary; the same
// byte stream yields the same fixes regardless of how it is split.
func (d *Decoder) Decode(chunk []byte) []model.Fix {
	d.buf = append(d.buf, chunk...)
	var fixes []model.Fix
	for {
		fix, ok := d.next()
		if !ok {
			break
		}
		if fix != nil {
			fixes = append(fixes, *fix)
		}
	}
	return fixes
}

// Stats reports the decoder counters: decoded data messages, dropped
// frames and ignored message types.
func (d *Decoder) Stats() (decoded, dropped, ignored int64) {
	return d.decoded.Load(), d.dropped.Load(), d.ignored.Load()
}

// next tries to extract one message from the buffer. It returns ok=false
// when no complete message is buffered. A non-nil fix is returned for
// semantically decoded data messages only.
func (d *Decoder) next() (*model.Fix, bool) {
	d.align()
	if len(d.buf) < headerLen {
		return nil, false
	}
	payloadLen := int(d.buf[4]) | int(d.buf[5])<<8
	total := headerLen + payloadLen + checksumLen
	if len(d.buf) < total {
		return nil, false
	}

	ckA, ckB := checksum(d.buf[2 : headerLen+payloadLen])
	if ckA != d.buf[headerLen+payloadLen] || ckB != d.buf[headerLen+payloadLen+1] {
		// damaged frame; rescan starting right after the sync byte
		d.dropped.Add(1)
		d.buf = d.buf[1:]
		return nil, true
	}

	msgClass := d.buf[2]
	msgID := d.buf[3]
	payload := d.buf[headerLen : headerLen+payloadLen]

	var fix *model.Fix
	if msgClass == dataMsgClass && msgID == dataMsgID && payloadLen == dataMsgLen {
		fix = d.decodePayload(payload)
		d.decoded.Add(1)
	} else {
		d.ignored.Add(1)
	}
	d.buf = d.buf[total:]
	return fix, true
}

// align drops leading garbage so the buffer starts with the sync pair. A
// trailing lone sync byte is kept since its partner may arrive with the
// next chunk.
func (d *Decoder) align() {
	if len(d.buf) >= 2 && d.buf[0] == sync1 && d.buf[1] == sync2 {
		return
	}
	if idx := bytes.Index(d.buf, []byte{sync1, sync2}); idx >= 0 {
		d.buf = d.buf[idx:]
		return
	}
	if len(d.buf) > 0 && d.buf[len(d.buf)-1] == sync1 {
		d.buf = d.buf[len(d.buf)-1:]
		return
	}
	d.buf = nil
}

// checksum computes the running two accumulator checksum over data.
func checksum(data []byte) (ckA, ckB byte) {
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

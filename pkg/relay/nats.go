// Package relay forwards session state to a NATS broker so remote pit wall
// displays can follow the session without a direct connection to the
// timing box.
package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/session"
)

type NatsRelay struct {
	conn *nats.Conn
	l    *log.Logger
}

type Option func(*NatsRelay)

func WithLogger(l *log.Logger) Option {
	return func(r *NatsRelay) {
		r.l = l
	}
}

func NewNatsRelay(conn *nats.Conn, opts ...Option) *NatsRelay {
	ret := &NatsRelay{
		conn: conn,
		l:    log.Default().Named("relay"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Run subscribes to the controller's broadcasts and publishes every message
// as JSON until ctx is done. Subjects carry the session key so multiple
// timing boxes can share one broker.
func (r *NatsRelay) Run(ctx context.Context, c *session.Controller) {
	snaps := c.SubscribeSnapshots()
	flashes := c.SubscribeLapFlashes()
	defer func() {
		c.CancelSnapshots(snaps)
		c.CancelLapFlashes(flashes)
	}()
	var sessionKey string
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			sessionKey = snap.SessionKey
			r.publish(stateSubject(sessionKey), snap)
		case flash, ok := <-flashes:
			if !ok {
				return
			}
			r.publish(lapFlashSubject(sessionKey), flash)
		}
	}
}

func (r *NatsRelay) publish(subject string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.l.Error("error marshalling message",
			log.String("subject", subject), log.ErrorField(err))
		return
	}
	if err := r.conn.Publish(subject, data); err != nil {
		r.l.Error("error publishing message",
			log.String("subject", subject), log.ErrorField(err))
	}
}

func stateSubject(sessionKey string) string {
	if sessionKey == "" {
		sessionKey = "idle"
	}
	return fmt.Sprintf("laptimer.state.%s", sessionKey)
}

func lapFlashSubject(sessionKey string) string {
	if sessionKey == "" {
		sessionKey = "idle"
	}
	return fmt.Sprintf("laptimer.lapflash.%s", sessionKey)
}

// Close drains the connection.
func (r *NatsRelay) Close() {
	r.conn.Close()
}

package hub

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/pitwall-sim/pitwall/log"
)

const telemetrySubjectPrefix = "pitwall.telemetry"

// NatsRelay publishes every broadcast frame to a per-station NATS subject
// so recorders and sibling hub instances can subscribe.
type NatsRelay struct {
	conn *nats.Conn
	l    *log.Logger
}

func NewNatsRelay(url string) (*NatsRelay, error) {
	conn, err := nats.Connect(url,
		nats.Name("pitwall-hub"),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NatsRelay{conn: conn, l: log.Default().Named("relay")}, nil
}

func (r *NatsRelay) Publish(stationID string, payload []byte) error {
	return r.conn.Publish(
		fmt.Sprintf("%s.%s", telemetrySubjectPrefix, stationID), payload)
}

// Subscribe delivers relayed frames of one station (or all stations with
// stationID "*") to cb.
//
//nolint:whitespace // editor/linter issue
func (r *NatsRelay) Subscribe(
	stationID string,
	cb func(payload []byte),
) (*nats.Subscription, error) {
	return r.conn.Subscribe(
		fmt.Sprintf("%s.%s", telemetrySubjectPrefix, stationID),
		func(msg *nats.Msg) { cb(msg.Data) })
}

func (r *NatsRelay) Close() {
	if err := r.conn.Drain(); err != nil {
		r.l.Warn("drain failed", log.ErrorField(err))
	}
}

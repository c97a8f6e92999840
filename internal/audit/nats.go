package audit

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes every record to a NATS subject so a fleet
// collector can watch runs across machines. Delivery is fire-and-forget;
// the local trail remains the source of truth.
type NATSSink struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATSSink connects to the NATS server. subjectPrefix defaults to
// "pilot.audit".
func NewNATSSink(url, subjectPrefix string) (*NATSSink, error) {
	if subjectPrefix == "" {
		subjectPrefix = "pilot.audit"
	}
	nc, err := nats.Connect(url, nats.Name("pilot-audit"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSSink{nc: nc, subjectPrefix: subjectPrefix}, nil
}

// Emit publishes the record to <prefix>.<run-id>.
func (s *NATSSink) Emit(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	subject := s.subjectPrefix + "." + rec.RunID
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish audit record: %w", err)
	}
	return nil
}

// Close drains the connection so buffered records flush before exit.
func (s *NATSSink) Close() error {
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		return err
	}
	return nil
}

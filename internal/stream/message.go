package stream

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind classifies a stream message.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindDiff     Kind = "diff"
)

// Message is one decoded stream event. Lifts holds each lift record as raw
// JSON so diffs can be merged field by field over the previous record.
type Message struct {
	Kind  Kind
	Event string
	ID    string
	Lifts map[string]json.RawMessage
}

// payload is the wire shape of an event body.
type payload struct {
	Type  string                     `json:"type,omitempty"`
	Full  bool                       `json:"full,omitempty"`
	Lifts map[string]json.RawMessage `json:"lifts"`
}

var snapshotNames = map[string]bool{
	"snapshot": true,
	"full":     true,
	"refresh":  true,
}

// decodeMessage classifies ev. first marks the first message of a connection,
// which is always a snapshot.
func decodeMessage(ev event, first bool) (Message, error) {
	var p payload
	if err := json.Unmarshal([]byte(ev.Data), &p); err != nil {
		return Message{}, fmt.Errorf("decode %q event: %w", ev.Name, err)
	}
	if p.Lifts == nil {
		return Message{}, fmt.Errorf("decode %q event: %w", ev.Name, errNoLifts)
	}

	kind := KindDiff
	if first || p.Full || snapshotNames[strings.ToLower(ev.Name)] || snapshotNames[strings.ToLower(p.Type)] {
		kind = KindSnapshot
	}
	return Message{Kind: kind, Event: ev.Name, ID: ev.ID, Lifts: p.Lifts}, nil
}

// filter drops lifts not in allowed. A nil set allows everything.
func (m Message) filter(allowed map[string]bool) Message {
	if allowed == nil {
		return m
	}
	out := make(map[string]json.RawMessage, len(m.Lifts))
	for id, raw := range m.Lifts {
		if allowed[id] {
			out[id] = raw
		}
	}
	m.Lifts = out
	return m
}

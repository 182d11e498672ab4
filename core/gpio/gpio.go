// Package gpio models single-bit output lines such as interrupt and DMA
// request signals. A line records its level and rising-edge count and
// forwards every change to connected receivers and, optionally, to a bus
// topic as a retained Level message.
package gpio

import "github.com/cubesatlab/renode-infrastructure/bus"

// Level is the payload published for a line.
type Level struct {
	High  bool
	Edges uint64
}

type Line struct {
	name  string
	high  bool
	edges uint64
	recv  []func(bool)

	conn  *bus.Connection
	topic bus.Topic
}

func NewLine(name string) *Line { return &Line{name: name} }

func (l *Line) Name() string { return l.name }

func (l *Line) IsSet() bool { return l.high }

// Edges counts low-to-high transitions, including those produced by Blink.
func (l *Line) Edges() uint64 { return l.edges }

// Connect registers fn to receive every level change.
func (l *Line) Connect(fn func(high bool)) {
	if fn != nil {
		l.recv = append(l.recv, fn)
	}
}

// Attach publishes the line's level to topic on conn after every change.
// The current level is published immediately.
func (l *Line) Attach(conn *bus.Connection, topic bus.Topic) {
	l.conn, l.topic = conn, topic
	l.publish()
}

// Set drives the line to v. Setting the current level is a no-op.
func (l *Line) Set(v bool) {
	if v == l.high {
		return
	}
	l.high = v
	if v {
		l.edges++
	}
	l.notify(v)
}

func (l *Line) Unset() { l.Set(false) }

// Blink produces a rising edge followed by a fall. It is used for pulse
// requests where the receiver only counts edges.
func (l *Line) Blink() {
	if l.high {
		l.Set(false)
	}
	l.Set(true)
	l.Set(false)
}

// Reset drops the line without counting or notifying, and clears the edge
// counter.
func (l *Line) Reset() {
	l.high = false
	l.edges = 0
	l.publish()
}

func (l *Line) notify(v bool) {
	for _, fn := range l.recv {
		fn(v)
	}
	l.publish()
}

func (l *Line) publish() {
	if l.conn == nil {
		return
	}
	l.conn.Publish(l.conn.NewMessage(l.topic, Level{High: l.high, Edges: l.edges}, true))
}

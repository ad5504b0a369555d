// Package counter is the reference weft application: a counter with
// buttons, a synchronous follow-up message and an asynchronous request.
package counter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/weft/internal/effect"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/vdom"
)

// Kind identifies a counter message.
type Kind string

const (
	KindIncrement      Kind = "increment"
	KindDecrement      Kind = "decrement"
	KindAdd            Kind = "add"
	KindReset          Kind = "reset"
	KindIncrementTwice Kind = "increment_twice"
	KindRequest        Kind = "request"
)

// Msg is a counter message. N is only meaningful for KindAdd.
type Msg struct {
	Kind Kind
	N    int
}

var (
	Increment      = Msg{Kind: KindIncrement}
	Decrement      = Msg{Kind: KindDecrement}
	Reset          = Msg{Kind: KindReset}
	IncrementTwice = Msg{Kind: KindIncrementTwice}
	Request        = Msg{Kind: KindRequest}
)

// Add returns a message adding n to the count.
func Add(n int) Msg {
	return Msg{Kind: KindAdd, N: n}
}

// String returns the token form accepted by ParseMsg.
func (m Msg) String() string {
	if m.Kind == KindAdd {
		return fmt.Sprintf("add:%d", m.N)
	}
	return string(m.Kind)
}

// ParseMsg parses a message token: increment, decrement, reset,
// increment_twice, request or add:N. The short forms inc, dec and twice
// are accepted too.
func ParseMsg(token string) (Msg, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if rest, ok := strings.CutPrefix(token, "add:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Msg{}, fmt.Errorf("parse %q: invalid amount: %w", token, err)
		}
		return Add(n), nil
	}
	switch token {
	case "increment", "inc":
		return Increment, nil
	case "decrement", "dec":
		return Decrement, nil
	case "reset":
		return Reset, nil
	case "increment_twice", "twice":
		return IncrementTwice, nil
	case "request":
		return Request, nil
	}
	return Msg{}, fmt.Errorf("parse %q: unknown message", token)
}

// ParseMsgs parses every token, stopping at the first error.
func ParseMsgs(tokens []string) ([]Msg, error) {
	msgs := make([]Msg, 0, len(tokens))
	for _, tok := range tokens {
		m, err := ParseMsg(tok)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Stylesheet is the single style resource of the counter.
const Stylesheet = `#counter { font-family: sans-serif; }
#counter .count { font-size: 2em; }
#counter button { min-width: 3em; }`

// Model is the counter state. InitMsgs, when set, are dispatched by Init.
type Model struct {
	Count    int
	InitMsgs []Msg

	Inits   int
	Updates int
	Views   int
}

// New returns a model starting at count.
func New(count int) *Model {
	return &Model{Count: count}
}

// Init dispatches InitMsgs in order.
func (m *Model) Init() effect.Cmd[Msg] {
	m.Inits++
	return effect.Message(m.InitMsgs...)
}

// Update applies msg.
func (m *Model) Update(msg Msg) effect.Cmd[Msg] {
	m.Updates++
	switch msg.Kind {
	case KindIncrement:
		m.Count++
	case KindDecrement:
		m.Count--
	case KindAdd:
		m.Count += msg.N
	case KindReset:
		m.Count = 0
	case KindIncrementTwice:
		m.Count++
		return effect.Message(Increment)
	case KindRequest:
		return effect.Perform(func() Msg { return Increment })
	}
	return effect.None[Msg]()
}

// View renders the counter.
func (m *Model) View() *vdom.Node {
	m.Views++
	return vdom.El("div", []vdom.Attr{vdom.A("id", "counter")},
		vdom.El("h1", []vdom.Attr{vdom.A("class", "count")}, vdom.Textf("Count: %d", m.Count)),
		vdom.El("button", []vdom.Attr{vdom.A("class", "dec"), vdom.A("data-msg", KindDecrement.String())}, vdom.Text("-")),
		vdom.El("button", []vdom.Attr{vdom.A("class", "inc"), vdom.A("data-msg", KindIncrement.String())}, vdom.Text("+")),
	)
}

// Styles returns the counter stylesheet.
func (m *Model) Styles() []string {
	return []string{Stylesheet}
}

func (k Kind) String() string { return string(k) }

// Codec encodes counter messages as {"kind": ..., "n": ...} objects.
type Codec struct{}

// Encode converts msg to its canonical object form.
func (Codec) Encode(msg Msg) (ir.Object, error) {
	if _, err := ParseMsg(msg.String()); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	obj := ir.Object{"kind": ir.String(msg.Kind)}
	if msg.Kind == KindAdd {
		obj["n"] = ir.Int(msg.N)
	}
	return obj, nil
}

// Decode is the inverse of Encode.
func (Codec) Decode(obj ir.Object) (Msg, error) {
	kind := Kind(obj.Kind())
	if kind == KindAdd {
		n, ok := obj["n"].(ir.Int)
		if !ok {
			return Msg{}, fmt.Errorf("decode add: missing integer n")
		}
		return Add(int(n)), nil
	}
	msg, err := ParseMsg(string(kind))
	if err != nil || msg.Kind != kind {
		return Msg{}, fmt.Errorf("decode: unknown kind %q", kind)
	}
	return msg, nil
}

// Package effect models the command sets returned by an application's Init
// and Update: ordered batches of deferred effects that feed follow-up
// messages back into a dispatcher.
//
// Effects are not retried. An effect that needs a retry policy implements it
// itself and dispatches whatever message describes the outcome.
package effect

// Dispatcher accepts messages. A program hands its own dispatcher handle to
// Cmd.Emit; effects may call it synchronously or keep it for asynchronous
// delivery.
type Dispatcher[M any] interface {
	Dispatch(msg M)
}

// AsyncDispatcher is a Dispatcher that also tracks work running off the
// caller's goroutine. Go runs fn concurrently and delivers its result as a
// message; the implementation decides when and where that message is
// processed.
type AsyncDispatcher[M any] interface {
	Dispatcher[M]
	Go(fn func() M)
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc[M any] func(msg M)

// Dispatch calls f(msg).
func (f DispatchFunc[M]) Dispatch(msg M) { f(msg) }

// Effect is one unit of deferred work. It runs during emission and may
// dispatch zero or more messages.
type Effect[M any] func(d Dispatcher[M])

// Cmd is an ordered collection of effects. The zero value is the empty
// command.
type Cmd[M any] struct {
	effects []Effect[M]
}

// None returns the empty command.
func None[M any]() Cmd[M] {
	return Cmd[M]{}
}

// Func wraps effects into a command, in order.
func Func[M any](effects ...Effect[M]) Cmd[M] {
	var cmd Cmd[M]
	for _, e := range effects {
		if e != nil {
			cmd.effects = append(cmd.effects, e)
		}
	}
	return cmd
}

// Message returns a command that dispatches msgs synchronously, in order,
// when emitted.
func Message[M any](msgs ...M) Cmd[M] {
	if len(msgs) == 0 {
		return None[M]()
	}
	out := make([]M, len(msgs))
	copy(out, msgs)
	return Func(func(d Dispatcher[M]) {
		for _, m := range out {
			d.Dispatch(m)
		}
	})
}

// Perform returns a command that runs fn on its own goroutine and
// dispatches the result. An AsyncDispatcher receives fn through Go and
// owns its delivery. Any other dispatcher is called from the goroutine
// running fn, so it must be safe for concurrent use.
func Perform[M any](fn func() M) Cmd[M] {
	return Func(func(d Dispatcher[M]) {
		if ad, ok := d.(AsyncDispatcher[M]); ok {
			ad.Go(fn)
			return
		}
		go func() {
			d.Dispatch(fn())
		}()
	})
}

// Batch concatenates commands, preserving order.
func Batch[M any](cmds ...Cmd[M]) Cmd[M] {
	var out Cmd[M]
	for _, c := range cmds {
		out.effects = append(out.effects, c.effects...)
	}
	return out
}

// Len returns the number of effects in the command.
func (c Cmd[M]) Len() int {
	return len(c.effects)
}

// IsNone reports whether the command carries no effects.
func (c Cmd[M]) IsNone() bool {
	return len(c.effects) == 0
}

// Emit runs every effect against d, in order.
func (c Cmd[M]) Emit(d Dispatcher[M]) {
	for _, e := range c.effects {
		e(d)
	}
}

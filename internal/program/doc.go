// Package program implements the weft dispatch-and-reconciliation loop.
//
// A Program owns one Application and one Reconciler for a single mounted
// UI. Every message goes through the same cycle:
//
//  1. Update: exclusive checkout of the application, Update(msg), check-in.
//  2. Emit: the returned command runs against the program's dispatcher.
//  3. View: shared checkout of the application, View(), check-in.
//  4. Reconcile: exclusive checkout of the reconciler, Reconcile(view).
//
// Each phase is timed and reported to a Measurer. Completed cycles are
// reported to an Observer.
//
// DISPATCH POLICIES:
//
// Immediate: Dispatch runs the whole cycle before returning. A message
// dispatched while a command is being emitted runs its own cycle nested
// inside the outer emit phase. The nested cycle has completed, reconcile
// included, before the outer View runs, so the outer View renders the
// state after both updates.
//
// Deferred: Dispatch schedules one frame callback per message on a
// frame.Scheduler and returns. Nothing is coalesced; N dispatches before a
// frame run N cycles in that frame, in call order. Nested dispatches are
// scheduled for a later frame.
//
// FLOWS:
//
// Every external Dispatch starts a flow with a fresh token. Messages
// dispatched by a cycle's command inherit its flow, whether they arrive
// synchronously or from another goroutine. With WithMaxSteps a flow may
// run at most that many cycles and exceeding the quota is fatal; by
// default flows are unbounded.
//
// ASYNCHRONOUS EFFECTS:
//
// effect.Perform hands its function to the program, which runs it on a
// new goroutine. Under the deferred policy the result is scheduled like
// any other message. Under the immediate policy it waits until the next
// Dispatch or Settle runs it on the caller's goroutine, so cycles of one
// program never overlap. Settle waits until every accepted message has
// completed its cycle.
//
// FAILURES:
//
// Panics raised by Update or View propagate through Dispatch with no
// rollback. A Reconcile error, an exceeded quota and a deferred cycle the
// scheduler refuses each panic with a *RuntimeError. Overlapping
// access to the application or the reconciler panics with a
// *cell.BorrowError. Mount failures are returned as errors.
package program

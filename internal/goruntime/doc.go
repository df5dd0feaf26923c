// Package goruntime plans the auxiliary instrumentation that correlates
// captured events with goroutines instead of OS threads.
//
// A Go binary multiplexes goroutines onto few OS threads, so a capture
// tagged only with the thread id is ambiguous. The planner hooks the
// scheduler's goroutine-state-transition function; the generated probe
// maintains a thread-to-goroutine lookup that every user probe consults
// when it stamps the mandatory fields of an output record. Native
// binaries need none of this and get a shorter mandatory prefix.
package goruntime

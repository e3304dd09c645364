package primitive

// Tracer receives control-flow and memory-access events from an
// instrumented backend. Sites are static labels chosen by the backend.
type Tracer interface {
	Branch(site string, taken bool)
	Access(site string, index int)
}

// Instrumentable is implemented by backends that can report their own
// branch and table-access trace. Instrumented must return an implementation
// of the same contract that reports to t; the receiver is left untouched.
type Instrumentable interface {
	Instrumented(t Tracer) any
}

package ctaudit

import "fmt"

// maxTraceEvents bounds the events kept per execution. Later events are
// counted but not compared.
const maxTraceEvents = 1 << 16

type event struct {
	site   string
	access bool
	value  int
}

func (e event) String() string {
	if e.access {
		return fmt.Sprintf("access %s[%d]", e.site, e.value)
	}
	return fmt.Sprintf("branch %s taken=%t", e.site, e.value == 1)
}

// recorder is a primitive.Tracer that keeps every event of one execution.
type recorder struct {
	events []event
	total  int
}

func (r *recorder) Branch(site string, taken bool) {
	v := 0
	if taken {
		v = 1
	}
	r.add(event{site: site, value: v})
}

func (r *recorder) Access(site string, index int) {
	r.add(event{site: site, access: true, value: index})
}

func (r *recorder) add(e event) {
	r.total++
	if len(r.events) < maxTraceEvents {
		r.events = append(r.events, e)
	}
}

// divergence describes the first difference between two traces, or returns
// "" when they are identical.
func divergence(a, b *recorder) string {
	n := min(len(a.events), len(b.events))
	for i := 0; i < n; i++ {
		if a.events[i] != b.events[i] {
			return fmt.Sprintf("event %d: %s vs %s", i, a.events[i], b.events[i])
		}
	}
	if a.total != b.total {
		return fmt.Sprintf("trace length %d vs %d", a.total, b.total)
	}
	return ""
}

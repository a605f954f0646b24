package operations

import "time"

// Event describes one step of Run.
type Event struct {
	Index   int
	Op      Operation
	Skipped bool
	Err     error
	Elapsed time.Duration
}

// Observer is notified after every step, including skipped ones.
type Observer func(Event)

// Run executes ops against c in order. Disabled operations are skipped.
// The first error stops the run and is returned as is; earlier mutations of
// c remain.
func Run(c *Context, ops []Operation, observers ...Observer) (*Context, error) {
	if c == nil {
		c = NewContext()
	}
	for i, op := range ops {
		if op == nil {
			continue
		}
		if !op.Enabled() {
			notify(observers, Event{Index: i, Op: op, Skipped: true})
			continue
		}

		start := time.Now()
		next, err := op.Execute(c)
		notify(observers, Event{Index: i, Op: op, Err: err, Elapsed: time.Since(start)})
		if err != nil {
			return c, err
		}
		if next != nil {
			c = next
		}
	}
	return c, nil
}

func notify(observers []Observer, e Event) {
	for _, o := range observers {
		if o != nil {
			o(e)
		}
	}
}

package span

import (
	"github.com/rs/zerolog"
)

// CallType is the kind of a recorded call.
type CallType string

const (
	CallStart CallType = "start"
	CallEnd   CallType = "end"
	CallEvent CallType = "event"
)

// Call is one entry of the append-only call log.
type Call struct {
	Type CallType       `json:"type"`
	Key  string         `json:"key,omitempty"`
	Name string         `json:"name,omitempty"`
	Time Timestamp      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Event is a point-in-time marker recorded verbatim.
type Event struct {
	Name string
	Time Timestamp
	Data map[string]any
}

// Result is the outcome of reconciling a call log.
type Result struct {
	Root   *Profile
	Events []Event
	// Errors holds every non-fatal problem found while reconciling.
	Errors []error
}

type openSpan struct {
	key       Key
	canonical string
	// profile is the top of the chain; target is the deepest named
	// profile of the same chain, which receives the end.
	profile *Profile
	target  *Profile
}

// Reconciler matches start and end calls into a profile tree. Ends are
// matched to the nearest open start with the same key, so spans may close
// out of push order.
type Reconciler struct {
	logger zerolog.Logger
	stack  []openSpan
	events []Event
	errs   []error
	done   bool
}

// NewReconciler returns a reconciler whose stack holds only the root.
func NewReconciler(logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		logger: logger,
		stack:  []openSpan{{profile: NewRoot()}},
	}
}

// Reconcile builds the profile tree for calls.
func Reconcile(calls []Call, logger zerolog.Logger) *Result {
	r := NewReconciler(logger)
	for _, c := range calls {
		r.Apply(c)
	}
	return r.Finish()
}

// Apply processes a single call. Problems are logged and recorded, never returned.
func (r *Reconciler) Apply(c Call) {
	switch c.Type {
	case CallEvent:
		name := c.Name
		if name == "" {
			name = c.Key
		}
		r.events = append(r.events, Event{Name: name, Time: c.Time, Data: c.Data})
	case CallStart:
		r.start(c)
	case CallEnd:
		r.end(c)
	default:
		r.logger.Warn().Str("type", string(c.Type)).Str("key", c.Key).Msg("Ignoring call of unknown type")
	}
}

func (r *Reconciler) start(c Call) {
	k, err := ParseKey(c.Key)
	if err != nil {
		r.fail(err, c)
		return
	}
	p := newProfile(k, c.Time, c.Data)
	r.stack = append(r.stack, openSpan{
		key:       k,
		canonical: k.String(),
		profile:   p,
		target:    p.chainNode(len(k.Segments) - 1),
	})
}

func (r *Reconciler) end(c Call) {
	k, err := ParseKey(c.Key)
	if err != nil {
		r.fail(err, c)
		return
	}

	canonical := k.String()
	idx := -1
	for i := len(r.stack) - 1; i > 0; i-- {
		if r.stack[i].canonical == canonical {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.fail(newKeyError(ErrUnmatchedEnd, c.Key), c)
		return
	}

	open := r.stack[idx]
	open.target.setEnd(k.Label, c.Time, c.Data)
	open.profile.Closed = true
	r.stack = append(r.stack[:idx], r.stack[idx+1:]...)

	parent := r.stack[len(r.stack)-1].profile
	if k.Rooted {
		parent = r.stack[0].profile
	}
	parent.Add(open.profile)
}

// Finish sweeps spans that were never ended, salvaging their closed
// descendants under the root, and returns the result. Calling Apply after
// Finish has no effect on the returned tree.
func (r *Reconciler) Finish() *Result {
	root := r.stack[0].profile
	if !r.done {
		for _, open := range r.stack[1:] {
			err := newKeyError(ErrUnterminatedSpan, open.canonical)
			r.errs = append(r.errs, err)
			r.logger.Error().Err(err).Str("key", open.canonical).Msg("Span was started but end was never called")
			salvage(root, open.profile)
		}
		r.stack = r.stack[:1]
		r.done = true
	}
	return &Result{Root: root, Events: r.events, Errors: r.errs}
}

// salvage re-parents the closed descendants of p directly under root.
func salvage(root, p *Profile) {
	p.EachChild(func(c *Profile) {
		if c.Closed {
			root.Add(c)
			return
		}
		salvage(root, c)
	})
}

func (r *Reconciler) fail(err error, c Call) {
	r.errs = append(r.errs, err)
	r.logger.Error().Err(err).Str("type", string(c.Type)).Str("key", c.Key).Msg("Dropping call")
}

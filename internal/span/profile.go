package span

// RootID is the id of the synthetic profile every tree hangs off.
const RootID = "root"

// Interval is a named sub-interval of a span.
type Interval struct {
	StartTime *Timestamp
	EndTime   *Timestamp
}

// Profile is one occurrence of a span in the call tree.
type Profile struct {
	ID        string
	Type      string
	StartTime *Timestamp
	EndTime   *Timestamp
	Data      map[string]any
	Durations map[string]*Interval
	Children  map[string][]*Profile
	Closed    bool

	// childOrder keeps child ids in the order they were first added.
	childOrder []string
	// labelOrder does the same for duration labels.
	labelOrder []string
}

// NewRoot returns the synthetic root profile.
func NewRoot() *Profile {
	return &Profile{ID: RootID, Type: RootID}
}

// newProfile builds the chain of single-child profiles described by k. The
// deepest profile receives the start time; a trailing label becomes a
// duration-only fragment merged into the deepest named profile.
func newProfile(k Key, t Timestamp, data map[string]any) *Profile {
	if len(k.Segments) == 0 {
		frag := &Profile{}
		frag.setDuration(k.Label, &Interval{StartTime: &t})
		frag.mergeData(data)
		return frag
	}

	p := &Profile{ID: k.Segments[0], Type: k.Segments[0]}
	rest := k.rest()
	if len(rest.Segments) > 0 || rest.Label != "" {
		p.Add(newProfile(rest, t, data))
		return p
	}

	p.StartTime = &t
	p.mergeData(data)
	return p
}

// Open reports whether p is still a placeholder with no start time of its own.
func (p *Profile) Open() bool {
	return p.StartTime == nil
}

// HasChildren reports whether p has at least one child occurrence.
func (p *Profile) HasChildren() bool {
	return len(p.childOrder) > 0
}

// ChildIDs returns child ids in insertion order.
func (p *Profile) ChildIDs() []string {
	return append([]string(nil), p.childOrder...)
}

// Labels returns duration labels in insertion order.
func (p *Profile) Labels() []string {
	return append([]string(nil), p.labelOrder...)
}

// EachChild calls fn for every child occurrence, ids in insertion order.
func (p *Profile) EachChild(fn func(*Profile)) {
	for _, id := range p.childOrder {
		for _, c := range p.Children[id] {
			fn(c)
		}
	}
}

// Add merges a closed child into p.
//
// A duration-only fragment lands in p's own durations. Otherwise the child is
// compared with the last occurrence sharing its id: durations are folded into
// it, an open placeholder absorbs the child's children or times, and a closed
// occurrence makes the child a new sibling.
func (p *Profile) Add(c *Profile) {
	if c.ID == "" {
		p.mergeDurations(c)
		p.mergeData(c.Data)
		return
	}

	list, ok := p.Children[c.ID]
	if !ok || len(list) == 0 {
		if p.Children == nil {
			p.Children = make(map[string][]*Profile)
		}
		if !ok {
			p.childOrder = append(p.childOrder, c.ID)
		}
		p.Children[c.ID] = []*Profile{c}
		return
	}

	last := list[len(list)-1]
	switch {
	case len(c.Durations) > 0:
		last.mergeDurations(c)
		last.mergeData(c.Data)
		c.EachChild(last.Add)
		if last.Open() && !c.Open() {
			last.adopt(c)
		}
	case last.Open() && c.HasChildren():
		c.EachChild(last.Add)
		if !c.Open() {
			last.adopt(c)
		}
	case last.Open():
		last.adopt(c)
	default:
		p.Children[c.ID] = append(list, c)
	}
}

// adopt copies the identity of occurrence c onto p.
func (p *Profile) adopt(c *Profile) {
	p.StartTime = c.StartTime
	p.EndTime = c.EndTime
	p.Type = c.Type
	p.mergeData(c.Data)
	p.Closed = p.Closed || c.Closed
}

// chainNode returns the profile depth levels below p in a chain freshly
// built by newProfile, where every level has exactly one child.
func (p *Profile) chainNode(depth int) *Profile {
	for ; depth > 0 && len(p.childOrder) > 0; depth-- {
		p = p.Children[p.childOrder[0]][0]
	}
	return p
}

// setEnd records the end of the span on p, the deepest named profile its
// start created. A label ends the matching duration bucket instead.
func (p *Profile) setEnd(label string, t Timestamp, data map[string]any) {
	if label != "" {
		iv, ok := p.Durations[label]
		if !ok {
			iv = &Interval{}
			p.setDuration(label, iv)
		}
		iv.EndTime = &t
	} else {
		p.EndTime = &t
	}
	p.mergeData(data)
	p.Closed = true
}

func (p *Profile) setDuration(label string, iv *Interval) {
	if p.Durations == nil {
		p.Durations = make(map[string]*Interval)
	}
	if _, ok := p.Durations[label]; !ok {
		p.labelOrder = append(p.labelOrder, label)
	}
	p.Durations[label] = iv
}

// mergeDurations copies the buckets of c into p. A repeated label overwrites
// the earlier bucket.
func (p *Profile) mergeDurations(c *Profile) {
	for _, label := range c.labelOrder {
		p.setDuration(label, c.Durations[label])
	}
}

// mergeData applies data onto p. The most recent non-nil value for a field
// wins and a nil value never replaces an existing one. A string "type" field
// overrides the profile type.
func (p *Profile) mergeData(data map[string]any) {
	if len(data) == 0 {
		return
	}
	if p.Data == nil {
		p.Data = make(map[string]any, len(data))
	}
	for k, v := range data {
		if v == nil {
			if _, exists := p.Data[k]; exists {
				continue
			}
		}
		p.Data[k] = v
		if k == "type" {
			if s, ok := v.(string); ok && s != "" {
				p.Type = s
			}
		}
	}
}

package waves

import "fmt"

// Connect makes from modulate to. Connecting to OutputHandle makes from
// audible. Connections that would close a cycle are rejected; the same edge
// may be added twice, in which case its contribution is summed twice.
func (e *Engine) Connect(from, to Handle) error {
	if e.sealed {
		return ErrSealed
	}
	if err := e.checkHandle(from); err != nil {
		return fmt.Errorf("connect from: %w", err)
	}
	if err := e.checkHandle(to); err != nil {
		return fmt.Errorf("connect to: %w", err)
	}
	if from == to || e.reaches(from, to) {
		return fmt.Errorf("%w: %d -> %d", ErrCycle, from, to)
	}
	n := &e.nodes[to]
	n.inputs = append(n.inputs, from)
	return nil
}

// reaches reports whether target is among the transitive inputs of start.
func (e *Engine) reaches(start, target Handle) bool {
	seen := make([]bool, len(e.nodes))
	stack := []Handle{start}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == target {
			return true
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		stack = append(stack, e.nodes[h].inputs...)
	}
	return false
}

// Validate checks every node reachable from the output can be rendered.
// It returns an *UnsupportedKindError for the first triangle, saw or square
// oscillator it finds.
func (e *Engine) Validate() error {
	seen := make([]bool, len(e.nodes))
	var walk func(h Handle) error
	walk = func(h Handle) error {
		if seen[h] {
			return nil
		}
		seen[h] = true
		n := &e.nodes[h]
		if !n.kind.Supported() {
			return &UnsupportedKindError{Handle: h, Kind: n.kind}
		}
		for _, in := range n.inputs {
			if err := walk(in); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(OutputHandle)
}

package scanner

import (
	"sync"
)

// IdentifierLength is the only accepted identifier length.
const IdentifierLength = 8

// Input accumulates scanned or typed characters and fires exactly once
// when a complete identifier has been entered. Non-digits are stripped,
// characters beyond the identifier length are dropped, and a fired buffer
// never re-fires until it is cleared. A separate per-identifier in-flight
// guard protects against a second auto-fire slipping in before the clear.
type Input struct {
	mu       sync.Mutex
	buf      []byte
	fired    bool
	inflight map[string]struct{}
}

func NewInput() *Input {
	return &Input{inflight: make(map[string]struct{})}
}

// Append feeds characters into the buffer. It returns the completed
// identifier with fired=true at the exact moment the buffer reaches the
// full length, and never again for the same buffer.
func (in *Input) Append(s string) (identifier string, fired bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for _, ch := range []byte(s) {
		if ch < '0' || ch > '9' {
			continue
		}
		if len(in.buf) >= IdentifierLength {
			break
		}
		in.buf = append(in.buf, ch)
		if len(in.buf) == IdentifierLength && !in.fired {
			in.fired = true
			return string(in.buf), true
		}
	}
	return "", false
}

// Fire is the manual submit action. It is inert unless the buffer holds a
// complete identifier that has not already auto-fired.
func (in *Input) Fire() (identifier string, ok bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.buf) != IdentifierLength || in.fired {
		return "", false
	}
	in.fired = true
	return string(in.buf), true
}

// Value returns the current buffer contents.
func (in *Input) Value() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return string(in.buf)
}

// Clear empties the buffer and re-arms firing. Called unconditionally
// after every attempt resolves, and on the operator's explicit clear.
func (in *Input) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buf = in.buf[:0]
	in.fired = false
}

// BeginSubmit marks an identifier as in flight. It returns false when a
// submission for the same identifier has not finished yet, in which case
// the caller must not submit again.
func (in *Input) BeginSubmit(identifier string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	if _, busy := in.inflight[identifier]; busy {
		return false
	}
	in.inflight[identifier] = struct{}{}
	return true
}

// EndSubmit releases the in-flight guard for an identifier.
func (in *Input) EndSubmit(identifier string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	delete(in.inflight, identifier)
}

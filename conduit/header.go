package conduit

import "github.com/intuitivelabs/bytescase"

// headerPair is one stored header or trailer field, in wire insertion order.
// key is stored exactly as given to Add/Set — never normalized — so a
// caller-built response header reaches the wire in its own canonical
// casing. Lookups (Get/Values) and replacement (Set) match case-insensitively
// regardless of how the key was originally cased.
type headerPair struct {
	key   string
	value string
}

// Header is an ordered, case-insensitive-lookup multimap. Unlike a plain
// map[string]string it preserves every occurrence of a repeated field (e.g.
// Set-Cookie) in the order it appeared on the wire, which a single request
// or response may legally carry more than once.
type Header struct {
	pairs []headerPair
}

// keyEqual reports whether a and b name the same header field,
// case-insensitively, using bytescase's byte-at-a-time comparator.
func keyEqual(a, b string) bool {
	return bytescase.CmpEq([]byte(a), []byte(b))
}

// Add appends a value for key exactly as given, preserving any existing
// values stored under the same (case-insensitive) key. This is the ingress
// path's commit point and the egress caller's header-building call alike;
// neither normalizes the key's casing.
func (h *Header) Add(key, value string) {
	h.pairs = append(h.pairs, headerPair{key: key, value: value})
}

// Set replaces all values for key (matched case-insensitively) with the
// single value given, storing key in the casing passed here.
func (h *Header) Set(key, value string) {
	out := h.pairs[:0]
	for _, p := range h.pairs {
		if !keyEqual(p.key, key) {
			out = append(out, p)
		}
	}
	h.pairs = append(out, headerPair{key: key, value: value})
}

// Get returns the first value stored for key (matched case-insensitively),
// and whether it was present.
func (h *Header) Get(key string) (string, bool) {
	for _, p := range h.pairs {
		if keyEqual(p.key, key) {
			return p.value, true
		}
	}
	return "", false
}

// Values returns every value stored for key (matched case-insensitively),
// in insertion order.
func (h *Header) Values(key string) []string {
	var out []string
	for _, p := range h.pairs {
		if keyEqual(p.key, key) {
			out = append(out, p.value)
		}
	}
	return out
}

// Count returns the number of (key, value) pairs stored, counting repeats.
func (h *Header) Count() int {
	return len(h.pairs)
}

// Reset empties the header set without releasing its backing array, so a
// pooled Message can be reused across connections without reallocating.
func (h *Header) Reset() {
	h.pairs = h.pairs[:0]
}

// VisitAll calls fn once per stored pair in wire insertion order, including
// repeats. Used by the egress engine to serialize a response's headers in
// exactly the order the caller built them.
func (h *Header) VisitAll(fn func(key, value string)) {
	for _, p := range h.pairs {
		fn(p.key, p.value)
	}
}

package conduit

import (
	"time"

	"github.com/yourusername/conduit/conduit/conlog"
)

// Options configures a Conn at construction time. Its fields are
// unexported: callers only set them through the functional Option setters
// below, matching the
// options-struct-plus-functional-setter idiom used elsewhere in the
// corpus's framing layers.
type Options struct {
	logger          conlog.Logger
	keepAliveByDflt bool
	readTimeout     time.Duration
	writeTimeout    time.Duration
}

func defaultOptions() Options {
	return Options{
		logger:          conlog.Nop,
		keepAliveByDflt: true,
	}
}

// Option mutates a Conn's construction-time Options.
type Option func(*Options)

// WithLogger directs diagnostics (forced closes, buffer exhaustion,
// rejected protocol versions) to l instead of discarding them.
func WithLogger(l conlog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeepAliveDefault sets the keep-alive assumption used before the first
// request on a connection declares one explicitly (HTTP/1.1 defaults to
// true; set false to match HTTP/1.0 defaulting when serving a mixed
// version population from one listener).
func WithKeepAliveDefault(v bool) Option {
	return func(o *Options) { o.keepAliveByDflt = v }
}

// WithReadTimeout bounds every ReadSome call behind a per-call context
// deadline of d. Zero disables the bound (the default).
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.readTimeout = d }
}

// WithWriteTimeout bounds every WriteAll call behind a per-call context
// deadline of d. Zero disables the bound (the default).
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.writeTimeout = d }
}

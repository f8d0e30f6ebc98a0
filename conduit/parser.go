package conduit

import (
	"bytes"

	"github.com/intuitivelabs/bytescase"
)

// parserSink receives the push-parser's callbacks. *Conn implements this;
// the split exists so the byte-level state machine in this file never
// touches connection-level state directly, mirroring the settings-struct /
// user-pointer split of the classical callback-style HTTP parsers this
// engine is modeled on.
//
// A callback that returns a non-nil error asks the parser to stop scanning
// immediately, exactly as a -1 return from a C callback aborts parsing
// there; the sink is responsible for recording *why* it aborted (version
// rejection vs. an Upgrade request) so the driver loop above can react
// correctly.
type parserSink interface {
	onMessageBegin()
	onURL(b []byte)
	onHeaderField(b []byte)
	onHeaderValue(b []byte)
	onHeadersComplete(major, minor int, method MethodID, keepAlive bool) error
	onBody(b []byte, final bool)
	onMessageComplete(upgrade bool) error
}

type parserState uint8

const (
	psStart parserState = iota
	psMethod
	psURL
	psVersion
	psRequestLineCR
	psHeaderLineStart
	psHeaderField
	psHeaderValueLWS
	psHeaderValue
	psHeaderValueCR
	psHeadersCR
	psBodyIdentity
	psBodyChunkSize
	psBodyChunkSizeExt
	psBodyChunkSizeCR
	psBodyChunkData
	psBodyChunkDataCR
	psBodyChunkDataLF
	psTrailerLineStart
	psTrailerField
	psTrailerValueLWS
	psTrailerValue
	psTrailerValueCR
	psTrailerCR
	psDone
)

// pushParser is the re-entrant HTTP/1.x request-line + header + body byte
// scanner. It holds no pointer to the connection it serves; execute is fed
// successive slices of the shared ingress buffer and returns how many bytes
// it consumed, so the driver can compact the rest forward exactly once per
// read, per the framing policy.
type pushParser struct {
	state parserState

	methodBuf [16]byte
	methodLen int

	versionBuf [16]byte
	versionLen int

	major, minor int

	contentLength     int64
	haveContentLength bool
	chunked           bool
	upgrade           bool
	keepAlive         bool
	keepAliveSet      bool

	// recognized-header-name scratch: only Content-Length, Transfer-Encoding,
	// Connection and Upgrade are tracked here (everything else still reaches
	// the sink via onHeaderField/onHeaderValue, but the parser itself never
	// inspects it) since those four are the only fields that change how the
	// rest of the message is framed.
	fieldBuf      [32]byte
	fieldLen      int
	fieldOverflow bool
	trackingValue bool
	valueBuf      [128]byte
	valueLen      int
	valueOverflow bool

	remaining int64 // bytes left in current identity body or current chunk
}

func (p *pushParser) reset() {
	*p = pushParser{}
}

// execute scans data, invoking sink callbacks, until data is exhausted or a
// callback or grammar check aborts. It returns the number of bytes
// consumed; partial tokens are kept in the parser's own state, so fewer
// than len(data) bytes are consumed only when scanning aborts, and the
// unconsumed suffix stays with the caller.
func (p *pushParser) execute(sink parserSink, data []byte) (consumed int, err error) {
	i := 0
	n := len(data)

	for i < n {
		c := data[i]

		switch p.state {
		case psStart:
			sink.onMessageBegin()
			p.state = psMethod
			// fall through without consuming c again

		case psMethod:
			if c == ' ' {
				if !p.validMethod() {
					return i, ErrParsingError
				}
				p.state = psURL
				i++
				continue
			}
			if p.methodLen >= len(p.methodBuf) {
				return i, ErrParsingError
			}
			p.methodBuf[p.methodLen] = c
			p.methodLen++
			i++
			continue

		case psURL:
			if c == ' ' {
				p.state = psVersion
				i++
				continue
			}
			if c == '\r' || c == '\n' {
				return i, ErrParsingError
			}
			sink.onURL(data[i : i+1])
			i++
			continue

		case psVersion:
			if c == '\r' || c == '\n' {
				maj, min, ok := parseVersionToken(p.versionBuf[:p.versionLen])
				if !ok {
					return i, ErrParsingError
				}
				p.major, p.minor = maj, min
				if c == '\r' {
					p.state = psRequestLineCR
				} else {
					p.state = psHeaderLineStart
				}
				i++
				continue
			}
			if p.versionLen >= len(p.versionBuf) {
				return i, ErrParsingError
			}
			p.versionBuf[p.versionLen] = c
			p.versionLen++
			i++
			continue

		case psRequestLineCR:
			if c != '\n' {
				return i, ErrParsingError
			}
			p.state = psHeaderLineStart
			i++
			continue

		case psHeaderLineStart:
			if c == '\r' {
				p.state = psHeadersCR
				i++
				continue
			}
			if c == '\n' {
				if err := p.finishHeaders(sink); err != nil {
					return i + 1, err
				}
				i++
				if p.chunked {
					p.state = psBodyChunkSize
				} else if p.haveContentLength && p.contentLength > 0 {
					p.remaining = p.contentLength
					p.state = psBodyIdentity
				} else {
					p.state = psDone
					if err := sink.onMessageComplete(p.upgrade); err != nil {
						return i, err
					}
					p.reset()
					p.state = psStart
				}
				continue
			}
			p.fieldLen = 0
			p.fieldOverflow = false
			p.state = psHeaderField
			continue

		case psHeaderField:
			if c == ':' {
				p.trackingValue = !p.fieldOverflow && isRecognizedFieldName(p.fieldBuf[:p.fieldLen])
				p.valueLen = 0
				p.valueOverflow = false
				p.state = psHeaderValueLWS
				i++
				continue
			}
			if c == '\r' || c == '\n' {
				return i, ErrParsingError
			}
			sink.onHeaderField(data[i : i+1])
			if p.fieldLen < len(p.fieldBuf) {
				p.fieldBuf[p.fieldLen] = bytescase.ByteToLower(c)
				p.fieldLen++
			} else {
				p.fieldOverflow = true
			}
			i++
			continue

		case psHeaderValueLWS:
			if c == ' ' || c == '\t' {
				i++
				continue
			}
			p.state = psHeaderValue
			continue

		case psHeaderValue:
			if c == '\r' {
				if p.trackingValue {
					p.applyHeaderValue()
				}
				p.state = psHeaderValueCR
				i++
				continue
			}
			if c == '\n' {
				if p.trackingValue {
					p.applyHeaderValue()
				}
				p.state = psHeaderLineStart
				i++
				continue
			}
			sink.onHeaderValue(data[i : i+1])
			if p.trackingValue {
				if p.valueLen < len(p.valueBuf) {
					p.valueBuf[p.valueLen] = bytescase.ByteToLower(c)
					p.valueLen++
				} else {
					p.valueOverflow = true
				}
			}
			i++
			continue

		case psHeaderValueCR:
			if c != '\n' {
				return i, ErrParsingError
			}
			p.state = psHeaderLineStart
			i++
			continue

		case psHeadersCR:
			if c != '\n' {
				return i, ErrParsingError
			}
			if err := p.finishHeaders(sink); err != nil {
				return i + 1, err
			}
			i++
			if p.chunked {
				p.state = psBodyChunkSize
			} else if p.haveContentLength && p.contentLength > 0 {
				p.remaining = p.contentLength
				p.state = psBodyIdentity
			} else {
				if err := sink.onMessageComplete(p.upgrade); err != nil {
					return i, err
				}
				p.reset()
				p.state = psStart
			}
			continue

		case psBodyIdentity:
			take := n - i
			if int64(take) > p.remaining {
				take = int(p.remaining)
			}
			sink.onBody(data[i:i+take], p.remaining == int64(take))
			p.remaining -= int64(take)
			i += take
			if p.remaining == 0 {
				if err := sink.onMessageComplete(p.upgrade); err != nil {
					return i, err
				}
				p.reset()
				p.state = psStart
			}
			continue

		case psBodyChunkSize:
			if isHexDigit(c) {
				v := p.remaining
				p.remaining = v*16 + int64(hexVal(c))
				i++
				continue
			}
			if c == ';' {
				p.state = psBodyChunkSizeExt
				i++
				continue
			}
			if c == '\r' {
				p.state = psBodyChunkSizeCR
				i++
				continue
			}
			if c == '\n' {
				p.state = p.afterChunkSizeLine(sink)
				i++
				continue
			}
			return i, ErrParsingError

		case psBodyChunkSizeExt:
			if c == '\r' {
				p.state = psBodyChunkSizeCR
				i++
				continue
			}
			if c == '\n' {
				p.state = p.afterChunkSizeLine(sink)
				i++
				continue
			}
			i++
			continue

		case psBodyChunkSizeCR:
			if c != '\n' {
				return i, ErrParsingError
			}
			p.state = p.afterChunkSizeLine(sink)
			i++
			continue

		case psBodyChunkData:
			take := n - i
			if int64(take) > p.remaining {
				take = int(p.remaining)
			}
			sink.onBody(data[i:i+take], false)
			p.remaining -= int64(take)
			i += take
			if p.remaining == 0 {
				p.state = psBodyChunkDataCR
			}
			continue

		case psBodyChunkDataCR:
			if c != '\r' {
				return i, ErrParsingError
			}
			p.state = psBodyChunkDataLF
			i++
			continue

		case psBodyChunkDataLF:
			if c != '\n' {
				return i, ErrParsingError
			}
			p.state = psBodyChunkSize
			p.remaining = 0
			i++
			continue

		case psTrailerLineStart:
			if c == '\r' {
				p.state = psTrailerCR
				i++
				continue
			}
			if c == '\n' {
				sink.onBody(nil, true)
				if err := sink.onMessageComplete(p.upgrade); err != nil {
					return i + 1, err
				}
				p.reset()
				p.state = psStart
				i++
				continue
			}
			p.state = psTrailerField
			continue

		case psTrailerField:
			if c == ':' {
				p.state = psTrailerValueLWS
				i++
				continue
			}
			sink.onHeaderField(data[i : i+1])
			i++
			continue

		case psTrailerValueLWS:
			if c == ' ' || c == '\t' {
				i++
				continue
			}
			p.state = psTrailerValue
			continue

		case psTrailerValue:
			if c == '\r' {
				p.state = psTrailerValueCR
				i++
				continue
			}
			if c == '\n' {
				p.state = psTrailerLineStart
				i++
				continue
			}
			sink.onHeaderValue(data[i : i+1])
			i++
			continue

		case psTrailerValueCR:
			if c != '\n' {
				return i, ErrParsingError
			}
			p.state = psTrailerLineStart
			i++
			continue

		case psTrailerCR:
			if c != '\n' {
				return i, ErrParsingError
			}
			sink.onBody(nil, true)
			if err := sink.onMessageComplete(p.upgrade); err != nil {
				return i + 1, err
			}
			p.reset()
			p.state = psStart
			i++
			continue

		case psDone:
			return i, nil

		default:
			return i, ErrParsingError
		}
	}

	return i, nil
}

// afterChunkSizeLine decides what follows a parsed chunk-size line: more
// chunk data, or — for a zero-size chunk — the trailer section.
func (p *pushParser) afterChunkSizeLine(sink parserSink) parserState {
	if p.remaining == 0 {
		return psTrailerLineStart
	}
	return psBodyChunkData
}

func (p *pushParser) validMethod() bool {
	_, ok := methodByToken(p.methodBuf[:p.methodLen])
	return ok
}

func (p *pushParser) method() MethodID {
	id, _ := methodByToken(p.methodBuf[:p.methodLen])
	return id
}

// finishHeaders is invoked once the blank line terminating the header block
// is seen. It settles the keep-alive default for the declared version,
// hands version, method and keep-alive to the sink through
// onHeadersComplete, and returns the sink's abort error, if any (HTTP
// major other than 1).
func (p *pushParser) finishHeaders(sink parserSink) error {
	if !p.keepAliveSet {
		p.keepAlive = p.major == 1 && p.minor >= 1
	}
	return sink.onHeadersComplete(p.major, p.minor, p.method(), p.keepAlive)
}

// isRecognizedFieldName reports whether name (already folded to lowercase by
// the caller) is one of the four header fields that change how the rest of
// the message is framed. Everything else is left to the sink to interpret.
func isRecognizedFieldName(name []byte) bool {
	switch string(name) {
	case "content-length", "transfer-encoding", "connection", "upgrade":
		return true
	default:
		return false
	}
}

// applyHeaderValue interprets the just-completed value of a recognized
// header field (p.fieldBuf) against p.valueBuf, updating the framing state
// the rest of the parser depends on (content length, chunked transfer,
// keep-alive, upgrade).
func (p *pushParser) applyHeaderValue() {
	if p.valueOverflow {
		return
	}
	val := trimLWS(p.valueBuf[:p.valueLen])
	switch string(p.fieldBuf[:p.fieldLen]) {
	case "content-length":
		if n, ok := atoiDigits(val); ok {
			p.contentLength = int64(n)
			p.haveContentLength = true
		}
	case "transfer-encoding":
		if splitAndContains(val, "chunked") {
			p.chunked = true
		}
	case "connection":
		switch {
		case splitAndContains(val, "close"):
			p.keepAlive = false
			p.keepAliveSet = true
		case splitAndContains(val, "keep-alive"):
			p.keepAlive = true
			p.keepAliveSet = true
		}
	case "upgrade":
		p.upgrade = true
	}
}

// trimLWS strips leading/trailing space and tab, the only linear whitespace
// HTTP/1.x header values carry around tokens.
func trimLWS(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	for j > i && (b[j-1] == ' ' || b[j-1] == '\t') {
		j--
	}
	return b[i:j]
}

// splitAndContains reports whether any comma-separated, LWS-trimmed token in
// b equals token. b is assumed already lowercased.
func splitAndContains(b []byte, token string) bool {
	start := 0
	for i := 0; i <= len(b); i++ {
		if i == len(b) || b[i] == ',' {
			if string(trimLWS(b[start:i])) == token {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return int(c-'A') + 10
	}
}

// parseVersionToken extracts (major, minor) from an "HTTP/M.m" token. The
// psVersion state above collects the request line's version field byte by
// byte and calls this once it sees the CR or LF that ends it.
func parseVersionToken(tok []byte) (major, minor int, ok bool) {
	if !bytes.HasPrefix(tok, []byte("HTTP/")) || len(tok) < len("HTTP/1.1") {
		return 0, 0, false
	}
	rest := tok[len("HTTP/"):]
	dot := bytes.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, false
	}
	maj, ok1 := atoiDigits(rest[:dot])
	min, ok2 := atoiDigits(rest[dot+1:])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return maj, min, true
}

func atoiDigits(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	v := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	return v, true
}

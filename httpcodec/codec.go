// Package httpcodec implements the thin request/reply framing that
// blobkit's HTTP-based back-ends (rawx) speak over an abstract byte
// channel: write headers, stream a chunked body, read the reply headers,
// then drain the reply body chunk by chunk (spec.md §4.2).
package httpcodec

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/oio-go/blobkit/slice"
)

// Codec is a synchronous request/reply object over rw. One Codec handles
// exactly one request/reply exchange; callers build a new one per
// transaction.
type Codec struct {
	br *bufio.Reader
	bw *bufio.Writer

	chunkedOut bool
	trailerOut http.Header

	chunkedIn       bool
	contentLengthIn int64
	bytesReadIn     int64
	chunkRemaining  int64
	bodyDone        bool
}

// New wraps rw (typically a net.Conn to a rawx) in a Codec.
func New(rw io.ReadWriter) *Codec {
	return &Codec{
		br: bufio.NewReader(rw),
		bw: bufio.NewWriter(rw),
	}
}

// WriteHeaders writes the request line and header fields. If headers
// carries "Transfer-Encoding: chunked", subsequent Write calls frame the
// body as chunks; trailers (if any) are sent by FinishRequest.
func (c *Codec) WriteHeaders(method, urlSelector string, headers http.Header, trailers http.Header) error {
	if _, err := fmt.Fprintf(c.bw, "%s %s HTTP/1.1\r\n", method, urlSelector); err != nil {
		return err
	}
	for k, vv := range headers {
		for _, v := range vv {
			if _, err := fmt.Fprintf(c.bw, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	if headers.Get("Transfer-Encoding") == "chunked" {
		c.chunkedOut = true
		c.trailerOut = trailers
		if trailers != nil && len(trailers) > 0 {
			names := make([]string, 0, len(trailers))
			for k := range trailers {
				names = append(names, k)
			}
			if _, err := fmt.Fprintf(c.bw, "Trailer: %s\r\n", strings.Join(names, ", ")); err != nil {
				return err
			}
		}
	}
	_, err := c.bw.WriteString("\r\n")
	return err
}

// WriteHeadersReply writes a reply status line and headers, the
// server-side counterpart of WriteHeaders. If headers carries
// "Transfer-Encoding: chunked", subsequent Write calls are chunk-framed.
func (c *Codec) WriteHeadersReply(httpStatus int, headers http.Header) error {
	if _, err := fmt.Fprintf(c.bw, "HTTP/1.1 %d %s\r\n", httpStatus, http.StatusText(httpStatus)); err != nil {
		return err
	}
	for k, vv := range headers {
		for _, v := range vv {
			if _, err := fmt.Fprintf(c.bw, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	if headers.Get("Transfer-Encoding") == "chunked" {
		c.chunkedOut = true
	}
	_, err := c.bw.WriteString("\r\n")
	return err
}

// Write streams a body fragment, chunk-framed if WriteHeaders saw
// Transfer-Encoding: chunked, raw otherwise.
func (c *Codec) Write(body []byte) (int, error) {
	if !c.chunkedOut {
		return c.bw.Write(body)
	}
	if _, err := fmt.Fprintf(c.bw, "%x\r\n", len(body)); err != nil {
		return 0, err
	}
	n, err := c.bw.Write(body)
	if err != nil {
		return n, err
	}
	if _, err := c.bw.WriteString("\r\n"); err != nil {
		return n, err
	}
	return n, nil
}

// FinishRequest terminates the body (the zero-length chunk plus trailers,
// when chunked) and flushes the request to the wire.
func (c *Codec) FinishRequest() error {
	if c.chunkedOut {
		if _, err := c.bw.WriteString("0\r\n"); err != nil {
			return err
		}
		for k, vv := range c.trailerOut {
			for _, v := range vv {
				if _, err := fmt.Fprintf(c.bw, "%s: %s\r\n", k, v); err != nil {
					return err
				}
			}
		}
		if _, err := c.bw.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}

// ReadHeaders reads the reply status line and header fields. It arms the
// body reader: Content-Length framing, chunked framing, or read-to-EOF
// if neither is present.
func (c *Codec) ReadHeaders() (httpStatus int, headers http.Header, err error) {
	line, err := c.br.ReadString('\n')
	if err != nil {
		return 0, nil, fmt.Errorf("httpcodec: read status line: %w", err)
	}
	httpStatus, err = parseStatusLine(line)
	if err != nil {
		return 0, nil, err
	}

	headers, err = c.readHeaderLines()
	if err != nil {
		return 0, nil, err
	}
	c.armBodyReader(headers)
	return httpStatus, headers, nil
}

// ReadRequestHeaders reads an incoming request line and header fields,
// the server-side counterpart of ReadHeaders.
func (c *Codec) ReadRequestHeaders() (method, urlSelector string, headers http.Header, err error) {
	line, err := c.br.ReadString('\n')
	if err != nil {
		return "", "", nil, fmt.Errorf("httpcodec: read request line: %w", err)
	}
	method, urlSelector, err = parseRequestLine(line)
	if err != nil {
		return "", "", nil, err
	}

	headers, err = c.readHeaderLines()
	if err != nil {
		return "", "", nil, err
	}
	c.armBodyReader(headers)
	return method, urlSelector, headers, nil
}

func (c *Codec) readHeaderLines() (http.Header, error) {
	headers := make(http.Header)
	for {
		line, err := c.br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("httpcodec: read header line: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		headers.Add(key, val)
	}
	return headers, nil
}

func (c *Codec) armBodyReader(headers http.Header) {
	c.chunkedIn = strings.EqualFold(headers.Get("Transfer-Encoding"), "chunked")
	c.contentLengthIn = -1
	if cl := headers.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			c.contentLengthIn = n
		}
	}
	c.bytesReadIn = 0
	c.chunkRemaining = 0
	c.bodyDone = false
}

// AppendBody reads the next fragment of the reply body into dst and
// reports whether the body is now fully consumed. Call it in a loop
// until done is true.
func (c *Codec) AppendBody(dst *slice.Slice) (done bool, err error) {
	if c.bodyDone {
		return true, nil
	}

	switch {
	case c.chunkedIn:
		return c.appendChunked(dst)
	case c.contentLengthIn >= 0:
		return c.appendFixed(dst)
	default:
		return c.appendUntilEOF(dst)
	}
}

func (c *Codec) appendChunked(dst *slice.Slice) (bool, error) {
	if c.chunkRemaining == 0 {
		line, err := c.br.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("httpcodec: read chunk size: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if semi := strings.IndexByte(line, ';'); semi >= 0 {
			line = line[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
		if err != nil {
			return false, fmt.Errorf("httpcodec: invalid chunk size %q: %w", line, err)
		}
		if size == 0 {
			if err := c.drainTrailers(); err != nil {
				return false, err
			}
			c.bodyDone = true
			return true, nil
		}
		c.chunkRemaining = size
	}

	buf := make([]byte, c.chunkRemaining)
	n, err := io.ReadFull(c.br, buf)
	if err != nil {
		return false, fmt.Errorf("httpcodec: read chunk data: %w", err)
	}
	dst.Append(buf[:n])
	c.chunkRemaining -= int64(n)

	if c.chunkRemaining == 0 {
		if _, err := c.br.Discard(2); err != nil { // trailing CRLF
			return false, fmt.Errorf("httpcodec: read chunk terminator: %w", err)
		}
	}
	return false, nil
}

func (c *Codec) drainTrailers() error {
	for {
		line, err := c.br.ReadString('\n')
		if err != nil {
			return fmt.Errorf("httpcodec: read trailer: %w", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
	}
}

func (c *Codec) appendFixed(dst *slice.Slice) (bool, error) {
	remaining := c.contentLengthIn - c.bytesReadIn
	if remaining <= 0 {
		c.bodyDone = true
		return true, nil
	}
	const maxRead = 64 * 1024
	n := remaining
	if n > maxRead {
		n = maxRead
	}
	buf := make([]byte, n)
	read, err := c.br.Read(buf)
	if read > 0 {
		dst.Append(buf[:read])
		c.bytesReadIn += int64(read)
	}
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("httpcodec: read body: %w", err)
	}
	if c.bytesReadIn >= c.contentLengthIn {
		c.bodyDone = true
		return true, nil
	}
	return false, nil
}

func (c *Codec) appendUntilEOF(dst *slice.Slice) (bool, error) {
	buf := make([]byte, 64*1024)
	n, err := c.br.Read(buf)
	if n > 0 {
		dst.Append(buf[:n])
	}
	if err == io.EOF {
		c.bodyDone = true
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("httpcodec: read body: %w", err)
	}
	return false, nil
}

func parseStatusLine(line string) (int, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("httpcodec: malformed status line %q", line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("httpcodec: malformed status code %q: %w", parts[1], err)
	}
	return code, nil
}

func parseRequestLine(line string) (method, urlSelector string, err error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", "", fmt.Errorf("httpcodec: malformed request line %q", line)
	}
	return parts[0], parts[1], nil
}

package blob

import (
	"fmt"
	"strconv"
	"strings"
)

// Url is a parsed rawx URL: scheme, host, port, and chunk ID. Its textual
// form round-trips either as the full "http://host:port/chunk_id" or the
// shortened "host:port" (scheme and chunk ID implied by context).
type Url struct {
	Scheme  string
	Host    string
	Port    int
	ChunkID string
}

// ParseUrl parses the full form "scheme://host:port/chunk_id".
func ParseUrl(s string) (Url, error) {
	rest := s
	scheme := "http"
	if idx := strings.Index(rest, "://"); idx >= 0 {
		scheme = rest[:idx]
		rest = rest[idx+3:]
	}

	slash := strings.IndexByte(rest, '/')
	var hostport, chunkID string
	if slash >= 0 {
		hostport = rest[:slash]
		chunkID = rest[slash+1:]
	} else {
		hostport = rest
	}

	host, portStr, err := splitHostPort(hostport)
	if err != nil {
		return Url{}, err
	}
	port := 0
	if portStr != "" {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return Url{}, fmt.Errorf("blob: invalid port %q: %w", portStr, err)
		}
	}

	return Url{Scheme: scheme, Host: host, Port: port, ChunkID: chunkID}, nil
}

func splitHostPort(hostport string) (host, port string, err error) {
	idx := strings.LastIndexByte(hostport, ':')
	if idx < 0 {
		return hostport, "", nil
	}
	return hostport[:idx], hostport[idx+1:], nil
}

// String renders the full textual form "scheme://host:port/chunk_id".
func (u Url) String() string {
	return fmt.Sprintf("%s://%s:%d/%s", u.Scheme, u.Host, u.Port, u.ChunkID)
}

// Short renders the shortened "host:port" form.
func (u Url) Short() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}

// RawxUrlSet extends Url with a chunk_number, used by the striping
// upload to order fragments across drives (spec.md §3 "RawxUrlSet").
type RawxUrlSet struct {
	Url
	ChunkNumber int
}

// ByChunkNumber sorts a slice of RawxUrlSet by ChunkNumber ascending.
type ByChunkNumber []RawxUrlSet

func (b ByChunkNumber) Len() int           { return len(b) }
func (b ByChunkNumber) Less(i, j int) bool { return b[i].ChunkNumber < b[j].ChunkNumber }
func (b ByChunkNumber) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

package httpcodec

import "github.com/oio-go/blobkit/status"

// Code is a codec-level return code (spec.md §4.2), distinct from an
// HTTP status code: it tells the caller what kind of reply or failure
// the codec produced, before that is folded into a status.Status.
type Code int

const (
	OK Code = iota
	ClientError
	ServerError
	NetworkError
	Timeout
	Done
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case ClientError:
		return "ClientError"
	case ServerError:
		return "ServerError"
	case NetworkError:
		return "NetworkError"
	case Timeout:
		return "Timeout"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// ToStatus maps a codec Code plus (where relevant) the HTTP status line
// code into a status.Status, per spec.md §4.2: NetworkError→NetworkError;
// Timeout→NetworkError; ClientError/ServerError→map by HTTP status
// (4xx→Forbidden/NotFound, 2xx→OK, 5xx→InternalError); Done→OK.
func ToStatus(code Code, httpStatus int) status.Status {
	switch code {
	case NetworkError:
		return status.New(status.NetworkError, "codec: network error")
	case Timeout:
		return status.New(status.NetworkError, "codec: timeout")
	case Done, OK:
		return status.Ok()
	case ClientError, ServerError:
		return statusFromHTTPCode(httpStatus)
	default:
		return status.New(status.InternalError, "codec: unknown return code %d", code)
	}
}

func statusFromHTTPCode(code int) status.Status {
	switch {
	case code >= 200 && code < 300:
		return status.Ok()
	case code == 404:
		return status.New(status.NotFound, "http %d", code)
	case code >= 400 && code < 500:
		return status.New(status.Forbidden, "http %d", code)
	case code >= 500 && code < 600:
		return status.New(status.InternalError, "http %d", code)
	default:
		return status.New(status.InternalError, "http %d", code)
	}
}

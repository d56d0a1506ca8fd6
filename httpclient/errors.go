package httpclient

import (
	"net/http"

	"github.com/kroma-labs/transit-go/clienterr"
)

// WrapTransportError wraps a failed round trip of req in a
// *clienterr.TransportError classified by ClassifyError.
func WrapTransportError(req *http.Request, op string, err error) error {
	if err == nil {
		return nil
	}
	te := &clienterr.TransportError{
		Op:   op,
		Type: ClassifyError(err),
		Err:  err,
	}
	if req != nil && req.URL != nil {
		te.Host = req.URL.Host
	}
	return te
}

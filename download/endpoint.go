package download

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/lab5e/nRF9160-barebone-fota/tlv"
)

// Supported endpoint schemes.
const (
	SchemeCoAP  = "coap"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// ErrNotScheduled is returned when asked to build an endpoint from a decision
// that does not schedule an update.
var ErrNotScheduled = errors.New("no update scheduled")

// Endpoint locates a firmware image.
type Endpoint struct {
	Scheme string
	Host   string
	Port   uint16
	Path   string
}

// EndpointFromDecision builds the download endpoint for a scheduled update.
// An empty scheme selects coap.
func EndpointFromDecision(d tlv.Decision, scheme string) (Endpoint, error) {
	if !d.Scheduled {
		return Endpoint{}, ErrNotScheduled
	}
	if d.Host == "" {
		return Endpoint{}, errors.New("decision has no host")
	}
	if scheme == "" {
		scheme = SchemeCoAP
	}
	return Endpoint{
		Scheme: scheme,
		Host:   d.Host,
		Port:   d.Port,
		Path:   d.Path,
	}, nil
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

func (e Endpoint) String() string {
	path := e.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("%s://%s%s", e.Scheme, e.Address(), path)
}

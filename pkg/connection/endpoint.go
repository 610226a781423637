package connection

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const PushPath = "/api/ws"

// PushEndpoint derives the push-channel URL from the server base URL:
// http becomes ws, https becomes wss, and the path is replaced by /api/ws.
func PushEndpoint(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", errors.Wrapf(err, "parse server url %q", server)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Errorf("server url %q has no host", server)
	}
	u.Path = PushPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

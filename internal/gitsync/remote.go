package gitsync

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// AuthenticatedURL returns remote with username:token placed in the URL's
// userinfo. A missing scheme defaults to https. SSH and scp-style remotes are
// rejected; file:// remotes are returned without credentials.
func AuthenticatedURL(remote, username, token string) (string, error) {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsupportedRemote)
	}
	if strings.HasPrefix(remote, "git@") {
		return "", fmt.Errorf("%w: ssh remotes are not supported", ErrUnsupportedRemote)
	}
	if !strings.Contains(remote, "://") {
		remote = "https://" + remote
	}

	u, err := url.Parse(remote)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedRemote, err)
	}
	switch u.Scheme {
	case "https", "http":
	case "file":
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedRemote, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrUnsupportedRemote)
	}

	switch {
	case token != "":
		u.User = url.UserPassword(username, token)
	case username != "":
		u.User = url.User(username)
	}
	return u.String(), nil
}

var userinfoRe = regexp.MustCompile(`(://)[^/@\s]+@`)

// RedactURL masks the userinfo of every URL in s.
func RedactURL(s string) string {
	return userinfoRe.ReplaceAllString(s, "${1}***@")
}

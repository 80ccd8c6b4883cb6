package config

import (
	"net/url"
	"strconv"
	"strings"

	rcperr "rcpc/internal/errors"
)

// Scheme is the URL scheme of an RCP connection string.
const Scheme = "rcp"

// ConnectionString is a parsed server locator in one of two forms:
//
//	rcp://[user[:password]@]host[:port][/path]
//	[user[:password]@]host[:port][/path]
//
// Empty parts are left as zero values; an empty password is absent.
type ConnectionString struct {
	Username string
	Password string
	Host     string
	Port     int // 0 when not given
	Path     string
}

// ParseConnectionString parses s as a URL first and falls back to the
// SSH-style form.
func ParseConnectionString(s string) (*ConnectionString, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, rcperr.Connection("empty connection string")
	}
	if i := strings.Index(s, "://"); i >= 0 && !strings.EqualFold(s[:i], Scheme) {
		return nil, rcperr.Connection("unsupported scheme " + strconv.Quote(s[:i]))
	}

	if cs, err := parseURL(s); err == nil {
		return cs, nil
	}
	return parseSSHStyle(strings.TrimPrefix(s, Scheme+"://"))
}

func parseURL(s string) (*ConnectionString, error) {
	if !strings.HasPrefix(strings.ToLower(s), Scheme+"://") {
		s = Scheme + "://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, rcperr.Connection("invalid connection string format").WithCause(err)
	}
	if u.Hostname() == "" {
		return nil, rcperr.Connection("invalid host in connection string")
	}

	cs := &ConnectionString{Host: u.Hostname()}
	if p := u.Port(); p != "" {
		port, err := parsePort(p)
		if err != nil {
			return nil, err
		}
		cs.Port = port
	}
	if u.User != nil {
		cs.Username = u.User.Username()
		cs.Password, _ = u.User.Password()
	}
	if u.Path != "/" {
		cs.Path = u.Path
	}
	return cs, nil
}

func parseSSHStyle(s string) (*ConnectionString, error) {
	cs := &ConnectionString{}

	if i := strings.IndexByte(s, '/'); i >= 0 {
		cs.Path = s[i:]
		s = s[:i]
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		creds := s[:i]
		s = s[i+1:]
		if user, pass, ok := strings.Cut(creds, ":"); ok {
			cs.Username, cs.Password = user, pass
		} else {
			cs.Username = creds
		}
	}

	cs.Host = s
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		port, err := parsePort(s[i+1:])
		if err != nil {
			return nil, err
		}
		cs.Host, cs.Port = s[:i], port
	}
	if cs.Host == "" {
		return nil, rcperr.Connection("invalid host in connection string")
	}
	return cs, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, rcperr.Connection("invalid port format " + strconv.Quote(s))
	}
	return int(port), nil
}

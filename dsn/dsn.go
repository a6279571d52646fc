// Package dsn parses the connection string format used to describe a
// taosws server: driver[+protocol]://[user[:pass]@][addresses][/database][?params].
package dsn

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Error is the sentinel type for parse failures, one value per Kind below.
// Parse returns an unexported wrapper carrying a Kind that matches the
// corresponding sentinel under errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Kind classifies a parse failure.
type Kind int

const (
	KindParse Kind = iota
	KindInvalidDriver
	KindInvalidProtocol
	KindInvalidAddresses
	KindParseInt
)

var (
	ErrParse            = &Error{Kind: KindParse, Msg: "dsn: parse error"}
	ErrInvalidDriver    = &Error{Kind: KindInvalidDriver, Msg: "dsn: invalid driver"}
	ErrInvalidProtocol  = &Error{Kind: KindInvalidProtocol, Msg: "dsn: invalid protocol"}
	ErrInvalidAddresses = &Error{Kind: KindInvalidAddresses, Msg: "dsn: invalid addresses"}
	ErrParseInt         = &Error{Kind: KindParseInt, Msg: "dsn: invalid port"}
)

func parseErrf(kind Kind, sentinel *Error, format string, args ...any) error {
	return &wrappedError{kind: kind, sentinel: sentinel, msg: fmt.Sprintf(format, args...)}
}

type wrappedError struct {
	kind     Kind
	sentinel *Error
	msg      string
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Kind == e.kind
	}
	return false
}

// Address is a single server endpoint: either a host (with optional port)
// or a filesystem/unix-socket path. The three fields are mutually
// exclusive except for Host+Port, which may both be set.
type Address struct {
	Host *string
	Port *uint16
	Path *string
}

// NewAddress builds an Address from a host and port.
func NewAddress(host string, port uint16) Address {
	return Address{Host: &host, Port: &port}
}

// AddressFromHost builds an Address with only a host set.
func AddressFromHost(host string) Address {
	return Address{Host: &host}
}

// AddressFromPath builds an Address with only a socket/file path set.
func AddressFromPath(path string) Address {
	return Address{Path: &path}
}

// IsEmpty reports whether none of Host, Port, Path are set.
func (a Address) IsEmpty() bool {
	return a.Host == nil && a.Port == nil && a.Path == nil
}

// String renders the address the way it appears in a DSN.
func (a Address) String() string {
	switch {
	case a.Host != nil && a.Port == nil && a.Path == nil:
		return *a.Host
	case a.Host != nil && a.Port != nil && a.Path == nil:
		return fmt.Sprintf("%s:%d", *a.Host, *a.Port)
	case a.Host == nil && a.Port != nil && a.Path == nil:
		return fmt.Sprintf(":%d", *a.Port)
	case a.Host == nil && a.Port == nil && a.Path != nil:
		return url.PathEscape(*a.Path)
	case a.IsEmpty():
		return ""
	default:
		// host+path or port+path: not reachable through Parse, but render
		// something deterministic rather than panic.
		return fmt.Sprintf("%v:%v:%s", a.Host, a.Port, url.PathEscape(*a.Path))
	}
}

// ParseAddress parses a single address token, as used by the address list
// grammar. It never falls back to fragment handling — that only happens at
// the whole-DSN level in Parse.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, nil
	}
	if strings.Contains(s, "%") {
		decoded, err := url.PathUnescape(s)
		if err != nil {
			return Address{}, parseErrf(KindParse, ErrParse, "dsn: invalid percent-encoding in address %q: %v", s, err)
		}
		return Address{Path: &decoded}, nil
	}
	if idx := strings.LastIndexByte(s, ':'); idx >= 0 {
		hostPart, portPart := s[:idx], s[idx+1:]
		port, err := strconv.ParseUint(portPart, 10, 16)
		if err != nil {
			return Address{}, parseErrf(KindParseInt, ErrParseInt, "dsn: unable to parse port from %q: %v", s, err)
		}
		p := uint16(port)
		if hostPart == "" {
			return Address{Port: &p}, nil
		}
		if !validHostToken(hostPart) {
			return Address{}, parseErrf(KindInvalidAddresses, ErrInvalidAddresses, "dsn: invalid host %q", hostPart)
		}
		h := hostPart
		return Address{Host: &h, Port: &p}, nil
	}
	if !validHostToken(s) {
		return Address{}, parseErrf(KindInvalidAddresses, ErrInvalidAddresses, "dsn: invalid host %q", s)
	}
	h := s
	return Address{Host: &h}, nil
}

func validHostToken(s string) bool {
	if s == "" || s[0] == '.' {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// Dsn is a parsed connection string.
type Dsn struct {
	Driver    string
	Protocol  *string
	Username  *string
	Password  *string
	Addresses []Address
	Fragment  *string
	Database  *string
	Params    map[string]string
}

// Parse parses a DSN string.
func Parse(s string) (*Dsn, error) {
	return parse(s)
}

// String renders the Dsn back into canonical DSN form. Protocol-in-parens
// input ("driver://user@proto(addr1,addr2)/db") always round-trips as
// "driver+proto://user@addr1,addr2/db" — the canonical form folds the
// protocol into the scheme.
func (d *Dsn) String() string {
	var b strings.Builder
	b.WriteString(d.Driver)
	if d.Protocol != nil {
		b.WriteByte('+')
		b.WriteString(*d.Protocol)
	}
	b.WriteString("://")
	switch {
	case d.Username != nil && d.Password != nil:
		fmt.Fprintf(&b, "%s:%s@", *d.Username, *d.Password)
	case d.Username != nil:
		fmt.Fprintf(&b, "%s@", *d.Username)
	case d.Password != nil:
		fmt.Fprintf(&b, ":%s@", *d.Password)
	}
	if len(d.Addresses) > 0 {
		parts := make([]string, len(d.Addresses))
		for i, a := range d.Addresses {
			parts[i] = a.String()
		}
		b.WriteString(strings.Join(parts, ","))
	}
	if d.Database != nil {
		b.WriteByte('/')
		b.WriteString(*d.Database)
	}
	if d.Fragment != nil {
		b.WriteString(*d.Fragment)
	}
	if len(d.Params) > 0 {
		keys := make([]string, 0, len(d.Params))
		for k := range d.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%s", k, d.Params[k])
		}
		b.WriteByte('?')
		b.WriteString(strings.Join(pairs, "&"))
	}
	return b.String()
}

// SplitParams returns a copy of the Dsn with Params cleared, and the
// removed params map.
func (d *Dsn) SplitParams() (*Dsn, map[string]string) {
	params := d.Params
	clone := *d
	clone.Params = nil
	return &clone, params
}

func parse(s string) (*Dsn, error) {
	rest := s

	schemeIdx := strings.Index(rest, "://")
	if schemeIdx < 0 {
		return nil, parseErrf(KindParse, ErrParse, "dsn: missing scheme separator in %q", s)
	}
	scheme := rest[:schemeIdx]
	rest = rest[schemeIdx+3:]

	d := &Dsn{Params: map[string]string{}}
	if plus := strings.IndexByte(scheme, '+'); plus >= 0 {
		d.Driver = scheme[:plus]
		proto := scheme[plus+1:]
		d.Protocol = &proto
	} else {
		d.Driver = scheme
	}
	if d.Driver == "" {
		return nil, parseErrf(KindInvalidDriver, ErrInvalidDriver, "dsn: empty driver in %q", s)
	}

	// Split off query params first: everything after the first unescaped '?'.
	var query string
	if qIdx := strings.IndexByte(rest, '?'); qIdx >= 0 {
		query = rest[qIdx+1:]
		rest = rest[:qIdx]
	}

	// userinfo: "user[:pass]@" up to the first unescaped '@'.
	if at := strings.IndexByte(rest, '@'); at >= 0 {
		userinfo := rest[:at]
		rest = rest[at+1:]
		if colon := strings.IndexByte(userinfo, ':'); colon >= 0 {
			u, p := userinfo[:colon], userinfo[colon+1:]
			if u != "" {
				d.Username = &u
			}
			if p != "" {
				d.Password = &p
			}
		} else if userinfo != "" {
			d.Username = &userinfo
		}
	}

	if err := parseBody(d, rest); err != nil {
		return nil, err
	}

	if query != "" {
		for _, kv := range strings.Split(query, "&") {
			if kv == "" {
				continue
			}
			if eq := strings.IndexByte(kv, '='); eq >= 0 {
				d.Params[kv[:eq]] = kv[eq+1:]
			} else {
				d.Params[kv] = ""
			}
		}
	}

	return d, nil
}

// parseBody handles everything between userinfo and the query string: the
// optional "protoName(addr,addr)" form, the optional plain address list,
// and the optional "/database" suffix — falling back to Fragment when the
// address-list grammar can't account for the text.
func parseBody(d *Dsn, body string) error {
	if body == "" {
		return nil
	}

	if open := strings.IndexByte(body, '('); open >= 0 && strings.HasSuffix(body, ")") {
		proto := body[:open]
		if proto != "" && validHostToken(proto) {
			inner := body[open+1 : len(body)-1]
			addrs, err := parseAddressList(inner)
			if err == nil {
				d.Protocol = &proto
				d.Addresses = addrs
				return nil
			}
		}
	}
	if open := strings.IndexByte(body, '('); open >= 0 {
		if close := strings.IndexByte(body[open:], ')'); close >= 0 {
			proto := body[:open]
			if proto != "" && validHostToken(proto) {
				closeAbs := open + close
				inner := body[open+1 : closeAbs]
				addrs, err := parseAddressList(inner)
				if err == nil {
					d.Protocol = &proto
					d.Addresses = addrs
					rest := body[closeAbs+1:]
					return parseDatabaseSuffix(d, rest, body)
				}
			}
		}
	}

	// Plain address-list form: split at the first literal '/'.
	slash := strings.IndexByte(body, '/')
	var addrPart, dbPart string
	hasSlash := slash >= 0
	if hasSlash {
		addrPart, dbPart = body[:slash], body[slash+1:]
	} else {
		addrPart = body
	}

	addrs, err := parseAddressList(addrPart)
	if err != nil {
		fragment := body
		d.Fragment = &fragment
		d.Addresses = nil
		d.Database = nil
		return nil
	}
	if hasSlash && strings.Contains(dbPart, "/") {
		fragment := body
		d.Fragment = &fragment
		d.Addresses = nil
		d.Database = nil
		return nil
	}

	d.Addresses = addrs
	if hasSlash && dbPart != "" {
		db := dbPart
		d.Database = &db
	}
	return nil
}

func parseDatabaseSuffix(d *Dsn, rest, wholeBody string) error {
	if rest == "" {
		return nil
	}
	if rest[0] != '/' {
		fragment := wholeBody
		d.Fragment = &fragment
		d.Database = nil
		return nil
	}
	dbPart := rest[1:]
	if strings.Contains(dbPart, "/") {
		fragment := wholeBody
		d.Fragment = &fragment
		d.Database = nil
		return nil
	}
	if dbPart != "" {
		db := dbPart
		d.Database = &db
	}
	return nil
}

func parseAddressList(s string) ([]Address, error) {
	if s == "" {
		return nil, nil
	}
	tokens := strings.Split(s, ",")
	addrs := make([]Address, 0, len(tokens))
	for _, tok := range tokens {
		a, err := ParseAddress(tok)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

// Is reports whether err is a dsn.Error of the given kind, for use with
// errors.Is(err, dsn.ErrInvalidDriver) etc.
func Is(err error, sentinel *Error) bool {
	return errors.Is(err, sentinel)
}

// Package cookies reads the browser correlation cookies set by the pixel.
package cookies

import "net/http"

const (
	// ClickID holds the ad click identifier.
	ClickID = "_fbc"
	// BrowserID holds the pixel's browser identifier.
	BrowserID = "_fbp"
)

// Reader looks a cookie up by name. A missing cookie reports ok=false;
// lookups never fail.
type Reader interface {
	Get(name string) (value string, ok bool)
}

// Jar is a Reader over a fixed set of cookies.
type Jar map[string]string

// Get implements Reader.
func (j Jar) Get(name string) (string, bool) {
	v, ok := j[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FromRequest captures the request's cookies.
func FromRequest(r *http.Request) Jar {
	jar := Jar{}
	for _, c := range r.Cookies() {
		if _, seen := jar[c.Name]; !seen {
			jar[c.Name] = c.Value
		}
	}
	return jar
}

// FromHeader parses a raw Cookie header (document.cookie format).
// Malformed pairs are skipped.
func FromHeader(raw string) Jar {
	if raw == "" {
		return Jar{}
	}
	r := &http.Request{Header: http.Header{"Cookie": {raw}}}
	return FromRequest(r)
}

// Merge returns a Jar with b's values overriding a's.
func Merge(a, b Jar) Jar {
	out := make(Jar, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Empty is a Reader with no cookies.
var Empty Reader = Jar{}

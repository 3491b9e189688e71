package httpproto

import "time"

// dateLayouts are tried in order against If-Modified-Since values: RFC
// 1123 (the format this server itself emits), RFC 850, and asctime, the
// three formats RFC 7232 requires a server to accept on input even
// though it should only ever produce RFC 1123 on output.
var dateLayouts = []string{
	time.RFC1123,
	"Monday, 02-Jan-06 15:04:05 MST",
	"Mon Jan  2 15:04:05 2006",
}

// ParseHTTPDate tries each accepted input format in turn.
func ParseHTTPDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// rfc1123GMT is time.RFC1123 with a literal "GMT" zone instead of the
// zone-abbreviation verb, since Format renders UTC's abbreviation as
// "UTC" rather than "GMT" and every HTTP date on the wire must say GMT.
const rfc1123GMT = "Mon, 02 Jan 2006 15:04:05 GMT"

// FormatHTTPDate renders t as RFC 1123 in GMT, the only format this
// server emits on the wire (Last-Modified, Date).
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(rfc1123GMT)
}

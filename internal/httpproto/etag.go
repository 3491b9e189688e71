package httpproto

import (
	"fmt"
	"strconv"
	"strings"
)

// MakeETag derives the quoted entity tag from a file's inode, size, and
// mtime (unix seconds), each rendered as lowercase hex and joined by
// hyphens, matching the wire format the testable scenarios pin down
// exactly (e.g. inode=0x10, size=1, mtime=0x20 -> `"10-1-20"`).
func MakeETag(inode, size, mtime uint64) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x-%x-%x", inode, size, mtime))
}

// stripETag removes a leading weak prefix and surrounding quotes so two
// tags can be compared on their opaque value alone.
func stripETag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.Trim(tag, `"`)
	return tag
}

// IfNoneMatchSatisfied reports whether the If-None-Match header value
// matches entityTag. The header is a comma-separated list of tokens,
// each optionally weak-prefixed and quoted, or a bare `*`.
func IfNoneMatchSatisfied(header, entityTag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := stripETag(entityTag)
	for _, tok := range strings.Split(header, ",") {
		if stripETag(tok) == want {
			return true
		}
	}
	return false
}

// ParseHexUint parses one hex component of an ETag, the inverse of the
// formatting MakeETag applies. Neither the handler nor the tests call it.
func ParseHexUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

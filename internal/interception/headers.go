package interception

import (
	"encoding/base64"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// stringHeaders flattens a CDP network.Headers map (map[string]interface{})
// into plain strings, matching the conversion the teacher's network.go does
// inline in handleRequestPaused.
func stringHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for name, v := range h {
		if s, ok := v.(string); ok {
			out[name] = s
		}
	}
	return out
}

func toHeaderEntries(m map[string]string) []*fetch.HeaderEntry {
	out := make([]*fetch.HeaderEntry, 0, len(m))
	for k, v := range m {
		out = append(out, &fetch.HeaderEntry{Name: k, Value: v})
	}
	return out
}

func encodeBody(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

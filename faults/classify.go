package faults

import (
	"context"
	"errors"
	"net"
	"strings"
)

// rule is one content-sniffing fallback. Rules are evaluated top-down
// and the first match wins, so more specific keywords come first.
type rule struct {
	keywords []string
	kind     Kind
}

var rules = []rule{
	{[]string{"rate limit", "ratelimit", "too many requests", "429"}, KindRateLimit},
	{[]string{"timeout", "timed out", "deadline exceeded"}, KindTimeout},
	{[]string{"unauthorized", "forbidden", "permission", "not allowed"}, KindPermission},
	{[]string{"invalid", "malformed", "validation", "unsupported"}, KindValidation},
	{[]string{"connection", "network", "dial", "dns", "no such host", "refused", "reset by peer", "broken pipe"}, KindNetwork},
	{[]string{"cache"}, KindCache},
	{[]string{"status code", "internal server error", "bad gateway", "service unavailable", "upstream", "not found"}, KindAPI},
}

// Classify maps an untyped error onto the taxonomy. Typed checks run
// first; message sniffing is the best-effort fallback for origins that
// don't produce typed errors.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(msg, kw) {
				return r.kind
			}
		}
	}

	return KindUnknown
}

package geocoding

import (
	"net/url"
	"strings"
	"time"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
)

// DefaultTimeout bounds every outbound call when the config leaves it unset.
const DefaultTimeout = 12 * time.Second

// MinQueryLength is the shortest query sent to the suggest endpoint.
const MinQueryLength = 2

// Config holds everything the client needs. There is no package-level client state.
type Config struct {
	BaseURL      string
	RelayURL     string
	Timeout      time.Duration
	CountryCodes string
	Retry        RetryPolicy
}

// RetryPolicy decides when a failed call is repeated through the relay.
type RetryPolicy struct {
	MaxAttempts int
	RetryOn     []failure.Kind
}

// DefaultRetryPolicy allows a single relay retry when the service could not
// be reached or throttled the request.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 1,
		RetryOn:     []failure.Kind{failure.KindNetworkUnreachable, failure.KindRateLimited},
	}
}

// NoRetry disables relay retries.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// Allows reports whether another attempt may follow the given number of
// retries already made for a failure of the given kind.
func (p RetryPolicy) Allows(retries int, kind failure.Kind) bool {
	if retries >= p.MaxAttempts {
		return false
	}
	for _, k := range p.RetryOn {
		if k == kind {
			return true
		}
	}
	return false
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// relayURL routes target through the relay prefix. A prefix that ends with a
// url= parameter gets the escaped absolute URL; any other prefix gets the
// host and path appended.
func relayURL(prefix, target string) string {
	if prefix == "" {
		return ""
	}
	if strings.Contains(prefix, "url=") {
		return prefix + url.QueryEscape(target)
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(target, "/")
	}
	rest := u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		rest += "?" + u.RawQuery
	}
	return strings.TrimRight(prefix, "/") + "/" + rest
}

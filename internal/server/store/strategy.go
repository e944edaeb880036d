package store

import (
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"
)

// DefaultTimeout bounds a single strategy attempt when Strategy.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Strategy is one named connection configuration. Params override (or add)
// connection string parameters for this attempt only.
type Strategy struct {
	Name    string
	Params  map[string]string
	Timeout time.Duration
}

func (s Strategy) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

// DefaultStrategies returns the PostgreSQL ladder, strongest transport first.
func DefaultStrategies(timeout time.Duration) []Strategy {
	return []Strategy{
		{Name: "verified TLS", Params: map[string]string{"sslmode": "verify-full"}, Timeout: timeout},
		{Name: "TLS without certificate verification", Params: map[string]string{"sslmode": "require"}, Timeout: timeout},
		{Name: "opportunistic TLS", Params: map[string]string{"sslmode": "prefer"}, Timeout: timeout},
		{Name: "plaintext", Params: map[string]string{"sslmode": "disable"}, Timeout: timeout},
	}
}

var errEmptyURI = errors.New("database uri is empty")

// Apply returns uri with the strategy parameters merged in. Both URL
// ("postgres://...") and keyword/value ("host=... dbname=...") forms are
// accepted.
func (s Strategy) Apply(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", errEmptyURI
	}
	if len(s.Params) == 0 {
		return uri, nil
	}

	if strings.HasPrefix(uri, "postgres://") || strings.HasPrefix(uri, "postgresql://") {
		u, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		q := u.Query()
		for k, v := range s.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	// keyword/value form: later keys win
	var b strings.Builder
	b.WriteString(uri)
	for _, k := range sortedKeys(s.Params) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteValue(s.Params[k]))
	}
	return b.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

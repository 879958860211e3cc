package rpcclient

import (
	"errors"
	"fmt"
	"strings"
)

// URLSchemePreference selects which of an RPC's URLs is dialed.
type URLSchemePreference int

const (
	URLSchemePreferenceNone URLSchemePreference = iota
	URLSchemePreferenceWS
	URLSchemePreferenceHTTP
)

// URLSchemePreferenceFromString converts "ws", "http" or "" into a URLSchemePreference.
func URLSchemePreferenceFromString(s string) (URLSchemePreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return URLSchemePreferenceNone, nil
	case "ws", "wss":
		return URLSchemePreferenceWS, nil
	case "http", "https":
		return URLSchemePreferenceHTTP, nil
	default:
		return URLSchemePreferenceNone, fmt.Errorf("unknown url scheme preference %q", s)
	}
}

// RPC represents a single RPC endpoint.
type RPC struct {
	Name               string
	WSURL              string
	HTTPURL            string
	PreferredURLScheme URLSchemePreference
}

// ToEndpoint returns the URL to dial. Without a preference, HTTP is used when set since HTLC
// calls are request/response and never subscribe.
func (r RPC) ToEndpoint() (string, error) {
	switch r.PreferredURLScheme {
	case URLSchemePreferenceWS:
		if r.WSURL == "" {
			return "", fmt.Errorf("rpc %q prefers ws but has no ws url", r.Name)
		}

		return r.WSURL, nil
	case URLSchemePreferenceHTTP:
		if r.HTTPURL == "" {
			return "", fmt.Errorf("rpc %q prefers http but has no http url", r.Name)
		}

		return r.HTTPURL, nil
	default:
		if r.HTTPURL != "" {
			return r.HTTPURL, nil
		}
		if r.WSURL != "" {
			return r.WSURL, nil
		}

		return "", errors.New("rpc has no url")
	}
}

// RPCConfig is the set of RPCs serving one chain.
type RPCConfig struct {
	ChainSelector uint64
	RPCs          []RPC
}

package main

import (
	"errors"
	"strconv"
	"strings"

	core "github.com/ligun0805/bundle-sponsor/internal/bundlecore"
)

// friendlySimErr normalizes common relay errors for readable CLI.
func friendlySimErr(s string) string {
	ls := strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(ls, "400 bad request") {
		if i := strings.Index(ls, "{"); i > 0 {
			ls = ls[i:]
		}
	}
	switch {
	case strings.Contains(ls, "unsupported: eth_callbundle"), strings.Contains(ls, "invalid method"),
		strings.Contains(ls, "method not found"), strings.Contains(ls, "method not available"):
		return "simulation not supported by relay"
	case strings.Contains(ls, "insufficient funds for gas"):
		return "insufficient ETH for simulation"
	case strings.Contains(ls, "invalid character '<'"):
		return "non-JSON/HTML response (proxy/cf?)"
	case strings.Contains(ls, "dial tcp"), strings.Contains(ls, "lookup "):
		return "network/DNS error"
	case strings.Contains(ls, "no-profit"):
		return "bundle does not pay the block builder (coinbase diff is zero)"
	}
	return s
}

// friendlyErr renders loop errors with the relay noise stripped.
func friendlyErr(err error) string {
	if err == nil {
		return "unknown error"
	}
	var simErr *core.SimulationError
	if errors.As(err, &simErr) {
		return "simulation at block " + strconv.FormatUint(simErr.Target, 10) + ": " + friendlySimErr(simErr.Outcome.String())
	}
	var subErr *core.SubmissionError
	if errors.As(err, &subErr) {
		return "relay " + subErr.Relay + " rejected the bundle: " + friendlySimErr(subErr.Reason)
	}
	return friendlySimErr(err.Error())
}

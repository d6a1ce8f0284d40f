/*
Package health provides a small, pluggable health-check abstraction used
by the RPC control endpoint's dashboard.

# Checker

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

A Result reports whether the check passed, a human-readable message, and
timing. TCPChecker is the one implementation in use: it dials an address
and reports whether the connection succeeds.

# Usage

	checker := health.NewTCPChecker(listener.Addr().String())
	result := checker.Check(ctx)
	if !result.Healthy {
		http.Error(w, result.Message, http.StatusServiceUnavailable)
	}

# Integration Points

pkg/rpcapi's /readyz handler uses TCPChecker to confirm the RPC control
listener is still accepting connections before reporting ready, rather
than trusting that Listen succeeded once at startup.
*/
package health

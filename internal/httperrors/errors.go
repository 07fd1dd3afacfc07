// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns failures of the query client into messages a
// user can act on.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Cause is the detected class of a network failure.
type Cause int

const (
	Generic Cause = iota
	Timeout
	DNS
	ConnectionRefused
	TLS
	ServerError
)

// Classify detects why a request to the server failed.
func Classify(err error) Cause {
	switch {
	case err == nil:
		return Generic
	case isTimeoutError(err):
		return Timeout
	case isDNSError(err):
		return DNS
	case isConnectionRefusedError(err):
		return ConnectionRefused
	case isSSLError(err):
		return TLS
	case isServerError(err.Error()):
		return ServerError
	default:
		return Generic
	}
}

// FormatNetworkError prints a user-friendly explanation of err, which
// happened while doing what context describes against server, and returns
// err wrapped for the caller.
func FormatNetworkError(err error, context, server string) error {
	if err == nil {
		return nil
	}
	host := ExtractHostFromURL(server)
	switch Classify(err) {
	case Timeout:
		pterm.Printf("⏱️  Connection timeout while %s\n", context)
		pterm.Println()
		pterm.Printf("%s took too long to respond. Large results stream slowly over slow links;\n", host)
		pterm.Println("try a narrower query or a limit.")
	case DNS:
		pterm.Printf("🌐 Cannot resolve %s while %s\n", host, context)
		pterm.Println()
		pterm.Println("Check the --server address.")
	case ConnectionRefused:
		pterm.Printf("🚫 Connection refused while %s\n", context)
		pterm.Println()
		pterm.Printf("Nothing is listening on %s. Start the server with: jsonquery serve\n", host)
	case TLS:
		pterm.Printf("🔒 Secure connection failed while %s\n", context)
		pterm.Println()
		pterm.Println("The server speaks plain HTTP; use an http:// address.")
	case ServerError:
		pterm.Printf("⚠️  Server error while %s\n", context)
		pterm.Println()
		pterm.Println("See the server log for details.")
	default:
		pterm.Printf("❌ Cannot reach %s while %s\n", host, context)
		pterm.Debug.Printf("Technical details: %s\n", abbreviate(err.Error(), 100))
	}
	pterm.Println()
	return fmt.Errorf("network error: %w", err)
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

// isServerError checks for 5xx responses.
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, s := range []string{"500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// ExtractHostFromURL extracts the host from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}

// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// URLValidationOptions configures ValidateURL
type URLValidationOptions struct {
	// AllowPrivateIPs permits loopback and private targets (local test servers)
	AllowPrivateIPs bool
	// AllowedSchemes defaults to https and http
	AllowedSchemes []string
	// AllowedHostSuffixes restricts hosts, e.g. [".clerk.com"]
	AllowedHostSuffixes []string
}

// DefaultURLValidationOptions returns the options used for upstream API URLs
func DefaultURLValidationOptions() URLValidationOptions {
	return URLValidationOptions{
		AllowedSchemes: []string{"https", "http"},
	}
}

// lookupIP is replaced in tests
var lookupIP = net.LookupIP

// ValidateURL checks an upstream base URL before any credential is sent to it.
// Hostnames are resolved so a public name pointing at an internal address is
// rejected unless AllowPrivateIPs is set.
func ValidateURL(rawURL string, opts URLValidationOptions) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	schemes := opts.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"https", "http"}
	}
	scheme := strings.ToLower(parsed.Scheme)
	allowed := false
	for _, s := range schemes {
		if scheme == strings.ToLower(s) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("URL scheme %q is not allowed; permitted schemes: %v", parsed.Scheme, schemes)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("URL must contain a hostname")
	}

	if len(opts.AllowedHostSuffixes) > 0 {
		matched := false
		for _, suffix := range opts.AllowedHostSuffixes {
			if strings.HasSuffix(host, strings.ToLower(suffix)) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Errorf("hostname %q is not in the allowed list", host)
		}
	}

	if opts.AllowPrivateIPs {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("connection to private/internal IP %s is not allowed", ip)
		}
		return nil
	}

	ips, err := lookupIP(host)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname %q: %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("connection to private/internal IP %s is not allowed (hostname: %s)", ip, host)
		}
	}
	return nil
}

var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// isPrivateIP reports loopback, link-local, private, unspecified, CGNAT and
// multicast addresses.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 0 || ip4[0] >= 240 {
			return true
		}
		if cgnat.Contains(ip4) {
			return true
		}
	}
	return false
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// SanitizeLogString makes upstream-provided text safe to embed in a log line
// or diagnostic: control line breaks are escaped, ANSI sequences removed and
// the length capped.
func SanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = ansiEscape.ReplaceAllString(s, "")
	const maxLogLength = 500
	if len(s) > maxLogLength {
		s = s[:maxLogLength] + "...[truncated]"
	}
	return s
}

var sqlIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var reservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"CREATE": true, "ALTER": true, "TABLE": true, "DATABASE": true, "INDEX": true,
	"FROM": true, "WHERE": true, "AND": true, "OR": true, "NOT": true, "NULL": true,
	"TRUE": true, "FALSE": true, "JOIN": true, "ON": true, "AS": true, "ORDER": true,
	"BY": true, "GROUP": true, "HAVING": true, "UNION": true, "ALL": true,
	"LIMIT": true, "OFFSET": true, "INTO": true, "VALUES": true, "SET": true,
	"GRANT": true, "REVOKE": true, "TRUNCATE": true, "CASCADE": true,
}

// ValidateSQLIdentifier checks a table or column name that will be
// interpolated into DDL/DML (sink tables, keyspaces, catalog names).
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !sqlIdentifier.MatchString(identifier) {
		return fmt.Errorf("invalid SQL identifier: %q", identifier)
	}
	if reservedWords[strings.ToUpper(identifier)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", identifier)
	}
	return nil
}

// ValidateFilePath rejects traversal and system paths for file sinks
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null bytes not allowed in path")
	}
	for _, segment := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return fmt.Errorf("path traversal not allowed: %q", path)
		}
	}
	lower := strings.ToLower(path)
	for _, dangerous := range []string{"/etc/", "/proc/", "/sys/", "/dev/"} {
		if strings.HasPrefix(lower, dangerous) {
			return fmt.Errorf("access to system path not allowed: %q", path)
		}
	}
	return nil
}

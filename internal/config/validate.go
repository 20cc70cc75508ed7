package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validCodecs = map[string]bool{
	"h264": true,
	"h265": true,
}

var validEnvironments = map[string]bool{
	"production": true,
	"staging":    true,
	"dev":        true,
}

var validConnectionMethods = map[string]bool{
	"stun":   true,
	"direct": true,
}

// ValidationResult separates validation failures that must abort startup
// (Fatals) from ones that were auto-corrected in place and only need
// surfacing to the operator (Warnings).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings, for callers that just want
// everything that was wrong regardless of severity.
func (r *ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

func (r *ValidationResult) fatal(err error) { r.Fatals = append(r.Fatals, err) }
func (r *ValidationResult) warn(err error)  { r.Warnings = append(r.Warnings, err) }

func validatePrivateKey(hexKey string) error {
	if hexKey == "" {
		return fmt.Errorf("private_key is required")
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return fmt.Errorf("private_key is not valid hex: %w", err)
	}
	if len(raw) != 16 {
		return fmt.Errorf("private_key must decode to 16 bytes, got %d", len(raw))
	}
	return nil
}

func validateLogging(logLevel, logFormat string, r *ValidationResult) {
	if logLevel != "" && !validLogLevels[strings.ToLower(logLevel)] {
		r.warn(fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", logLevel))
	}
	if logFormat != "" && logFormat != "text" && logFormat != "json" {
		r.warn(fmt.Errorf("log_format %q is not valid (use text or json)", logFormat))
	}
}

// ValidateTiered checks a ServerConfig, clamping out-of-range values to a
// safe default and recording the clamp as a warning, while rejecting
// structurally invalid values (a bad key, a non-HTTP webserver URL) as
// fatal.
func (c *ServerConfig) ValidateTiered() ValidationResult {
	var r ValidationResult

	if err := validatePrivateKey(c.PrivateKeyHex); err != nil {
		r.fatal(err)
	}

	if c.WebserverURL != "" {
		u, err := url.Parse(c.WebserverURL)
		if err != nil {
			r.fatal(fmt.Errorf("webserver %q is not a valid URL: %w", c.WebserverURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			r.fatal(fmt.Errorf("webserver scheme must be http or https, got %q", u.Scheme))
		}
	}

	if c.DiscoveryPort == 0 {
		r.warn(fmt.Errorf("discovery_port is 0, using default %d", DefaultDiscoveryPort))
		c.DiscoveryPort = DefaultDiscoveryPort
	}

	if c.MaxClients < 1 {
		r.warn(fmt.Errorf("max_clients %d is below minimum 1, clamping", c.MaxClients))
		c.MaxClients = 1
	} else if c.MaxClients > 64 {
		r.warn(fmt.Errorf("max_clients %d exceeds maximum 64, clamping", c.MaxClients))
		c.MaxClients = 64
	}

	validateLogging(c.LogLevel, c.LogFormat, &r)
	return r
}

// ValidateTiered checks a ClientConfig with the same fatal/warning split as
// ServerConfig.ValidateTiered.
func (c *ClientConfig) ValidateTiered() ValidationResult {
	var r ValidationResult

	if err := validatePrivateKey(c.PrivateKeyHex); err != nil {
		r.fatal(err)
	}

	if c.Codec != "" && !validCodecs[strings.ToLower(c.Codec)] {
		r.fatal(fmt.Errorf("codec %q must be h264 or h265", c.Codec))
	}
	if c.Environment != "" && !validEnvironments[strings.ToLower(c.Environment)] {
		r.fatal(fmt.Errorf("environment %q must be production, staging, or dev", c.Environment))
	}
	if c.ConnectionMethod != "" && !validConnectionMethods[strings.ToLower(c.ConnectionMethod)] {
		r.fatal(fmt.Errorf("connection_method %q must be STUN or DIRECT", c.ConnectionMethod))
	}
	if c.Ports != "" {
		if _, err := ParsePortMappings(c.Ports); err != nil {
			r.fatal(fmt.Errorf("ports %q is malformed: %w", c.Ports, err))
		}
	}
	if c.User != "" {
		for _, rn := range c.User {
			if unicode.IsControl(rn) {
				r.fatal(fmt.Errorf("user contains control characters"))
				break
			}
		}
	}

	if c.Width <= 0 {
		r.warn(fmt.Errorf("width %d is invalid, using default 1920", c.Width))
		c.Width = 1920
	}
	if c.Height <= 0 {
		r.warn(fmt.Errorf("height %d is invalid, using default 1080", c.Height))
		c.Height = 1080
	}
	if c.Bitrate < 250_000 {
		r.warn(fmt.Errorf("bitrate %d is below minimum 250000, clamping", c.Bitrate))
		c.Bitrate = 250_000
	} else if c.Bitrate > 50_000_000 {
		r.warn(fmt.Errorf("bitrate %d exceeds maximum 50000000, clamping", c.Bitrate))
		c.Bitrate = 50_000_000
	}

	validateLogging(c.LogLevel, c.LogFormat, &r)
	return r
}

// ParsePortMappings parses the "N:M[.N:M...]" --ports flag format into a
// map from original port to mapped port.
func ParsePortMappings(s string) (map[uint16]uint16, error) {
	out := make(map[uint16]uint16)
	for _, pair := range strings.Split(s, ".") {
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("expected N:M, got %q", pair)
		}
		var from, to uint16
		if _, err := fmt.Sscanf(parts[0], "%d", &from); err != nil {
			return nil, fmt.Errorf("invalid source port %q: %w", parts[0], err)
		}
		if _, err := fmt.Sscanf(parts[1], "%d", &to); err != nil {
			return nil, fmt.Errorf("invalid mapped port %q: %w", parts[1], err)
		}
		out[from] = to
	}
	return out, nil
}

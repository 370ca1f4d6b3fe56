package normalize

import (
	"net"
	"regexp"
	"strings"
)

var transportAddrRegex = regexp.MustCompile(`^(?:[a-z]+://)?(?:\[([0-9a-fA-F:.]+)\]|(\d{1,3}(?:\.\d{1,3}){3})|([0-9a-fA-F:.]+))(?::\d+)?$`)

// cleanTransportAddress strips scheme/brackets/port from forms like
// "udp://1.2.3.4:52502" or "[::1]:5140" down to a bare IP (§4.A).
// Idempotent: cleanTransportAddress(cleanTransportAddress(x)) == cleanTransportAddress(x).
func cleanTransportAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if m := transportAddrRegex.FindStringSubmatch(s); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return g
			}
		}
	}
	return s
}

var (
	timestampLikeRegex = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$|^\d{4}-\d{2}-\d{2}T`)
	bareNumberRegex    = regexp.MustCompile(`^\d+$`)
	punctuationOnly    = regexp.MustCompile(`^[[:punct:]]+$`)
)

// looksLikeMisalignedField rejects host values that are clearly parser
// misalignment artifacts: timestamps, bare numbers, or punctuation-only
// strings (§4.A).
func looksLikeMisalignedField(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	return timestampLikeRegex.MatchString(s) || bareNumberRegex.MatchString(s) || punctuationOnly.MatchString(s)
}

var dockerNATRanges = []*net.IPNet{
	mustCIDR("172.16.0.0/12"),
	mustCIDR("127.0.0.1/32"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

func isDockerNAT(ip string) bool {
	if ip == "::1" {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range dockerNATRanges {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func isRealIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// resolveHostAndSourceIP implements §4.A's host/source_ip resolution,
// including the Docker-NAT override and the misaligned-field fallback.
func resolveHostAndSourceIP(raw map[string]interface{}, peerAddr string) (host, sourceIP string) {
	for _, key := range []string{"source_ip", "fromhost_ip", "ip", "client_ip", "src_ip"} {
		if v, ok := stringField(raw, key); ok {
			sourceIP = cleanTransportAddress(v)
			break
		}
	}
	if h, ok := stringField(raw, "host"); ok {
		host = h
	}

	if host == "" {
		host = sourceIP
	}
	if sourceIP == "" {
		sourceIP = cleanTransportAddress(peerAddr)
	}

	// Docker-NAT override: prefer a real-looking host IP over an obviously
	// containerized source_ip.
	if sourceIP != "" && isDockerNAT(sourceIP) && host != "" && isRealIPv4(host) && !isDockerNAT(host) {
		sourceIP = host
	}

	if looksLikeMisalignedField(host) {
		host = sourceIP
	}

	return host, sourceIP
}

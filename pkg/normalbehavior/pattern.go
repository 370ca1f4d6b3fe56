// Package normalbehavior generates, matches, and retroactively applies
// normal-behavior templates that suppress known-routine log lines (§4.E).
package normalbehavior

import (
	"regexp"
	"strings"
)

// replacementRule is one ordered token-class substitution. Each rule
// replaces detected spans with a targeted regex fragment, never a bare
// `.*` wildcard (§4.E).
type replacementRule struct {
	name    string
	match   *regexp.Regexp
	pattern string
}

// orderedRules is evaluated top to bottom; earlier rules claim their spans
// before later, broader rules run, matching the teacher's ordered-table
// idiom used throughout its pattern resolution.
var orderedRules = buildOrderedRules()

func buildOrderedRules() []replacementRule {
	mk := func(name, pattern, generated string) replacementRule {
		return replacementRule{name: name, match: regexp.MustCompile(pattern), pattern: generated}
	}

	return []replacementRule{
		mk("uuid", `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
			`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),
		mk("mac_colon", `(?:[0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}`, `(?:[0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}`),
		mk("mac_dash", `(?:[0-9a-fA-F]{2}-){5}[0-9a-fA-F]{2}`, `(?:[0-9a-fA-F]{2}-){5}[0-9a-fA-F]{2}`),
		mk("mac_dot", `(?:[0-9a-fA-F]{4}\.){2}[0-9a-fA-F]{4}`, `(?:[0-9a-fA-F]{4}\.){2}[0-9a-fA-F]{4}`),
		mk("ipv4_cidr", `\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?:/\d{1,2})?`,
			`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(?:/\d{1,2})?`),
		mk("ipv6", `(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}`, `(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}`),
		mk("interface_name",
			`(?i)\b(?:GigabitEthernet|TenGigabitEthernet|FastEthernet|Ethernet|Serial|ge|xe|et)[\d/.:]+`,
			`(?i:GigabitEthernet|TenGigabitEthernet|FastEthernet|Ethernet|Serial|ge|xe|et)[\d/.:]+`),
		mk("port_channel_vlan_loopback", `(?i)\b(?:Port-channel|Vlan|Loopback)\s*\d+`, `(?i:Port-channel|Vlan|Loopback)\s*\d+`),
		mk("chassis_member",
			`(?i)\b(?:Switch|Stack|Unit|Slot|Module|Member|Node)\s*\d+`,
			`(?i:Switch|Stack|Unit|Slot|Module|Member|Node)\s*\d+`),
		mk("stp", `(?i)\b(?:MST|MSTI|STP)\s*\d+`, `(?i:MST|MSTI|STP)\s*\d+`),
		mk("hex_0x", `0x[0-9a-fA-F]+`, `0x[0-9a-fA-F]+`),
		mk("long_hex", `[0-9a-fA-F]{12,}`, `[0-9a-fA-F]{12,}`),
		mk("path", `(?:/[\w.\-]+){2,}`, `(?:/[\w.\-]+){2,}`),
		mk("double_quoted", `"[^"]*"`, `"[^"]*"`),
		mk("single_quoted", `'[^']*'`, `'[^']*'`),
		mk("underscore_digits", `_\d+\b`, `_\d+\b`),
		mk("bare_digits", `\d+`, `\d+`),
	}
}

// segment is either a literal run (regex-escaped verbatim) or a
// placeholder run (inserted as the rule's raw regex fragment).
type segment struct {
	literal bool
	text    string
}

// GeneratePattern tokenizes an example message into literal/placeholder
// segments and returns the compiled ^...$ regex string (§4.E).
func GeneratePattern(example string) string {
	segments := []segment{{literal: true, text: example}}

	for _, rule := range orderedRules {
		segments = applyRule(segments, rule)
	}

	var b strings.Builder
	b.WriteString("^")
	for _, s := range segments {
		if s.literal {
			b.WriteString(regexp.QuoteMeta(s.text))
		} else {
			b.WriteString(s.text)
		}
	}
	b.WriteString("$")
	return b.String()
}

// applyRule replaces every match of rule within literal segments with a
// placeholder segment carrying rule.pattern, leaving already-placeholder
// segments and non-matching literal runs untouched.
func applyRule(segments []segment, rule replacementRule) []segment {
	var out []segment
	for _, s := range segments {
		if !s.literal {
			out = append(out, s)
			continue
		}
		locs := rule.match.FindAllStringIndex(s.text, -1)
		if locs == nil {
			out = append(out, s)
			continue
		}
		last := 0
		for _, loc := range locs {
			if loc[0] > last {
				out = append(out, segment{literal: true, text: s.text[last:loc[0]]})
			}
			out = append(out, segment{literal: false, text: rule.pattern})
			last = loc[1]
		}
		if last < len(s.text) {
			out = append(out, segment{literal: true, text: s.text[last:]})
		}
	}
	return out
}

// GenerateLiteralPattern wraps an escaped literal in ^...$, used for
// optional host/program patterns (§4.E).
func GenerateLiteralPattern(literal string) string {
	return "^" + regexp.QuoteMeta(literal) + "$"
}

// ConvertLegacyGlob converts a legacy `*`-wildcard pattern by escaping
// literals and replacing `*` with `.*` (§4.E).
func ConvertLegacyGlob(glob string) string {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "^" + strings.Join(parts, ".*") + "$"
}

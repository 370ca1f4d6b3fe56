package redact

import (
	"regexp"
	"sync"

	"github.com/logpulse/logpulse/pkg/model"
)

// category pairs a PrivacyConfig toggle with its compiled matcher. Order
// doesn't matter here: categories never overlap enough to need one rule
// to run before another, unlike the builtin storage redactor.
type category struct {
	name string
	re   *regexp.Regexp
}

var (
	ipv4Pattern       = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	ipv6Pattern       = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{1,4}\b`)
	emailPattern      = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`)
	phonePattern      = regexp.MustCompile(`\b\+?\d[\d\- ]{7,}\d\b`)
	urlPattern        = regexp.MustCompile(`\bhttps?://\S+`)
	userPathPattern   = regexp.MustCompile(`(?i)(?:/home/|/Users/|C:\\Users\\)[\w.\-]+`)
	macPattern        = regexp.MustCompile(`\b(?:[0-9a-fA-F]{2}[:-]){5}[0-9a-fA-F]{2}\b`)
	creditCardPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	passwordPattern   = regexp.MustCompile(`(?i)(password|passwd)\s*[=:]\s*\S+`)
	apiKeyPattern     = regexp.MustCompile(`(?i)(api[_-]?key|token)\s*[=:]\s*\S+`)
	usernamePattern   = regexp.MustCompile(`(?i)(user(name)?)\s*[=:]\s*\S+`)
)

// PrivacyFilter is the finer-grained, toggle-per-category filter for
// in-memory text; it never touches stored data (§4.B). No LLM call path
// constructs or applies it.
type PrivacyFilter struct {
	mu         sync.RWMutex
	cfg        model.PrivacyConfig
	categories []category
	custom     []*regexp.Regexp
}

// NewPrivacyFilter builds a filter for the given privacy config.
func NewPrivacyFilter(cfg model.PrivacyConfig) *PrivacyFilter {
	f := &PrivacyFilter{}
	f.Reconfigure(cfg)
	return f
}

// Reconfigure swaps in a new toggle set, e.g. after an app_config edit.
func (f *PrivacyFilter) Reconfigure(cfg model.PrivacyConfig) {
	var cats []category
	add := func(enabled bool, name string, re *regexp.Regexp) {
		if enabled {
			cats = append(cats, category{name: name, re: re})
		}
	}
	add(cfg.IPv4, "ipv4", ipv4Pattern)
	add(cfg.IPv6, "ipv6", ipv6Pattern)
	add(cfg.Email, "email", emailPattern)
	add(cfg.Phone, "phone", phonePattern)
	add(cfg.URL, "url", urlPattern)
	add(cfg.UserPaths, "user_paths", userPathPattern)
	add(cfg.MAC, "mac", macPattern)
	add(cfg.CreditCard, "credit_card", creditCardPattern)
	add(cfg.Passwords, "passwords", passwordPattern)
	add(cfg.APIKeys, "api_keys", apiKeyPattern)
	add(cfg.Usernames, "usernames", usernamePattern)

	custom := make([]*regexp.Regexp, 0, len(cfg.CustomPatterns))
	for _, p := range cfg.CustomPatterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			custom = append(custom, re)
		}
	}

	f.mu.Lock()
	f.cfg = cfg
	f.categories = cats
	f.custom = custom
	f.mu.Unlock()
}

// FilterMessage applies every enabled category plus custom patterns.
func (f *PrivacyFilter) FilterMessage(message string) string {
	f.mu.RLock()
	cats := f.categories
	custom := f.custom
	f.mu.RUnlock()

	for _, c := range cats {
		message = c.re.ReplaceAllString(message, placeholder)
	}
	for _, re := range custom {
		message = re.ReplaceAllString(message, placeholder)
	}
	return message
}

// FilterHost returns "" when strip_host is on, otherwise passes host
// through unchanged (§4.B).
func (f *PrivacyFilter) FilterHost(host string) string {
	f.mu.RLock()
	strip := f.cfg.StripHost
	f.mu.RUnlock()
	if strip {
		return ""
	}
	return host
}

// FilterProgram returns "" when strip_program is on (§4.B).
func (f *PrivacyFilter) FilterProgram(program string) string {
	f.mu.RLock()
	strip := f.cfg.StripProgram
	f.mu.RUnlock()
	if strip {
		return ""
	}
	return program
}

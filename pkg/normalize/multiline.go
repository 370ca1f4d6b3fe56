package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// continuationHeaderRegex matches rsyslog-style "[N-M]" fragment headers,
// e.g. "message text [2-5]" meaning fragment 2 of 5 (§4.A method 1).
var continuationHeaderRegex = regexp.MustCompile(`\[(\d+)-(\d+)\]\s*$`)

// pidSecondRegex extracts a "[1234]" pid marker commonly emitted by syslog
// and Postgres log_line_prefix (§4.A method 2).
var pidSecondRegex = regexp.MustCompile(`\[(\d+)\]`)

var octalEscapeReplacer = strings.NewReplacer(
	"#011", "\t",
	"#012", "\n",
)

// decodeOctalEscapes expands rsyslog's "#0NN" octal-escaped control
// characters that commonly appear inside reassembled continuation lines.
func decodeOctalEscapes(s string) string {
	return octalEscapeReplacer.Replace(s)
}

// ReassembleBatch applies the four ordered multiline-reassembly methods to
// one ingest batch (§4.A). Each method consumes the entries it merges, so
// later methods never see them again. Entries not claimed by any method
// pass through unchanged. buf is the long-lived cross-batch fragment
// buffer; it may be nil to disable method 4.
func (n *Normalizer) ReassembleBatch(entries []map[string]interface{}, now time.Time, buf *FragmentBuffer) []map[string]interface{} {
	entries = reassembleContinuationHeaders(entries)
	entries = reassemblePIDGroups(entries)
	entries = reassembleSameSecondFragments(entries)
	if buf != nil {
		entries = buf.Reassemble(entries, now)
	}
	return entries
}

// reassembleContinuationHeaders merges runs of entries whose message ends in
// "[N-M]" into a single entry carrying fragment 1's header fields and the
// concatenated, octal-decoded message (§4.A method 1).
func reassembleContinuationHeaders(entries []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(entries))
	consumed := make([]bool, len(entries))

	for i := range entries {
		if consumed[i] {
			continue
		}
		msg, _ := stringField(entries[i], "message")
		m := continuationHeaderRegex.FindStringSubmatch(msg)
		if m == nil {
			out = append(out, entries[i])
			continue
		}
		n, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if n != 1 || total < 2 {
			// Not the first fragment of a run; leave as-is (either an
			// orphan or will be absorbed when we hit fragment 1).
			out = append(out, entries[i])
			continue
		}

		parts := []string{strings.TrimSpace(continuationHeaderRegex.ReplaceAllString(msg, ""))}
		consumed[i] = true
		found := n
		for j := i + 1; j < len(entries) && found < total; j++ {
			if consumed[j] {
				continue
			}
			jm, _ := stringField(entries[j], "message")
			jmatch := continuationHeaderRegex.FindStringSubmatch(jm)
			if jmatch == nil {
				continue
			}
			jn, _ := strconv.Atoi(jmatch[1])
			jtotal, _ := strconv.Atoi(jmatch[2])
			if jtotal != total || jn != found+1 {
				continue
			}
			parts = append(parts, strings.TrimSpace(continuationHeaderRegex.ReplaceAllString(jm, "")))
			consumed[j] = true
			found = jn
		}

		merged := cloneEntry(entries[i])
		merged["message"] = decodeOctalEscapes(strings.Join(parts, ""))
		out = append(out, merged)
	}
	return out
}

// reassemblePIDGroups merges consecutive entries sharing the same
// host+program+pid and received within the same wall-clock second, typical
// of Postgres's log_line_prefix continuation lines (§4.A method 2).
func reassemblePIDGroups(entries []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(entries))
	consumed := make([]bool, len(entries))

	for i := range entries {
		if consumed[i] {
			continue
		}
		msg, _ := stringField(entries[i], "message")
		pidMatch := pidSecondRegex.FindStringSubmatch(msg)
		if pidMatch == nil {
			out = append(out, entries[i])
			continue
		}
		host, _ := stringField(entries[i], "host")
		program, _ := stringField(entries[i], "program")
		sec := entrySecondBucket(entries[i])

		parts := []string{msg}
		consumed[i] = true
		for j := i + 1; j < len(entries); j++ {
			if consumed[j] {
				continue
			}
			jHost, _ := stringField(entries[j], "host")
			jProgram, _ := stringField(entries[j], "program")
			jmsg, _ := stringField(entries[j], "message")
			jPid := pidSecondRegex.FindStringSubmatch(jmsg)
			if jHost != host || jProgram != program || jPid == nil || jPid[1] != pidMatch[1] {
				continue
			}
			if entrySecondBucket(entries[j]) != sec {
				continue
			}
			parts = append(parts, jmsg)
			consumed[j] = true
		}
		if len(parts) == 1 {
			out = append(out, entries[i])
			continue
		}
		merged := cloneEntry(entries[i])
		merged["message"] = strings.Join(parts, "\n")
		out = append(out, merged)
	}
	return out
}

// reassembleSameSecondFragments merges a "head" line (ending without
// sentence-final punctuation) with immediately following fragment lines
// sharing host+program within the same wall-clock second (§4.A method 3).
func reassembleSameSecondFragments(entries []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(entries))
	consumed := make([]bool, len(entries))

	for i := range entries {
		if consumed[i] {
			continue
		}
		msg, _ := stringField(entries[i], "message")
		if !looksLikeFragmentHead(msg) {
			out = append(out, entries[i])
			continue
		}
		host, _ := stringField(entries[i], "host")
		program, _ := stringField(entries[i], "program")
		sec := entrySecondBucket(entries[i])

		parts := []string{msg}
		consumed[i] = true
		for j := i + 1; j < len(entries); j++ {
			if consumed[j] {
				continue
			}
			jHost, _ := stringField(entries[j], "host")
			jProgram, _ := stringField(entries[j], "program")
			if jHost != host || jProgram != program || entrySecondBucket(entries[j]) != sec {
				continue
			}
			jmsg, _ := stringField(entries[j], "message")
			parts = append(parts, jmsg)
			consumed[j] = true
			if !looksLikeFragmentHead(jmsg) {
				break
			}
		}
		if len(parts) == 1 {
			out = append(out, entries[i])
			continue
		}
		merged := cloneEntry(entries[i])
		merged["message"] = strings.Join(parts, " ")
		out = append(out, merged)
	}
	return out
}

// looksLikeFragmentHead reports whether a message looks like the start of a
// wrapped line rather than a complete statement: no trailing sentence
// punctuation and no trailing newline.
func looksLikeFragmentHead(msg string) bool {
	msg = strings.TrimRight(msg, " \t")
	if msg == "" {
		return false
	}
	last := msg[len(msg)-1]
	return last != '.' && last != '!' && last != '?' && last != ':' && last != ';' && last != '\n'
}

func entrySecondBucket(raw map[string]interface{}) int64 {
	for _, key := range []string{"timestamp", "time", "@timestamp"} {
		if v, ok := raw[key]; ok {
			if f, ok := asFloat(v); ok {
				return epochToTime(f).Unix()
			}
			if s, ok := v.(string); ok {
				if ts, ok := parseTimestampString(s); ok {
					return ts.Unix()
				}
			}
		}
	}
	return 0
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func cloneEntry(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// fragmentKey identifies a cross-batch buffering bucket by host+program.
type fragmentKey struct {
	host    string
	program string
}

func (k fragmentKey) hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(k.host)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(k.program)
	return h.Sum64()
}

type fragmentBucket struct {
	entries    []map[string]interface{}
	lastSeenAt time.Time
}

// FragmentBuffer holds fragments that may complete across batches: entries
// that look like a "head" with no completing continuation inside their own
// batch wait here for up to ttl, keyed by (host, program), before method 4
// (§4.A) either merges them with a later batch's opening lines or flushes
// them unmodified once expired. Bounded to maxKeys buckets of at most
// maxFragmentsKey entries each; when the key cap is reached the
// earliest-created bucket is evicted first.
type FragmentBuffer struct {
	mu              sync.Mutex
	ttl             time.Duration
	maxKeys         int
	maxFragmentsKey int
	buckets         map[uint64]*fragmentBucket
	order           []uint64
}

// NewFragmentBuffer constructs the cross-batch buffer with the spec's
// defaults: 10s TTL, 500 keys, 30 fragments per key (§4.A method 4).
func NewFragmentBuffer() *FragmentBuffer {
	return &FragmentBuffer{
		ttl:             10 * time.Second,
		maxKeys:         500,
		maxFragmentsKey: 30,
		buckets:         make(map[uint64]*fragmentBucket),
	}
}

// Reassemble drains expired buckets into completed entries, attempts to
// stitch this batch's leading fragment-head lines onto any still-live
// buffered fragment for the same key, and buffers any new unterminated
// trailing fragment-head line for a future batch.
func (b *FragmentBuffer) Reassemble(entries []map[string]interface{}, now time.Time) []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.flushExpiredLocked(now)

	consumed := make([]bool, len(entries))
	for i := range entries {
		msg, _ := stringField(entries[i], "message")
		if !looksLikeFragmentHead(msg) {
			continue
		}
		host, _ := stringField(entries[i], "host")
		program, _ := stringField(entries[i], "program")
		key := fragmentKey{host: host, program: program}
		h := key.hash()
		if bucket, ok := b.buckets[h]; ok && now.Sub(bucket.lastSeenAt) <= b.ttl {
			bucket.entries = append(bucket.entries, entries[i])
			bucket.lastSeenAt = now
			consumed[i] = true
			if !looksLikeFragmentHead(msg) || len(bucket.entries) >= b.maxFragmentsKey {
				out = append(out, mergeBucket(bucket))
				delete(b.buckets, h)
			}
		}
	}

	for i := range entries {
		if consumed[i] {
			continue
		}
		msg, _ := stringField(entries[i], "message")
		if i == len(entries)-1 && looksLikeFragmentHead(msg) {
			host, _ := stringField(entries[i], "host")
			program, _ := stringField(entries[i], "program")
			key := fragmentKey{host: host, program: program}
			b.bufferLocked(key, entries[i], now)
			consumed[i] = true
			continue
		}
		out = append(out, entries[i])
	}

	return out
}

func (b *FragmentBuffer) bufferLocked(key fragmentKey, entry map[string]interface{}, now time.Time) {
	h := key.hash()
	bucket, ok := b.buckets[h]
	if !ok {
		if len(b.buckets) >= b.maxKeys {
			b.evictOldestLocked()
		}
		bucket = &fragmentBucket{}
		b.buckets[h] = bucket
		b.order = append(b.order, h)
	}
	bucket.entries = append(bucket.entries, entry)
	bucket.lastSeenAt = now
}

func (b *FragmentBuffer) evictOldestLocked() {
	// order can still hold hashes of buckets already merged and deleted;
	// skip those so a live bucket is actually evicted.
	for len(b.order) > 0 {
		oldest := b.order[0]
		b.order = b.order[1:]
		if _, ok := b.buckets[oldest]; ok {
			delete(b.buckets, oldest)
			return
		}
	}
}

func (b *FragmentBuffer) flushExpiredLocked(now time.Time) []map[string]interface{} {
	var flushed []map[string]interface{}
	remaining := b.order[:0]
	seen := make(map[uint64]bool, len(b.order))
	for _, h := range b.order {
		if seen[h] {
			continue
		}
		seen[h] = true
		bucket, ok := b.buckets[h]
		if !ok {
			continue
		}
		if now.Sub(bucket.lastSeenAt) > b.ttl {
			flushed = append(flushed, mergeBucket(bucket))
			delete(b.buckets, h)
			continue
		}
		remaining = append(remaining, h)
	}
	b.order = remaining
	return flushed
}

func mergeBucket(bucket *fragmentBucket) map[string]interface{} {
	if len(bucket.entries) == 1 {
		return bucket.entries[0]
	}
	parts := make([]string, 0, len(bucket.entries))
	for _, e := range bucket.entries {
		msg, _ := stringField(e, "message")
		parts = append(parts, msg)
	}
	merged := cloneEntry(bucket.entries[0])
	merged["message"] = strings.Join(parts, " ")
	return merged
}

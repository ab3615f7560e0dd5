// Package eventlog implements the wire codec for job eventlog entries.
//
// An entry is a single line of UTF-8 JSON with a trailing newline:
//
//	{"timestamp":1721923200.123,"name":"submit","context":{"urgency":16}}
//
// Entries are appended to a per-job log in the KVS; the codec is the only
// place that knows the wire form. Encode and Parse round-trip.
package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entry is one record in a job eventlog.
//
// Timestamp is seconds since the epoch. Name identifies the event and must
// be nonempty printable ASCII with no spaces. Context carries
// event-specific data and may be nil.
type Entry struct {
	Timestamp float64        `json:"timestamp"`
	Name      string         `json:"name"`
	Context   map[string]any `json:"context,omitempty"`
}

// New builds an entry stamped with the current wall time.
func New(name string, context map[string]any) Entry {
	return Entry{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Name:      name,
		Context:   context,
	}
}

// Validate checks the mandatory fields.
//
// Timestamp must be nonnegative, Name nonempty printable ASCII with no
// spaces. Context, if
// present, is already constrained to an object by the type.
func (e Entry) Validate() error {
	if e.Timestamp < 0 {
		return fmt.Errorf("entry timestamp %v is negative", e.Timestamp)
	}
	if e.Name == "" {
		return fmt.Errorf("entry name is empty")
	}
	for _, r := range e.Name {
		if r < 0x21 || r > 0x7e {
			return fmt.Errorf("entry name %q contains non-ASCII or whitespace", e.Name)
		}
	}
	return nil
}

// Encode serializes the entry to its one-line wire form.
//
// The line always ends in a newline so that encoded entries concatenate
// into a valid log. HTML escaping is disabled so context strings survive
// round-trips byte-identical.
func Encode(e Entry) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("encode entry %q: %w", e.Name, err)
	}
	// json.Encoder already appended the trailing newline.
	return buf.Bytes(), nil
}

// Parse decodes a single wire-form line into an Entry.
//
// Trailing newline is accepted but not required. Unknown fields are
// rejected so that corrupt or foreign records fail loudly rather than
// silently losing data.
func Parse(line []byte) (Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimRight(line, "\n")))
	dec.DisallowUnknownFields()
	dec.UseNumber()

	var raw struct {
		Timestamp *json.Number   `json:"timestamp"`
		Name      *string        `json:"name"`
		Context   map[string]any `json:"context"`
	}
	if err := dec.Decode(&raw); err != nil {
		return Entry{}, fmt.Errorf("parse entry: %w", err)
	}
	if raw.Timestamp == nil {
		return Entry{}, fmt.Errorf("parse entry: missing timestamp")
	}
	if raw.Name == nil {
		return Entry{}, fmt.Errorf("parse entry: missing name")
	}
	ts, err := raw.Timestamp.Float64()
	if err != nil {
		return Entry{}, fmt.Errorf("parse entry: bad timestamp: %w", err)
	}
	e := Entry{Timestamp: ts, Name: *raw.Name, Context: normalize(raw.Context)}
	if err := e.Validate(); err != nil {
		return Entry{}, fmt.Errorf("parse entry: %w", err)
	}
	return e, nil
}

// ParseLog splits a log blob into entries, one per line.
func ParseLog(data []byte) ([]Entry, error) {
	var entries []Entry
	for i, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		e, err := Parse([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("log line %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// normalize rewrites json.Number values produced by UseNumber back into
// plain float64/int64 so context maps compare naturally in callers.
func normalize(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil && !strings.ContainsAny(t.String(), ".eE") {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		return normalize(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

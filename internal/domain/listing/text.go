package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EmbeddableAttributes is the fixed attribute order used for both embedding and rerank text.
var EmbeddableAttributes = []string{
	AttrName,
	AttrSummary,
	AttrPropertyType,
	AttrAmenities,
	AttrCancellationPolicy,
	AttrAddress,
}

// EmbeddableText renders "<attr>: <value>" lines in EmbeddableAttributes order.
// Missing attributes render as an empty value. The output is byte-stable for equal listings.
func EmbeddableText(l *Listing) string {
	var b strings.Builder
	for i, attr := range EmbeddableAttributes {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(attr)
		b.WriteString(": ")
		b.WriteString(renderAttribute(l, attr))
	}
	return strings.TrimSpace(b.String())
}

// RerankText renders attribute values only, in EmbeddableAttributes order.
func RerankText(l *Listing) string {
	values := make([]string, len(EmbeddableAttributes))
	for i, attr := range EmbeddableAttributes {
		values[i] = renderAttribute(l, attr)
	}
	return strings.TrimSpace(strings.Join(values, "\n"))
}

func renderAttribute(l *Listing, attr string) string {
	if l == nil || !l.Has(attr) {
		return ""
	}
	switch v := l.attribute(attr).(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case json.RawMessage:
		return renderRaw(v)
	case map[string]any:
		if len(v) == 0 {
			return ""
		}
		// encoding/json sorts map keys, which keeps the rendering deterministic.
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return ""
	}
}

// renderRaw renders a value of unexpected JSON type: strings unquoted, arrays joined
// element by element, everything else as compact JSON.
func renderRaw(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err == nil {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = renderRaw(item)
		}
		return strings.Join(parts, ", ")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

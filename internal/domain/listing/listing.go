package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attribute keys that carry meaning for this service.
const (
	AttrID                 = "_id"
	AttrName               = "name"
	AttrSummary            = "summary"
	AttrPropertyType       = "property_type"
	AttrAmenities          = "amenities"
	AttrCancellationPolicy = "cancellation_policy"
	AttrAddress            = "address"
	AttrReviewScores       = "review_scores"
	AttrEmbedding          = "embedding"
)

// ReviewScores is the nested review score structure of a listing.
type ReviewScores struct {
	Accuracy      *float64 `json:"review_scores_accuracy,omitempty"`
	Cleanliness   *float64 `json:"review_scores_cleanliness,omitempty"`
	Checkin       *float64 `json:"review_scores_checkin,omitempty"`
	Communication *float64 `json:"review_scores_communication,omitempty"`
	Location      *float64 `json:"review_scores_location,omitempty"`
	Value         *float64 `json:"review_scores_value,omitempty"`
	Rating        *float64 `json:"review_scores_rating,omitempty"`
}

// Listing is a stored document: typed core attributes plus every other attribute kept verbatim.
// Embedding is either nil or exactly domain.EmbeddingDimensions long.
type Listing struct {
	ID                 string
	Name               string
	Summary            string
	PropertyType       string
	Amenities          []string
	CancellationPolicy string
	Address            map[string]any
	ReviewScores       *ReviewScores
	Embedding          []float32

	// Extra holds unmodeled attributes, round-tripped untouched.
	Extra map[string]json.RawMessage

	// raw holds embeddable attributes whose stored JSON type did not match the field.
	raw map[string]json.RawMessage

	// present tracks which core attributes were in the source document.
	present map[string]bool
}

// HasEmbedding reports whether the listing carries a vector.
func (l *Listing) HasEmbedding() bool { return len(l.Embedding) > 0 }

// ReviewScoreValue returns review_scores.review_scores_value if set.
func (l *Listing) ReviewScoreValue() (float64, bool) {
	if l.ReviewScores == nil || l.ReviewScores.Value == nil {
		return 0, false
	}
	return *l.ReviewScores.Value, true
}

// WithoutEmbedding returns a shallow copy with the raw vector dropped.
func (l *Listing) WithoutEmbedding() *Listing {
	c := *l
	c.Embedding = nil
	if _, ok := l.Extra[AttrEmbedding]; ok {
		c.Extra = make(map[string]json.RawMessage, len(l.Extra)-1)
		for k, v := range l.Extra {
			if k != AttrEmbedding {
				c.Extra[k] = v
			}
		}
	}
	return &c
}

// Has reports whether a core attribute was present in the decoded document.
// Listings built in code report true for every non-zero attribute.
func (l *Listing) Has(attr string) bool {
	if l.present != nil {
		return l.present[attr]
	}
	switch attr {
	case AttrName:
		return l.Name != ""
	case AttrSummary:
		return l.Summary != ""
	case AttrPropertyType:
		return l.PropertyType != ""
	case AttrAmenities:
		return l.Amenities != nil
	case AttrCancellationPolicy:
		return l.CancellationPolicy != ""
	case AttrAddress:
		return l.Address != nil
	}
	return false
}

// UnmarshalJSON decodes a stored document, keeping unknown attributes in Extra.
// Core attributes of an unexpected JSON type never fail the decode: embeddable ones keep
// their raw value for rendering, the others move to Extra. Only a non-object document errors.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}

	*l = Listing{present: make(map[string]bool)}
	for key, val := range raw {
		if isNull(val) {
			if key != AttrID && key != AttrEmbedding && key != AttrReviewScores {
				l.setExtra(key, val)
			}
			continue
		}
		var err error
		switch key {
		case AttrID:
			l.ID, err = decodeID(val)
		case AttrName:
			err = json.Unmarshal(val, &l.Name)
		case AttrSummary:
			err = json.Unmarshal(val, &l.Summary)
		case AttrPropertyType:
			err = json.Unmarshal(val, &l.PropertyType)
		case AttrAmenities:
			err = json.Unmarshal(val, &l.Amenities)
		case AttrCancellationPolicy:
			err = json.Unmarshal(val, &l.CancellationPolicy)
		case AttrAddress:
			err = decodeObject(val, &l.Address)
		case AttrReviewScores:
			var rs ReviewScores
			if err = json.Unmarshal(val, &rs); err == nil {
				l.ReviewScores = &rs
			}
		case AttrEmbedding:
			err = json.Unmarshal(val, &l.Embedding)
		default:
			l.setExtra(key, val)
			continue
		}
		if err != nil {
			l.keepNonConforming(key, val)
			continue
		}
		l.present[key] = true
	}
	return nil
}

// keepNonConforming stores an attribute whose JSON type did not match its field.
func (l *Listing) keepNonConforming(key string, val json.RawMessage) {
	switch key {
	case AttrName, AttrSummary, AttrPropertyType, AttrAmenities, AttrCancellationPolicy, AttrAddress:
		l.resetAttribute(key)
		if l.raw == nil {
			l.raw = make(map[string]json.RawMessage)
		}
		l.raw[key] = val
		l.present[key] = true
	case AttrEmbedding:
		l.Embedding = nil
		l.setExtra(key, val)
	case AttrID:
		l.ID = ""
		l.setExtra(key, val)
	default:
		l.setExtra(key, val)
	}
}

func (l *Listing) resetAttribute(attr string) {
	switch attr {
	case AttrName:
		l.Name = ""
	case AttrSummary:
		l.Summary = ""
	case AttrPropertyType:
		l.PropertyType = ""
	case AttrAmenities:
		l.Amenities = nil
	case AttrCancellationPolicy:
		l.CancellationPolicy = ""
	case AttrAddress:
		l.Address = nil
	}
}

// MarshalJSON encodes the listing back into its document shape.
func (l Listing) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Extra)+9)
	for k, v := range l.Extra {
		out[k] = v
	}
	if l.ID != "" {
		out[AttrID] = l.ID
	}
	for _, attr := range EmbeddableAttributes {
		if l.Has(attr) {
			out[attr] = l.attribute(attr)
		}
	}
	if l.ReviewScores != nil {
		out[AttrReviewScores] = l.ReviewScores
	}
	if l.Embedding != nil {
		out[AttrEmbedding] = l.Embedding
	}
	return json.Marshal(out)
}

func (l *Listing) setExtra(key string, val json.RawMessage) {
	if l.Extra == nil {
		l.Extra = make(map[string]json.RawMessage)
	}
	l.Extra[key] = val
}

func (l *Listing) attribute(attr string) any {
	if v, ok := l.raw[attr]; ok {
		return v
	}
	switch attr {
	case AttrName:
		return l.Name
	case AttrSummary:
		return l.Summary
	case AttrPropertyType:
		return l.PropertyType
	case AttrAmenities:
		return l.Amenities
	case AttrCancellationPolicy:
		return l.CancellationPolicy
	case AttrAddress:
		return l.Address
	}
	return nil
}

func isNull(val json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(val), []byte("null"))
}

// decodeID accepts string and numeric identifiers.
func decodeID(val json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(val, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number")
	}
	return n.String(), nil
}

func decodeObject(val json.RawMessage, dst *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(val))
	dec.UseNumber()
	return dec.Decode(dst)
}

// EmbeddingUpdate is one staged write of a vector onto a listing.
type EmbeddingUpdate struct {
	ID     string
	Vector []float32
}

// BulkResult reports the outcome of a conditional bulk embedding write.
type BulkResult struct {
	// Matched counts listings that still existed.
	Matched int
	// Modified counts listings that received the vector.
	Modified int
}

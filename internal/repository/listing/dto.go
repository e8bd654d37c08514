package listing

import (
	"encoding/json"
	"fmt"
	"strconv"

	domlisting "github.com/kailas-cloud/listingsearch/internal/domain/listing"
)

// decodeListing parses a JSON.GET/JSON.MGET "$" reply, which wraps the document in an array.
// The listing is identified by its key suffix; a stored _id attribute is overridden.
func decodeListing(raw []byte, keyID string) (*domlisting.Listing, error) {
	doc, err := unwrapRoot(raw)
	if err != nil {
		return nil, err
	}
	var l domlisting.Listing
	if err := json.Unmarshal(doc, &l); err != nil {
		return nil, err
	}
	l.ID = keyID
	return &l, nil
}

// unwrapRoot strips the single-element array RedisJSON returns for JSONPath queries.
// Documents returned by FT.SEARCH "$" are not wrapped and pass through unchanged.
func unwrapRoot(raw []byte) (json.RawMessage, error) {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			var arr []json.RawMessage
			if err := json.Unmarshal(raw, &arr); err != nil {
				return nil, fmt.Errorf("decode json path reply: %w", err)
			}
			if len(arr) == 0 {
				return nil, fmt.Errorf("empty json path reply")
			}
			return arr[0], nil
		default:
			return raw, nil
		}
	}
	return nil, fmt.Errorf("empty document")
}

// encodeVector renders a vector as a JSON array of numbers for JSON.SET.
func encodeVector(v []float32) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	return data, nil
}

// parseReviewScoreValue reads a projected review score, which may come back either as a
// bare number or wrapped in a JSONPath array.
func parseReviewScoreValue(s string) (*float64, bool) {
	if s == "" {
		return nil, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return &v, true
	}
	var arr []float64
	if err := json.Unmarshal([]byte(s), &arr); err == nil && len(arr) > 0 {
		return &arr[0], true
	}
	return nil, false
}

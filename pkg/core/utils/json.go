// Package utils holds small shared helpers: lenient JSON decoding for
// provider responses and markdown hygiene for generated sections.
package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// RepairJSON attempts to fix common JSON defects in upstream payloads:
// single quotes, trailing commas, unclosed containers, markdown fences.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %w", err)
	}
	return repaired, nil
}

// DecodeLenient tries progressively looser strategies to decode input into
// schema: strict JSON, repaired JSON, then Hjson. Returns an error only when
// all three fail.
func DecodeLenient(input string, schema interface{}) error {
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return nil
		}
	}

	if err := hjson.Unmarshal([]byte(input), schema); err == nil {
		return nil
	}

	return fmt.Errorf("all decode strategies failed for payload of %d bytes", len(input))
}

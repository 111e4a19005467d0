package ledger

import (
	"encoding/json"
	"fmt"
)

// Record is a point-in-time snapshot of an entity's audit-relevant fields.
// Every record carries a "schema" field naming its entity and version so the
// ledger stays interpretable as snapshots evolve. Encoding is JSON: key
// order is insignificant and the stored value stays human-readable.
type Record map[string]any

// Schema names carried by the records this core emits.
const (
	SchemaRole    = "role.v1"
	SchemaUser    = "user.v1"
	SchemaFollow  = "follow.v1"
	SchemaPost    = "post.v1"
	SchemaComment = "comment.v1"
)

// Encode serializes the record for storage.
func (r Record) Encode() (string, error) {
	if _, ok := r["schema"]; !ok {
		return "", fmt.Errorf("ledger: record missing schema field")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("ledger: encode record: %w", err)
	}
	return string(data), nil
}

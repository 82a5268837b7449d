package result

import (
	"encoding/json"

	"github.com/google/uuid"
)

// NewRunID returns a time-sortable run identifier ("run_" + UUID v7).
func NewRunID() string {
	return "run_" + uuid.Must(uuid.NewV7()).String()
}

// MarshalReport serialises a Report to JSON.
func MarshalReport(r *Report) ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalReport deserialises a Report from JSON.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

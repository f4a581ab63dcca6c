package embedding

import (
	"encoding/json"

	"github.com/samber/oops"
)

type storedVector struct {
	Model  string    `json:"model"`
	Vector []float64 `json:"vector"`
}

// Encode serializes a vector with its model version tag for storage in a
// record field.
func Encode(model string, vec []float64) (string, error) {
	data, err := json.Marshal(storedVector{
		Model:  model,
		Vector: vec,
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to encode vector")
	}

	return string(data), nil
}

// Decode parses a stored vector, returning the vector and the model version
// it was produced under.
func Decode(s string) ([]float64, string, error) {
	if s == "" {
		return nil, "", nil
	}

	var stored storedVector
	if err := json.Unmarshal([]byte(s), &stored); err != nil {
		return nil, "", oops.Wrapf(err, "failed to decode vector")
	}

	return stored.Vector, stored.Model, nil
}

package memory

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"donna/app/storage/recordstore"
)

const (
	// Collection names in the record store.
	memoriesCollection = "memories"
	archiveCollection  = "archive"

	// Tombstone written over soft-deleted values.
	tombstone = "[DELETED]"

	// MergeThreshold is the similarity at or above which a new fact is
	// merged into an existing record instead of inserted.
	MergeThreshold = 0.7

	// RetrieveThreshold is the default relevance floor for retrieval.
	RetrieveThreshold = 0.3

	// lexicalScore is assigned to substring hits when a stored embedding
	// cannot be decoded. It competes in the ranking below strong semantic
	// matches.
	lexicalScore = 0.5
)

var ErrNotFound = errors.New("memory not found")

type Record struct {
	ID         string
	UserID     string
	Category   string
	Key        string
	Value      string
	Confidence float64
	Tags       []string
	UpdatedAt  time.Time

	// encoded embedding as stored; decoded lazily during scoring
	embedding string
}

type SearchResult struct {
	Record
	Score float64
}

func recordFrom(raw recordstore.Record) Record {
	confidence, err := strconv.ParseFloat(raw["confidence"], 64)
	if err != nil {
		confidence = 1.0
	}

	var tags []string
	_ = json.Unmarshal([]byte(raw["tags"]), &tags)

	updatedAt, _ := time.Parse(time.RFC3339, raw["updated_at"])

	return Record{
		ID:         raw["id"],
		UserID:     raw["user_id"],
		Category:   raw["category"],
		Key:        raw["key"],
		Value:      raw["value"],
		Confidence: confidence,
		Tags:       tags,
		UpdatedAt:  updatedAt,
		embedding:  raw["embedding"],
	}
}

func (r Record) deleted() bool {
	return r.Value == tombstone
}

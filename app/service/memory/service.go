package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"donna/app/client/llm"
	"donna/app/config"
	"donna/app/service/embedding"
	"donna/app/storage/recordstore"

	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service is the semantic memory store: facts are deduplicated on write by
// merging near-duplicates, and retrieved by embedding similarity with a
// lexical fallback. This is a mutable belief state, not a ledger.
type Service struct {
	store    recordstore.Store
	embedder *embedding.Service
	merger   Merger
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[recordstore.Store](di),
		do.MustInvoke[*embedding.Service](di),
		NewLLMMerger(llm.NewOpenAIClient(cfg.OpenAI.Planner)),
	), nil
}

func NewService(store recordstore.Store, embedder *embedding.Service, merger Merger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		merger:   merger,
	}
}

// Store saves a fact, merging into the closest existing record when its
// similarity reaches MergeThreshold. Returns a human-readable status naming
// which path was taken.
func (s *Service) Store(ctx context.Context, userID, category, key, value string) (string, error) {
	best, err := s.bestMatch(ctx, userID, value)
	if err != nil {
		return "", err
	}

	if best != nil {
		return s.mergeInto(ctx, userID, *best, category, value)
	}

	encoded, err := s.embedFact(ctx, category, key, value)
	if err != nil {
		return "", err
	}

	tags, _ := json.Marshal([]string{})

	err = s.store.Append(ctx, memoriesCollection, recordstore.Record{
		"user_id":    userID,
		"category":   category,
		"key":        key,
		"value":      value,
		"embedding":  encoded,
		"confidence": "1.0",
		"tags":       string(tags),
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to append memory")
	}

	return "New memory stored: " + key, nil
}

func (s *Service) mergeInto(ctx context.Context, userID string, existing SearchResult, category, value string) (string, error) {
	merged, err := s.merger.Merge(ctx, existing.Value, value)
	if err != nil {
		slog.Warn("Memory merge failed, using fallback", "key", existing.Key, "error", err)
		merged = fallbackMerge(existing.Value, value)
	}

	encoded, err := s.embedFact(ctx, category, existing.Key, merged)
	if err != nil {
		return "", err
	}

	ref, found, err := s.store.FindRef(ctx, memoriesCollection, userID, existing.Key)
	if err != nil {
		return "", oops.Wrapf(err, "failed to locate memory row")
	}
	if !found {
		return "", ErrNotFound
	}

	confidence := existing.Confidence + 0.1
	if confidence > 1.0 {
		confidence = 1.0
	}

	err = s.store.Update(ctx, memoriesCollection, ref, recordstore.Record{
		"value":      merged,
		"embedding":  encoded,
		"confidence": fmt.Sprintf("%.2f", confidence),
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to update memory")
	}

	return "Memory merged with existing: " + existing.Key, nil
}

// Retrieve returns the records scoring at or above threshold against the
// query, best first, at most limit entries.
func (s *Service) Retrieve(ctx context.Context, userID, query, category string, limit int, threshold float64) ([]SearchResult, error) {
	records, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to embed query")
	}

	var results []SearchResult

	for _, rec := range records {
		if rec.deleted() {
			continue
		}
		if category != "" && rec.Category != category {
			continue
		}

		score, comparable := s.score(ctx, queryVec, rec)
		if !comparable {
			// Embedding unusable: lexical containment keeps the record in
			// the running at a fixed medium score.
			if strings.Contains(strings.ToLower(rec.Value), strings.ToLower(query)) {
				results = append(results, SearchResult{Record: rec, Score: lexicalScore})
			}
			continue
		}

		if score >= threshold {
			results = append(results, SearchResult{Record: rec, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// score compares the query vector against a record's stored embedding,
// regenerating it when absent, version-tagged for a different model, or
// dimension-mismatched. Returns comparable=false only when the stored
// payload cannot be decoded at all.
func (s *Service) score(ctx context.Context, queryVec []float64, rec Record) (float64, bool) {
	stored, model, err := embedding.Decode(rec.embedding)
	if err != nil {
		return 0, false
	}

	if len(stored) != len(queryVec) || model != s.embedder.ModelVersion() {
		regenerated, embedErr := s.embedder.Embed(ctx, rec.Value)
		if embedErr != nil {
			return 0, false
		}
		stored = regenerated
	}

	return embedding.Similarity(queryVec, stored), true
}

// Update changes the value of an existing memory. The key resolves by, in
// order: exact key match, case-insensitive key substring, case-insensitive
// value substring.
func (s *Service) Update(ctx context.Context, userID, keyOrPartial, newValue string) (string, error) {
	records, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}

	resolved, ok := resolveKey(records, keyOrPartial)
	if !ok {
		return "", oops.Wrapf(ErrNotFound, "memory not found: %s", keyOrPartial)
	}

	encoded, err := s.embedFact(ctx, resolved.Category, resolved.Key, newValue)
	if err != nil {
		return "", err
	}

	ref, found, err := s.store.FindRef(ctx, memoriesCollection, userID, resolved.Key)
	if err != nil {
		return "", oops.Wrapf(err, "failed to locate memory row")
	}
	if !found {
		return "", oops.Wrapf(ErrNotFound, "memory not found: %s", keyOrPartial)
	}

	err = s.store.Update(ctx, memoriesCollection, ref, recordstore.Record{
		"value":      newValue,
		"embedding":  encoded,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to update memory")
	}

	return "Memory updated: " + resolved.Key, nil
}

// Delete soft-deletes a memory: the record is copied to the archive
// collection with a reason tag and the live value is overwritten with a
// tombstone. Rows are never removed.
func (s *Service) Delete(ctx context.Context, userID, key string) (string, error) {
	records, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}

	var target *Record
	for i := range records {
		if records[i].Key == key && !records[i].deleted() {
			target = &records[i]
			break
		}
	}
	if target == nil {
		return "", oops.Wrapf(ErrNotFound, "memory not found: %s", key)
	}

	content, err := json.Marshal(map[string]string{
		"category": target.Category,
		"key":      target.Key,
		"value":    target.Value,
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to serialize memory for archive")
	}

	err = s.store.Append(ctx, archiveCollection, recordstore.Record{
		"user_id":             userID,
		"original_collection": memoriesCollection,
		"content":             string(content),
		"archived_at":         time.Now().Format(time.RFC3339),
		"reason":              "deleted_by_user",
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to archive memory")
	}

	ref, found, err := s.store.FindRef(ctx, memoriesCollection, userID, key)
	if err != nil {
		return "", oops.Wrapf(err, "failed to locate memory row")
	}
	if !found {
		return "", oops.Wrapf(ErrNotFound, "memory not found: %s", key)
	}

	err = s.store.Update(ctx, memoriesCollection, ref, recordstore.Record{
		"value":      tombstone,
		"updated_at": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return "", oops.Wrapf(err, "failed to tombstone memory")
	}

	return "Memory archived: " + key, nil
}

func (s *Service) bestMatch(ctx context.Context, userID, value string) (*SearchResult, error) {
	results, err := s.Retrieve(ctx, userID, value, "", 1, MergeThreshold)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 || results[0].Score < MergeThreshold {
		return nil, nil
	}

	return &results[0], nil
}

func (s *Service) embedFact(ctx context.Context, category, key, value string) (string, error) {
	// Category and key are embedded alongside the value for better
	// semantic placement of short facts.
	vec, err := s.embedder.Embed(ctx, category+": "+key+" - "+value)
	if err != nil {
		return "", oops.Wrapf(err, "failed to embed memory")
	}

	return embedding.Encode(s.embedder.ModelVersion(), vec)
}

func (s *Service) load(ctx context.Context, userID string) ([]Record, error) {
	raw, err := s.store.Get(ctx, memoriesCollection, userID)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load memories")
	}

	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		records = append(records, recordFrom(r))
	}

	return records, nil
}

func resolveKey(records []Record, keyOrPartial string) (Record, bool) {
	for _, rec := range records {
		if rec.Key == keyOrPartial && !rec.deleted() {
			return rec, true
		}
	}

	lower := strings.ToLower(keyOrPartial)

	for _, rec := range records {
		if !rec.deleted() && strings.Contains(strings.ToLower(rec.Key), lower) {
			return rec, true
		}
	}

	for _, rec := range records {
		if !rec.deleted() && strings.Contains(strings.ToLower(rec.Value), lower) {
			return rec, true
		}
	}

	return Record{}, false
}

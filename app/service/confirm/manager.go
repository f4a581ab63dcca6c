package confirm

import (
	"strings"
	"sync"
	"time"

	"donna/app/service/actions"

	"github.com/samber/do"
)

// TTL bounds how long a pending plan stays actionable. After that a bare
// "yes" must not trigger anything.
const TTL = 5 * time.Minute

type pending struct {
	plan      actions.Plan
	createdAt time.Time
}

// Manager holds at most one pending plan per user. A new pending plan
// replaces the previous one; entries expire lazily on access.
type Manager struct {
	mu      sync.Mutex
	pending map[string]pending
	now     func() time.Time
}

func New(_ *do.Injector) (*Manager, error) {
	return NewManager(), nil
}

func NewManager() *Manager {
	return &Manager{
		pending: make(map[string]pending),
		now:     time.Now,
	}
}

func (m *Manager) Store(userID string, plan actions.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[userID] = pending{plan: plan, createdAt: m.now()}
}

// Get returns the user's pending plan if one exists and has not expired.
func (m *Manager) Get(userID string) (actions.Plan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pending[userID]
	if !ok {
		return actions.Plan{}, false
	}

	if m.now().Sub(entry.createdAt) > TTL {
		delete(m.pending, userID)
		return actions.Plan{}, false
	}

	return entry.plan, true
}

func (m *Manager) Clear(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, userID)
}

var affirmativeWords = []string{
	"yes", "yeah", "yep", "yup", "sure", "ok", "okay",
	"do it", "send it", "send", "go ahead", "confirm", "approved",
	"absolutely", "definitely", "please do", "proceed",
}

var negativeWords = []string{
	"no", "nope", "nah", "cancel", "don't", "dont", "stop",
	"wait", "hold on", "never mind", "nevermind", "skip",
	"forget it", "abort",
}

// IsAffirmative reports whether a reply reads as approval. Negation wins
// when both appear ("no wait, yes" is not approval).
func IsAffirmative(message string) bool {
	if IsNegative(message) {
		return false
	}

	return matchesAny(message, affirmativeWords)
}

func IsNegative(message string) bool {
	return matchesAny(message, negativeWords)
}

// matchesAny checks single words against whole tokens ("notebook" must not
// read as "no") and multi-word phrases as substrings.
func matchesAny(message string, words []string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))

	tokens := map[string]bool{}
	for _, token := range strings.Fields(lower) {
		tokens[strings.Trim(token, ".,!?")] = true
	}

	for _, word := range words {
		if strings.Contains(word, " ") {
			if strings.Contains(lower, word) {
				return true
			}
		} else if tokens[word] {
			return true
		}
	}

	return false
}

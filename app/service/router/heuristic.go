package router

import (
	"strings"

	"donna/app/service/actions"
	"donna/app/service/conversation"
)

var followupWords = map[string]bool{
	"yes": true, "no": true, "ok": true, "okay": true, "sure": true,
	"yep": true, "nope": true, "that": true, "this": true,
	"first": true, "second": true, "done": true, "skip": true,
}

var domainKeywords = map[actions.Domain][]string{
	actions.DomainTask: {
		"remind", "task", "todo", "to-do", "to do",
		"deadline", "complete", "finish", "done with",
	},
	actions.DomainCalendar: {
		"calendar", "schedule", "meeting", "appointment", "event",
		"busy", "free", "available", "tomorrow", "today", "next week",
	},
	actions.DomainEmail: {
		"email", "mail", "send", "draft", "reply to",
	},
	actions.DomainMemory: {
		"remember", "my favorite", "i like", "i love", "i hate",
		"i prefer", "i am", "i'm a", "my name is",
	},
	actions.DomainNotes: {
		"note", "shopping list",
	},
	actions.DomainWebSearch: {
		"search", "look up", "google",
	},
}

// HeuristicRoute classifies a message with keyword matching alone. It errs
// toward chat: the planner tolerates an over-narrow route better than the
// pipeline tolerates a hallucinated one.
func HeuristicRoute(message string, historyTail []conversation.Turn) Decision {
	lower := strings.ToLower(strings.TrimSpace(message))

	if isLikelyFollowup(lower, historyTail) {
		return Decision{Type: RouteFollowup, IsFollowup: true}
	}

	domains := KeywordDomains(lower)
	if len(domains) == 0 {
		return Decision{Type: RouteChat}
	}

	return Decision{Type: RouteAction, Domains: domains}
}

// KeywordDomains returns every domain whose keywords appear in the message.
// The message must already be lowercased.
func KeywordDomains(lower string) []actions.Domain {
	var result []actions.Domain

	for _, domain := range actions.Domains {
		for _, keyword := range domainKeywords[domain] {
			if strings.Contains(lower, keyword) {
				result = append(result, domain)
				break
			}
		}
	}

	return result
}

func isLikelyFollowup(lower string, historyTail []conversation.Turn) bool {
	lastAssistant, ok := conversation.LastAssistantText(historyTail)
	if !ok || !strings.Contains(lastAssistant, "?") {
		return false
	}

	tokens := strings.Fields(lower)
	if len(tokens) == 0 || len(tokens) > 3 {
		return false
	}

	for _, token := range tokens {
		token = strings.Trim(token, ".,!?")
		if followupWords[token] || isDigits(token) {
			return true
		}
	}

	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

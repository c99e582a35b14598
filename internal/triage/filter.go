// Package triage holds the pure filtering logic behind the email list.
package triage

import (
	"fmt"
	"strings"

	"emailai/internal/model"
)

// All 表示不按该维度过滤
const All = "all"

// Criteria 列表过滤条件。Sentiment/Urgency 为 "all" 时不过滤。
type Criteria struct {
	SearchText string
	Sentiment  string
	Urgency    string
}

// NoCriteria 不做任何过滤
func NoCriteria() Criteria {
	return Criteria{Sentiment: All, Urgency: All}
}

// ParseCriteria 校验查询参数，空字符串等同于 "all"
func ParseCriteria(searchText, sentiment, urgency string) (Criteria, error) {
	c := NoCriteria()
	c.SearchText = searchText
	if sentiment != "" {
		c.Sentiment = sentiment
	}
	if urgency != "" {
		c.Urgency = urgency
	}
	if c.Sentiment != All && !model.Sentiment(c.Sentiment).Valid() {
		return Criteria{}, fmt.Errorf("%w: sentiment=%q", model.ErrInvalidValue, sentiment)
	}
	if c.Urgency != All && !model.Urgency(c.Urgency).Valid() {
		return Criteria{}, fmt.Errorf("%w: urgency=%q", model.ErrInvalidValue, urgency)
	}
	return c, nil
}

func normalize(v string) string {
	if v == "" {
		return All
	}
	return v
}

// Active reports whether any criterion narrows the collection.
func (c Criteria) Active() bool {
	return c.SearchText != "" || normalize(c.Sentiment) != All || normalize(c.Urgency) != All
}

// Match 判断单封邮件是否同时满足三个条件
func (c Criteria) Match(e model.Email) bool {
	return c.matchSearch(e) &&
		(normalize(c.Sentiment) == All || string(e.Sentiment) == c.Sentiment) &&
		(normalize(c.Urgency) == All || string(e.Urgency) == c.Urgency)
}

func (c Criteria) matchSearch(e model.Email) bool {
	if c.SearchText == "" {
		return true
	}
	needle := strings.ToLower(c.SearchText)
	return strings.Contains(strings.ToLower(e.Subject), needle) ||
		strings.Contains(strings.ToLower(e.Sender.Name), needle) ||
		strings.Contains(strings.ToLower(e.Content), needle)
}

// Filter returns the emails matching c in their original order.
// The result is never nil; an empty slice means nothing matched.
func Filter(emails []model.Email, c Criteria) []model.Email {
	out := make([]model.Email, 0, len(emails))
	for _, e := range emails {
		if c.Match(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

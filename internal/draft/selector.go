// Package draft produces reply drafts for an email.
package draft

import (
	"context"
	"math/rand/v2"
	"sync"

	"emailai/internal/model"
)

// 两份通用回复模板，参数为发件人姓名
var templates = []func(name string) string{
	func(name string) string {
		return "Dear " + name + ",\n\n" +
			"Thank you for reaching out. I understand your concern and I'm here to help resolve this matter promptly.\n\n" +
			"Let me look into this immediately and get back to you within the hour with a solution.\n\n" +
			"Best regards,\nSupport Team"
	},
	func(name string) string {
		return "Hi " + name + ",\n\n" +
			"I appreciate you bringing this to our attention. Your feedback is valuable and helps us improve our service.\n\n" +
			"I'm escalating this to the appropriate team and will ensure you receive a comprehensive response soon.\n\n" +
			"Thank you for your patience.\n\n" +
			"Best regards,\nSupport Team"
	},
}

// Source 草稿来源
const (
	SourceAI       = "ai"
	SourceTemplate = "template"
)

// Drafter generates a reply draft for an email.
type Drafter interface {
	Draft(ctx context.Context, email model.Email) (text string, source string)
}

// Selector picks one of the canned templates uniformly at random.
type Selector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector() *Selector {
	return &Selector{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededSelector 固定随机种子，测试用
func NewSeededSelector(seed uint64) *Selector {
	return &Selector{rnd: rand.New(rand.NewPCG(seed, seed))}
}

// Suggest never fails; the returned draft always addresses the sender by name.
func (s *Selector) Suggest(email model.Email) string {
	s.mu.Lock()
	i := s.rnd.IntN(len(templates))
	s.mu.Unlock()

	name := email.Sender.Name
	if name == "" {
		name = email.Sender.Email
	}
	return templates[i](name)
}

// Draft implements Drafter.
func (s *Selector) Draft(_ context.Context, email model.Email) (string, string) {
	return s.Suggest(email), SourceTemplate
}

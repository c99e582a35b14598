package model

import "time"

// Sentiment 邮件情绪
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Sentiments 按展示顺序列出所有情绪取值
var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Urgency 紧急程度
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent}

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

// Category 邮件分类
type Category string

const (
	CategorySupport   Category = "support"
	CategoryBilling   Category = "billing"
	CategoryTechnical Category = "technical"
	CategoryGeneral   Category = "general"
)

var Categories = []Category{CategorySupport, CategoryBilling, CategoryTechnical, CategoryGeneral}

func (c Category) Valid() bool {
	switch c {
	case CategorySupport, CategoryBilling, CategoryTechnical, CategoryGeneral:
		return true
	}
	return false
}

// Status 邮件处理状态，只有它和 AIDraft 可以被本系统修改
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusReplied  Status = "replied"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusReplied, StatusArchived:
		return true
	}
	return false
}

// Sender 发件人
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Email 看板展示用的邮件视图模型
type Email struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Sender     Sender    `json:"sender"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"receivedAt"`
	Sentiment  Sentiment `json:"sentiment"`
	Urgency    Urgency   `json:"urgency"`
	Category   Category  `json:"category"`
	Status     Status    `json:"status"`
	Contacts   []string  `json:"contacts"`
	Requests   []string  `json:"requests"`
	AIDraft    *string   `json:"aiDraft,omitempty"`
}

// Clone 返回深拷贝，缓存和过滤结果之间不共享切片和指针
func (e Email) Clone() Email {
	c := e
	if e.Contacts != nil {
		c.Contacts = append([]string{}, e.Contacts...)
	}
	if e.Requests != nil {
		c.Requests = append([]string{}, e.Requests...)
	}
	if e.AIDraft != nil {
		d := *e.AIDraft
		c.AIDraft = &d
	}
	return c
}

// Validate checks the enumerated attributes of a row coming from a store.
func (e Email) Validate() error {
	if e.ID == "" {
		return invalidValue("id", "empty")
	}
	if !e.Sentiment.Valid() {
		return invalidValue("sentiment", string(e.Sentiment))
	}
	if !e.Urgency.Valid() {
		return invalidValue("urgency", string(e.Urgency))
	}
	if !e.Category.Valid() {
		return invalidValue("category", string(e.Category))
	}
	if !e.Status.Valid() {
		return invalidValue("status", string(e.Status))
	}
	return nil
}

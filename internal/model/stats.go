package model

// EmailStats 看板统计数据，各分布之和不要求等于 Total
type EmailStats struct {
	Total              int               `json:"total"`
	Unread             int               `json:"unread"`
	Replied            int               `json:"replied"`
	AvgResponseTime    string            `json:"avgResponseTime"`
	SentimentBreakdown map[Sentiment]int `json:"sentimentBreakdown"`
	UrgencyBreakdown   map[Urgency]int   `json:"urgencyBreakdown"`
	CategoryBreakdown  map[Category]int  `json:"categoryBreakdown"`
	WeeklyVolume       []WeekdayVolume   `json:"weeklyVolume"`
}

// WeekdayVolume 按星期统计的收件数
type WeekdayVolume struct {
	Day     string `json:"name"`
	Emails  int    `json:"emails"`
	Replied int    `json:"responses"`
}

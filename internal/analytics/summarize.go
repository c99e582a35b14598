// Package analytics 计算看板统计数据并按 actor 缓存
package analytics

import (
	"time"

	"emailai/internal/model"
)

// NoResponseTime 存储中没有回复时间戳，平均响应时间无法计算
const NoResponseTime = "n/a"

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Summarize 根据已加载的邮件集合计算统计；所有枚举值都会出现在分布中（计数可能为 0）
func Summarize(emails []model.Email) model.EmailStats {
	stats := model.EmailStats{
		Total:              len(emails),
		AvgResponseTime:    NoResponseTime,
		SentimentBreakdown: make(map[model.Sentiment]int, len(model.Sentiments)),
		UrgencyBreakdown:   make(map[model.Urgency]int, len(model.Urgencies)),
		CategoryBreakdown:  make(map[model.Category]int, len(model.Categories)),
	}
	for _, s := range model.Sentiments {
		stats.SentimentBreakdown[s] = 0
	}
	for _, u := range model.Urgencies {
		stats.UrgencyBreakdown[u] = 0
	}
	for _, c := range model.Categories {
		stats.CategoryBreakdown[c] = 0
	}

	perDay := make(map[time.Weekday]*model.WeekdayVolume, len(weekdays))
	stats.WeeklyVolume = make([]model.WeekdayVolume, len(weekdays))
	for i, d := range weekdays {
		stats.WeeklyVolume[i].Day = d.String()[:3]
		perDay[d] = &stats.WeeklyVolume[i]
	}

	for _, e := range emails {
		switch e.Status {
		case model.StatusUnread:
			stats.Unread++
		case model.StatusReplied:
			stats.Replied++
		}

		if e.Sentiment.Valid() {
			stats.SentimentBreakdown[e.Sentiment]++
		}
		if e.Urgency.Valid() {
			stats.UrgencyBreakdown[e.Urgency]++
		}
		if e.Category.Valid() {
			stats.CategoryBreakdown[e.Category]++
		}

		day := perDay[e.ReceivedAt.UTC().Weekday()]
		day.Emails++
		if e.Status == model.StatusReplied {
			day.Replied++
		}
	}

	return stats
}

// ResponseRate 已回复占比（0..1），没有邮件时为 0
func ResponseRate(stats model.EmailStats) float64 {
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.Replied) / float64(stats.Total)
}

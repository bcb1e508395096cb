// Package stats computes dashboard aggregates and weekly insight narratives
// over an organization's feedback.
package stats

import (
	"time"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
)

// VolumeDays is the length of the daily volume series.
const VolumeDays = 30

const dateLayout = "2006-01-02"

type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

type VolumePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Stats struct {
	Total          int             `json:"total"`
	BySentiment    SentimentCounts `json:"bySentiment"`
	ByTopic        map[string]int  `json:"byTopic"`
	VolumeOverTime []VolumePoint   `json:"volumeOverTime"`
}

// Row is the projection of a feedback record that Aggregate needs.
type Row struct {
	Topic     string
	Sentiment ai.Sentiment
	CreatedAt time.Time
}

// Aggregate counts rows by sentiment and topic and builds a dense series of
// the VolumeDays UTC calendar days ending on now's date. With no rows the
// series is empty rather than thirty zeros.
func Aggregate(rows []Row, now time.Time) *Stats {
	s := &Stats{
		Total:          len(rows),
		ByTopic:        map[string]int{},
		VolumeOverTime: []VolumePoint{},
	}
	if len(rows) == 0 {
		return s
	}

	perDay := make(map[string]int, VolumeDays)
	for _, r := range rows {
		switch r.Sentiment {
		case ai.Positive:
			s.BySentiment.Positive++
		case ai.Negative:
			s.BySentiment.Negative++
		case ai.Neutral:
			s.BySentiment.Neutral++
		}
		s.ByTopic[r.Topic]++
		perDay[r.CreatedAt.UTC().Format(dateLayout)]++
	}

	today := now.UTC()
	for i := VolumeDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i).Format(dateLayout)
		s.VolumeOverTime = append(s.VolumeOverTime, VolumePoint{Date: day, Count: perDay[day]})
	}
	return s
}

package model

import "time"

// Loop source kinds.
const (
	LoopSourceStem   = "stem"
	LoopSourceSample = "sample"
)

// Loop is a repeated-playback artifact rendered from a stem or a sample.
// Like Sample it back-references its source by name only.
type Loop struct {
	ID         int64     `gorm:"primaryKey" json:"id"`
	SourceType string    `gorm:"size:16;not null" json:"sourceType"`
	TrackName  string    `gorm:"index;size:255;not null" json:"trackName"`
	StemName   string    `gorm:"size:64;not null" json:"stemName"`
	Filename   string    `gorm:"uniqueIndex;size:512;not null" json:"filename"`
	StartTime  float64   `json:"startTime"`
	EndTime    float64   `json:"endTime"`
	LoopCount  int       `json:"loopCount"`
	Duration   float64   `json:"duration"`
	CreatedAt  time.Time `json:"createdAt"`
}

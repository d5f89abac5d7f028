package model

import "time"

// OriginalStem is the sentinel stem name meaning a track's unseparated source
// audio rather than one of its stems.
const OriginalStem = "original"

// Sample is a user-extracted sub-range of a track's original audio or of one
// of its stems. TrackName and StemName are weak back-references: deleting the
// track does not delete samples carved from it.
type Sample struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	TrackName string    `gorm:"index;size:255;not null" json:"trackName"`
	StemName  string    `gorm:"size:64;not null" json:"stemName"`
	Filename  string    `gorm:"uniqueIndex;size:512;not null" json:"filename"`
	StartTime float64   `json:"startTime"`
	EndTime   float64   `json:"endTime"`
	Duration  float64   `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
}

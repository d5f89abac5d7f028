package model

import "time"

// Track represents a fully separated source recording in the library.
type Track struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"uniqueIndex;size:255;not null" json:"name"`
	BPM              *float64  `gorm:"column:bpm" json:"bpm"`
	Duration         *float64  `json:"duration"`
	StemCount        int       `json:"stemCount"`
	OriginalFilename string    `json:"originalFilename"`
	CreatedAt        time.Time `json:"createdAt"`

	// Stems are owned by the track; deleting the track deletes them.
	Stems []Stem `gorm:"constraint:OnDelete:CASCADE" json:"stems,omitempty"`
}

// Stem is one isolated channel (vocals, drums, ...) belonging to exactly one track.
type Stem struct {
	ID       int64    `gorm:"primaryKey" json:"id"`
	TrackID  int64    `gorm:"index;not null" json:"trackId"`
	Name     string   `gorm:"size:64;not null" json:"name"`
	Filename string   `gorm:"size:512;not null" json:"filename"`
	Duration *float64 `json:"duration"`
}

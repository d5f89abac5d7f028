package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Artifact filename conventions. These are used both when producing files and
// when reconciling a cold catalog from whatever is already on disk, so
// formatting and parsing must round-trip exactly.
//
//	stem:   output/{track}/{stem}.wav, original kept as original.{ext}
//	sample: {track} - {stem} ({start}s-{end}s).wav
//	loop:   {track} - {stem} ({start}s-{end}s) x{count}.wav

var (
	sampleFileRe = regexp.MustCompile(`^(.+) - (.+) \((\d+(?:\.\d+)?)s-(\d+(?:\.\d+)?)s\)\.wav$`)
	loopFileRe   = regexp.MustCompile(`^(.+) - (.+) \((\d+(?:\.\d+)?)s-(\d+(?:\.\d+)?)s\) x(\d+)\.wav$`)
)

// FormatSeconds renders a time offset with the minimal number of digits that
// still round-trips through ParseFloat.
func FormatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// StemFilename returns the bare filename for a stem inside its track folder.
func StemFilename(stemName string) string {
	return stemName + ".wav"
}

// OriginalFilename returns the name the source audio is kept under inside the
// track folder. ext may be given with or without the leading dot.
func OriginalFilename(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "wav"
	}
	return OriginalStem + "." + ext
}

// SampleFilename builds the canonical sample filename.
func SampleFilename(trackName, stemName string, start, end float64) string {
	return fmt.Sprintf("%s - %s (%ss-%ss).wav", trackName, stemName, FormatSeconds(start), FormatSeconds(end))
}

// LoopFilename builds the canonical loop filename.
func LoopFilename(trackName, stemName string, start, end float64, count int) string {
	return fmt.Sprintf("%s - %s (%ss-%ss) x%d.wav", trackName, stemName, FormatSeconds(start), FormatSeconds(end), count)
}

// SampleMeta holds the fields encoded in a sample filename.
type SampleMeta struct {
	TrackName string
	StemName  string
	Start     float64
	End       float64
}

// LoopMeta holds the fields encoded in a loop filename.
type LoopMeta struct {
	TrackName string
	StemName  string
	Start     float64
	End       float64
	Count     int
}

// ParseSampleFilename decodes a sample filename. It never fails hard: a name
// that does not follow the convention yields ok=false so reconciliation can
// skip it. Loop filenames are rejected here (the x{count} suffix).
func ParseSampleFilename(name string) (SampleMeta, bool) {
	name = filepath.Base(name)
	if loopFileRe.MatchString(name) {
		return SampleMeta{}, false
	}
	m := sampleFileRe.FindStringSubmatch(name)
	if m == nil {
		return SampleMeta{}, false
	}
	start, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return SampleMeta{}, false
	}
	end, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return SampleMeta{}, false
	}
	if start >= end {
		return SampleMeta{}, false
	}
	return SampleMeta{TrackName: m[1], StemName: m[2], Start: start, End: end}, true
}

// ParseLoopFilename decodes a loop filename; ok=false for anything that does
// not follow the convention.
func ParseLoopFilename(name string) (LoopMeta, bool) {
	name = filepath.Base(name)
	m := loopFileRe.FindStringSubmatch(name)
	if m == nil {
		return LoopMeta{}, false
	}
	start, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return LoopMeta{}, false
	}
	end, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return LoopMeta{}, false
	}
	count, err := strconv.Atoi(m[5])
	if err != nil {
		return LoopMeta{}, false
	}
	if start >= end || count < 1 {
		return LoopMeta{}, false
	}
	return LoopMeta{TrackName: m[1], StemName: m[2], Start: start, End: end, Count: count}, true
}

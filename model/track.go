package model

import "time"

// StageStatus records the outcome of one analysis stage for a track.
type StageStatus string

const (
	StageOK          StageStatus = "ok"
	StageFailed      StageStatus = "failed"
	StageUnavailable StageStatus = "unavailable"
	StageDisabled    StageStatus = "disabled"
)

// Succeeded reports whether the stage produced a usable payload.
func (s StageStatus) Succeeded() bool {
	return s == StageOK
}

// AnalysisFlags records which stages were requested and which actually
// succeeded. Absent record fields are interpreted through these flags:
// absence-because-disabled and absence-because-failed are different things.
type AnalysisFlags struct {
	TempoKey        StageStatus `json:"tempoKey" gorm:"column:flag_tempo_key;size:16"`
	EventClassifier StageStatus `json:"eventClassifier" gorm:"column:flag_event_classifier;size:16"`
	Embedding       StageStatus `json:"embedding" gorm:"column:flag_embedding;size:16"`
	Mood            StageStatus `json:"mood" gorm:"column:flag_mood;size:16"`
}

// Instrument is one classified instrument with its confidence in [0,1].
type Instrument struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// TrackRecord is the canonical persisted result of analyzing one audio file.
// Records are created exactly once by the aggregator and never updated in
// place; re-analysis produces a new record with a new ID.
type TrackRecord struct {
	ID              string       `json:"id" gorm:"primaryKey;size:36"`
	OwnerID         int64        `json:"ownerId" gorm:"not null;index;index:idx_owner_bpm_key,priority:1"`
	Filename        string       `json:"filename" gorm:"size:255;not null"`
	Format          string       `json:"format" gorm:"size:16"`
	FileSize        int64        `json:"fileSize"`
	DurationSeconds float64      `json:"durationSeconds"`
	BPM             *float64     `json:"bpm,omitempty" gorm:"column:bpm;index:idx_owner_bpm_key,priority:2"`
	Key             *string      `json:"key,omitempty" gorm:"column:track_key;size:32;index:idx_owner_bpm_key,priority:3"`
	Instruments     []Instrument `json:"instruments" gorm:"type:json;serializer:json"`
	MoodTags        []string     `json:"moodTags" gorm:"type:json;serializer:json"`
	// EmbeddingSummary is reserved for similarity features and is never
	// filtered on directly.
	EmbeddingSummary []float64     `json:"embeddingSummary,omitempty" gorm:"type:json;serializer:json"`
	AnalyzedAt       time.Time     `json:"analyzedAt"`
	Flags            AnalysisFlags `json:"analysisFlags" gorm:"embedded"`
}

// TableName sets the table name for GORM.
func (TrackRecord) TableName() string {
	return "tracks"
}

// HasMood reports whether the record carries the given mood tag (exact match).
func (t *TrackRecord) HasMood(tag string) bool {
	for _, m := range t.MoodTags {
		if m == tag {
			return true
		}
	}
	return false
}

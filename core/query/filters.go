package query

import (
	"strings"

	"TuneScope/model"
)

// Filters is the explicit filter specification over track records. All
// supplied predicates are ANDed. An omitted predicate matches everything;
// an empty or blank string is normalized to omitted. A record lacking a
// field referenced by an active predicate is excluded by that predicate.
//
// An inverted BPM range (min > max) is accepted and yields an empty result
// set. That is deliberate policy, not an error.
type Filters struct {
	MinBPM     *float64 `json:"min_bpm,omitempty"`
	MaxBPM     *float64 `json:"max_bpm,omitempty"`
	Key        string   `json:"key,omitempty"`
	Mood       string   `json:"mood,omitempty"`
	Instrument string   `json:"instrument,omitempty"`
	Filename   string   `json:"filename,omitempty"`
}

// Normalize trims the substring predicates and blanks empty ones so that
// "empty string" and "omitted" behave identically downstream.
func (f *Filters) Normalize() {
	f.Key = strings.TrimSpace(f.Key)
	f.Mood = strings.TrimSpace(f.Mood)
	f.Instrument = strings.TrimSpace(f.Instrument)
	f.Filename = strings.TrimSpace(f.Filename)
}

// IsZero reports whether no predicate is active.
func (f *Filters) IsZero() bool {
	return f.MinBPM == nil && f.MaxBPM == nil &&
		f.Key == "" && f.Mood == "" && f.Instrument == "" && f.Filename == ""
}

// Match reports whether the record satisfies every active predicate.
func (f *Filters) Match(rec *model.TrackRecord) bool {
	if f.MinBPM != nil {
		if rec.BPM == nil || *rec.BPM < *f.MinBPM {
			return false
		}
	}
	if f.MaxBPM != nil {
		if rec.BPM == nil || *rec.BPM > *f.MaxBPM {
			return false
		}
	}
	if f.Key != "" {
		if rec.Key == nil || !containsFold(*rec.Key, f.Key) {
			return false
		}
	}
	if f.Filename != "" && !containsFold(rec.Filename, f.Filename) {
		return false
	}
	if f.Mood != "" && !anyContainsFold(rec.MoodTags, f.Mood) {
		return false
	}
	if f.Instrument != "" {
		found := false
		for _, inst := range rec.Instruments {
			if containsFold(inst.Name, f.Instrument) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply filters records in place order, returning the matches.
func Apply(records []*model.TrackRecord, f Filters) []*model.TrackRecord {
	f.Normalize()
	matched := make([]*model.TrackRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			matched = append(matched, rec)
		}
	}
	return matched
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func anyContainsFold(values []string, needle string) bool {
	for _, v := range values {
		if containsFold(v, needle) {
			return true
		}
	}
	return false
}

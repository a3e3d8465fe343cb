package model

// BatchItem is the per-file outcome of a batch analysis run. Exactly one of
// TrackID or Error is set. Items appear in input order.
type BatchItem struct {
	Filename string `json:"filename"`
	Status   string `json:"status"` // "success" or "error"
	TrackID  string `json:"trackId,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"` // machine-readable error code
}

// BatchReport is the consolidated result of one batch analysis run.
// Successful + Failed always equals Total.
type BatchReport struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Results    []BatchItem `json:"results"`
}

// StatsSummary aggregates one owner's track library.
type StatsSummary struct {
	TotalTracks          int64    `json:"totalTracks"`
	AvgBPM               float64  `json:"avgBpm"` // mean over records with bpm, one decimal
	TotalDurationSeconds float64  `json:"totalDurationSeconds"`
	CommonKeys           []string `json:"commonKeys"`
	CommonMoods          []string `json:"commonMoods"`
}

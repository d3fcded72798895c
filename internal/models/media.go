package models

import "time"

type Recording struct {
	ID         string    `db:"id" json:"id"`
	FilePath   string    `db:"file_path" json:"filePath"`
	SampleRate int       `db:"sample_rate" json:"sampleRate"`
	Samples    int       `db:"samples" json:"samples"`
	DurationMs int64     `db:"duration_ms" json:"durationMs"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type Transcript struct {
	ID        string              `db:"id" json:"id"`
	FilePath  string              `db:"file_path" json:"filePath"`
	Segments  []TranscriptSegment `db:"segments" json:"segments"`
	CreatedAt time.Time           `db:"created_at" json:"createdAt"`
}

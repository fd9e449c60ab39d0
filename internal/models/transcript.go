// internal/models/transcript.go
package models

// Transcript is the raw text of a recorded merchant interview.
type Transcript struct {
	SourceFile string `json:"source_file"`
	FullText   string `json:"full_text"`
}

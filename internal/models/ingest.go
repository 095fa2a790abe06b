package models

// Outcome statuses reported per fragment.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// File statuses reported per ingested file.
const (
	FileSuccess = "success"
	FilePartial = "partial"
	FileWarning = "warning"
	FileError   = "error"
)

// FragmentRef identifies a submitted fragment in an ingestion report.
type FragmentRef struct {
	Index       int    `json:"index"`
	ID          string `json:"id"`
	SourceID    string `json:"source_id"`
	PageNumber  *int   `json:"page_number,omitempty"`
	ChunkNumber *int   `json:"chunk_number,omitempty"`
}

// Outcome is the result of ingesting a single fragment.
// Slot is set only when Status is OutcomeSuccess.
type Outcome struct {
	Fragment FragmentRef `json:"fragment"`
	Status   string      `json:"status"`
	Detail   string      `json:"detail,omitempty"`
	Slot     *int        `json:"slot,omitempty"`
	Err      error       `json:"-"`
}

// OK reports whether the fragment was stored.
func (o Outcome) OK() bool {
	return o.Status == OutcomeSuccess
}

// FileReport summarizes the ingestion of one uploaded or watched file.
type FileReport struct {
	DocumentID string    `json:"document_id,omitempty"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Fragments  int       `json:"fragments"`
	Indexed    int       `json:"indexed"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
}

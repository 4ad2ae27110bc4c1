package entity

// SourceDocument is one discovered input file. Text is not retained here;
// it lives only for the duration of a document's processing.
type SourceDocument struct {
	Path      string `json:"path"` // absolute
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	PageCount int    `json:"page_count,omitempty"` // 0 when unknown
}

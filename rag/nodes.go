package rag

// DocumentNode is a source document such as a book or a bare act.
type DocumentNode struct {
	DocID string `json:"doc_id"`
	Title string `json:"title"`
}

// TopicNode is a syllabus topic. Paper is the UPSC paper, e.g. "GS-2".
type TopicNode struct {
	Name  string `json:"name"`
	Paper string `json:"paper"`
}

// EntityNode is a named entity such as "Article 14" or "Supreme Court".
type EntityNode struct {
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
}

// PYQNode is a past year question.
type PYQNode struct {
	PYQID string `json:"pyq_id"`
	Year  int    `json:"year"`
	Text  string `json:"text"`
}

// ChunkRecord is one embedded piece of a document, linked to the document it
// came from and the topic it covers.
type ChunkRecord struct {
	ChunkID   string       `json:"chunk_id"`
	Text      string       `json:"text"`
	Embedding []float32    `json:"embedding,omitempty"`
	Document  DocumentNode `json:"document"`
	Topic     TopicNode    `json:"topic"`
}

package domain

// Passage is a chunk of a corpus document tagged with the file it came from.
type Passage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// RetrievedPassage is a passage returned for one query with its similarity to it.
type RetrievedPassage struct {
	Passage    Passage `json:"passage"`
	Similarity float64 `json:"similarity"`
}

// SourceFile is one file of the corpus directory.
type SourceFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

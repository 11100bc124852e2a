package domain

import (
	"fmt"
	"time"
)

// Document is extracted source text with its provenance. Page is zero for
// sources that are not paginated.
type Document struct {
	Origin string
	Page   int
	Text   string
}

// Chunk is a contiguous slice of one Document's text. DocumentIndex is the
// position of the source Document in the build input and ChunkIndex the
// position of the chunk inside that Document; together they define the
// original document order.
type Chunk struct {
	ID            string `json:"id"`
	Origin        string `json:"origin"`
	Page          int    `json:"page,omitempty"`
	DocumentIndex int    `json:"document_index"`
	ChunkIndex    int    `json:"chunk_index"`
	Text          string `json:"text"`
}

func (c Chunk) Citation() Citation {
	out := Citation{Origin: c.Origin}
	if c.Page > 0 {
		page := c.Page
		out.Page = &page
	}
	return out
}

// Before reports whether c precedes other in original document order.
func (c Chunk) Before(other Chunk) bool {
	if c.DocumentIndex != other.DocumentIndex {
		return c.DocumentIndex < other.DocumentIndex
	}
	return c.ChunkIndex < other.ChunkIndex
}

type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Citation is what a report consumer needs to render a source reference.
type Citation struct {
	Origin         string `json:"source"`
	Page           *int   `json:"page"`
	ContentPreview string `json:"content_preview,omitempty"`
}

func CitationsOf(chunks []ScoredChunk) []Citation {
	out := make([]Citation, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, chunk.Citation())
	}
	return out
}

type BuildStatus string

const (
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// IndexBuild is the journal entry of one Chunk Index build.
type IndexBuild struct {
	ID         string      `json:"id"`
	Collection string      `json:"collection"`
	Status     BuildStatus `json:"status"`
	Documents  int         `json:"documents"`
	Chunks     int         `json:"chunks"`
	Skipped    int         `json:"skipped"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// IndexManifest describes a built Chunk Index. Its presence on disk marks the
// index as built.
type IndexManifest struct {
	Collection string    `json:"collection"`
	EmbedModel string    `json:"embed_model"`
	Chunks     int       `json:"chunks"`
	Documents  int       `json:"documents"`
	BuiltAt    time.Time `json:"built_at"`
}

// CheckEmbedModel fails with ErrIndexNotFound when the index was built with a
// different embedding model than model. A manifest without a recorded model
// is accepted.
func (m IndexManifest) CheckEmbedModel(model string) error {
	if m.EmbedModel == "" || m.EmbedModel == model {
		return nil
	}
	return WrapError(ErrIndexNotFound, "check embedding model",
		fmt.Errorf("index built with model %q, queries use %q", m.EmbedModel, model))
}

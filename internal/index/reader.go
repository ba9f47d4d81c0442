package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/store"
)

// maxLineBytes bounds one JSONL record; embeddings make lines long.
const maxLineBytes = 16 * 1024 * 1024

// record is one line of a chunk file.
// Embedding is either a JSON number array or the text form "[0.1,0.2]".
type record struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	EntityKey string          `json:"entity_key"`
	Content   string          `json:"content"`
	Embedding json.RawMessage `json:"embedding"`
}

// ReadResult holds the chunks read from a file and the lines that were skipped.
type ReadResult struct {
	Chunks  []*store.Chunk
	Skipped []error
}

// ReadChunks parses JSONL chunk records from r. Malformed lines, lines with
// empty content and unparseable embeddings are skipped and reported as
// document parse errors. Records without an id get a random UUID.
func ReadChunks(r io.Reader) (*ReadResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	res := &ReadResult{}
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		c, err := parseRecord(raw)
		if err != nil {
			perr := errors.New(errors.ErrCodeDocumentParse, fmt.Sprintf("line %d: %v", line, err), err).
				WithDetail("line", fmt.Sprintf("%d", line))
			slog.Warn("chunk_record_skipped", slog.Int("line", line), slog.String("error", err.Error()))
			res.Skipped = append(res.Skipped, perr)
			continue
		}
		res.Chunks = append(res.Chunks, c)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeDocumentParse, "failed to read chunk file", err)
	}
	return res, nil
}

func parseRecord(raw []byte) (*store.Chunk, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if strings.TrimSpace(rec.Content) == "" {
		return nil, fmt.Errorf("content is empty")
	}

	emb, err := decodeEmbedding(rec.Embedding)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return &store.Chunk{
		ID:        id,
		Source:    rec.Source,
		EntityKey: rec.EntityKey,
		Content:   rec.Content,
		Embedding: emb,
	}, nil
}

func decodeEmbedding(raw json.RawMessage) ([]float32, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var serialized string
		if err := json.Unmarshal(raw, &serialized); err != nil {
			return nil, fmt.Errorf("invalid embedding string: %w", err)
		}
		if strings.TrimSpace(serialized) == "" {
			return nil, nil
		}
		return search.ParseEmbedding(serialized)
	}

	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("invalid embedding array: %w", err)
	}
	if len(vec) == 0 {
		return nil, nil
	}
	return vec, nil
}

package mcp

// Tool names.
const (
	ToolSearch  = "search"
	ToolRewrite = "rewrite_query"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the natural-language question or keywords to search for"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, max 100"`
	Mode          string   `json:"mode,omitempty" jsonschema:"retrieval mode: hybrid (default) or cosine"`
	Entity        string   `json:"entity,omitempty" jsonschema:"restrict results to one entity key"`
	Alpha         *float64 `json:"alpha,omitempty" jsonschema:"weight of vector similarity between 0 and 1, default 0.7"`
	MinSimilarity float64  `json:"min_similarity,omitempty" jsonschema:"drop candidates whose vector similarity is below this value"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Query    string         `json:"query" jsonschema:"the refined query that was searched"`
	Language string         `json:"language" jsonschema:"detected language code of the query"`
	Mode     string         `json:"mode" jsonschema:"retrieval mode that ran"`
	Results  []ResultOutput `json:"results" jsonschema:"ranked results, best first"`
}

// ResultOutput is a single search result.
type ResultOutput struct {
	ID           string  `json:"id" jsonschema:"chunk identifier"`
	Source       string  `json:"source" jsonschema:"table or collection the chunk came from"`
	EntityKey    string  `json:"entity_key,omitempty" jsonschema:"entity the chunk belongs to"`
	Content      string  `json:"content" jsonschema:"chunk text"`
	Score        float64 `json:"score" jsonschema:"fused score in hybrid mode, cosine similarity in cosine mode"`
	VectorScore  float64 `json:"vector_score,omitempty" jsonschema:"normalized vector similarity"`
	KeywordScore float64 `json:"keyword_score,omitempty" jsonschema:"normalized keyword rank"`
}

// RewriteInput defines the input schema for the rewrite_query tool.
type RewriteInput struct {
	Query string `json:"query" jsonschema:"the raw query to normalize"`
}

// RewriteOutput defines the output schema for the rewrite_query tool.
type RewriteOutput struct {
	Original        string   `json:"original"`
	Refined         string   `json:"refined" jsonschema:"query used for retrieval"`
	Stemmed         string   `json:"stemmed" jsonschema:"refined query reduced to stems"`
	Language        string   `json:"language"`
	IsMultiQuestion bool     `json:"is_multi_question"`
	Questions       []string `json:"questions"`
}

// Package tenant loads per-center configuration: the target column set,
// template spreadsheet, and header detection hints that vary between
// procurement centers.
package tenant

// Config is one center's settings, read from <dir>/<centerID>.json.
type Config struct {
	ID                    string  `json:"id"`
	DisplayName           string  `json:"displayName"`
	TemplateSpreadsheetID string  `json:"templateSpreadsheetId"`
	TemplateSheetID       int     `json:"templateSheetId"`
	ExportStartRow        int     `json:"exportStartRow"`
	CoverPages            int     `json:"coverPages,omitempty"`
	Headers               Headers `json:"headers,omitempty"`
	Ranges                Ranges  `json:"ranges,omitempty"`
}

// Headers holds column detection hints.
type Headers struct {
	JudgeCandidates []string `json:"judgeCandidates,omitempty"`
	FallbackChars   string   `json:"fallbackChars,omitempty"`
	NeedColumns     []string `json:"needColumns,omitempty"`
}

// Ranges holds A1 ranges used by export templates.
type Ranges struct {
	Catalog string       `json:"catalog,omitempty"`
	Export  ExportRanges `json:"export,omitempty"`
}

type ExportRanges struct {
	MakerHeader string `json:"makerHeader,omitempty"`
	CenterName  string `json:"centerName,omitempty"`
	Month       string `json:"month,omitempty"`
}

// configSchema constrains center config files. Validation runs at load time
// so a malformed file fails its first request instead of producing a
// half-empty pipeline run.
func configSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"id", "displayName"},
		"properties": map[string]any{
			"id":                    map[string]any{"type": "string", "minLength": 1},
			"displayName":           map[string]any{"type": "string", "minLength": 1},
			"templateSpreadsheetId": map[string]any{"type": "string"},
			"templateSheetId":       map[string]any{"type": "integer", "minimum": 0},
			"exportStartRow":        map[string]any{"type": "integer", "minimum": 0},
			"coverPages":            map[string]any{"type": "integer", "minimum": 0},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"judgeCandidates": stringArrayProp(),
					"fallbackChars":   map[string]any{"type": "string"},
					"needColumns":     stringArrayProp(),
				},
			},
			"ranges": map[string]any{"type": "object"},
		},
	}
}

func stringArrayProp() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

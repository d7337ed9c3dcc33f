package export

import (
	"encoding/json"
	"io"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// JSONExporter exports debate results to JSON format.
type JSONExporter struct{}

// Export writes the debate result as JSON.
func (e *JSONExporter) Export(result *core.DebateResult, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}

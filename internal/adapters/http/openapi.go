package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openAPISpec []byte

// contract validates request bodies against the embedded OpenAPI document.
type contract struct {
	answerRequest *openapi3.Schema
}

func loadContract() (*contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	ref := doc.Components.Schemas["AnswerRequest"]
	if ref == nil || ref.Value == nil {
		return nil, fmt.Errorf("openapi document has no AnswerRequest schema")
	}
	return &contract{answerRequest: ref.Value}, nil
}

func (c *contract) validateAnswerRequest(raw []byte) error {
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid json")
	}
	if err := c.answerRequest.VisitJSON(body, openapi3.MultiErrors()); err != nil {
		return err
	}
	return nil
}

func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails is an RFC 7807 error body. Extensions are flattened into
// the top-level object and cannot shadow the standard members.
type ProblemDetails struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string

	Extensions map[string]interface{}
}

// NewProblemDetails builds a problem for one request
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: map[string]interface{}{},
	}
}

// WithExtension sets an extension member and returns the problem
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = map[string]interface{}{}
	}
	pd.Extensions[key] = value
	return pd
}

// Render sets the response status for chi/render
func (pd *ProblemDetails) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	body := make(map[string]interface{}, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		body[k] = v
	}
	body["type"] = pd.Type
	body["title"] = pd.Title
	body["status"] = pd.Status
	delete(body, "detail")
	delete(body, "instance")
	if pd.Detail != "" {
		body["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		body["instance"] = pd.Instance
	}
	return json.Marshal(body)
}

package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// QueryParams is the request body for the query endpoint.
type QueryParams struct {
	Query          string            `json:"query" validate:"required"`
	Collection     string            `json:"collection,omitempty"`
	MaxResults     int               `json:"max_results,omitempty" validate:"omitempty,min=1,max=50"`
	UseGeneration  *bool             `json:"use_generation,omitempty"`
	MetadataFilter map[string]string `json:"metadata_filter,omitempty"`
}

func (params *QueryParams) Validate() map[string]string {
	return validateStruct(params)
}

// IngestResponse acknowledges an accepted upload. Processing continues in
// the background; callers poll document status.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}

// QueryResponse is the synchronous answer to one question. Answer is null
// when generation was disabled, degraded or had no context to work with.
type QueryResponse struct {
	Answer          *string  `json:"answer"`
	Sources         []Source `json:"sources"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
}

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// SearchParams is the body of POST /api/v1/search. Directory and Files scope
// the search to a subtree or an explicit file subset; both are optional.
type SearchParams struct {
	Query     string   `json:"query" validate:"required"`
	Directory string   `json:"directory"`
	Files     []string `json:"files"`
	Limit     int      `json:"limit" validate:"omitempty,gt=0"`
	Page      int      `json:"page" validate:"omitempty,gte=1"`
}

// RequestParams is the body of POST /api/v1/request: a query with optional
// prior conversation turns passed through to answer generation.
type RequestParams struct {
	Query   string   `json:"query" validate:"required"`
	History []string `json:"history"`
}

// IngestParams is the body of POST /api/v1/documents. ID is optional: when
// set it names the document to replace; when empty the document is matched
// by file name and source, and a fresh id is minted only if none exists.
type IngestParams struct {
	ID        string        `json:"id" validate:"omitempty,uuid"`
	FileName  string        `json:"file_name" validate:"required"`
	Source    string        `json:"source"`
	SourceURL string        `json:"source_url"`
	Chunks    []IngestChunk `json:"chunks" validate:"required,min=1,dive"`
}

type IngestChunk struct {
	Text string `json:"text" validate:"required"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func validateStruct(s any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func (params *SearchParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *RequestParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *IngestParams) Validate() map[string]string {
	return validateStruct(params)
}

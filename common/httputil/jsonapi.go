package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Resource is a single JSON:API resource object.
type Resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// Meta carries collection metadata.
type Meta struct {
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// PaginationMeta is the pagination block of a collection document.
type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// CollectionDocument is a JSON:API document holding a list of resources.
type CollectionDocument struct {
	Data   []Resource    `json:"data"`
	Meta   *Meta         `json:"meta,omitempty"`
	Errors []ErrorObject `json:"errors,omitempty"`
}

// ErrorObject is a JSON:API error.
type ErrorObject struct {
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Error renders "code: detail".
func (e ErrorObject) Error() string {
	switch {
	case e.Code != "" && e.Detail != "":
		return e.Code + ": " + e.Detail
	case e.Detail != "":
		return e.Detail
	case e.Title != "":
		return e.Title
	default:
		return "status " + e.Status
	}
}

// NewResource splits a flat row into a resource, using "id" as its ID.
func NewResource(resourceType string, row map[string]any) Resource {
	attrs := make(map[string]any, len(row))
	var id string
	for k, v := range row {
		if k == "id" {
			id = fmt.Sprint(v)
			continue
		}
		attrs[k] = v
	}
	return Resource{Type: resourceType, ID: id, Attributes: attrs}
}

// Flatten merges the ID back into the attributes.
func (r Resource) Flatten() map[string]any {
	row := make(map[string]any, len(r.Attributes)+1)
	for k, v := range r.Attributes {
		row[k] = v
	}
	if r.ID != "" {
		row["id"] = r.ID
	}
	return row
}

// WriteJSONAPICollection writes a collection with optional pagination meta.
func WriteJSONAPICollection(w http.ResponseWriter, status int, items []Resource, pagination *Pagination) {
	if items == nil {
		items = []Resource{}
	}
	doc := CollectionDocument{Data: items}
	if pagination != nil {
		doc.Meta = &Meta{Pagination: &PaginationMeta{
			Page:       pagination.Page,
			Limit:      pagination.Limit,
			Total:      pagination.Total,
			TotalPages: pagination.TotalPages(),
		}}
	}
	WriteJSONAPI(w, status, doc)
}

// WriteJSONAPIError writes a document with a single error.
func WriteJSONAPIError(w http.ResponseWriter, status int, code, title, detail string) {
	WriteJSONAPI(w, status, CollectionDocument{Errors: []ErrorObject{{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  title,
		Detail: detail,
	}}})
}

// WriteJSONAPIValidationError writes a 400 validation error.
func WriteJSONAPIValidationError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusBadRequest, "validation_failed", "Validation Failed", detail)
}

// WriteJSONAPINotFoundError writes a 404 for an unknown resource type.
func WriteJSONAPINotFoundError(w http.ResponseWriter, resourceType string) {
	WriteJSONAPIError(w, http.StatusNotFound, "not_found", "Resource Not Found",
		"no collection named '"+resourceType+"'")
}

// WriteJSONAPIInternalError writes a 500.
func WriteJSONAPIInternalError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error", detail)
}

// DecodeCollection reads a collection document. Error documents are
// returned as the first ErrorObject.
func DecodeCollection(r io.Reader) (CollectionDocument, error) {
	var doc CollectionDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return CollectionDocument{}, fmt.Errorf("decode collection: %w", err)
	}
	if len(doc.Errors) > 0 {
		return doc, doc.Errors[0]
	}
	return doc, nil
}

// AsErrorObject unwraps a JSON:API error from err.
func AsErrorObject(err error) (ErrorObject, bool) {
	var e ErrorObject
	ok := errors.As(err, &e)
	return e, ok
}

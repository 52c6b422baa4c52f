package search

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tordrt/metaharvest/internal/catalog"
)

// response is the envelope returned by the search endpoint
type response struct {
	ApproximateCount json.RawMessage   `json:"approximateCount"`
	Entities         []json.RawMessage `json:"entities"`
}

// approximateCount returns the server's total hit estimate. It is advisory,
// so any value that is not a number is reported as absent.
func (r *response) approximateCount() (int64, bool) {
	v := flexibleString(r.ApproximateCount)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// entity is one search hit. Every field is optional.
type entity struct {
	TypeName   json.RawMessage            `json:"typeName"`
	Attributes map[string]json.RawMessage `json:"attributes"`
	CreatedBy  json.RawMessage            `json:"createdBy"`
	UpdatedBy  json.RawMessage            `json:"updatedBy"`
	CreateTime json.RawMessage            `json:"createTime"`
	UpdateTime json.RawMessage            `json:"updateTime"`
}

func (e *entity) attr(name string) string {
	return flexibleString(e.Attributes[name])
}

// name prefers the name attribute and falls back to displayName
func (e *entity) name() string {
	if n := e.attr("name"); n != "" {
		return n
	}
	return e.attr("displayName")
}

func decodeResponse(body []byte) (*response, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

var errNotObject = errors.New("entity is not a JSON object")

func decodeEntity(raw json.RawMessage) (*entity, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotObject
	}

	var e entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("invalid entity: %w", err)
	}
	return &e, nil
}

func (e *entity) toConnection() catalog.Connection {
	return catalog.Connection{
		Name:          e.name(),
		QualifiedName: e.attr("qualifiedName"),
		ConnectorName: e.attr("connectorName"),
		Category:      e.attr("category"),
		CreatedBy:     flexibleString(e.CreatedBy),
		UpdatedBy:     flexibleString(e.UpdatedBy),
		CreateTime:    flexibleString(e.CreateTime),
		UpdateTime:    flexibleString(e.UpdateTime),
	}
}

func (e *entity) toDatabase(connectionQualifiedName string) catalog.DatabaseRecord {
	return catalog.DatabaseRecord{
		ConnectionQualifiedName: connectionQualifiedName,
		TypeName:                flexibleString(e.TypeName),
		QualifiedName:           e.attr("qualifiedName"),
		Name:                    e.name(),
		CreatedBy:               flexibleString(e.CreatedBy),
		UpdatedBy:               flexibleString(e.UpdatedBy),
		CreateTime:              flexibleString(e.CreateTime),
		UpdateTime:              flexibleString(e.UpdateTime),
	}
}

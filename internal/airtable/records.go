package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Fields is a partial record body. A nil value clears the cell.
type Fields map[string]any

type Record struct {
	ID          string          `json:"id"`
	CreatedTime string          `json:"createdTime,omitempty"`
	Fields      json.RawMessage `json:"fields"`
}

// Decode unmarshals the record's fields into v.
func (r Record) Decode(v any) error {
	if len(r.Fields) == 0 {
		return nil
	}
	return json.Unmarshal(r.Fields, v)
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type SortField struct {
	Field     string
	Direction Direction
}

type ListParams struct {
	Filter     string
	Sort       []SortField
	PageSize   int
	MaxRecords int
	Offset     string
	Fields     []string
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.MaxRecords > 0 {
		v.Set("maxRecords", strconv.Itoa(p.MaxRecords))
	}
	if p.Filter != "" {
		v.Set("filterByFormula", p.Filter)
	}
	for i, s := range p.Sort {
		v.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		v.Set(fmt.Sprintf("sort[%d][direction]", i), string(s.Direction))
	}
	for _, f := range p.Fields {
		v.Add("fields[]", f)
	}
	if p.Offset != "" {
		v.Set("offset", p.Offset)
	}
	return v
}

type ListResult struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// RecordPatch is one element of a batch update.
type RecordPatch struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

type recordsBody struct {
	Records []RecordPatch `json:"records"`
}

type createBody struct {
	Records []struct {
		Fields Fields `json:"fields"`
	} `json:"records"`
}

// List issues exactly one list call.
func (c *Client) List(ctx context.Context, p ListParams) (*ListResult, error) {
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	target := c.baseURL
	if q := p.values().Encode(); q != "" {
		target += "?" + q
	}
	var out ListResult
	if err := c.Do(ctx, http.MethodGet, target, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	var out Record
	if err := c.Do(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Create(ctx context.Context, fields Fields) (*Record, error) {
	var body createBody
	body.Records = append(body.Records, struct {
		Fields Fields `json:"fields"`
	}{Fields: fields})

	var out struct {
		Records []Record `json:"records"`
	}
	if err := c.Do(ctx, http.MethodPost, c.baseURL, body, &out); err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, &APIError{Status: http.StatusOK, Message: "Create returned no records."}
	}
	return &out.Records[0], nil
}

// Update patches up to MaxBatchSize records in one call.
func (c *Client) Update(ctx context.Context, patches []RecordPatch) error {
	if len(patches) == 0 {
		return nil
	}
	if len(patches) > MaxBatchSize {
		return fmt.Errorf("airtable update: %d records exceeds batch limit of %d", len(patches), MaxBatchSize)
	}
	return c.Do(ctx, http.MethodPatch, c.baseURL, recordsBody{Records: patches}, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, c.baseURL+"/"+url.PathEscape(id), nil, nil)
}

// Probe checks that the client's token can read its table (maxRecords=1).
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.List(ctx, ListParams{MaxRecords: 1})
	return err
}

// Package jsonapi flattens JSON:API-shaped payloads ("data" + "included" +
// "relationships") into plain records that page scrapers can consume without
// chasing (type, id) references themselves.
package jsonapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMissingData       = errors.New("jsonapi: payload has no data")
	ErrMalformedResource = errors.New("jsonapi: malformed resource")
)

// Ref identifies a resource by its (type, id) pair.
type Ref struct {
	Type string
	ID   string
}

// Relationship is either null, a single reference or an ordered list of
// references. A relationship without a "data" key is not present at all.
type Relationship struct {
	Present bool
	IsList  bool
	Single  *Ref
	Many    []Ref
}

type Resource struct {
	Type          string
	ID            string
	Attributes    map[string]any
	Relationships map[string]Relationship
	Links         map[string]any
}

type Document struct {
	Data     []Resource
	Included []Resource
}

// Record is a denormalized resource: id, type, attributes and top-level
// links merged flat, plus one entry per resolved relationship.
type Record map[string]any

type rawRelationship struct {
	Data json.RawMessage `json:"data"`
}

type rawResource struct {
	Type          string                     `json:"type"`
	ID            string                     `json:"id"`
	Attributes    map[string]any             `json:"attributes"`
	Relationships map[string]rawRelationship `json:"relationships"`
	Links         map[string]any             `json:"links"`
}

type rawDocument struct {
	Data     json.RawMessage `json:"data"`
	Included []rawResource   `json:"included"`
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Decode parses a JSON:API payload, validating eagerly so denormalization
// never has to deal with partial resources. A payload without a "data" key
// (or with "data": null) fails with ErrMissingData; any resource or
// reference missing its type or id fails with ErrMalformedResource.
func Decode(payload []byte) (Document, error) {
	var raw rawDocument
	err := json.Unmarshal(payload, &raw)
	if err != nil {
		return Document{}, fmt.Errorf("jsonapi: decode payload: %w", err)
	}
	if isNull(raw.Data) {
		return Document{}, ErrMissingData
	}

	var rawData []rawResource
	if bytes.HasPrefix(bytes.TrimSpace(raw.Data), []byte("[")) {
		err = json.Unmarshal(raw.Data, &rawData)
	} else {
		var single rawResource
		err = json.Unmarshal(raw.Data, &single)
		rawData = []rawResource{single}
	}
	if err != nil {
		return Document{}, fmt.Errorf("jsonapi: decode data: %w", err)
	}

	doc := Document{
		Data:     make([]Resource, 0, len(rawData)),
		Included: make([]Resource, 0, len(raw.Included)),
	}
	for i, r := range rawData {
		res, err := convertResource(r)
		if err != nil {
			return Document{}, fmt.Errorf("%w (data[%d])", err, i)
		}
		doc.Data = append(doc.Data, res)
	}
	for i, r := range raw.Included {
		res, err := convertResource(r)
		if err != nil {
			return Document{}, fmt.Errorf("%w (included[%d])", err, i)
		}
		doc.Included = append(doc.Included, res)
	}
	return doc, nil
}

func convertResource(raw rawResource) (Resource, error) {
	if raw.Type == "" {
		return Resource{}, fmt.Errorf("%w: missing type", ErrMalformedResource)
	}
	if raw.ID == "" {
		return Resource{}, fmt.Errorf("%w: missing id", ErrMalformedResource)
	}

	res := Resource{
		Type:       raw.Type,
		ID:         raw.ID,
		Attributes: raw.Attributes,
		Links:      raw.Links,
	}
	if len(raw.Relationships) == 0 {
		return res, nil
	}

	res.Relationships = make(map[string]Relationship, len(raw.Relationships))
	for name, rel := range raw.Relationships {
		converted, err := convertRelationship(rel)
		if err != nil {
			return Resource{}, fmt.Errorf("%w in relationship %q", err, name)
		}
		res.Relationships[name] = converted
	}
	return res, nil
}

func convertRelationship(raw rawRelationship) (Relationship, error) {
	// no "data" key at all: the relationship is skipped downstream
	if raw.Data == nil {
		return Relationship{}, nil
	}
	if isNull(raw.Data) {
		return Relationship{Present: true}, nil
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw.Data), []byte("[")) {
		var refs []Ref
		err := json.Unmarshal(raw.Data, &refs)
		if err != nil {
			return Relationship{}, fmt.Errorf("jsonapi: decode relationship: %w", err)
		}
		for _, ref := range refs {
			if ref.Type == "" || ref.ID == "" {
				return Relationship{}, fmt.Errorf("%w: reference missing type or id", ErrMalformedResource)
			}
		}
		return Relationship{Present: true, IsList: true, Many: refs}, nil
	}

	var ref Ref
	err := json.Unmarshal(raw.Data, &ref)
	if err != nil {
		return Relationship{}, fmt.Errorf("jsonapi: decode relationship: %w", err)
	}
	if ref.Type == "" || ref.ID == "" {
		return Relationship{}, fmt.Errorf("%w: reference missing type or id", ErrMalformedResource)
	}
	return Relationship{Present: true, Single: &ref}, nil
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}
	r.Type = raw.Type
	r.ID = raw.ID
	return nil
}

// Denormalize produces one flat record per entry in doc.Data, in order.
// It is a pure function: no I/O, no state shared between calls.
//
// The included lookup is keyed by (type, id); if the same key appears more
// than once, the last entry silently wins. Attribute and link names that
// collide with "id"/"type" override them (attributes first, then links):
// duplicates and collisions both resolve last-writer-wins.
func Denormalize(doc Document) []Record {
	lookup := make(map[Ref]Resource, len(doc.Included))
	for _, res := range doc.Included {
		lookup[Ref{Type: res.Type, ID: res.ID}] = res
	}

	records := make([]Record, 0, len(doc.Data))
	for _, res := range doc.Data {
		records = append(records, flattenPrimary(res, lookup))
	}
	return records
}

// DenormalizeBytes decodes then denormalizes a raw payload.
func DenormalizeBytes(payload []byte) ([]Record, error) {
	doc, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return Denormalize(doc), nil
}

func flattenPrimary(res Resource, lookup map[Ref]Resource) Record {
	rec := Record{
		"id":   res.ID,
		"type": res.Type,
	}
	for k, v := range res.Attributes {
		rec[k] = v
	}
	for k, v := range res.Links {
		rec[k] = v
	}

	for name, rel := range res.Relationships {
		switch {
		case !rel.Present:
			// no "data" key: contributes nothing
		case rel.IsList:
			flat := resolveList(rel.Many, lookup)
			if len(flat) > 0 {
				rec[name] = flat
			}
		case rel.Single == nil:
			// null relationship
		default:
			target, ok := lookup[*rel.Single]
			if !ok {
				// unresolved references are dropped, never placeholders
				continue
			}
			rec[name] = flattenTarget(target)
			flattenNested(rec, name, target, lookup)
		}
	}
	return rec
}

// flattenNested resolves the relationships of an already-resolved target one
// extra level, storing each under "<name>_<nested>" on the outer record.
// Resolution stops here, so reference cycles cannot recurse unboundedly.
func flattenNested(rec Record, name string, target Resource, lookup map[Ref]Resource) {
	for nested, rel := range target.Relationships {
		key := name + "_" + nested
		switch {
		case !rel.Present:
		case rel.IsList:
			flat := resolveList(rel.Many, lookup)
			if len(flat) > 0 {
				rec[key] = flat
			}
		case rel.Single == nil:
		default:
			ntarget, ok := lookup[*rel.Single]
			if ok {
				rec[key] = flattenTarget(ntarget)
			}
		}
	}
}

func resolveList(refs []Ref, lookup map[Ref]Resource) []Record {
	var flat []Record
	for _, ref := range refs {
		target, ok := lookup[ref]
		if !ok {
			continue
		}
		flat = append(flat, flattenTarget(target))
	}
	return flat
}

// flattenTarget merges a resource's attributes with its id and type. Unlike
// the primary record, id/type win here when an attribute collides.
func flattenTarget(res Resource) Record {
	out := make(Record, len(res.Attributes)+2)
	for k, v := range res.Attributes {
		out[k] = v
	}
	out["id"] = res.ID
	out["type"] = res.Type
	return out
}

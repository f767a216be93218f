// Package pulse defines the OTX pulse record in its raw API shape and in the
// normalized shape persisted to the document store.
package pulse

// Raw API field names.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldDescription = "description"
	FieldAuthorName  = "author_name"
	FieldCreated     = "created"
	FieldModified    = "modified"
	FieldTags        = "tags"
	FieldReferences  = "references"
)

// RawPulse is one element of a page's "results" array as decoded from JSON.
type RawPulse map[string]any

// Pulse is the normalized, fixed-shape document stored per pulse.
// ID becomes the document primary key; nil string fields are stored as null.
type Pulse struct {
	ID          string   `bson:"_id" json:"_id"`
	Name        *string  `bson:"name" json:"name"`
	Description *string  `bson:"description" json:"description"`
	AuthorName  *string  `bson:"author_name" json:"author_name"`
	Created     *string  `bson:"created" json:"created"`
	Modified    *string  `bson:"modified" json:"modified"`
	Tags        []string `bson:"tags" json:"tags"`
	References  []string `bson:"references" json:"references"`
}

// HasID reports whether the pulse can be stored.
func (p Pulse) HasID() bool {
	return p.ID != ""
}

// Transform projects a raw pulse into the normalized shape.
//
// Non-string scalars are treated as absent. List fields that are absent or
// null become empty, and their non-string elements are dropped. An empty or
// non-string id yields a Pulse for which HasID is false.
func Transform(raw RawPulse) Pulse {
	id, _ := raw[FieldID].(string)
	return Pulse{
		ID:          id,
		Name:        stringField(raw, FieldName),
		Description: stringField(raw, FieldDescription),
		AuthorName:  stringField(raw, FieldAuthorName),
		Created:     stringField(raw, FieldCreated),
		Modified:    stringField(raw, FieldModified),
		Tags:        stringList(raw, FieldTags),
		References:  stringList(raw, FieldReferences),
	}
}

// Raw projects a normalized pulse back into raw API keys.
// Transform(p.Raw()) equals p for any p returned by Transform.
func (p Pulse) Raw() RawPulse {
	raw := RawPulse{
		FieldTags:       toAnySlice(p.Tags),
		FieldReferences: toAnySlice(p.References),
	}
	if p.ID != "" {
		raw[FieldID] = p.ID
	}
	for key, v := range map[string]*string{
		FieldName:        p.Name,
		FieldDescription: p.Description,
		FieldAuthorName:  p.AuthorName,
		FieldCreated:     p.Created,
		FieldModified:    p.Modified,
	} {
		if v != nil {
			raw[key] = *v
		} else {
			raw[key] = nil
		}
	}
	return raw
}

func stringField(raw RawPulse, key string) *string {
	s, ok := raw[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func stringList(raw RawPulse, key string) []string {
	out := []string{}
	items, ok := raw[key].([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toAnySlice(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

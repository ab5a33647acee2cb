package domain

// SchemaType names a JSON schema type.
type SchemaType string

const (
	SchemaObject  SchemaType = "object"
	SchemaArray   SchemaType = "array"
	SchemaString  SchemaType = "string"
	SchemaInteger SchemaType = "integer"
	SchemaNumber  SchemaType = "number"
)

// Schema is a provider-neutral description of a structured response.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	// Order keeps property order stable for providers that honour it.
	Order    []string
	Required []string
	Items    *Schema
	MaxItems int
}

// AnalysisSchema is the response shape requested for résumé analysis.
func AnalysisSchema() *Schema {
	score := func(d string) *Schema { return &Schema{Type: SchemaInteger, Description: d} }
	return &Schema{
		Type: SchemaObject,
		Properties: map[string]*Schema{
			"summary":    {Type: SchemaString},
			"keywords":   {Type: SchemaArray, Items: &Schema{Type: SchemaString}},
			"suggestion": {Type: SchemaString},
			"score":      score("overall score 0-100"),
			"details": {
				Type: SchemaObject,
				Properties: map[string]*Schema{
					"impact":  score("0-100"),
					"brevity": score("0-100"),
					"ats":     score("0-100"),
					"style":   score("0-100"),
				},
				Order:    []string{"impact", "brevity", "ats", "style"},
				Required: []string{"impact", "brevity", "ats", "style"},
			},
		},
		Order:    []string{"summary", "keywords", "suggestion", "score", "details"},
		Required: []string{"summary", "keywords", "suggestion", "score", "details"},
	}
}

// EvaluationSchema is the response shape requested when an interview completes.
func EvaluationSchema() *Schema {
	list := &Schema{Type: SchemaArray, Items: &Schema{Type: SchemaString}, MaxItems: 5}
	return &Schema{
		Type: SchemaObject,
		Properties: map[string]*Schema{
			"score":        {Type: SchemaInteger, Description: "0-100"},
			"summary":      {Type: SchemaString},
			"strengths":    list,
			"improvements": list,
			"culturalFit":  {Type: SchemaString},
			"roadmap":      {Type: SchemaArray, Items: &Schema{Type: SchemaString}},
		},
		Order:    []string{"score", "summary", "strengths", "improvements", "culturalFit", "roadmap"},
		Required: []string{"score", "summary", "strengths", "improvements", "culturalFit", "roadmap"},
	}
}

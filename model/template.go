package model

import "time"

// VariableType is the value type a template variable accepts.
type VariableType string

const (
	VarString  VariableType = "string"
	VarNumber  VariableType = "number"
	VarDate    VariableType = "date"
	VarBoolean VariableType = "boolean"
)

// Template is a reusable contract skeleton.
type Template struct {
	ID          string       `json:"id" bson:"_id"`
	Name        string       `json:"name" bson:"name"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	Type        ContractType `json:"type" bson:"type"`
	Category    string       `json:"category,omitempty" bson:"category,omitempty"`
	Clauses     []Clause     `json:"clauses" bson:"clauses"`
	Variables   []Variable   `json:"variables" bson:"variables"`
	CreatedAt   time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// Clause is one ordered section of a template. Content may reference
// variables as {{name}}.
type Clause struct {
	ID        string   `json:"id" bson:"id"`
	Title     string   `json:"title" bson:"title"`
	Content   string   `json:"content" bson:"content"`
	Required  bool     `json:"required" bson:"required"`
	Variables []string `json:"variables,omitempty" bson:"variables,omitempty"`
}

// Variable describes one placeholder value and how to validate it.
type Variable struct {
	Name        string       `json:"name" bson:"name"`
	Label       string       `json:"label,omitempty" bson:"label,omitempty"`
	Type        VariableType `json:"type" bson:"type"`
	Required    bool         `json:"required" bson:"required"`
	Default     string       `json:"default,omitempty" bson:"default,omitempty"`
	Min         *float64     `json:"min,omitempty" bson:"min,omitempty"`
	Max         *float64     `json:"max,omitempty" bson:"max,omitempty"`
	Pattern     string       `json:"pattern,omitempty" bson:"pattern,omitempty"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
}

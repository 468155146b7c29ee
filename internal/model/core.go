package model

import "time"

// SourceType identifies how records are extracted.
type SourceType string

const (
	SourceSpreadsheet SourceType = "tabular-spreadsheet"
	SourceDelimited   SourceType = "delimited-text"
	SourceDocument    SourceType = "structured-document"
	SourceHTTPAPI     SourceType = "http-api"
)

// IsFileBacked reports whether the source reads from the local filesystem.
func (t SourceType) IsFileBacked() bool {
	return t == SourceSpreadsheet || t == SourceDelimited || t == SourceDocument
}

// DestinationType identifies where records are loaded.
type DestinationType string

const (
	DestinationTable   DestinationType = "relational-table"
	DestinationFile    DestinationType = "file"
	DestinationHTTPAPI DestinationType = "http-api"
)

// DataType is the target type of a mapped field.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeDate    DataType = "date"
	TypeBoolean DataType = "boolean"
)

// FieldTransform is the optional per-field transformation applied after coercion.
type FieldTransform string

const (
	FieldTrim      FieldTransform = "trim"
	FieldUppercase FieldTransform = "uppercase"
	FieldLowercase FieldTransform = "lowercase"
	FieldCurrency  FieldTransform = "currency"
)

// Operation is a pipeline-level transformation applied to mapped records.
type Operation string

const (
	OpClean     Operation = "clean"
	OpValidate  Operation = "validate"
	OpCalculate Operation = "calculate"
	OpFormat    Operation = "format"
	OpLookup    Operation = "lookup"
)

// AuthConfig describes credentials sent to http-api sources and destinations.
type AuthConfig struct {
	Type     string `json:"type" yaml:"type" validate:"oneof=bearer basic api-key"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Header   string `json:"header,omitempty" yaml:"header,omitempty"` // api-key header name
}

// FieldMapping derives one destination field from one source field.
type FieldMapping struct {
	SourceField    string         `json:"sourceField" yaml:"sourceField" validate:"required"`
	DataType       DataType       `json:"dataType" yaml:"dataType" validate:"required,oneof=string number date boolean"`
	Required       bool           `json:"required" yaml:"required"`
	DefaultValue   interface{}    `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Transformation FieldTransform `json:"transformation,omitempty" yaml:"transformation,omitempty" validate:"omitempty,oneof=trim uppercase lowercase currency"`
}

// Source describes where a pipeline reads from. Mapping is keyed by destination field.
type Source struct {
	Type        SourceType              `json:"type" yaml:"type" validate:"required,oneof=tabular-spreadsheet delimited-text structured-document http-api"`
	Location    string                  `json:"location" yaml:"location" validate:"required"`
	Mapping     map[string]FieldMapping `json:"mapping" yaml:"mapping" validate:"required,min=1,dive"`
	Sheet       string                  `json:"sheet,omitempty" yaml:"sheet,omitempty"`
	Delimiter   string                  `json:"delimiter,omitempty" yaml:"delimiter,omitempty" validate:"omitempty,len=1"`
	RecordsPath string                  `json:"recordsPath,omitempty" yaml:"recordsPath,omitempty"`
	Headers     map[string]string       `json:"headers,omitempty" yaml:"headers,omitempty"`
	Auth        *AuthConfig             `json:"auth,omitempty" yaml:"auth,omitempty"`
}

// Destination describes where a pipeline writes to.
type Destination struct {
	Type       DestinationType   `json:"type" yaml:"type" validate:"required,oneof=relational-table file http-api"`
	Location   string            `json:"location" yaml:"location" validate:"required"`
	Table      string            `json:"table,omitempty" yaml:"table,omitempty" validate:"required_if=Type relational-table"`
	KeyColumns []string          `json:"keyColumns,omitempty" yaml:"keyColumns,omitempty"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Auth       *AuthConfig       `json:"auth,omitempty" yaml:"auth,omitempty"`
	RateLimit  float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty" validate:"gte=0"`
}

// Transformation is one step of the pipeline-level transformation list.
type Transformation struct {
	Field      string                 `json:"field" yaml:"field" validate:"required"`
	Operation  Operation              `json:"operation" yaml:"operation" validate:"required,oneof=clean validate calculate format lookup"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Definition describes one logical ETL job. It is immutable for the duration of a run.
type Definition struct {
	Name            string           `json:"name" yaml:"name" validate:"required"`
	Description     string           `json:"description,omitempty" yaml:"description,omitempty"`
	Source          Source           `json:"source" yaml:"source"`
	Destination     Destination      `json:"destination" yaml:"destination"`
	Transformations []Transformation `json:"transformations,omitempty" yaml:"transformations,omitempty" validate:"dive"`
	Schedule        string           `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Enabled         bool             `json:"enabled" yaml:"enabled"`
	CreatedAt       time.Time        `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt       time.Time        `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// IsScheduled reports whether the definition should hold a timer.
func (d Definition) IsScheduled() bool {
	return d.Enabled && d.Schedule != ""
}

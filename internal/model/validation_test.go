package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition() *Definition {
	return &Definition{
		Name: "sales",
		Source: Source{
			Type:     SourceDelimited,
			Location: "data/sales.csv",
			Mapping: map[string]FieldMapping{
				"id": {SourceField: "ID", DataType: TypeString, Required: true},
			},
		},
		Destination: Destination{Type: DestinationFile, Location: "out/sales.json"},
		Schedule:    "*/5 * * * *",
		Enabled:     true,
	}
}

func TestValidateDefinition_Valid(t *testing.T) {
	result := ValidateDefinition(validDefinition())

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
}

func TestValidateDefinition_MissingFields(t *testing.T) {
	def := &Definition{
		Source:      Source{Type: SourceDelimited},
		Destination: Destination{Type: DestinationTable, Location: "sqlite://x.db"},
	}

	result := ValidateDefinition(def)

	require.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "name is required")
	assert.Contains(t, result.Errors, "source.location is required")
	assert.Contains(t, result.Errors, "source.mapping is required")
	assert.Contains(t, result.Errors, "destination.table is required")
	assert.True(t, errors.Is(result.Err(), ErrInvalidDefinition))
}

func TestValidateDefinition_BadEnums(t *testing.T) {
	def := validDefinition()
	def.Source.Type = "ftp"
	def.Source.Mapping["id"] = FieldMapping{SourceField: "ID", DataType: "money"}
	def.Transformations = []Transformation{{Field: "id", Operation: "explode"}}

	result := ValidateDefinition(def)

	require.False(t, result.IsValid)
	assert.Len(t, result.Errors, 3)
}

func TestValidateDefinition_Schedule(t *testing.T) {
	def := validDefinition()
	def.Schedule = "* * * *"

	result := ValidateDefinition(def)

	require.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "must have 5 fields")
}

func TestValidateCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every minute", expr: "* * * * *"},
		{name: "weekday mornings", expr: "0 9 * * 1-5"},
		{name: "step values", expr: "*/15 0-6 1 * *"},
		{name: "four fields", expr: "* * * *", wantErr: true},
		{name: "six fields", expr: "0 * * * * *", wantErr: true},
		{name: "non numeric", expr: "a b c d e", wantErr: true},
		{name: "out of range", expr: "61 * * * *", wantErr: true},
		{name: "descriptor", expr: "@hourly", wantErr: true},
		{name: "empty", expr: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronExpression(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSchedule))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDefinition_IsScheduled(t *testing.T) {
	def := validDefinition()
	assert.True(t, def.IsScheduled())

	def.Enabled = false
	assert.False(t, def.IsScheduled())

	def.Enabled = true
	def.Schedule = ""
	assert.False(t, def.IsScheduled())
}

func TestRecord_Clone(t *testing.T) {
	rec := Record{"a": 1}
	clone := rec.Clone()
	clone["a"] = 2

	assert.Equal(t, 1, rec["a"])
}

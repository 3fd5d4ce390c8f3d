package models

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaMatchesRecordFields(t *testing.T) {
	require.Len(t, StudentSchema, 32)
	assert.Len(t, textFields, 17)
	assert.Len(t, numberFields, 15)

	tags := map[string]bool{}
	rt := reflect.TypeOf(StudentRecord{})
	for i := 0; i < rt.NumField(); i++ {
		tags[rt.Field(i).Tag.Get("json")] = true
	}

	seen := map[string]bool{}
	for _, spec := range StudentSchema {
		assert.False(t, seen[spec.Name], "duplicate %s", spec.Name)
		seen[spec.Name] = true
		assert.True(t, tags[spec.Name], "no struct field for %s", spec.Name)

		switch spec.Kind {
		case FieldCategorical:
			assert.Contains(t, textFields, spec.Name)
		case FieldInteger:
			assert.Contains(t, numberFields, spec.Name)
			if !spec.Unbounded {
				assert.LessOrEqual(t, spec.Min, spec.Max, spec.Name)
			}
		}
	}
}

func TestFeatureAccessors(t *testing.T) {
	var rec StudentRecord
	assert.True(t, rec.SetText("Mjob", "teacher"))
	assert.True(t, rec.SetNumber("G2", 14))
	assert.False(t, rec.SetText("G2", "14"))
	assert.False(t, rec.SetNumber("nope", 1))

	v, ok := rec.Feature("Mjob")
	require.True(t, ok)
	assert.Equal(t, FeatureValue{Categorical: true, Text: "teacher"}, v)

	v, ok = rec.Feature("G2")
	require.True(t, ok)
	assert.Equal(t, FeatureValue{Number: 14}, v)

	_, ok = rec.Feature("G3")
	assert.False(t, ok)
}

func TestStudentRecordJSONUsesColumnNames(t *testing.T) {
	var rec StudentRecord
	rec.SetText("Pstatus", "T")
	rec.SetNumber("Dalc", 2)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Len(t, m, 32)
	assert.Equal(t, "T", m["Pstatus"])
	assert.Equal(t, float64(2), m["Dalc"])
}

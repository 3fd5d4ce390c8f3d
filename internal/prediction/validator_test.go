package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStudentValid(t *testing.T) {
	rec, err := DecodeStudent(studentJSON(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "GP", rec.School)
	assert.Equal(t, 18, rec.Age)
	assert.Equal(t, "at_home", rec.Mjob)
	assert.Equal(t, 6, rec.Absences)
	assert.Equal(t, 10, rec.G1)
	assert.Equal(t, 11, rec.G2)
}

func TestDecodeStudentIgnoresExtraKeys(t *testing.T) {
	_, err := DecodeStudent(studentJSON(t, map[string]any{"G3": 14, "nickname": "ana"}))
	assert.NoError(t, err)
}

func TestDecodeStudentMissingFields(t *testing.T) {
	t.Run("single field", func(t *testing.T) {
		_, err := DecodeStudent(studentJSON(t, nil, "G2"))
		pe := requireKind(t, err, KindMissingFeature)
		assert.Equal(t, []string{"G2"}, pe.Missing)
		assert.Contains(t, pe.Error(), "G2")
	})

	t.Run("every absent field is listed in column order", func(t *testing.T) {
		_, err := DecodeStudent([]byte(`{"school":"GP","sex":"F"}`))
		pe := requireKind(t, err, KindMissingFeature)
		require.Len(t, pe.Missing, 30)
		assert.Equal(t, "age", pe.Missing[0])
		assert.Equal(t, "G2", pe.Missing[29])
	})
}

func TestDecodeStudentDomainViolations(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		kind      Kind
		field     string
	}{
		{name: "age too high", overrides: map[string]any{"age": 23}, kind: KindValidation, field: "age"},
		{name: "age too low", overrides: map[string]any{"age": 14}, kind: KindValidation, field: "age"},
		{name: "Medu above 4", overrides: map[string]any{"Medu": 5}, kind: KindValidation, field: "Medu"},
		{name: "studytime zero", overrides: map[string]any{"studytime": 0}, kind: KindValidation, field: "studytime"},
		{name: "failures above 4", overrides: map[string]any{"failures": 5}, kind: KindValidation, field: "failures"},
		{name: "health above 5", overrides: map[string]any{"health": 6}, kind: KindValidation, field: "health"},
		{name: "negative absences", overrides: map[string]any{"absences": -1}, kind: KindValidation, field: "absences"},
		{name: "G1 above 20", overrides: map[string]any{"G1": 21}, kind: KindValidation, field: "G1"},
		{name: "age as string", overrides: map[string]any{"age": "18"}, kind: KindValidation, field: "age"},
		{name: "fractional age", overrides: map[string]any{"age": 17.5}, kind: KindValidation, field: "age"},
		{name: "null grade", overrides: map[string]any{"G2": nil}, kind: KindValidation, field: "G2"},
		{name: "school as number", overrides: map[string]any{"school": 1}, kind: KindValidation, field: "school"},
		{name: "empty Mjob", overrides: map[string]any{"Mjob": ""}, kind: KindValidation, field: "Mjob"},
		{name: "unknown school", overrides: map[string]any{"school": "XX"}, kind: KindUnknownCategory, field: "school"},
		{name: "sex outside M/F", overrides: map[string]any{"sex": "X"}, kind: KindUnknownCategory, field: "sex"},
		{name: "yes/no field", overrides: map[string]any{"internet": "maybe"}, kind: KindUnknownCategory, field: "internet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStudent(studentJSON(t, tt.overrides))
			pe := requireKind(t, err, tt.kind)
			assert.Equal(t, tt.field, pe.Field)
			assert.True(t, pe.Kind.ClientFault())
		})
	}
}

func TestDecodeStudentUnknownCategoryCarriesValue(t *testing.T) {
	_, err := DecodeStudent(studentJSON(t, map[string]any{"school": "XX"}))
	pe := requireKind(t, err, KindUnknownCategory)
	assert.Equal(t, "school", pe.Field)
	assert.Equal(t, "XX", pe.Value)
}

func TestDecodeStudentBoundaries(t *testing.T) {
	tests := []map[string]any{
		{"age": 15, "Medu": 0, "failures": 0, "famrel": 1, "G1": 0, "G2": 0, "absences": 0},
		{"age": 22, "Fedu": 4, "failures": 4, "Walc": 5, "G1": 20, "G2": 20, "absences": 93},
		{"age": 16.0},
	}
	for _, overrides := range tests {
		_, err := DecodeStudent(studentJSON(t, overrides))
		assert.NoError(t, err, "overrides %v", overrides)
	}
}

func TestDecodeStudentRejectsNonObject(t *testing.T) {
	for _, body := range []string{`[]`, `"GP"`, `null`, `{`, ``} {
		_, err := DecodeStudent([]byte(body))
		requireKind(t, err, KindValidation)
	}
}

package utils

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Title string  `json:"title" binding:"required,min=1,max=5"`
	Skip  int     `form:"skip" binding:"min=0"`
	Note  *string `json:"note" binding:"omitempty,max=3"`
}

func TestValidateStruct_ReportsJSONNames(t *testing.T) {
	// Arrange
	long := "toolong"
	input := sampleInput{Title: "", Skip: -1, Note: &long}

	// Act
	err := ValidateStruct(input)

	// Assert
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := map[string]string{}
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	assert.Equal(t, map[string]string{"title": "required", "skip": "min", "note": "max"}, fields)
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.NoError(t, ValidateStruct(sampleInput{Title: "ok"}))
}

func TestParseTimestamp(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  time.Time
	}{
		{"rfc3339 utc", "2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", "2024-03-01T12:00:00+02:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"fractional", "2024-03-01T10:00:00.5Z", time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC)},
		{"naive datetime", "2024-03-01T10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"date", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.value)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, value := range []string{"", "yesterday", "2024-13-01", "01/03/2024"} {
		_, err := ParseTimestamp(value)
		assert.Error(t, err, value)
	}
}

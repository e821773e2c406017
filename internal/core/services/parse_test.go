package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

func TestParseTestCases_ValidArray(t *testing.T) {
	raw := `[
		{"scenario": "Book max GEN tickets", "steps": ["Select GEN tickets", "Enter 6 tickets"],
		 "expected_result": "Booking accepted", "type": "positive", "priority": "high"},
		{"scenario": "Exceed max", "steps": ["Enter 7 tickets"],
		 "expected_result": "Error shown", "type": "negative", "priority": "low"}
	]` + "</END_JSON>"

	cases, failures := parseTestCases(raw)

	assert.Empty(t, failures)
	require.Len(t, cases, 2)
	assert.Equal(t, "Book max GEN tickets", cases[0].Scenario)
	assert.Equal(t, []string{"Select GEN tickets", "Enter 6 tickets"}, cases[0].Steps)
	assert.Equal(t, domain.PriorityHigh, cases[0].Priority)
	assert.Equal(t, domain.TestTypeNegative, cases[1].Type)
}

func TestParseTestCases_MissingExpectedResultDropsOnlyThatItem(t *testing.T) {
	raw := `[
		{"scenario": "Valid one", "steps": ["Do a"], "expected_result": "A happens"},
		{"scenario": "Missing result", "steps": ["Do b"]},
		{"scenario": "Valid two", "steps": ["Do c"], "expected_result": "C happens"}
	]`

	cases, failures := parseTestCases(raw)

	require.Len(t, cases, 2)
	assert.Equal(t, "Valid one", cases[0].Scenario)
	assert.Equal(t, "Valid two", cases[1].Scenario)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Index)
	assert.Equal(t, "expected_result", failures[0].Field)
	assert.True(t, errors.Is(failures[0], domain.ErrParse))
}

func TestParseTestCases_Defaults(t *testing.T) {
	cases, failures := parseTestCases(`[{"scenario": "S", "steps": ["x"], "expected_result": "E"}]`)

	assert.Empty(t, failures)
	require.Len(t, cases, 1)
	assert.Equal(t, domain.TestTypePositive, cases[0].Type)
	assert.Equal(t, domain.PriorityMedium, cases[0].Priority)
}

func TestParseTestCases_InvalidEnums(t *testing.T) {
	raw := `[
		{"scenario": "S1", "steps": ["x"], "expected_result": "E", "type": "edge"},
		{"scenario": "S2", "steps": ["x"], "expected_result": "E", "priority": "urgent"},
		{"scenario": "S3", "steps": ["x"], "expected_result": "E", "type": "Negative", "priority": " HIGH "}
	]`

	cases, failures := parseTestCases(raw)

	require.Len(t, failures, 2)
	assert.Equal(t, "type", failures[0].Field)
	assert.Equal(t, "priority", failures[1].Field)
	require.Len(t, cases, 1)
	assert.Equal(t, domain.TestTypeNegative, cases[0].Type)
	assert.Equal(t, domain.PriorityHigh, cases[0].Priority)
}

func TestParseTestCases_Wrappers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"code fence", "```json\n[{\"scenario\": \"S\", \"steps\": [\"x\"], \"expected_result\": \"E\"}]\n```"},
		{"object wrapper", `{"test_cases": [{"scenario": "S", "steps": ["x"], "expected_result": "E"}]}`},
		{"single object", `{"scenario": "S", "steps": ["x"], "expected_result": "E"}`},
		{"leading prose", `Here are your tests: [{"scenario": "S", "steps": ["x"], "expected_result": "E"}] Enjoy!`},
		{"alias keys", `[{"test_scenario": "S", "test_steps": ["x"], "expected": "E", "test_type": "positive"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases, failures := parseTestCases(tt.raw)
			assert.Empty(t, failures)
			require.Len(t, cases, 1)
			assert.Equal(t, "S", cases[0].Scenario)
			assert.Equal(t, "E", cases[0].ExpectedResult)
		})
	}
}

func TestParseTestCases_RepairsCommonDefects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		count int
	}{
		{"trailing comma", `[{"scenario": "S", "steps": ["x",], "expected_result": "E",},]`, 1},
		{"missing comma between objects", `[{"scenario": "A", "steps": ["x"], "expected_result": "E"} {"scenario": "B", "steps": ["y"], "expected_result": "F"}]`, 2},
		{"truncated output", `[{"scenario": "A", "steps": ["x"], "expected_result": "E"}, {"scenario": "B", "steps": ["y"], "expected_result": "F"`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases, failures := parseTestCases(tt.raw)
			assert.Empty(t, failures)
			assert.Len(t, cases, tt.count)
		})
	}
}

func TestParseTestCases_SalvagesObjects(t *testing.T) {
	raw := `Case one: {"scenario": "A", "steps": ["x"], "expected_result": "E"}
Case two: {"scenario": "B", "steps": ["y"] "expected_result": "F"}`

	cases, failures := parseTestCases(raw)

	require.Len(t, cases, 1)
	assert.Equal(t, "A", cases[0].Scenario)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Index)
}

func TestParseTestCases_Unrecoverable(t *testing.T) {
	for _, raw := range []string{"", "   ", "I cannot help with that.", "</END_JSON>"} {
		cases, failures := parseTestCases(raw)
		assert.Empty(t, cases)
		require.Len(t, failures, 1, "raw=%q", raw)
		assert.Equal(t, 0, failures[0].Index)
	}
}

func TestNormaliseSteps(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    []string
		wantErr bool
	}{
		{"list", []any{"1. Open page", "Step 2: Click Apply", " "}, []string{"Open page", "Click Apply"}, false},
		{"delimited string", "Open page; Enter code\nClick Apply", []string{"Open page", "Enter code", "Click Apply"}, false},
		{"numeric step", []any{"Enter", float64(6)}, []string{"Enter", "6"}, false},
		{"nested object", []any{map[string]any{"a": 1}}, nil, true},
		{"wrong type", true, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normaliseSteps(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepairJSON(t *testing.T) {
	assert.Equal(t, `[{"a": 1}]`, repairJSON(`[{"a": 1},]`))
	assert.Equal(t, `[{"a": "b"}]`, repairJSON(`[{"a": "b`))
	assert.Equal(t, `[{"a": "x]"}]`, repairJSON(`[{"a": "x]"}`))
}

package stringutils_test

import (
	"testing"

	"github.com/habiliai/agentmesh/internal/stringutils"
	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "mail subject with null byte",
			input:    "Invoice\u0000 #42",
			expected: "Invoice #42",
		},
		{
			name:     "control characters",
			input:    "task\u0001\u001f\u007f list",
			expected: "task list",
		},
		{
			name:     "whitespace is kept",
			input:    "line one\n\tline two\r\n",
			expected: "line one\n\tline two\r\n",
		},
		{
			name:     "C1 control characters",
			input:    "event\u0080\u009f title",
			expected: "event title",
		},
		{
			name:     "invalid utf-8",
			input:    "note \xff body",
			expected: "note � body",
		},
		{
			name:     "clean text",
			input:    "회의 at 10:00",
			expected: "회의 at 10:00",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, stringutils.Clean(tc.input))
		})
	}
}

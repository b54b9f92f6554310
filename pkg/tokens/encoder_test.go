package tokens

import (
	"testing"
)

func TestMockEncoder_Count(t *testing.T) {
	encoder := NewMockEncoder()

	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{
			name:     "empty string",
			text:     "",
			expected: 1, // minimum 1 token
		},
		{
			name:     "short text",
			text:     "Hello",
			expected: 1, // 5 chars / 4 = 1
		},
		{
			name:     "medium text",
			text:     "This is a test message",
			expected: 5, // 22 chars / 4 = 5
		},
		{
			name:     "long text",
			text:     "This is a very long text that should produce multiple tokens when counted",
			expected: 18, // 73 chars / 4 = 18 (integer division)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := encoder.Count(tt.text)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if count != tt.expected {
				t.Errorf("Count() = %v, want %v", count, tt.expected)
			}
		})
	}
}

func TestMockEncoder_Encode(t *testing.T) {
	encoder := NewMockEncoder()

	text := "Hello world"
	tokens, err := encoder.Encode(text)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if len(tokens) == 0 {
		t.Error("Encode() returned empty tokens")
	}

	count, err := encoder.Count(text)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}

	if len(tokens) != count {
		t.Errorf("Encode() returned %d tokens, Count() returned %d", len(tokens), count)
	}
}

func TestMockEncoder_Decode(t *testing.T) {
	encoder := NewMockEncoder()

	_, err := encoder.Decode([]int{1, 2, 3})
	if err == nil {
		t.Error("Decode() expected error for mock encoder")
	}
}

func TestTiktokenEncoder_Count(t *testing.T) {
	encoder, err := NewTiktokenEncoder("cl100k_base")
	if err != nil {
		t.Fatalf("NewTiktokenEncoder() error = %v", err)
	}

	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{
			name:     "empty string",
			text:     "",
			expected: 0,
		},
		{
			name:     "simple text",
			text:     "Hello world",
			expected: 2, // "Hello" and " world"
		},
		{
			name:     "longer text",
			text:     "This is a test message with multiple words",
			expected: 8, // tokenized by tiktoken
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := encoder.Count(tt.text)
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if count != tt.expected {
				t.Errorf("Count() = %v, want %v", count, tt.expected)
			}
		})
	}
}

func TestTiktokenEncoder_EncodeDecode(t *testing.T) {
	encoder, err := NewTiktokenEncoder("cl100k_base")
	if err != nil {
		t.Fatalf("NewTiktokenEncoder() error = %v", err)
	}

	text := "Hello world, this is a test!"
	tokens, err := encoder.Encode(text)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := encoder.Decode(tokens)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded != text {
		t.Errorf("Decode() = %v, want %v", decoded, text)
	}
}

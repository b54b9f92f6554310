package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewer_RejectsDangerousImports(t *testing.T) {
	r := NewReviewer()

	cases := []string{
		"import os\nos.system('ls')",
		"from subprocess import call",
		"import socket",
		"import win32com.client",
	}
	for _, code := range cases {
		res := r.Review(code)
		assert.False(t, res.Safe, code)
		assert.NotEmpty(t, res.Issues, code)
	}
}

func TestReviewer_RejectsDangerousBuiltins(t *testing.T) {
	r := NewReviewer()

	cases := []string{
		"eval('1+1')",
		"exec('print(1)')",
		"compile('1', '<s>', 'eval')",
		"__import__('os')",
		"open('/etc/passwd')",
	}
	for _, code := range cases {
		res := r.Review(code)
		assert.False(t, res.Safe, code)
	}
}

func TestReviewer_RejectsDangerousPatterns(t *testing.T) {
	r := NewReviewer()

	cases := []string{
		"os.system('rm -rf /')",
		"path = '../../etc/passwd'",
		"cmd = 'format C:'",
	}
	for _, code := range cases {
		res := r.Review(code)
		assert.False(t, res.Safe, code)
	}
}

func TestReviewer_AllowsSafeCode(t *testing.T) {
	r := NewReviewer()

	res := r.Review("def add(a, b):\n    return a + b\nprint(add(2, 3))")
	assert.True(t, res.Safe)
	assert.Empty(t, res.Issues)
}

func TestReviewer_WarnsOnEnvironAccess(t *testing.T) {
	r := NewReviewer()

	res := r.Review("import os\nvalue = os.environ['HOME']")
	assert.False(t, res.Safe) // "import os" alone is already rejected
	assert.NotEmpty(t, res.Warnings)
}

func TestReviewer_Idempotent(t *testing.T) {
	r := NewReviewer()
	code := "print('hello world')"

	first := r.Review(code)
	second := r.Review(code)
	assert.Equal(t, first, second)
}

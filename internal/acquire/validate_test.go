// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePDF returns a minimal document that passes the default validator.
func samplePDF(body string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("0", 128))
	b.WriteString("\n%%EOF\n")
	return b.Bytes()
}

func TestValidatorCheck(t *testing.T) {
	html := []byte("<!DOCTYPE html><html><body>" + strings.Repeat("x", 200) + "</body></html>")
	noTrailer := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2000)...)

	tests := []struct {
		name string
		data []byte
		ct   string
		want error
	}{
		{"empty", nil, "application/pdf", ErrEmpty},
		{"too small", []byte("%PDF-1.4 %%EOF"), "application/pdf", ErrTooSmall},
		{"html content type", samplePDF("x"), "text/html; charset=utf-8", ErrMarkup},
		{"xhtml content type", samplePDF("x"), "application/xhtml+xml", ErrMarkup},
		{"html body", html, "application/pdf", ErrNoSignature},
		{"truncated", noTrailer, "application/pdf", ErrNoEOFTrailer},
	}
	v := NewValidator(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Check(tt.data, tt.ct)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, v.Validate(tt.data, tt.ct))
		})
	}
}

func TestValidatorAccepts(t *testing.T) {
	v := NewValidator(0)
	assert.NoError(t, v.Check(samplePDF("obj"), "application/pdf"))
	assert.NoError(t, v.Check(samplePDF("obj"), ""), "missing content type is judged by the bytes")
	assert.NoError(t, v.Check(samplePDF("obj"), "application/octet-stream"))
	assert.True(t, Validate(samplePDF("obj"), "application/pdf"))
}

func TestValidatorTrailerOptional(t *testing.T) {
	data := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 2000)...)
	assert.NoError(t, Validator{}.Check(data, "application/pdf"))
	assert.ErrorIs(t, NewValidator(0).Check(data, "application/pdf"), ErrNoEOFTrailer)
}

func TestValidatorTrailerWindow(t *testing.T) {
	// A trailer followed by more than the search window of junk is ignored.
	data := samplePDF("obj")
	data = append(data, bytes.Repeat([]byte(" "), trailerWindow+1)...)
	assert.ErrorIs(t, NewValidator(0).Check(data, "application/pdf"), ErrNoEOFTrailer)
}

func TestValidatorMinSize(t *testing.T) {
	data := samplePDF("obj")
	v := Validator{MinSize: len(data) + 1}
	assert.ErrorIs(t, v.Check(data, ""), ErrTooSmall)

	v.MinSize = len(data)
	assert.NoError(t, v.Check(data, ""))
}

package chat

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// trimBlank strips surrounding whitespace, including the byte order mark.
func trimBlank(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}

type joinRequest struct {
	FullName string `validate:"required"`
}

type postRequest struct {
	Content string `validate:"required"`
}

// normalizeFullName trims the name and rejects it when nothing is left.
func normalizeFullName(fullName string) (string, error) {
	req := joinRequest{FullName: trimBlank(fullName)}
	if err := validate.Struct(req); err != nil {
		return "", errFullNameRequired
	}
	return req.FullName, nil
}

// normalizeContent trims message content and rejects it when nothing is left.
func normalizeContent(content string) (string, error) {
	req := postRequest{Content: trimBlank(content)}
	if err := validate.Struct(req); err != nil {
		return "", errEmptyMessage
	}
	return req.Content, nil
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	To       string `validate:"required"`
	Kind     string `validate:"omitempty,oneof=text image"`
	Endpoint string `validate:"omitempty,url"`
}

func TestValidateStruct(t *testing.T) {
	assert.Nil(t, ValidateStruct(sample{To: "bob", Kind: "text"}))

	errs := ValidateStruct(sample{Kind: "gif", Endpoint: "nope"})
	require.Len(t, errs, 3)
	assert.Equal(t, "To is required", errs[0].Message)
	assert.Equal(t, "Kind must be one of: text image", errs[1].Message)
	assert.Equal(t, "Endpoint must be a valid URL", errs[2].Message)
}

package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hh-autopilot/internal/domain"
)

func TestValidateCoverLetter(t *testing.T) {
	assert.NoError(t, ValidateCoverLetter(""))
	assert.NoError(t, ValidateCoverLetter("   "))

	err := ValidateCoverLetter("Too short")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	long := strings.Repeat("a", 60)
	assert.NoError(t, ValidateCoverLetter(long))

	// Cyrillic letters count as characters, not bytes.
	ru := strings.Repeat("я", 50)
	assert.NoError(t, ValidateCoverLetter(ru))
	assert.Error(t, ValidateCoverLetter(strings.Repeat("я", 49)))

	for _, ind := range []string{"Lorem Ipsum", "SAMPLE TEXT", "template"} {
		letter := strings.Repeat("x", 50) + " " + ind
		err := ValidateCoverLetter(letter)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, ind)
	}
}

func TestValidateApply(t *testing.T) {
	_, err := ValidateApply("", "r1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = ValidateApply("v1", "  ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	warnings, err := ValidateApply("v1", "r1", "")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	warnings, err = ValidateApply("v1", "r1", strings.Repeat("a", 4100))
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
}

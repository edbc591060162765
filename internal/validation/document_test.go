// internal/validation/document_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"readreward/internal/util"
)

func TestValidateDocument(t *testing.T) {
	t.Run("KnownValid", func(t *testing.T) {
		assert.NoError(t, ValidateDocument("52998224725"))
		assert.NoError(t, ValidateDocument("529.982.247-25"))
	})

	t.Run("AllZeros", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDocument("00000000000"), util.ErrInvalidDocument)
	})

	t.Run("RepeatedDigitWithValidChecksum", func(t *testing.T) {
		// 111.111.111-11 satisfies both check digits but is a placeholder.
		assert.ErrorIs(t, ValidateDocument("11111111111"), util.ErrInvalidDocument)
	})

	t.Run("WrongLength", func(t *testing.T) {
		assert.ErrorIs(t, ValidateDocument("5299822472"), util.ErrInvalidDocument)
		assert.ErrorIs(t, ValidateDocument(""), util.ErrInvalidDocument)
	})

	t.Run("AnySingleDigitMutationFails", func(t *testing.T) {
		valid := []byte("52998224725")
		for pos := range valid {
			for d := byte('0'); d <= '9'; d++ {
				if d == valid[pos] {
					continue
				}
				mutated := append([]byte(nil), valid...)
				mutated[pos] = d
				assert.ErrorIs(t, ValidateDocument(string(mutated)), util.ErrInvalidDocument, "mutation %s", mutated)
			}
		}
	})
}

func TestNormalizeDocument(t *testing.T) {
	assert.Equal(t, "52998224725", NormalizeDocument(" 529.982.247-25 "))
}

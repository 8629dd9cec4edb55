package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(0))
	assert.NoError(t, ValidateAmount(150.75))
	assert.Error(t, ValidateAmount(-0.01))
	assert.Error(t, ValidateAmount(math.NaN()))
	assert.Error(t, ValidateAmount(math.Inf(1)))
	assert.Error(t, ValidateAmount(20_000_000))
}

func TestValidateCNPJ(t *testing.T) {
	tests := []struct {
		cnpj    string
		wantErr bool
	}{
		{"11.222.333/0001-81", false},
		{"12345678000195", false},
		{"11.222.333/0001-82", true},
		{"11111111111111", true},
		{"1234", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.cnpj, func(t *testing.T) {
			err := ValidateCNPJ(tt.cnpj)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "muito caro\nobrigado", SanitizeString("muito\x00 caro\nobrigado\x7f"))
}

func TestParseDataURL(t *testing.T) {
	t.Run("base64 image", func(t *testing.T) {
		mime, data, err := ParseDataURL("data:image/png;base64,aGVsbG8=")
		require.NoError(t, err)
		assert.Equal(t, "image/png", mime)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("percent encoded", func(t *testing.T) {
		mime, data, err := ParseDataURL("data:,assinado%20por%20Maria")
		require.NoError(t, err)
		assert.Equal(t, "text/plain", mime)
		assert.Equal(t, "assinado por Maria", string(data))
	})

	t.Run("not a data url", func(t *testing.T) {
		_, _, err := ParseDataURL("signature-blob")
		assert.ErrorIs(t, err, ErrNotDataURL)
	})

	t.Run("broken base64", func(t *testing.T) {
		_, _, err := ParseDataURL("data:image/png;base64,###")
		assert.Error(t, err)
	})
}

func TestExtensionForMime(t *testing.T) {
	assert.Equal(t, ".png", ExtensionForMime("image/png"))
	assert.Equal(t, ".pdf", ExtensionForMime("APPLICATION/PDF"))
	assert.Equal(t, ".bin", ExtensionForMime("application/x-unknown"))
}

package social

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderKind
		wantErr bool
	}{
		{in: "GOOGLE", want: Google},
		{in: "facebook", want: Facebook},
		{in: " Twitter ", want: Twitter},
		{in: "apple", want: Apple},
		{in: "github", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProviderKind(tt.in)
			if tt.wantErr {
				assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllProviders(t *testing.T) {
	for _, k := range AllProviders() {
		assert.True(t, k.Valid())
	}
	assert.False(t, ProviderKind("GITHUB").Valid())
}

func TestUser_JSON(t *testing.T) {
	data, err := json.Marshal(User{ID: "T1", Provider: Google, Name: "Alice", Email: "a@example.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"T1","type":"GOOGLE","name":"Alice","email":"a@example.com"}`, string(data))
}

package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_RoundTrip(t *testing.T) {
	for s := CollectingIdentity; s <= Completed; s++ {
		got, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseState("Paying")
	assert.ErrorIs(t, err, ErrInvalidStep)
	assert.Equal(t, "State(9)", State(9).String())
}

func TestState_Back(t *testing.T) {
	tests := []struct {
		from   State
		want   State
		wantOK bool
	}{
		{CollectingIdentity, CollectingIdentity, false},
		{SelectingPlan, CollectingIdentity, true},
		{StatingSource, SelectingPlan, true},
		{ReviewingAndConfirming, StatingSource, true},
		{Completed, Completed, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			got, ok := tt.from.Back()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct{ in, first, last string }{
		{"Maria Souza", "Maria", "Souza"},
		{"  Maria   da Silva Souza ", "Maria", "da Silva Souza"},
		{"Cher", "Cher", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}

func TestWhatsAppURL(t *testing.T) {
	const want = "https://wa.me/5511999998888?text=Ol%C3%A1%2C%20acabei%20de%20assinar%20o%20plano%20Semestral%20%281%20Tela%29"
	assert.Equal(t, want, WhatsAppURL("(11) 99999-8888", "Semestral (1 Tela)"))
	assert.Equal(t, want, WhatsAppURL("+55 11 99999-8888", "Semestral (1 Tela)"))
}

package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dor na FRENTE do ombro!", "dor na frente do ombro"},
		{"  Queimação,   pescoço  ", "queimacao pescoco"},
		{"16/8", "16 8"},
		{"", ""},
		{"?!...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fold(tt.in), tt.in)
	}
}

func TestContains(t *testing.T) {
	tests := []struct {
		name string
		text string
		kw   string
		want bool
	}{
		{"prefix match for long keyword", "dor nos ombros", "ombro", true},
		{"short keyword needs whole word", "sinto a perna pesada", "pe", false},
		{"short keyword whole word", "dor no pe direito", "pé", true},
		{"dor does not match dormir", "nao consigo dormir", "dor", false},
		{"accented keyword", "sinto queimacao", "queimação", true},
		{"phrase", "acordo com dor que acorda a noite", "dor que acorda à noite", true},
		{"no match mid word", "superombro", "ombro", false},
		{"later occurrence whole word", "pedra e pe", "pe", true},
		{"empty keyword", "qualquer", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(Fold(tt.text), tt.kw))
		})
	}
}

func TestContainsAffirmed(t *testing.T) {
	tests := []struct {
		name string
		text string
		kw   string
		want bool
	}{
		{"plain", "dor depois de um trauma", "trauma", true},
		{"negated by sem", "dor no ombro, sem trauma nem queda", "trauma", false},
		{"negated by nem", "dor no ombro, sem trauma nem queda", "queda", false},
		{"negated in english", "pain without swelling", "swelling", false},
		{"no is not a negator", "formigamento no braço", "braço", true},
		{"second occurrence affirmed", "sem inchaço ontem, hoje inchaço", "inchaço", true},
		{"negator elsewhere", "não sei, levei uma queda", "queda", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsAffirmed(Fold(tt.text), tt.kw))
		})
	}
}

func TestHasContent(t *testing.T) {
	assert.False(t, HasContent("   "))
	assert.False(t, HasContent("?!"))
	assert.True(t, HasContent("sim"))
	assert.True(t, HasContent("7"))
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Data de Nascimento", "data_de_nascimento"},
		{"DATA_NASCIMENTO", "data_nascimento"},
		{"  data nascimento ", "data_nascimento"},
		{"Telefone", "telefone"},
		{"Endereço", "endereco"},
		{"Descrição", "descricao"},
		{"Observações", "observacoes"},
		{"E-mail", "e_mail"},
		{"Valor (R$)", "valor_r"},
		{"nome--completo", "nome_completo"},
		{"CPF/CNPJ", "cpf_cnpj"},
		{"", ""},
		{"   ", ""},
		{"___", ""},
		{"123", "123"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Data de Nascimento", "Endereço", "Valor (R$)", "nome__completo", ""}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

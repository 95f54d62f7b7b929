package service

import "clinic-import/internal/models"

// Field schemas are fixed per target data type and never mutated at runtime.
var fieldSchemas = map[models.TargetDataType][]models.MappableField{
	models.DataTypePatients: {
		{Key: "name", Label: "Nome", Required: true, Kind: models.KindString},
		{Key: "phone", Label: "Telefone", Required: false, Kind: models.KindPhone},
		{Key: "email", Label: "Email", Required: false, Kind: models.KindEmail},
		{Key: "cpf", Label: "CPF", Required: false, Kind: models.KindNationalID},
		{Key: "birth_date", Label: "Data de Nascimento", Required: false, Kind: models.KindDate},
		{Key: "address", Label: "Endereço", Required: false, Kind: models.KindString},
		{Key: "city", Label: "Cidade", Required: false, Kind: models.KindString},
		{Key: "notes", Label: "Observações", Required: false, Kind: models.KindString},
	},
	models.DataTypeProcedures: {
		{Key: "patient_name", Label: "Paciente", Required: true, Kind: models.KindString},
		{Key: "name", Label: "Procedimento", Required: true, Kind: models.KindString},
		{Key: "date", Label: "Data", Required: false, Kind: models.KindDate},
		{Key: "value", Label: "Valor", Required: false, Kind: models.KindNumber},
		{Key: "status", Label: "Status", Required: false, Kind: models.KindString},
		{Key: "notes", Label: "Observações", Required: false, Kind: models.KindString},
	},
	models.DataTypeTransactions: {
		{Key: "description", Label: "Descrição", Required: true, Kind: models.KindString},
		{Key: "amount", Label: "Valor", Required: true, Kind: models.KindNumber},
		{Key: "date", Label: "Data", Required: false, Kind: models.KindDate},
		{Key: "type", Label: "Tipo", Required: false, Kind: models.KindString},
		{Key: "category", Label: "Categoria", Required: false, Kind: models.KindString},
	},
}

// FieldSchemaFor returns the ordered field schema for a data type. The
// returned slice is shared, read-only static data.
func FieldSchemaFor(dataType models.TargetDataType) []models.MappableField {
	return fieldSchemas[dataType]
}

// RequiredFieldsFor returns the keys of the required fields of a data type.
func RequiredFieldsFor(dataType models.TargetDataType) []string {
	var keys []string
	for _, f := range FieldSchemaFor(dataType) {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// fieldByKey looks a field up in a schema.
func fieldByKey(dataType models.TargetDataType, key string) (models.MappableField, bool) {
	for _, f := range FieldSchemaFor(dataType) {
		if f.Key == key {
			return f, true
		}
	}
	return models.MappableField{}, false
}

// fieldSynonyms lists known column-header aliases per target field, across
// Portuguese and English. Order matters twice: entries are scanned top to
// bottom and the first alias hit wins, so higher-precision aliases must come
// before looser ones for the same field.
type fieldSynonyms struct {
	Field   string
	Aliases []string
}

var synonymTables = map[models.TargetDataType][]fieldSynonyms{
	models.DataTypePatients: {
		{Field: "birth_date", Aliases: []string{"data_de_nascimento", "data_nascimento", "nascimento", "dt_nasc", "birth_date", "date_of_birth", "dob"}},
		{Field: "cpf", Aliases: []string{"cpf", "documento", "doc", "national_id", "document"}},
		{Field: "phone", Aliases: []string{"telefone", "celular", "whatsapp", "fone", "tel", "phone", "mobile", "contato"}},
		{Field: "email", Aliases: []string{"e_mail", "email", "correio"}},
		{Field: "name", Aliases: []string{"nome_completo", "nome", "paciente", "cliente", "full_name", "name"}},
		{Field: "address", Aliases: []string{"endereco", "logradouro", "rua", "address"}},
		{Field: "city", Aliases: []string{"cidade", "municipio", "city"}},
		{Field: "notes", Aliases: []string{"observacoes", "observacao", "obs", "notes", "comentario"}},
	},
	models.DataTypeProcedures: {
		{Field: "patient_name", Aliases: []string{"nome_do_paciente", "paciente", "nome_paciente", "patient", "cliente"}},
		{Field: "name", Aliases: []string{"procedimento", "tratamento", "servico", "procedure", "service"}},
		{Field: "date", Aliases: []string{"data_do_procedimento", "data", "dt", "date"}},
		{Field: "value", Aliases: []string{"valor", "preco", "custo", "value", "price", "amount"}},
		{Field: "status", Aliases: []string{"status", "situacao", "estado"}},
		{Field: "notes", Aliases: []string{"observacoes", "observacao", "obs", "notes"}},
	},
	models.DataTypeTransactions: {
		{Field: "description", Aliases: []string{"descricao", "historico", "description", "memo", "detalhe"}},
		{Field: "amount", Aliases: []string{"valor", "montante", "quantia", "amount", "value", "total"}},
		{Field: "date", Aliases: []string{"data_do_pagamento", "data", "dt", "date", "vencimento"}},
		{Field: "type", Aliases: []string{"tipo", "natureza", "type", "entrada_saida"}},
		{Field: "category", Aliases: []string{"categoria", "classificacao", "category", "grupo"}},
	},
}

// synonymsFor returns the ordered alias table for a data type.
func synonymsFor(dataType models.TargetDataType) []fieldSynonyms {
	return synonymTables[dataType]
}

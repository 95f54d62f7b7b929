package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"clinic-import/internal/models"
	"clinic-import/internal/service"
)

// Generates sample upload files under storage/uploads: one template
// spreadsheet per data type plus CSV files with the column names a Brazilian
// clinic export would actually carry, for exercising auto-detection.
func main() {
	outDir := filepath.Join("storage", "uploads")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
		return
	}

	reports := service.NewReportService()
	for _, dataType := range []models.TargetDataType{
		models.DataTypePatients,
		models.DataTypeProcedures,
		models.DataTypeTransactions,
	} {
		path := filepath.Join(outDir, fmt.Sprintf("template_%s.xlsx", dataType))
		if err := reports.GenerateTemplate(dataType, path); err != nil {
			fmt.Printf("Error generating template for %s: %v\n", dataType, err)
			return
		}
		fmt.Printf("✓ Template created: %s\n", path)
	}

	samples := map[string][][]string{
		"sample_patients.csv": {
			{"Nome", "Telefone", "Email", "CPF", "Data de Nascimento"},
			{"Maria da Silva", "(11) 98765-4321", "maria@example.com", "123.456.789-09", "15/03/1985"},
			{"João Pereira", "+55 21 91234-5678", "joao@example.com", "987.654.321-00", "22/07/1990"},
			{"Ana Souza", "11987650000", "", "111.222.333-44", "01/12/1978"},
		},
		"sample_procedures.csv": {
			{"Paciente", "Procedimento", "Data", "Valor", "Status"},
			{"Maria da Silva", "Limpeza dental", "05/03/2024", "R$ 250,00", "concluído"},
			{"João Pereira", "Restauração", "12/03/2024", "R$ 480,00", "agendado"},
			{"Ana Souza", "Avaliação", "20/03/2024", "R$ 120,00", ""},
		},
		"sample_transactions.csv": {
			{"Descrição", "Valor", "Data", "Tipo", "Categoria"},
			{"Consulta particular", "1.234,56", "05/03/2024", "entrada", "Atendimento"},
			{"Compra de material", "350,00", "07/03/2024", "saída", "Insumos"},
			{"Convênio odontológico", "2.500,00", "10/03/2024", "", "Repasse"},
		},
	}

	for name, rows := range samples {
		path := filepath.Join(outDir, name)
		if err := writeCSV(path, rows); err != nil {
			fmt.Printf("Error writing %s: %v\n", name, err)
			return
		}
		fmt.Printf("✓ Sample created: %s (%d rows)\n", path, len(rows)-1)
	}
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

package service

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"clinic-import/internal/models"
)

type ReportService struct{}

func NewReportService() *ReportService {
	return &ReportService{}
}

// GenerateValidationReport writes the complete issue list of a validation
// run to an Excel file, errors first, with a summary block at the bottom.
func (s *ReportService) GenerateValidationReport(result *models.ValidationResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Validation Issues"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	headers := []string{"Row", "Field", "Severity", "Message", "Value"}
	for i, header := range headers {
		cell := fmt.Sprintf("%s1", columnName(i))
		f.SetCellValue(sheetName, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFE6E6"}, Pattern: 1},
	})
	f.SetCellStyle(sheetName, "A1", fmt.Sprintf("%s1", columnName(len(headers)-1)), headerStyle)

	issues := make([]models.ValidationIssue, 0, len(result.Errors)+len(result.Warnings))
	issues = append(issues, result.Errors...)
	issues = append(issues, result.Warnings...)

	for rowIdx, issue := range issues {
		row := rowIdx + 2
		values := []interface{}{issue.Row, issue.Field, string(issue.Severity), issue.Message, issue.Value}
		for colIdx, value := range values {
			cell := fmt.Sprintf("%s%d", columnName(colIdx), row)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	f.SetColWidth(sheetName, "A", "A", 10)
	f.SetColWidth(sheetName, "B", "B", 18)
	f.SetColWidth(sheetName, "C", "C", 12)
	f.SetColWidth(sheetName, "D", "D", 50)
	f.SetColWidth(sheetName, "E", "E", 25)

	// Summary block
	summaryStartRow := len(issues) + 4
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryStartRow), "Validation Summary")
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryStartRow+1), "Valid Rows:")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryStartRow+1), result.ValidRowCount)
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryStartRow+2), "Invalid Rows:")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryStartRow+2), result.InvalidRowCount)
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryStartRow+3), "Errors:")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryStartRow+3), len(result.Errors))
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryStartRow+4), "Warnings:")
	f.SetCellValue(sheetName, fmt.Sprintf("B%d", summaryStartRow+4), len(result.Warnings))

	summaryStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", summaryStartRow), fmt.Sprintf("A%d", summaryStartRow), summaryStyle)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	return f.SaveAs(outputPath)
}

// GenerateTemplate creates an upload template spreadsheet for a data type,
// with the schema labels as headers and one sample row.
func (s *ReportService) GenerateTemplate(dataType models.TargetDataType, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Dados"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	schema := FieldSchemaFor(dataType)
	for i, field := range schema {
		cell := fmt.Sprintf("%s1", columnName(i))
		label := field.Label
		if field.Required {
			label += " *"
		}
		f.SetCellValue(sheetName, cell, label)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	f.SetCellStyle(sheetName, "A1", fmt.Sprintf("%s1", columnName(len(schema)-1)), headerStyle)

	for i, value := range sampleRowFor(dataType) {
		cell := fmt.Sprintf("%s2", columnName(i))
		f.SetCellValue(sheetName, cell, value)
	}

	for i := range schema {
		col := columnName(i)
		f.SetColWidth(sheetName, col, col, 22)
	}

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	return f.SaveAs(outputPath)
}

func sampleRowFor(dataType models.TargetDataType) []interface{} {
	switch dataType {
	case models.DataTypePatients:
		return []interface{}{"Maria da Silva", "(11) 98765-4321", "maria@example.com", "123.456.789-09", "15/03/1985", "Rua das Flores, 100", "São Paulo", ""}
	case models.DataTypeProcedures:
		return []interface{}{"Maria da Silva", "Limpeza dental", "05/03/2024", "R$ 250,00", "concluído", ""}
	case models.DataTypeTransactions:
		return []interface{}{"Consulta particular", "1.234,56", "05/03/2024", "entrada", "Atendimento"}
	}
	return nil
}

// columnName converts a zero-based column index to an Excel column letter.
func columnName(index int) string {
	result := ""
	for index >= 0 {
		result = string(rune('A'+(index%26))) + result
		index = index/26 - 1
	}
	return result
}

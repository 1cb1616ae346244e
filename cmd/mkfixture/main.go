// mkfixture writes a small self-contained tariff data directory for demos
// and tests: a handful of service codes, two reference tables, one broad
// category table and three bundles with nested condition groups.
// Usage: go run ./cmd/mkfixture --out testdata/demo
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gyeh/tarifcheck/internal/dataload"
	"github.com/gyeh/tarifcheck/internal/parquetio"
)

func main() {
	out := flag.String("out", "testdata/demo", "output data directory")
	jsonTables := flag.Bool("json-tables", false, "write tables.json instead of tables.parquet")
	flag.Parse()

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	two := 2
	one := 1
	sixteen := 16

	services := []dataload.ServiceRow{
		{Code: "C03.AH.0010", Text: "Appendectomy, open", MaxQuantity: &one},
		{Code: "C03.AH.0020", Text: "Appendectomy, laparoscopic", MaxQuantity: &one, Excludes: []string{"C03.AH.0010"}},
		{Code: "AA.00.0010", Text: "Consultation, first 5 min"},
		{Code: "AA.00.0020", Text: "Consultation, each additional 5 min", MaxQuantity: &two},
		{Code: "GY.10.0030", Text: "Gynaecological examination", Sex: "F"},
		{Code: "PED.20.0010", Text: "Paediatric base assessment", MaxAge: &sixteen},
	}

	tables := []parquetio.TableRow{
		{TableName: "CAP01_APPENDEKTOMIE", TableType: "service", Code: "C03.AH.0010", Text: "Appendectomy, open"},
		{TableName: "CAP01_APPENDEKTOMIE", TableType: "service", Code: "C03.AH.0020", Text: "Appendectomy, laparoscopic"},
		{TableName: "CAP01_DIAG", TableType: "diagnosis", Code: "K35", Text: "Acute appendicitis"},
		{TableName: "CAP01_DIAG", TableType: "diagnosis", Code: "K36", Text: "Other appendicitis"},
		{TableName: "OR_ANAESTHESIA", TableType: "category", Code: "C03.AH.0010", Text: "OR procedure"},
		{TableName: "OR_ANAESTHESIA", TableType: "category", Code: "C03.AH.0020", Text: "OR procedure"},
		{TableName: "OR_ANAESTHESIA", TableType: "category", Code: "GY.10.0030", Text: "OR procedure"},
		{TableName: "ANTIBIOTICS_IV", TableType: "medication", Code: "J01DC02", Text: "Cefuroxime"},
		{TableName: "ANTIBIOTICS_IV", TableType: "medication", Code: "J01CR02", Text: "Amoxicillin/clavulanate"},
	}

	bundles := []dataload.BundleRow{
		{Code: "C03.05A", Text: "Appendectomy flat rate, uncomplicated", Points: 3650},
		{Code: "C03.05B", Text: "Appendectomy flat rate, with IV antibiotics", Points: 4900},
		{Code: "C90.00Z", Text: "Generic OR fallback flat rate", Points: 1200},
	}

	conditions := []dataload.ConditionJSONRow{
		// C03.05A: appendectomy code AND matching diagnosis
		{Bundle: "C03.05A", Group: 1, Level: 1, GroupOp: "AND", Kind: "SERVICE_IN_TABLE", Op: "IN", Values: []string{"CAP01_APPENDEKTOMIE"}, Position: 1},
		{Bundle: "C03.05A", Group: 1, Level: 1, GroupOp: "AND", Kind: "DIAGNOSIS_IN_TABLE", Op: "IN", Values: []string{"CAP01_DIAG"}, Position: 2},
		// C03.05B: same, plus IV antibiotics in a nested group
		{Bundle: "C03.05B", Group: 1, Level: 1, GroupOp: "AND", Kind: "SERVICE_IN_TABLE", Op: "IN", Values: []string{"CAP01_APPENDEKTOMIE"}, Position: 1},
		{Bundle: "C03.05B", Group: 1, Level: 1, GroupOp: "AND", Kind: "DIAGNOSIS_IN_TABLE", Op: "IN", Values: []string{"CAP01_DIAG"}, Position: 2},
		{Bundle: "C03.05B", Group: 2, Level: 2, GroupOp: "OR", Kind: "MEDICATION_IN_LIST", Op: "IN", Values: []string{"ANTIBIOTICS_IV"}, ConnectorTarget: 1, Position: 1},
		// C90.00Z: any OR-class code
		{Bundle: "C90.00Z", Group: 1, Level: 1, GroupOp: "AND", Kind: "SERVICE_IN_TABLE", Op: "IN", Values: []string{"OR_ANAESTHESIA"}, Position: 1},
	}

	write := func(name string, v any) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal %s: %v\n", name, err)
			os.Exit(1)
		}
		if err := os.WriteFile(filepath.Join(*out, name), data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	write(dataload.CatalogFile, services)
	write(dataload.BundlesFile, bundles)
	write(dataload.ConditionsFile, conditions)

	if *jsonTables {
		rows := make([]dataload.TableJSONRow, len(tables))
		for i, t := range tables {
			rows[i] = dataload.TableJSONRow{TableName: t.TableName, TableType: t.TableType, Code: t.Code, Text: t.Text}
		}
		write(dataload.TablesJSONFile, rows)
	} else {
		if err := parquetio.WriteFile(filepath.Join(*out, dataload.TablesParquetFile), tables); err != nil {
			fmt.Fprintf(os.Stderr, "write tables.parquet: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("fixture written to %s: %d services, %d bundles, %d condition rows, %d table entries\n",
		*out, len(services), len(bundles), len(conditions), len(tables))
}

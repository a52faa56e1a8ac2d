package shared

import (
	"fmt"
	"strings"

	om "github.com/cevaris/ordered_map"
	"github.com/relloyd/co2pipe/logger"
)

const (
	strUnionAllSelect string = " union all select " // deliberate surrounding spaces.
	strBindChar       string = "?"
)

// DmlGeneratorTxtBatch generates Snowflake-dialect DML text with ? bind
// placeholders for batches of rows.
type DmlGeneratorTxtBatch struct{}

type SqlStatementGeneratorConfig struct {
	Log             logger.Logger
	OutputSchema    string
	SchemaSeparator string
	OutputTable     string
	TargetKeyCols   *om.OrderedMap // ordered map of: key = record field name; value = target table column name
	TargetOtherCols *om.OrderedMap // ordered map of: key = record field name; value = target table column name
}

type sqlCoreCfg struct {
	sqlStmt                string
	sqlStmtTemplate        string
	sqlValues              []interface{} // slice to hold data values for all rows in batch
	batchSize              int
	rowsInBatch            int
	previousNumRowsInBatch int
}

func FixSqlStatementGeneratorConfig(cfg *SqlStatementGeneratorConfig) {
	if cfg.OutputTable == "" {
		cfg.Log.Fatal("Error, missing output table name.")
	}
	if cfg.OutputSchema == "" {
		cfg.SchemaSeparator = ""
		cfg.Log.Debug("No output schema supplied; setting a blank separator.")
	} else {
		cfg.SchemaSeparator = "."
	}
}

// getInlineSelectOfValues builds:
//   select ? as col1, ? as col2 union all select ?, ? ...
// with one select per row in the batch. Only the first row carries column aliases.
func getInlineSelectOfValues(numRowsInBatch int, cols []string) *strings.Builder {
	allRows := strings.Builder{}
	firstTime := true
	for rowIdx := 1; rowIdx <= numRowsInBatch; rowIdx++ { // for each row in the batch...
		row := strings.Builder{}
		for idy := 0; idy < len(cols); idy++ { // for each value in the current row...
			if firstTime {
				row.WriteString(fmt.Sprintf(",%v as %v", strBindChar, cols[idy])) // include value as name.
			} else {
				row.WriteString(fmt.Sprintf(",%v", strBindChar))
			}
		}
		if firstTime {
			allRows.WriteString(fmt.Sprintf("select %v", strings.TrimLeft(row.String(), ",")))
			firstTime = false
		} else {
			allRows.WriteString(fmt.Sprintf("%v%v", strUnionAllSelect, strings.TrimLeft(row.String(), ",")))
		}
	}
	return &allRows
}

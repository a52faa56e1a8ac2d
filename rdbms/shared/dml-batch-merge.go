package shared

import (
	"strings"

	"github.com/pkg/errors"
	h "github.com/relloyd/co2pipe/helper"
)

// SqlMergeTxtBatch implements interface SqlStmtTxtBatcher and
// is able to generate MERGE statements with batches of rows supplied.
// The generated MERGE is a single set-based statement: the batch of rows is
// inlined as the USING clause so the upsert is atomic per execution.
type SqlMergeTxtBatch struct {
	SqlStatementGeneratorConfig        // mandatory to be populated.
	sqlValues                   []interface{} // slice to hold data values, many per row in batch
	batchIndex                  int
	batchSize                   int
	sqlStmt                     string
	AllCols                     []string
	KeyCols                     []string // list of columns extracted from SqlStatementGeneratorConfig.
	OtherCols                   []string
}

// NewMergeGenerator
// Configure defaults in SqlStatementGeneratorConfig.
func (o *DmlGeneratorTxtBatch) NewMergeGenerator(cfg *SqlStatementGeneratorConfig) SqlStmtGenerator {
	FixSqlStatementGeneratorConfig(cfg)
	cfg.Log.Debug("Creating new SqlMerge")
	return &SqlMergeTxtBatch{SqlStatementGeneratorConfig: *cfg}
}

func (o *SqlMergeTxtBatch) getSqlTemplate() string {
	// Keep this on one line to pass unit tests!
	return `merge into <SCHEMA><SEPARATOR><TABLE> <TGT-ALIAS> using (<SELECT-OF-VALUES>) <SRC-ALIAS> on (<KEY-COLS-EQUALS>) when matched then update set <OTHER-COLS-EQUALS> when not matched then insert (<ALL-COLS>) values (<SRC-COLS>)`
}

func (o *SqlMergeTxtBatch) InitBatch(batchSize int) {
	o.Log.Debug("InitBatch() for MERGE...")
	o.batchSize = batchSize
	o.batchIndex = 0
	o.sqlStmt = ""
	var idx int
	if len(o.KeyCols) == 0 { // if we have not built a list of columns from targetKeyCols ordered map...
		o.KeyCols = make([]string, o.TargetKeyCols.Len())
		idx = 0
		h.OrderedMapValuesToStringSlice(o.Log, o.TargetKeyCols, &o.KeyCols, &idx) // build the list of "key" columns.
	}
	if len(o.OtherCols) == 0 { // if we have not built a list of columns from targetOtherCols ordered map...
		o.OtherCols = make([]string, o.TargetOtherCols.Len())
		idx = 0
		h.OrderedMapValuesToStringSlice(o.Log, o.TargetOtherCols, &o.OtherCols, &idx) // build the list of "other" columns.
	}
	if len(o.AllCols) == 0 { // if we have not built the combined list...
		o.AllCols = make([]string, o.TargetKeyCols.Len()+o.TargetOtherCols.Len())
		idx = 0
		h.OrderedMapValuesToStringSlice(o.Log, o.TargetKeyCols, &o.AllCols, &idx)
		h.OrderedMapValuesToStringSlice(o.Log, o.TargetOtherCols, &o.AllCols, &idx)
	}
	// Preallocate a buffer to hold all values (args) passed to exec.
	o.sqlValues = make([]interface{}, 0, o.batchSize*len(o.AllCols)) // many values per row in a batch.
	o.Log.Debug("keyCols = ", o.KeyCols)
	o.Log.Debug("otherCols = ", o.OtherCols)
	o.Log.Debug("rowsInBatch = ", o.batchIndex)
	o.Log.Debug("batchSize = ", o.batchSize)
}

// AddValuesToBatch saves a row of values for the MERGE USING clause.
// The ordering of values must match the key columns followed by the other columns.
func (o *SqlMergeTxtBatch) AddValuesToBatch(values []interface{}) (batchIsFull bool, err error) {
	o.Log.Debug("SqlMergeTxtBatch.AddValuesToBatch()...")
	if o.batchIndex >= o.batchSize { // if we have added to batch more than batch size allows...
		err = errors.New("no more rows allowed in MERGE batch")
		batchIsFull = true
		return
	}
	if len(values) != len(o.AllCols) {
		err = errors.New("the number of values supplied does not match the number of table columns")
		return
	}
	o.sqlValues = append(o.sqlValues, values...)
	o.batchIndex++
	batchIsFull = o.batchIndex >= o.batchSize
	return
}

func (o *SqlMergeTxtBatch) GetValues() []interface{} {
	return o.sqlValues
}

func (o *SqlMergeTxtBatch) GetStatement() string {
	if o.sqlStmt == "" { // if we need to generate SQL for this batch...
		sql := o.getSqlTemplate()
		sql = strings.Replace(sql, "<SCHEMA>", o.OutputSchema, 1)
		sql = strings.Replace(sql, "<SEPARATOR>", o.SchemaSeparator, 1)
		sql = strings.Replace(sql, "<TABLE>", o.OutputTable, 1)
		sql = strings.Replace(sql, "<TGT-ALIAS>", "T", 1)
		sql = strings.Replace(sql, "<SELECT-OF-VALUES>", getInlineSelectOfValues(o.batchIndex, o.AllCols).String(), 1)
		sql = strings.Replace(sql, "<SRC-ALIAS>", "S", 1)
		sql = strings.Replace(sql, "<KEY-COLS-EQUALS>", h.GenerateStringOfColsEqualsCols(o.KeyCols, "S", "T", " and "), 1)
		sql = strings.Replace(sql, "<OTHER-COLS-EQUALS>", h.GenerateStringOfColsEqualsCols(o.OtherCols, "T", "S", ", "), 1)
		sql = strings.Replace(sql, "<ALL-COLS>", h.StringsToCsv(o.AllCols), 1)
		srcCols := make([]string, len(o.AllCols))
		for i, c := range o.AllCols {
			srcCols[i] = "S." + c
		}
		sql = strings.Replace(sql, "<SRC-COLS>", h.StringsToCsv(srcCols), 1)
		o.sqlStmt = sql
	}
	o.Log.Debug("SQL batch MERGE generated statement: ", o.sqlStmt)
	return o.sqlStmt
}

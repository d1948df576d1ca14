package export

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/schema"
	"github.com/leapstack-labs/pith/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func salesResult() *query.Result {
	return &query.Result{
		Columns: []string{"region", "amount", "note"},
		Rows: []query.Record{
			{"region": "EU", "amount": float64(1200), "note": `say "hi"`},
			{"region": "O'Hare", "amount": 3.5, "note": nil},
		},
	}
}

func salesSchema() *schema.ColumnSchema {
	return &schema.ColumnSchema{Table: "sales", Columns: []schema.Column{
		{Name: "region", Type: "VARCHAR"},
		{Name: "amount", Type: "DOUBLE", IsNumeric: true},
		{Name: "note", Type: "VARCHAR"},
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, salesResult()))

	want := "region,amount,note\n" +
		`"EU",1200,"say ""hi"""` + "\n" +
		`"O'Hare",3.5,` + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_HeaderQuoting(t *testing.T) {
	res := &query.Result{
		Columns: []string{"id", "city, state", `say "hi"`, "line\nbreak"},
		Rows:    []query.Record{{"id": 1.0, "city, state": "x", `say "hi"`: nil, "line\nbreak": nil}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res))

	want := `id,"city, state","say ""hi""","line` + "\n" + `break"` + "\n" +
		`1,"x",,` + "\n"
	assert.Equal(t, want, buf.String())
}

func TestCSVField(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"a,b", `"a,b"`},
		{"", `""`},
		{float64(9007199254740992), "9007199254740992"},
		{0.25, "0.25"},
		{true, "true"},
		{time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC), "2024-03-01 12:30:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, csvField(tt.in), "%v", tt.in)
	}
}

func TestSQLLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"it's", "'it''s'"},
		{float64(42), "42"},
		{false, "FALSE"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "'2024-03-01 00:00:00'"},
		{[]int{1}, "'[1]'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqlLiteral(tt.in), "%v", tt.in)
	}
}

func TestWriteSQLDump(t *testing.T) {
	tables := []Table{
		{Name: "sales", Schema: salesSchema(), Data: salesResult()},
		{Name: "empty", Schema: &schema.ColumnSchema{Table: "empty"}, Data: &query.Result{Rows: []query.Record{}}},
	}
	var buf bytes.Buffer
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, WriteSQLDump(&buf, tables, at))

	want := Banner + "\n" +
		"-- Generated: 2025-01-02T03:04:05Z\n\n" +
		"-- Table: sales\n" +
		`DROP TABLE IF EXISTS "sales";` + "\n" +
		`CREATE TABLE "sales" ("region" VARCHAR, "amount" DOUBLE, "note" VARCHAR);` + "\n\n" +
		`INSERT INTO "sales" VALUES ('EU', 1200, 'say "hi"');` + "\n" +
		`INSERT INTO "sales" VALUES ('O''Hare', 3.5, NULL);` + "\n\n"
	assert.Equal(t, want, buf.String())
	assert.NotContains(t, buf.String(), "empty")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	tables := []Table{
		{Name: "sales", Schema: salesSchema(), Data: salesResult()},
		{Name: "a_very_long_table_name_that_exceeds_the_sheet_limit", Schema: salesSchema(), Data: salesResult()},
	}
	require.NoError(t, WriteXLSX(&buf, tables))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"sales", "a_very_long_table_name_that_exc"}, f.GetSheetList())

	rows, err := f.GetRows("sales")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"region (VARCHAR)", "amount (DOUBLE)", "note (VARCHAR)"}, rows[0])
	assert.Equal(t, []string{"EU", "1200", `say "hi"`}, rows[1])
	assert.Equal(t, []string{"O'Hare", "3.5"}, rows[2])
}

func TestWriteXLSXNoTables(t *testing.T) {
	assert.ErrorIs(t, WriteXLSX(io.Discard, nil), ErrNoTables)
}

func TestCompressRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := Compress(&buf, 0)
	require.NoError(t, err)
	require.NoError(t, WriteCSV(w, salesResult()))
	require.NoError(t, w.Close())

	r, name, err := Decompress(&buf, "sales_export.csv.zst")
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "sales_export.csv", name)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "region,amount,note\n"))
}

func TestDecompressPassThrough(t *testing.T) {
	r, name, err := Decompress(strings.NewReader("x"), "dump.sql")
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "dump.sql", name)
	assert.Equal(t, "x", string(data))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	assert.Equal(t, "sales_export.csv", FileName(FormatCSV, "sales", at))
	assert.Equal(t, "pith_export_1700000000000.sql", FileName(FormatSQL, "", at))
	assert.Equal(t, "pith_export_1700000000000.xlsx", FileName(FormatXLSX, "", at))
}

func TestExporterWithDuckDB(t *testing.T) {
	ctx := context.Background()
	eng := testutil.NewDuckEngine(t)
	conn, err := eng.Connection(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Exec(ctx, `CREATE TABLE sales AS SELECT * FROM (VALUES ('EU', 10), ('US', 20)) v(region, amount)`))
	require.NoError(t, conn.Exec(ctx, `CREATE TABLE nothing (id INTEGER)`))

	normalizer := query.New(query.Config{Engine: eng})
	e := New(normalizer, schema.New(normalizer, nil), testutil.NewTestLogger(t))

	var csvBuf bytes.Buffer
	require.NoError(t, e.CSV(ctx, &csvBuf, "sales"))
	assert.Equal(t, "region,amount\n\"EU\",10\n\"US\",20\n", csvBuf.String())

	var dump bytes.Buffer
	require.NoError(t, e.SQLDump(ctx, &dump))
	assert.Contains(t, dump.String(), `CREATE TABLE "sales" ("region" VARCHAR, "amount" INTEGER);`)
	assert.NotContains(t, dump.String(), `"nothing"`)

	// replaying the dump recreates the table
	var script []string
	for _, line := range strings.Split(dump.String(), "\n") {
		if !strings.HasPrefix(line, "--") {
			script = append(script, line)
		}
	}
	for _, stmt := range strings.Split(strings.Join(script, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			require.NoError(t, conn.Exec(ctx, stmt))
		}
	}
	res, err := normalizer.Run(ctx, `SELECT sum(amount) AS total FROM sales`)
	require.NoError(t, err)
	assert.Equal(t, float64(30), res.Rows[0]["total"])
}

package workbench

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/leapstack-labs/pith/internal/ui/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *features.TestFixture {
	t.Helper()
	f := features.SetupTestFixture(t, features.FixtureOptions{})
	require.NoError(t, SetupRoutes(f.Router, f.App))
	f.Ingest(t, "sales.csv", "region,amount\nEU,10\nUS,20\nEU,5\n")
	return f
}

func TestQuery(t *testing.T) {
	f := setup(t)

	rec := f.DoJSON(t, http.MethodPost, "/api/query", QueryRequest{
		SQL: "SELECT region, sum(amount) AS total FROM sales GROUP BY region ORDER BY region",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"region", "total"}, resp.Columns)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "EU", resp.Rows[0]["region"])
	assert.Equal(t, float64(15), resp.Rows[0]["total"])
	assert.GreaterOrEqual(t, resp.ElapsedMS, int64(0))
}

func TestQueryEmptySQL(t *testing.T) {
	f := setup(t)
	rec := f.DoJSON(t, http.MethodPost, "/api/query", QueryRequest{SQL: "   "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rows":[],"columns":[],"elapsedMs":0}`, rec.Body.String())
}

func TestQueryErrors(t *testing.T) {
	f := setup(t)

	rec := f.DoJSON(t, http.MethodPost, "/api/query", QueryRequest{SQL: "SELECT nope FROM sales"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "query failed")

	rec = f.Do(http.MethodPost, "/api/query", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestMosaic(t *testing.T) {
	f := setup(t)

	rec := f.Do(http.MethodPost, "/mosaic",
		strings.NewReader(`{"type":"json","sql":"SELECT count(*) AS n FROM sales"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"n":3}]`, rec.Body.String())

	rec = f.Do(http.MethodPost, "/mosaic",
		strings.NewReader(`{"type":"arrow","sql":"SELECT 1"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package visual

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/pith/internal/query"
	"github.com/leapstack-labs/pith/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnector(t *testing.T) (*Connector, sqlmock.Sqlmock) {
	t.Helper()
	eng := testutil.NewMockEngine(t)
	return NewConnector(query.New(query.Config{Engine: eng}), testutil.NewTestLogger(t)), eng.Mock
}

func TestConnector_Query(t *testing.T) {
	c, mock := newConnector(t)
	mock.ExpectQuery(`SELECT region, count(*) AS n FROM sales GROUP BY 1`).
		WillReturnRows(sqlmock.NewRows([]string{"region", "n"}).
			AddRow("eu", int64(9007199254740993)).
			AddRow("us", int64(4)))

	tbl, err := c.Query(context.Background(), query.Query{SQL: "SELECT region, count(*) AS n FROM sales GROUP BY 1"})
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, []string{"region", "n"}, tbl.ColumnNames())
	assert.Equal(t, []any{"eu", "us"}, tbl.Column("region"))
	assert.Nil(t, tbl.Column("missing"))
	assert.Equal(t, map[string][]any{
		"region": {"eu", "us"},
		"n":      {float64(9007199254740992), float64(4)},
	}, tbl.Columns())

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"region":"eu","n":9007199254740992},{"region":"us","n":4}]`, string(data))
}

func TestConnector_EmptyQuery(t *testing.T) {
	c, _ := newConnector(t)
	tbl, err := c.Query(context.Background(), map[string]any{"type": "json"})
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.NumRows())

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestConnector_QueryError(t *testing.T) {
	c, mock := newConnector(t)
	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("Parser Error: syntax error"))

	_, err := c.Query(context.Background(), "SELECT broken")
	var qerr *query.QueryExecutionError
	assert.ErrorAs(t, err, &qerr)
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		setup    func(sqlmock.Sqlmock)
		wantCode int
		wantBody string
	}{
		{
			name: "json",
			body: `{"type":"json","sql":"SELECT 1 AS one"}`,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT 1 AS one").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(int64(1)))
			},
			wantCode: http.StatusOK,
			wantBody: `[{"one":1}]`,
		},
		{
			name: "exec",
			body: `{"type":"exec","sql":"CREATE TEMP TABLE x AS SELECT 1"}`,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("CREATE TEMP TABLE x AS SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"Count"}))
			},
			wantCode: http.StatusOK,
		},
		{
			name:     "arrow",
			body:     `{"type":"arrow","sql":"SELECT 1"}`,
			wantCode: http.StatusBadRequest,
			wantBody: "arrow responses are not supported",
		},
		{
			name:     "bad body",
			body:     `{`,
			wantCode: http.StatusBadRequest,
			wantBody: "invalid request body",
		},
		{
			name: "engine error",
			body: `{"type":"json","sql":"SELECT nope"}`,
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery("SELECT nope").WillReturnError(errors.New("Binder Error: nope"))
			},
			wantCode: http.StatusInternalServerError,
			wantBody: "Binder Error: nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newConnector(t)
			if tt.setup != nil {
				tt.setup(mock)
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/mosaic", strings.NewReader(tt.body))
			c.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK && tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

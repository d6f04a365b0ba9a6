package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/casa/internal/credit"
	"github.com/Veraticus/casa/internal/model"
)

// sheetsRecorder is a minimal Sheets API backend.
type sheetsRecorder struct {
	requests     []string
	values       [][]any
	batchSheetID []int64
	failPuts     int
	mu           sync.Mutex
}

func (rec *sheetsRecorder) count(prefix string) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := 0
	for _, r := range rec.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (rec *sheetsRecorder) countExact(request string) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := 0
	for _, r := range rec.requests {
		if r == request {
			n++
		}
	}
	return n
}

func newTestWriter(t *testing.T, rec *sheetsRecorder, config Config) *Writer {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		rec.requests = append(rec.requests, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPut:
			if rec.failPuts > 0 {
				rec.failPuts--
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprint(w, `{"error":{"code":503,"message":"unavailable"}}`)
				return
			}
			var vr sheets.ValueRange
			_ = json.NewDecoder(r.Body).Decode(&vr)
			rec.values = append(rec.values, vr.Values...)
			_, _ = fmt.Fprint(w, `{}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets":
			_, _ = fmt.Fprint(w, `{"spreadsheetId":"created-1","spreadsheetUrl":"https://example.test/created-1","sheets":[{"properties":{"sheetId":0,"title":"Projeção"}}]}`)
		case r.Method == http.MethodGet:
			_, _ = fmt.Fprint(w, `{"spreadsheetId":"existing","sheets":[{"properties":{"sheetId":42,"title":"Projeção"}}]}`)
		case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			var req sheets.BatchUpdateSpreadsheetRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			for _, q := range req.Requests {
				if q.UpdateSheetProperties != nil {
					rec.batchSheetID = append(rec.batchSheetID, q.UpdateSheetProperties.Properties.SheetId)
				}
			}
			_, _ = fmt.Fprint(w, `{}`)
		default:
			_, _ = fmt.Fprint(w, `{}`)
		}
	}))
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return newWriterWithService(svc, config, nil)
}

func testReport() ProjectionReport {
	card := model.CreditCard{
		ID:             "card-1",
		Name:           "Nubank",
		CreditLimit:    decimal.NewFromInt(5000),
		CurrentBalance: decimal.RequireFromString("1200.50"),
	}
	oct := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	nov := oct.AddDate(0, 1, 0)
	return ProjectionReport{
		GeneratedAt: time.Date(2026, time.October, 19, 13, 0, 0, 0, time.UTC),
		Cards: []CardProjection{{
			Card: card,
			Points: []credit.ProjectionPoint{
				{Month: oct, Label: "out/26", Usage: credit.Usage{
					Occupied:        decimal.NewFromInt(1500),
					Remaining:       decimal.NewFromInt(3500),
					UsagePercentage: decimal.NewFromInt(30),
				}},
				{Month: nov, Label: "nov/26", Usage: credit.Usage{
					Occupied:        decimal.NewFromInt(1000),
					Remaining:       decimal.NewFromInt(4000),
					UsagePercentage: decimal.RequireFromString("20.04"),
				}},
			},
		}},
	}
}

func TestWriter_prepareReportData(t *testing.T) {
	config := DefaultConfig()
	config.TimeZone = "UTC"
	writer := &Writer{config: config}

	values := writer.prepareReportData(testReport())

	require.Len(t, values, 6+5+2)
	assert.Equal(t, "Projeção de limite", values[0][0])
	assert.Equal(t, "Gerado em 19/10/2026 13:00", values[0][1])
	assert.Equal(t, []any{"Cartões", 1}, values[3])
	assert.Equal(t, []any{"Limite total", 5000.0}, values[4])

	assert.Equal(t, []any{"Cartão", "Nubank"}, values[6])
	assert.Equal(t, []any{"Fatura atual", 1200.5}, values[8])
	assert.Equal(t, []any{"Mês", "Comprometido", "Disponível", "Uso (%)"}, values[9])
	assert.Equal(t, []any{"out/26", 1500.0, 3500.0, 30.0}, values[10])
	assert.Equal(t, []any{"nov/26", 1000.0, 4000.0, 20.0}, values[11])
	assert.Empty(t, values[12])
}

func TestFormatRequests(t *testing.T) {
	config := DefaultConfig()
	config.TimeZone = "UTC"
	l := (&Writer{config: config}).layoutReport(testReport())

	assert.Equal(t, []span{
		{from: 4, to: 5, col: 1, width: 1},
		{from: 7, to: 9, col: 1, width: 1},
		{from: 10, to: 12, col: 1, width: 2},
	}, l.money)
	assert.Equal(t, []span{{from: 10, to: 12, col: 3, width: 1}}, l.percent)

	requests := formatRequests(7, l)
	require.Len(t, requests, 1+3+1+2)
	for _, r := range requests[1:5] {
		require.NotNil(t, r.RepeatCell)
		assert.Equal(t, int64(7), r.RepeatCell.Range.SheetId)
	}
	assert.Equal(t, "CURRENCY", requests[1].RepeatCell.Cell.UserEnteredFormat.NumberFormat.Type)
	assert.Equal(t, "NUMBER", requests[4].RepeatCell.Cell.UserEnteredFormat.NumberFormat.Type)
	assert.Equal(t, int64(1), requests[6].UpdateSheetProperties.Properties.GridProperties.FrozenRowCount)
}

func TestWriter_WriteCreatesSpreadsheet(t *testing.T) {
	rec := &sheetsRecorder{}
	config := DefaultConfig()
	config.TimeZone = "UTC"
	writer := newTestWriter(t, rec, config)

	id, err := writer.Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "created-1", id)

	assert.Equal(t, 1, rec.countExact("POST /v4/spreadsheets"))
	assert.Equal(t, 1, rec.count("PUT "))
	assert.Len(t, rec.values, 13)
	assert.Equal(t, []int64{0}, rec.batchSheetID)
}

func TestWriter_WriteExistingSpreadsheet(t *testing.T) {
	rec := &sheetsRecorder{}
	config := DefaultConfig()
	config.SpreadsheetID = "existing"
	config.BatchSize = 5
	config.EnableFormatting = true
	writer := newTestWriter(t, rec, config)

	id, err := writer.Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "existing", id)

	assert.Equal(t, 1, rec.count("GET /v4/spreadsheets/existing"))
	assert.Equal(t, 0, rec.countExact("POST /v4/spreadsheets"))
	assert.Equal(t, 3, rec.count("PUT "), "13 rows in batches of 5")
	assert.Len(t, rec.values, 13)
	assert.Equal(t, []int64{42}, rec.batchSheetID)
}

func TestWriter_WriteRetriesTransientFailures(t *testing.T) {
	rec := &sheetsRecorder{failPuts: 1}
	config := DefaultConfig()
	config.SpreadsheetID = "existing"
	config.RetryDelay = time.Millisecond
	config.EnableFormatting = false
	writer := newTestWriter(t, rec, config)

	_, err := writer.Write(context.Background(), testReport())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, rec.count("PUT "), 2)
	assert.Len(t, rec.values, 13)
	assert.Empty(t, rec.batchSheetID, "formatting disabled")
}

func TestWriter_WriteGivesUp(t *testing.T) {
	rec := &sheetsRecorder{failPuts: 100}
	config := DefaultConfig()
	config.SpreadsheetID = "existing"
	config.RetryAttempts = 2
	config.RetryDelay = time.Millisecond
	writer := newTestWriter(t, rec, config)

	_, err := writer.Write(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write data")
}

func TestMockWriter(t *testing.T) {
	mock := NewMockWriter()
	_, ok := mock.LastReport()
	assert.False(t, ok)

	id, err := mock.Write(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "mock-sheet", id)

	report, ok := mock.LastReport()
	require.True(t, ok)
	assert.Len(t, report.Cards, 1)

	mock.SetWriteError(assert.AnError)
	_, err = mock.Write(context.Background(), testReport())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, mock.WriteCallCount)
}

package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/casa/internal/common"
)

const (
	sheetTitle     = "Projeção"
	currencyFormat = `"R$" #,##0.00`
	reportColumns  = 4
)

// Writer exports projection reports to a Google spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets projection writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return newWriterWithService(service, config, logger), nil
}

func newWriterWithService(service *sheets.Service, config Config, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}
}

// Write replaces the spreadsheet contents with report and returns the spreadsheet ID.
func (w *Writer) Write(ctx context.Context, report ProjectionReport) (string, error) {
	w.logger.Info("Exporting projection", "cards", len(report.Cards))

	spreadsheetID, sheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	if clearErr := w.clearSheet(ctx, spreadsheetID); clearErr != nil {
		return "", fmt.Errorf("failed to clear sheet: %w", clearErr)
	}

	l := w.layoutReport(report)
	values := l.rows

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	err = common.WithRetry(ctx, func() error {
		return w.writeData(ctx, spreadsheetID, values)
	}, retryOpts)
	if err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			req := &sheets.BatchUpdateSpreadsheetRequest{Requests: formatRequests(sheetID, l)}
			_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
			return err
		}, retryOpts)
		if err != nil {
			// The data is already written.
			w.logger.Warn("Failed to format projection sheet", "error", err)
		}
	}

	w.logger.Info("Projection exported", "spreadsheet_id", spreadsheetID, "rows", len(values))

	return spreadsheetID, nil
}

// createSheetsService creates a Google Sheets API service from a service
// account key, a saved OAuth2 token file or a bare refresh token.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	switch {
	case config.ServiceAccountPath != "":
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)

	case config.TokenFile != "" && config.RefreshToken == "":
		oauthCfg := OAuth2Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenFile:    config.TokenFile,
		}
		source, err := oauthCfg.fileTokenSource(ctx)
		if err != nil {
			return nil, err
		}
		tokenSource = source

	default:
		oauthCfg := OAuth2Config{ClientID: config.ClientID, ClientSecret: config.ClientSecret}
		tokenSource = oauthCfg.oauth2().TokenSource(ctx, &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		})
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet returns the configured spreadsheet, or creates one,
// along with the ID of its first sheet.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, int64, error) {
	if w.config.SpreadsheetID != "" {
		existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return "", 0, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return w.config.SpreadsheetID, firstSheetID(existing), nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: w.config.SpreadsheetName, TimeZone: w.config.TimeZone, Locale: "pt_BR"},
		Sheets:     []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: sheetTitle}}},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("Created spreadsheet", "id", created.SpreadsheetId, "url", created.SpreadsheetUrl)

	return created.SpreadsheetId, firstSheetID(created), nil
}

func firstSheetID(s *sheets.Spreadsheet) int64 {
	if s == nil || len(s.Sheets) == 0 || s.Sheets[0].Properties == nil {
		return 0
	}
	return s.Sheets[0].Properties.SheetId
}

// clearSheet empties the report columns so a shorter report leaves no stale rows.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, "A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// layout is the report as rows plus the spans that need number formats.
type layout struct {
	rows    [][]any
	money   []span
	percent []span
}

// span covers rows [from, to) of the columns [col, col+width).
type span struct {
	from, to   int64
	col, width int64
}

func (l *layout) add(row ...any) int64 {
	l.rows = append(l.rows, row)
	return int64(len(l.rows) - 1)
}

// layoutReport puts a summary block first, then one block per card with its
// monthly series.
func (w *Writer) layoutReport(report ProjectionReport) layout {
	loc := time.Local
	if tz, err := time.LoadLocation(w.config.TimeZone); err == nil {
		loc = tz
	}

	var l layout
	l.add("Projeção de limite", "Gerado em "+report.GeneratedAt.In(loc).Format("02/01/2006 15:04"))
	l.add()
	l.add("Resumo")
	l.add("Cartões", len(report.Cards))
	total := l.add("Limite total", report.TotalLimit().InexactFloat64())
	l.money = append(l.money, span{from: total, to: total + 1, col: 1, width: 1})
	l.add()

	for _, c := range report.Cards {
		l.add("Cartão", c.Card.Name)
		limit := l.add("Limite", c.Card.CreditLimit.InexactFloat64())
		l.add("Fatura atual", c.Card.CurrentBalance.InexactFloat64())
		l.money = append(l.money, span{from: limit, to: limit + 2, col: 1, width: 1})

		l.add("Mês", "Comprometido", "Disponível", "Uso (%)")
		first := int64(len(l.rows))
		for _, p := range c.Points {
			l.add(p.Label,
				p.Occupied.InexactFloat64(),
				p.Remaining.InexactFloat64(),
				p.UsagePercentage.Round(1).InexactFloat64())
		}
		last := int64(len(l.rows))
		l.money = append(l.money, span{from: first, to: last, col: 1, width: 2})
		l.percent = append(l.percent, span{from: first, to: last, col: 3, width: 1})
		l.add()
	}
	return l
}

func (w *Writer) prepareReportData(report ProjectionReport) [][]any {
	return w.layoutReport(report).rows
}

// writeData sends values in batches of BatchSize rows.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for start := 0; start < len(values); start += w.config.BatchSize {
		batch := values[start:min(start+w.config.BatchSize, len(values))]
		cell := fmt.Sprintf("A%d", start+1)

		call := w.service.Spreadsheets.Values.Update(spreadsheetID, cell, &sheets.ValueRange{Values: batch})
		if _, err := call.ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to write rows from %d: %w", start+1, err)
		}
		w.logger.Debug("Wrote rows", "from", start+1, "count", len(batch))
	}
	return nil
}

func numberFormat(sheetID int64, s span, format *sheets.NumberFormat) *sheets.Request {
	return &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range: &sheets.GridRange{
			SheetId:          sheetID,
			StartRowIndex:    s.from,
			EndRowIndex:      s.to,
			StartColumnIndex: s.col,
			EndColumnIndex:   s.col + s.width,
		},
		Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{NumberFormat: format}},
		Fields: "userEnteredFormat.numberFormat",
	}}
}

// formatRequests styles the title, the money and usage cells, sizes the
// columns and freezes the title row.
func formatRequests(sheetID int64, l layout) []*sheets.Request {
	title := &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1, StartColumnIndex: 0, EndColumnIndex: 2},
		Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
			TextFormat: &sheets.TextFormat{Bold: true, FontSize: 14},
		}},
		Fields: "userEnteredFormat.textFormat",
	}}
	requests := []*sheets.Request{title}

	currency := &sheets.NumberFormat{Type: "CURRENCY", Pattern: currencyFormat}
	for _, s := range l.money {
		requests = append(requests, numberFormat(sheetID, s, currency))
	}
	usage := &sheets.NumberFormat{Type: "NUMBER", Pattern: "0.0"}
	for _, s := range l.percent {
		requests = append(requests, numberFormat(sheetID, s, usage))
	}

	return append(requests,
		&sheets.Request{AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{SheetId: sheetID, Dimension: "COLUMNS", StartIndex: 0, EndIndex: reportColumns},
		}},
		&sheets.Request{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:        sheetID,
				GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
			},
			Fields: "gridProperties.frozenRowCount",
		}},
	)
}

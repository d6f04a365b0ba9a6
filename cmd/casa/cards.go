package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/casa/internal/cli"
	"github.com/Veraticus/casa/internal/config"
	"github.com/Veraticus/casa/internal/credit"
	"github.com/Veraticus/casa/internal/ofx"
	"github.com/Veraticus/casa/internal/service"
	"github.com/Veraticus/casa/internal/sheets"
)

// reportWriter publishes a projection report and returns the spreadsheet ID.
type reportWriter interface {
	Write(ctx context.Context, report sheets.ProjectionReport) (string, error)
}

func cardsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Credit cards, statements and limit projections",
	}

	cmd.AddCommand(cardsListCmd())
	cmd.AddCommand(cardsProjectionCmd())
	cmd.AddCommand(cardsImportCmd())
	cmd.AddCommand(cardsExportCmd())

	return cmd
}

func cardsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the household's cards with this month's usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireIdentity(); err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := buildReport(ctx, store, cfg.Assistant.HouseholdID, nil, time.Now())
			if err != nil {
				return err
			}
			return printCardList(cmd.OutOrStdout(), report)
		},
	}
}

func cardsProjectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projection <card-id>",
		Short: "Show how much of a card's limit is committed over the next months",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			export, _ := cmd.Flags().GetBool("export")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := buildReport(ctx, store, "", args, time.Now())
			if err != nil {
				return err
			}
			if err := printProjection(cmd.OutOrStdout(), report.Cards[0]); err != nil {
				return err
			}
			if !export {
				return nil
			}

			writer, err := newSheetsWriter(ctx, cfg)
			if err != nil {
				return err
			}
			return exportReport(ctx, cmd.OutOrStdout(), writer, report)
		},
	}

	cmd.Flags().Bool("export", false, "Also write the projection to Google Sheets")

	return cmd
}

func cardsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write every card's projection to Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireIdentity(); err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			report, err := buildReport(ctx, store, cfg.Assistant.HouseholdID, nil, time.Now())
			if err != nil {
				return err
			}
			if len(report.Cards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Nenhum cartão cadastrado."))
				return nil
			}

			writer, err := newSheetsWriter(ctx, cfg)
			if err != nil {
				return err
			}
			return exportReport(ctx, cmd.OutOrStdout(), writer, report)
		},
	}
}

func cardsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.ofx>...",
		Short: "Import credit card statements in OFX format",
		Long: `Import one or more OFX credit card statements into a card.

Charges already imported are detected and skipped, so running the same
statement twice is safe. Each new charge is added to the card balance.
Installment markers such as "PARC 03/12" become installment plans.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cardID, _ := cmd.Flags().GetString("card")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if skip, _ := cmd.Flags().GetBool("no-checkpoint"); !skip {
				autoCheckpoint(ctx, store, "import")
			}

			handler := cli.NewInterruptHandler(cmd.OutOrStdout(), "Importação").
				WithResumeHint("Rode o import de novo: lançamentos já importados são ignorados.")
			ctx = handler.HandleInterrupts(ctx)

			result, err := importStatements(ctx, cmd.OutOrStdout(), store, cardID, args)
			if handler.WasInterrupted() {
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Importação concluída",
				fmt.Sprintf("  • Lançamentos lidos: %d\n  • Novos: %d\n  • Duplicados: %d",
					result.Parsed, result.Posted, result.Duplicates)))
			return nil
		},
	}

	cmd.Flags().String("card", "", "Card ID to import into")
	cmd.Flags().Bool("no-checkpoint", false, "Skip the automatic checkpoint taken before importing")
	_ = cmd.MarkFlagRequired("card")

	return cmd
}

// importStatements imports every file into cardID with a per-file progress bar.
func importStatements(ctx context.Context, out io.Writer, store service.CardStore, cardID string, files []string) (ofx.ImportResult, error) {
	importer := ofx.NewImporter(store)
	progress := cli.NewProgress(out, len(files), "Importando extratos...")

	var total ofx.ImportResult
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		progress.Describe(filepath.Base(path))

		result, err := importFile(ctx, importer, cardID, path)
		if err != nil {
			return total, err
		}
		total.Parsed += result.Parsed
		total.Posted += result.Posted
		total.Duplicates += result.Duplicates

		slog.Debug("Imported statement", "file", path, "posted", result.Posted, "duplicates", result.Duplicates)
		progress.Step()
	}
	progress.Done()
	return total, nil
}

func importFile(ctx context.Context, importer *ofx.Importer, cardID, path string) (ofx.ImportResult, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return ofx.ImportResult{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	result, err := importer.Import(ctx, cardID, f, nil)
	if err != nil {
		return result, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return result, nil
}

// buildReport projects the given cards, or every card of householdID when
// cardIDs is empty.
func buildReport(ctx context.Context, store service.CardStore, householdID string, cardIDs []string, now time.Time) (sheets.ProjectionReport, error) {
	report := sheets.ProjectionReport{GeneratedAt: now}

	if len(cardIDs) == 0 {
		cards, err := store.ListCards(ctx, householdID)
		if err != nil {
			return report, fmt.Errorf("failed to list cards: %w", err)
		}
		for _, card := range cards {
			cardIDs = append(cardIDs, card.ID)
		}
	}

	for _, id := range cardIDs {
		card, err := store.GetCard(ctx, id)
		if err != nil {
			return report, fmt.Errorf("card %s: %w", id, err)
		}
		txns, err := store.ListCardTransactions(ctx, id)
		if err != nil {
			return report, fmt.Errorf("failed to list transactions for card %s: %w", id, err)
		}
		report.Cards = append(report.Cards, sheets.CardProjection{
			Card:   *card,
			Points: credit.BuildSeries(*card, txns, now),
		})
	}
	return report, nil
}

func printProjection(w io.Writer, p sheets.CardProjection) error {
	rows := make([][]string, 0, len(p.Points))
	for _, pt := range p.Points {
		rows = append(rows, []string{
			pt.Label,
			cli.FormatBRL(pt.Occupied),
			cli.FormatBRL(pt.Remaining),
			formatPercent(pt.UsagePercentage),
		})
	}

	title := cli.FormatTitle(fmt.Sprintf("%s %s", cli.CardIcon, p.Card.Name))
	subtitle := cli.SubtleStyle.Render(fmt.Sprintf("Limite %s · fatura atual %s",
		cli.FormatBRL(p.Card.CreditLimit), cli.FormatBRL(p.Card.CurrentBalance)))
	table := cli.FormatTable([]string{"Mês", "Comprometido", "Disponível", "Uso"}, rows)

	_, err := fmt.Fprintf(w, "%s\n%s\n\n%s\n", title, subtitle, table)
	return err
}

func printCardList(w io.Writer, report sheets.ProjectionReport) error {
	if len(report.Cards) == 0 {
		_, err := fmt.Fprintln(w, cli.FormatWarning("Nenhum cartão cadastrado."))
		return err
	}

	rows := make([][]string, 0, len(report.Cards))
	for _, c := range report.Cards {
		current := credit.Usage{}
		if len(c.Points) > 0 {
			current = c.Points[0].Usage
		}
		rows = append(rows, []string{
			c.Card.ID,
			c.Card.Name,
			cli.FormatBRL(c.Card.CreditLimit),
			cli.FormatBRL(current.Remaining),
			formatPercent(current.UsagePercentage),
		})
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", cli.FormatTitle("Cartões"),
		cli.FormatTable([]string{"ID", "Cartão", "Limite", "Disponível", "Uso"}, rows))
	return err
}

func formatPercent(d decimal.Decimal) string {
	f, _ := d.Round(1).Float64()
	return strconv.FormatFloat(f, 'f', 1, 64) + "%"
}

func newSheetsWriter(ctx context.Context, cfg config.Config) (*sheets.Writer, error) {
	sheetsCfg, err := cfg.Sheets.SheetsWriterConfig()
	if err != nil {
		return nil, fmt.Errorf("google sheets is not configured (run 'casa auth sheets'): %w", err)
	}
	return sheets.NewWriter(ctx, sheetsCfg, slog.Default())
}

func exportReport(ctx context.Context, w io.Writer, writer reportWriter, report sheets.ProjectionReport) error {
	handler := cli.NewInterruptHandler(w, "Exportação")
	ctx = handler.HandleInterrupts(ctx)

	spreadsheetID, err := writer.Write(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to export to Google Sheets: %w", err)
	}
	_, err = fmt.Fprintln(w, cli.FormatSuccess("Projeção exportada: "+spreadsheetURL(spreadsheetID)))
	return err
}

func spreadsheetURL(id string) string {
	return "https://docs.google.com/spreadsheets/d/" + id
}

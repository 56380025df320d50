package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/application/dto"
	"github.com/vsinha/tandas/pkg/domain/entities"
)

const dateLayout = "2006-01-02"

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	// Now decides which orders are late; zero means time.Now
	Now time.Time
	// Out receives stdout output; nil means os.Stdout
	Out io.Writer
}

func (c Config) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c Config) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// BatchHeader names the columns of a flattened batch listing
var BatchHeader = []string{
	"line_id", "line_name", "batch_id", "state", "sequence", "order_id", "sales_order_id",
	"product", "client", "weight_kg", "requested_delivery", "late", "planned_start", "planned_end",
}

// BatchRow is one order of one batch, flattened for tabular output
type BatchRow struct {
	LineID       entities.LineID
	LineName     string
	BatchID      entities.BatchID
	State        entities.BatchState
	Sequence     int
	OrderID      entities.OrderID
	SalesOrderID int64
	Product      string
	Client       string
	WeightKg     float64
	Delivery     string
	Late         bool
	PlannedStart string
	PlannedEnd   string
}

// Cells returns the row's values in BatchHeader order
func (r BatchRow) Cells() []interface{} {
	return []interface{}{
		int64(r.LineID), r.LineName, int64(r.BatchID), r.State.String(), r.Sequence,
		int64(r.OrderID), r.SalesOrderID, r.Product, r.Client, r.WeightKg,
		r.Delivery, r.Late, r.PlannedStart, r.PlannedEnd,
	}
}

// FlattenBatches turns grouped batches into one row per batch order
func FlattenBatches(groups []*entities.LineGroup, now time.Time) []BatchRow {
	var rows []BatchRow
	for _, g := range groups {
		for _, b := range g.Batches {
			for _, o := range b.Orders {
				kg, _ := o.Weight.Float64()
				rows = append(rows, BatchRow{
					LineID:       g.LineID,
					LineName:     g.LineName,
					BatchID:      b.ID,
					State:        b.State,
					Sequence:     o.Sequence,
					OrderID:      o.OrderID,
					SalesOrderID: o.SalesOrderID,
					Product:      o.Product.Name,
					Client:       o.Client.DisplayName(),
					WeightKg:     kg,
					Delivery:     formatDate(o.RequestedDelivery),
					Late:         o.IsLate(now),
					PlannedStart: formatDatePtr(o.PlannedStart),
					PlannedEnd:   formatDatePtr(o.PlannedEnd),
				})
			}
		}
	}
	return rows
}

// GenerateBatches writes the batches of state in the configured format
func GenerateBatches(state entities.BatchState, groups []*entities.LineGroup, config Config) error {
	switch config.Format {
	case "", "text":
		return generateTextOutput(state, groups, config)
	case "json":
		return generateJSONOutput(state, groups, config)
	case "csv":
		return generateCSVOutput(state, groups, config)
	case "xlsx":
		return generateXLSXOutput(state, groups, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

func generateTextOutput(state entities.BatchState, groups []*entities.LineGroup, config Config) error {
	w := config.out()
	now := config.now()

	fmt.Fprintf(w, "Batches %s\n", state)
	fmt.Fprintf(w, "==================\n\n")

	if len(groups) == 0 {
		fmt.Fprintf(w, "No batches in this state.\n")
		return nil
	}

	for _, g := range groups {
		status := "active"
		if !g.Active {
			status = "busy"
		}
		fmt.Fprintf(w, "Line %d %s (%s kg, %s)\n", g.LineID, g.LineName, g.MaxCapacity.StringFixed(2), status)

		for _, b := range g.Batches {
			fmt.Fprintf(w, "  Batch #%d  %d orders  %s kg\n", b.ID, len(b.Orders), b.TotalWeight().StringFixed(2))
			fmt.Fprintf(w, "    %-4s %-8s %-22s %-18s %10s %-12s\n",
				"Seq", "Order", "Product", "Client", "Kg", "Delivery")
			for _, o := range b.Orders {
				late := ""
				if o.IsLate(now) {
					late = " LATE"
				}
				fmt.Fprintf(w, "    %-4d %-8d %-22s %-18s %10s %-12s%s\n",
					o.Sequence, o.OrderID, o.Product.Name, o.Client.DisplayName(),
					o.Weight.StringFixed(2), formatDate(o.RequestedDelivery), late)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

type batchesDocument struct {
	State       entities.BatchState   `json:"state"`
	GeneratedAt time.Time             `json:"generated_at"`
	Lines       []*entities.LineGroup `json:"lines"`
}

func generateJSONOutput(state entities.BatchState, groups []*entities.LineGroup, config Config) error {
	if groups == nil {
		groups = []*entities.LineGroup{}
	}
	jsonData, err := json.MarshalIndent(batchesDocument{State: state, GeneratedAt: config.now(), Lines: groups}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.out(), string(jsonData))
		return nil
	}

	filename, err := outputPath(config.OutputDir, state, "json")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.out(), "JSON results saved to: %s\n", filename)
	}
	return nil
}

func generateCSVOutput(state entities.BatchState, groups []*entities.LineGroup, config Config) error {
	rows := FlattenBatches(groups, config.now())

	if config.OutputDir == "" {
		return writeBatchesCSV(config.out(), rows)
	}

	filename, err := outputPath(config.OutputDir, state, "csv")
	if err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	if err := writeBatchesCSV(file, rows); err != nil {
		return fmt.Errorf("failed to write batches CSV: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.out(), "CSV results saved to: %s\n", filename)
	}
	return nil
}

func writeBatchesCSV(w io.Writer, rows []BatchRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(BatchHeader); err != nil {
		return err
	}
	for _, row := range rows {
		cells := row.Cells()
		record := make([]string, len(cells))
		for i, c := range cells {
			record[i] = fmt.Sprint(c)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// PrintLines lists the lines with their capacity and available pool
func PrintLines(w io.Writer, lines []*entities.ProductionLine, pools map[entities.LineID][]*entities.AcceptedOrder) {
	fmt.Fprintf(w, "%-6s %-24s %12s %8s %12s\n", "Line", "Name", "Capacity kg", "Orders", "Pool kg")
	fmt.Fprintf(w, "%-6s %-24s %12s %8s %12s\n", "------", "------------------------", "------------", "--------", "------------")
	for _, l := range lines {
		pool := pools[l.ID]
		total := decimal.Zero
		for _, o := range pool {
			total = total.Add(o.Weight)
		}
		fmt.Fprintf(w, "%-6d %-24s %12s %8d %12s\n", l.ID, l.Name, l.MaxCapacity.StringFixed(2), len(pool), total.StringFixed(2))
	}
}

// PrintPool shows the composer's view of the active line
func PrintPool(w io.Writer, view *dto.PoolView) {
	if view.Line == nil {
		fmt.Fprintln(w, "No production line selected.")
		return
	}

	fmt.Fprintf(w, "Line %d %s: %s / %s kg selected, %s kg left\n",
		view.Line.ID, view.Line.Name, view.Total.StringFixed(2),
		view.Line.MaxCapacity.StringFixed(2), view.Remaining.StringFixed(2))

	if view.Empty {
		fmt.Fprintln(w, "  No accepted orders waiting for this line.")
		return
	}
	for _, c := range view.Candidates {
		mark := "[ ]"
		switch {
		case c.Selected:
			mark = "[x]"
		case c.Exceeds:
			mark = "[!]"
		}
		fmt.Fprintf(w, "  %s #%-6d %-22s %-18s %10s kg\n",
			mark, c.Order.ID, c.Order.Product.Name, c.Order.Client.DisplayName(), c.Order.Weight.StringFixed(2))
	}
}

// PrintPlan describes a pending bulk transition
func PrintPlan(w io.Writer, plan *dto.TransitionPlan) {
	fmt.Fprintf(w, "Move %d batch(es) of line %d %s from %s to %s: %v\n",
		len(plan.BatchIDs), plan.LineID, plan.LineName, plan.From, plan.To, plan.BatchIDs)
}

func outputPath(dir string, state entities.BatchState, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("batches_%s.%s", state, ext)), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

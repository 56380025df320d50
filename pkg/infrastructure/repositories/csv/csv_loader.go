package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/infrastructure/repositories/memory"
)

// Scenario file names inside a scenario directory
const (
	LinesFile     = "lines.csv"
	OrdersFile    = "orders.csv"
	MaterialsFile = "materials.csv"
	BatchesFile   = "batches.csv"
)

const dateLayout = "2006-01-02"

var (
	linesHeader     = []string{"line_id", "name", "description", "max_capacity_kg", "active"}
	ordersHeader    = []string{"order_id", "sales_order_id", "line_id", "product_id", "product_name", "client_id", "client_first_name", "client_last_name", "units", "weight_kg", "created_at", "requested_delivery"}
	materialsHeader = []string{"order_id", "material_id", "lot_id", "lot_code", "name", "quantity", "unit"}
	batchesHeader   = []string{"batch_id", "line_id", "state", "order_id", "weight_kg", "sequence"}
)

// BatchRow is one (batch, order) row of batches.csv
type BatchRow struct {
	BatchID  entities.BatchID
	LineID   entities.LineID
	State    entities.BatchState
	OrderID  entities.OrderID
	Weight   decimal.Decimal
	Sequence int
}

// Loader handles loading batching scenarios from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadLines loads production lines from a CSV file
func (l *Loader) LoadLines(filename string) ([]*entities.ProductionLine, error) {
	records, err := readRecords(filename, "lines", linesHeader)
	if err != nil {
		return nil, err
	}

	var lines []*entities.ProductionLine
	for i, record := range records {
		line, err := parseLine(record)
		if err != nil {
			return nil, fmt.Errorf("lines CSV row %d: %w", i+2, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// LoadOrders loads accepted orders from a CSV file
func (l *Loader) LoadOrders(filename string) ([]*entities.AcceptedOrder, error) {
	records, err := readRecords(filename, "orders", ordersHeader)
	if err != nil {
		return nil, err
	}

	var orders []*entities.AcceptedOrder
	for i, record := range records {
		order, err := parseOrder(record)
		if err != nil {
			return nil, fmt.Errorf("orders CSV row %d: %w", i+2, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// LoadMaterials loads raw-material requirements keyed by order
func (l *Loader) LoadMaterials(filename string) (map[entities.OrderID][]entities.MaterialRequirement, error) {
	records, err := readRecords(filename, "materials", materialsHeader)
	if err != nil {
		return nil, err
	}

	materials := make(map[entities.OrderID][]entities.MaterialRequirement)
	for i, record := range records {
		orderID, req, err := parseMaterial(record)
		if err != nil {
			return nil, fmt.Errorf("materials CSV row %d: %w", i+2, err)
		}
		materials[orderID] = append(materials[orderID], req)
	}
	return materials, nil
}

// LoadBatches loads batch rows from a CSV file
func (l *Loader) LoadBatches(filename string) ([]BatchRow, error) {
	records, err := readRecords(filename, "batches", batchesHeader)
	if err != nil {
		return nil, err
	}

	var rows []BatchRow
	for i, record := range records {
		row, err := parseBatchRow(record)
		if err != nil {
			return nil, fmt.Errorf("batches CSV row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadScenario builds an in-memory backend from a scenario directory.
// lines.csv and orders.csv are required, materials.csv and batches.csv are
// optional.
func (l *Loader) LoadScenario(dir string) (*memory.Backend, error) {
	lines, err := l.LoadLines(filepath.Join(dir, LinesFile))
	if err != nil {
		return nil, err
	}
	orders, err := l.LoadOrders(filepath.Join(dir, OrdersFile))
	if err != nil {
		return nil, err
	}

	materials := map[entities.OrderID][]entities.MaterialRequirement{}
	if path := filepath.Join(dir, MaterialsFile); fileExists(path) {
		if materials, err = l.LoadMaterials(path); err != nil {
			return nil, err
		}
	}

	var batchRows []BatchRow
	if path := filepath.Join(dir, BatchesFile); fileExists(path) {
		if batchRows, err = l.LoadBatches(path); err != nil {
			return nil, err
		}
	}

	backend := memory.NewBackend()
	for _, line := range lines {
		if err := backend.AddLine(line); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", dir, err)
		}
	}

	byID := make(map[entities.OrderID]*entities.AcceptedOrder, len(orders))
	for _, order := range orders {
		order.Materials = materials[order.ID]
		byID[order.ID] = order
		if err := backend.AddOrder(order); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", dir, err)
		}
	}

	for _, batch := range assembleBatches(batchRows, byID) {
		if err := backend.AddBatch(batch); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", dir, err)
		}
	}

	return backend, nil
}

// assembleBatches folds batch rows into batches, filling order details from
// the order list when the order is known
func assembleBatches(rows []BatchRow, orders map[entities.OrderID]*entities.AcceptedOrder) []*entities.Batch {
	byID := make(map[entities.BatchID]*entities.Batch)
	for _, row := range rows {
		batch, ok := byID[row.BatchID]
		if !ok {
			batch = &entities.Batch{ID: row.BatchID, LineID: row.LineID, State: row.State}
			byID[row.BatchID] = batch
		}

		bo := entities.BatchOrder{
			OrderID:  row.OrderID,
			Weight:   row.Weight,
			Sequence: row.Sequence,
		}
		if order, known := orders[row.OrderID]; known {
			bo.SalesOrderID = order.SalesOrderID
			bo.Product = order.Product
			bo.Client = order.Client
			bo.Units = order.Units
			bo.CreatedAt = order.CreatedAt
			bo.RequestedDelivery = order.RequestedDelivery
			bo.Materials = order.Materials
		}
		batch.Orders = append(batch.Orders, bo)
	}

	batches := make([]*entities.Batch, 0, len(byID))
	for _, b := range byID {
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })
	return batches
}

func readRecords(filename, kind string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s CSV must have a header row", kind)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", kind, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", kind, i+2, len(expectedHeader), len(record))
		}
	}

	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseLine(record []string) (*entities.ProductionLine, error) {
	id, err := parseID(record[0], "line_id")
	if err != nil {
		return nil, err
	}

	capacity, err := decimal.NewFromString(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid max_capacity_kg: %s", record[3])
	}

	active, err := parseBool(record[4])
	if err != nil {
		return nil, err
	}

	return entities.NewProductionLine(entities.LineID(id), strings.TrimSpace(record[1]), record[2], capacity, active, nil)
}

func parseOrder(record []string) (*entities.AcceptedOrder, error) {
	id, err := parseID(record[0], "order_id")
	if err != nil {
		return nil, err
	}
	salesOrderID, err := parseOptionalInt(record[1], "sales_order_id")
	if err != nil {
		return nil, err
	}
	lineID, err := parseID(record[2], "line_id")
	if err != nil {
		return nil, err
	}
	productID, err := parseOptionalInt(record[3], "product_id")
	if err != nil {
		return nil, err
	}
	clientID, err := parseOptionalInt(record[5], "client_id")
	if err != nil {
		return nil, err
	}
	units, err := parseOptionalInt(record[8], "units")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseDate(record[10], "created_at")
	if err != nil {
		return nil, err
	}
	delivery, err := parseDate(record[11], "requested_delivery")
	if err != nil {
		return nil, err
	}

	order, err := entities.NewAcceptedOrder(
		entities.OrderID(id),
		entities.LineID(lineID),
		entities.ProductRef{ID: productID, Name: strings.TrimSpace(record[4])},
		// Weight is untrusted input, anything unparsable counts as zero
		entities.CoerceKilograms(record[9]),
		delivery,
	)
	if err != nil {
		return nil, err
	}
	order.SalesOrderID = salesOrderID
	order.Client = entities.ClientRef{
		ID:        clientID,
		FirstName: strings.TrimSpace(record[6]),
		LastName:  strings.TrimSpace(record[7]),
	}
	order.Units = units
	order.CreatedAt = createdAt
	return order, nil
}

func parseMaterial(record []string) (entities.OrderID, entities.MaterialRequirement, error) {
	orderID, err := parseID(record[0], "order_id")
	if err != nil {
		return 0, entities.MaterialRequirement{}, err
	}
	materialID, err := parseID(record[1], "material_id")
	if err != nil {
		return 0, entities.MaterialRequirement{}, err
	}
	lotID, err := parseOptionalInt(record[2], "lot_id")
	if err != nil {
		return 0, entities.MaterialRequirement{}, err
	}

	return entities.OrderID(orderID), entities.MaterialRequirement{
		MaterialID: materialID,
		LotID:      lotID,
		LotCode:    strings.TrimSpace(record[3]),
		Name:       strings.TrimSpace(record[4]),
		Quantity:   entities.CoerceKilograms(record[5]),
		Unit:       strings.TrimSpace(record[6]),
	}, nil
}

func parseBatchRow(record []string) (BatchRow, error) {
	batchID, err := parseID(record[0], "batch_id")
	if err != nil {
		return BatchRow{}, err
	}
	lineID, err := parseID(record[1], "line_id")
	if err != nil {
		return BatchRow{}, err
	}
	state, err := entities.ParseBatchState(record[2])
	if err != nil {
		return BatchRow{}, err
	}
	orderID, err := parseID(record[3], "order_id")
	if err != nil {
		return BatchRow{}, err
	}
	sequence, err := parseOptionalInt(record[5], "sequence")
	if err != nil {
		return BatchRow{}, err
	}

	return BatchRow{
		BatchID:  entities.BatchID(batchID),
		LineID:   entities.LineID(lineID),
		State:    state,
		OrderID:  entities.OrderID(orderID),
		Weight:   entities.CoerceKilograms(record[4]),
		Sequence: int(sequence),
	}, nil
}

func parseID(s, column string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", column, s)
	}
	return id, nil
}

func parseOptionalInt(s, column string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", column, s)
	}
	return v, nil
}

func parseDate(s, column string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %s (expected YYYY-MM-DD)", column, s)
	}
	return t, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "si", "sí":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid active: %s (expected true or false)", s)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

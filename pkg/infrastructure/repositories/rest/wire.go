package rest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/vsinha/tandas/pkg/domain/entities"
)

// wireTime accepts the date and timestamp layouts the backend emits. Blank,
// null and unparsable values decode to the zero time.
type wireTime struct {
	time.Time
}

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range wireTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

func (t wireTime) ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

type wireMaterial struct {
	LotID    int64              `json:"id_lote_materia_prima"`
	LotCode  string             `json:"codigo_lote"`
	ID       int64              `json:"id_materia_prima"`
	Name     string             `json:"nombre_materia_prima"`
	Unit     string             `json:"unidad_medida_materia_prima"`
	Quantity entities.Kilograms `json:"cantidad_materia_prima"`
}

type wireOrder struct {
	ID                int64              `json:"id_orden_produccion"`
	SalesOrderID      int64              `json:"id_orden_venta"`
	ClientID          int64              `json:"id_cliente"`
	ClientFirstName   string             `json:"nombre_cliente"`
	ClientLastName    string             `json:"apellido_cliente"`
	ProductID         int64              `json:"id_producto"`
	ProductName       string             `json:"nombre_producto"`
	Units             int64              `json:"cantidad_producto"`
	Weight            entities.Kilograms `json:"cantidad_kg_orden_produccion"`
	CreatedAt         wireTime           `json:"fecha_creacion_orden_venta"`
	RequestedDelivery wireTime           `json:"fecha_entrega_solicitada_orden_venta"`
	Materials         []wireMaterial     `json:"materias_primas_requeridas"`
}

type wireBatchRow struct {
	BatchID           int64              `json:"id_tanda_produccion"`
	OrderID           int64              `json:"id_orden_produccion"`
	SalesOrderID      int64              `json:"id_orden_venta"`
	ClientID          int64              `json:"id_cliente"`
	ClientFirstName   string             `json:"nombre_cliente"`
	ClientLastName    string             `json:"apellido_cliente"`
	ProductID         int64              `json:"id_producto"`
	ProductName       string             `json:"nombre_producto"`
	Units             int64              `json:"cantidad_producto"`
	CreatedAt         wireTime           `json:"fecha_creacion_orden_venta"`
	RequestedDelivery wireTime           `json:"fecha_entrega_solicitada_orden_venta"`
	State             string             `json:"estado_tanda_produccion"`
	Weight            entities.Kilograms `json:"cantidad_kg_tanda"`
	Sequence          int                `json:"secuencia_en_linea"`
	PlannedStart      wireTime           `json:"fecha_inicio_planificada"`
	PlannedEnd        wireTime           `json:"fecha_fin_planificada"`
	Materials         []wireMaterial     `json:"materias_primas_requeridas"`
}

type wireLine struct {
	ID          int64              `json:"id_linea_produccion"`
	Name        string             `json:"nombre_linea_produccion"`
	Capacity    entities.Kilograms `json:"capacidad_linea_produccion"`
	Description string             `json:"descripcion_linea_produccion"`
	Active      bool               `json:"activa_linea_produccion"`
	Orders      []wireOrder        `json:"ordenes_de_produccion_aceptadas"`
	Batches     []wireBatchRow     `json:"tandas_de_produccion"`
}

type linesResponse struct {
	Lines []wireLine `json:"lineas_produccion"`
}

type createBatchItem struct {
	OrderID int64              `json:"id_orden_produccion"`
	Weight  entities.Kilograms `json:"cantidad_kg"`
}

type createBatchRequest struct {
	LineID int64             `json:"id_linea_produccion"`
	Orders []createBatchItem `json:"ordenes_produccion"`
}

type createBatchResponse struct {
	Message   string `json:"message"`
	LineID    int64  `json:"linea_actualizada"`
	LineState string `json:"estado_linea"`
	BatchID   int64  `json:"id_tanda_produccion"`
}

type batchesByStateRequest struct {
	State string `json:"estado"`
}

type updateStateRequest struct {
	BatchIDs []int64 `json:"id_tandas"`
	State    string  `json:"estado"`
}

func (m wireMaterial) toEntity() entities.MaterialRequirement {
	return entities.MaterialRequirement{
		MaterialID: m.ID,
		LotID:      m.LotID,
		LotCode:    m.LotCode,
		Name:       m.Name,
		Quantity:   m.Quantity.Decimal,
		Unit:       m.Unit,
	}
}

func toMaterials(in []wireMaterial) []entities.MaterialRequirement {
	if len(in) == 0 {
		return nil
	}
	out := make([]entities.MaterialRequirement, len(in))
	for i, m := range in {
		out[i] = m.toEntity()
	}
	return out
}

func (l wireLine) toEntity() *entities.ProductionLine {
	return &entities.ProductionLine{
		ID:          entities.LineID(l.ID),
		Name:        l.Name,
		Description: l.Description,
		MaxCapacity: l.Capacity.Decimal,
		Active:      l.Active,
	}
}

func (o wireOrder) toEntity(lineID entities.LineID) *entities.AcceptedOrder {
	return &entities.AcceptedOrder{
		ID:                entities.OrderID(o.ID),
		SalesOrderID:      o.SalesOrderID,
		LineID:            lineID,
		Product:           entities.ProductRef{ID: o.ProductID, Name: o.ProductName},
		Client:            entities.ClientRef{ID: o.ClientID, FirstName: o.ClientFirstName, LastName: o.ClientLastName},
		Units:             o.Units,
		Weight:            o.Weight.Decimal,
		CreatedAt:         o.CreatedAt.Time,
		RequestedDelivery: o.RequestedDelivery.Time,
		Materials:         toMaterials(o.Materials),
	}
}

// toGroup folds the per-order rows of a line into batches, keeping the
// backend's row order
func (l wireLine) toGroup() *entities.LineGroup {
	group := &entities.LineGroup{
		LineID:      entities.LineID(l.ID),
		LineName:    l.Name,
		Description: l.Description,
		MaxCapacity: l.Capacity.Decimal,
		Active:      l.Active,
	}

	byID := make(map[entities.BatchID]*entities.Batch)
	for _, row := range l.Batches {
		id := entities.BatchID(row.BatchID)
		batch, ok := byID[id]
		if !ok {
			batch = &entities.Batch{
				ID:     id,
				LineID: group.LineID,
				State:  entities.BatchState(strings.ToLower(strings.TrimSpace(row.State))),
			}
			byID[id] = batch
			group.Batches = append(group.Batches, batch)
		}
		batch.Orders = append(batch.Orders, entities.BatchOrder{
			OrderID:           entities.OrderID(row.OrderID),
			SalesOrderID:      row.SalesOrderID,
			Product:           entities.ProductRef{ID: row.ProductID, Name: row.ProductName},
			Client:            entities.ClientRef{ID: row.ClientID, FirstName: row.ClientFirstName, LastName: row.ClientLastName},
			Units:             row.Units,
			Weight:            row.Weight.Decimal,
			Sequence:          row.Sequence,
			CreatedAt:         row.CreatedAt.Time,
			RequestedDelivery: row.RequestedDelivery.Time,
			PlannedStart:      row.PlannedStart.ptr(),
			PlannedEnd:        row.PlannedEnd.ptr(),
			Materials:         toMaterials(row.Materials),
		})
	}
	return group
}

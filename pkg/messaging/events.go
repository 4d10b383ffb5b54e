package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Stock events
	EventBatchCreated   = "stock.batch.created"
	EventStockMerged    = "stock.merged"
	EventStockAllocated = "stock.allocated"

	// Alert events
	EventBatchExpiring  = "stock.batch.expiring"
	EventAlertGenerated = "stock.alert.generated"
)

// Exchange names
const (
	ExchangeStockEvents = "stock.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Events

// BatchCreatedEvent is published when a new stock batch is entered
type BatchCreatedEvent struct {
	BatchID      string `json:"batch_id"`
	MedicineName string `json:"medicine_name"`
	BatchNumber  string `json:"batch_number"`
	Quantity     int    `json:"quantity"`
	PerformedBy  string `json:"performed_by"`
}

// StockMergedEvent is published when incoming stock is merged into an existing batch
type StockMergedEvent struct {
	BatchID          string `json:"batch_id"`
	MedicineName     string `json:"medicine_name"`
	BatchNumber      string `json:"batch_number"`
	PreviousQuantity int    `json:"previous_quantity"`
	AddedQuantity    int    `json:"added_quantity"`
	NewQuantity      int    `json:"new_quantity"`
	PerformedBy      string `json:"performed_by"`
}

// StockAllocatedEvent is published when an allocation plan is committed
type StockAllocatedEvent struct {
	MedicineName      string         `json:"medicine_name"`
	RequestedQuantity int            `json:"requested_quantity"`
	AllocatedQuantity int            `json:"allocated_quantity"`
	Batches           map[string]int `json:"batches"`
	PerformedBy       string         `json:"performed_by"`
}

// Alert Events

// BatchExpiringEvent is published when a batch is nearing expiry
type BatchExpiringEvent struct {
	BatchID      string    `json:"batch_id"`
	MedicineName string    `json:"medicine_name"`
	BatchNumber  string    `json:"batch_number"`
	ExpiryDate   time.Time `json:"expiry_date"`
	DaysUntil    int       `json:"days_until"`
	Quantity     int       `json:"quantity"`
}

// AlertGeneratedEvent is published when an alert is generated
type AlertGeneratedEvent struct {
	AlertID      string `json:"alert_id"`
	AlertType    string `json:"alert_type"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	MedicineName string `json:"medicine_name,omitempty"`
	BatchID      string `json:"batch_id,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}

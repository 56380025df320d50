package events

import "testing"

func TestInMemoryEventStore_Streams(t *testing.T) {
	store := NewInMemoryEventStore()

	_ = store.AppendEvent(LineStream(1), NewEvent(BatchSubmittedEvent, "", BatchSubmitted{LineID: 1, BatchID: 10}))
	_ = store.AppendEvent(LineStream(2), NewEvent(SelectionRejectedEvent, "", SelectionRejected{LineID: 2}))
	_ = store.AppendEvent(LineStream(1), NewEvent(BatchTransitionedEvent, "", BatchTransitioned{LineID: 1}))

	lineOne, err := store.ReadEvents("line-1", 0)
	if err != nil {
		t.Fatalf("Failed to read stream: %v", err)
	}
	if len(lineOne) != 2 {
		t.Fatalf("Expected 2 events on line-1, got %d", len(lineOne))
	}
	if lineOne[0].Version() != 1 || lineOne[1].Version() != 2 {
		t.Errorf("Expected versions 1,2, got %d,%d", lineOne[0].Version(), lineOne[1].Version())
	}
	if lineOne[1].Type() != BatchTransitionedEvent {
		t.Errorf("Expected %s, got %s", BatchTransitionedEvent, lineOne[1].Type())
	}
	if lineOne[0].StreamID() != "line-1" {
		t.Errorf("Expected stream line-1, got %s", lineOne[0].StreamID())
	}

	tail, _ := store.ReadEvents("line-1", 2)
	if len(tail) != 1 {
		t.Errorf("Expected 1 event from version 2, got %d", len(tail))
	}

	all, _ := store.ReadAllEvents(1)
	if len(all) != 2 {
		t.Errorf("Expected 2 events from position 1, got %d", len(all))
	}
	if store.Position() != 3 {
		t.Errorf("Expected position 3, got %d", store.Position())
	}

	missing, _ := store.ReadEvents("line-9", 0)
	if len(missing) != 0 {
		t.Errorf("Expected empty unknown stream, got %d events", len(missing))
	}
}

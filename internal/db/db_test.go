package db

import (
	"database/sql"
	"encoding/json"
	"testing"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema(t *testing.T) {
	db := testDB(t)

	tables := map[string]bool{}
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('events','updates','conversations')`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		tables[name] = true
	}

	for _, want := range []string{"events", "updates", "conversations"} {
		if !tables[want] {
			t.Errorf("table %q not created", want)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := InitSchema(db); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
}

func TestLogEvent_Basic(t *testing.T) {
	db := testDB(t)

	id1, err := LogEvent(db, nil, EventProcessStarted, map[string]any{"role": "bot", "pid": 123})
	if err != nil {
		t.Fatal(err)
	}
	if id1 <= 0 {
		t.Errorf("expected positive id, got %d", id1)
	}

	id2, err := LogEvent(db, nil, EventCommandStarted, map[string]any{"user_id": "456"})
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Errorf("expected id2 > id1, got %d <= %d", id2, id1)
	}

	var ts int64
	err = db.QueryRow(`SELECT timestamp FROM events WHERE id = ?`, id1).Scan(&ts)
	if err != nil {
		t.Fatal(err)
	}
	if ts == 0 {
		t.Error("expected non-zero timestamp")
	}

	var payloadStr string
	err = db.QueryRow(`SELECT payload FROM events WHERE id = ?`, id1).Scan(&payloadStr)
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
		t.Fatalf("invalid payload JSON: %v", err)
	}
	if payload["role"] != "bot" {
		t.Errorf("expected role=bot, got %v", payload["role"])
	}
}

func TestLogEvent_WithParent(t *testing.T) {
	db := testDB(t)

	parentID, err := LogEvent(db, nil, EventCommandStarted, map[string]any{"user_id": "1"})
	if err != nil {
		t.Fatal(err)
	}

	childID, err := LogEvent(db, &parentID, EventCompletionDone, map[string]any{"model": "gpt-4o"})
	if err != nil {
		t.Fatal(err)
	}

	var storedParent int64
	err = db.QueryRow(`SELECT parent_id FROM events WHERE id = ?`, childID).Scan(&storedParent)
	if err != nil {
		t.Fatal(err)
	}
	if storedParent != parentID {
		t.Errorf("expected parent_id=%d, got %d", parentID, storedParent)
	}

	var nullParent sql.NullInt64
	err = db.QueryRow(`SELECT parent_id FROM events WHERE id = ?`, parentID).Scan(&nullParent)
	if err != nil {
		t.Fatal(err)
	}
	if nullParent.Valid {
		t.Errorf("expected NULL parent_id for root event, got %d", nullParent.Int64)
	}
}

func TestLogEvent_NilPayload(t *testing.T) {
	db := testDB(t)

	id, err := LogEvent(db, nil, EventCommandCompleted, nil)
	if err != nil {
		t.Fatal(err)
	}

	var payload sql.NullString
	err = db.QueryRow(`SELECT payload FROM events WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		t.Fatal(err)
	}
	if payload.Valid {
		t.Errorf("expected NULL payload, got %q", payload.String)
	}
}

func TestRecentEvents_NewestFirst(t *testing.T) {
	db := testDB(t)

	for _, et := range []string{EventProcessStarted, EventCommandStarted, EventCommandCompleted} {
		if _, err := LogEvent(db, nil, et, nil); err != nil {
			t.Fatal(err)
		}
	}

	events, err := RecentEvents(db, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != EventCommandCompleted || events[1].EventType != EventCommandStarted {
		t.Errorf("unexpected order: %s, %s", events[0].EventType, events[1].EventType)
	}
}

func TestDeriveOffset(t *testing.T) {
	db := testDB(t)

	offset, err := DeriveOffset(db)
	if err != nil {
		t.Fatal(err)
	}
	if offset != 0 {
		t.Errorf("expected 0, got %d", offset)
	}

	if _, err := MarkUpdateSeen(db, 100, 1, "7"); err != nil {
		t.Fatal(err)
	}
	if _, err := MarkUpdateSeen(db, 200, 1, "7"); err != nil {
		t.Fatal(err)
	}

	offset, err = DeriveOffset(db)
	if err != nil {
		t.Fatal(err)
	}
	if offset != 201 {
		t.Errorf("expected 201, got %d", offset)
	}
}

func TestMarkUpdateSeen_Duplicate(t *testing.T) {
	db := testDB(t)

	fresh, err := MarkUpdateSeen(db, 5, 1, "7")
	if err != nil {
		t.Fatal(err)
	}
	if !fresh {
		t.Fatal("expected first insert to be fresh")
	}
	fresh, err = MarkUpdateSeen(db, 5, 1, "7")
	if err != nil {
		t.Fatal(err)
	}
	if fresh {
		t.Fatal("expected duplicate update to be reported as seen")
	}
}

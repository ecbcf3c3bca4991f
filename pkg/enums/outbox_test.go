package enums

import "testing"

func TestOutboxEventTypeString(t *testing.T) {
	if got := EventPaymentSettled.String(); got != "payment_settled" {
		t.Fatalf("unexpected event type string %q", got)
	}
	if got := AggregateOrder.String(); got != "order" {
		t.Fatalf("unexpected aggregate type string %q", got)
	}
}

func TestParseOutboxEventType(t *testing.T) {
	parsed, err := ParseOutboxEventType("order_created")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != EventOrderCreated {
		t.Fatalf("expected order_created, got %s", parsed)
	}
	if _, err := ParseOutboxEventType("order_teleported"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

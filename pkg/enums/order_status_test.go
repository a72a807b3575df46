package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusProcessing, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !OrderStatusDelivered.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatal("delivered and cancelled are terminal")
	}
	if OrderStatusPending.IsTerminal() {
		t.Fatal("pending is not terminal")
	}
}

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus(" shipped ")
	if err != nil || got != OrderStatusShipped {
		t.Fatalf("expected SHIPPED, got %q err=%v", got, err)
	}
	if _, err := ParseOrderStatus("lost"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParseDiscountType(t *testing.T) {
	got, err := ParseDiscountType("percentage")
	if err != nil || got != DiscountTypePercentage {
		t.Fatalf("expected PERCENTAGE, got %q err=%v", got, err)
	}
	if _, err := ParseDiscountType("bogo"); err == nil {
		t.Fatal("expected error for unknown discount type")
	}
}

func TestDiscountTypeScanNormalizes(t *testing.T) {
	var d DiscountType
	if err := d.Scan([]byte("fixed")); err != nil || d != DiscountTypeFixed {
		t.Fatalf("expected FIXED, got %q err=%v", d, err)
	}
	if err := d.Scan("bogo"); err == nil {
		t.Fatal("expected unknown type to fail scan")
	}
	if err := d.Scan(42); err == nil {
		t.Fatal("expected unsupported source to fail scan")
	}
}

func TestParseOutboxDLQErrorReason(t *testing.T) {
	got, err := ParseOutboxDLQErrorReason("MAX_ATTEMPTS")
	if err != nil || got != OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts, got %q err=%v", got, err)
	}
	if _, err := ParseOutboxDLQErrorReason("timeout"); err == nil {
		t.Fatal("expected error for unknown reason")
	}
	if !EventOrderCreated.IsValid() || OutboxEventType("order_lost").IsValid() {
		t.Fatal("unexpected event type validity")
	}
}

package models

// All lists every persisted model in dependency order. It backs sqlite
// schema creation for local runs and tests; postgres uses the goose migrations.
func All() []any {
	return []any{
		&Product{},
		&WholesaleRate{},
		&Cart{},
		&CartItem{},
		&Discount{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

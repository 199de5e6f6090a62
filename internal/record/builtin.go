package record

// BuiltinCollections is the demo business schema registered at startup.
// Deployments replace or extend this with their own collections.
func BuiltinCollections() []Collection {
	return []Collection{
		{
			Name:  "partner",
			Label: "Partner",
			Fields: []Field{
				{Name: "id", Label: "ID", Type: FieldInteger, Stored: true, Internal: true},
				{Name: "name", Label: "Name", Type: FieldChar, Stored: true},
				{Name: "email", Label: "Email", Type: FieldChar, Stored: true},
				{Name: "city", Label: "City", Type: FieldChar, Stored: true},
				{Name: "active", Label: "Active", Type: FieldBoolean, Stored: true},
				{Name: "parent_id", Label: "Parent Company", Type: FieldMany2one, Stored: true, Relation: "partner"},
			},
		},
		{
			Name:  "invoice",
			Label: "Invoice",
			Fields: []Field{
				{Name: "id", Label: "ID", Type: FieldInteger, Stored: true, Internal: true},
				{Name: "name", Label: "Reference", Type: FieldChar, Stored: true},
				{Name: "date", Label: "Invoice Date", Type: FieldDate, Stored: true},
				{Name: "amount_total", Label: "Total", Type: FieldFloat, Stored: true},
				{Name: "state", Label: "Status", Type: FieldSelection, Stored: true,
					Selection: []string{"draft", "posted", "paid", "cancelled"}},
				{Name: "partner_id", Label: "Customer", Type: FieldMany2one, Stored: true, Relation: "partner"},
			},
		},
		{
			Name:  "sale.order",
			Label: "Sales Order",
			Fields: []Field{
				{Name: "id", Label: "ID", Type: FieldInteger, Stored: true, Internal: true},
				{Name: "name", Label: "Order Reference", Type: FieldChar, Stored: true},
				{Name: "date_order", Label: "Order Date", Type: FieldDatetime, Stored: true},
				{Name: "amount_total", Label: "Total", Type: FieldFloat, Stored: true},
				{Name: "state", Label: "Status", Type: FieldSelection, Stored: true,
					Selection: []string{"draft", "sent", "sale", "done", "cancel"}},
				{Name: "partner_id", Label: "Customer", Type: FieldMany2one, Stored: true, Relation: "partner"},
			},
		},
		{
			// Wizard-style collection; excluded from the catalogue.
			Name:      "search.wizard",
			Label:     "Search Wizard",
			Transient: true,
		},
	}
}

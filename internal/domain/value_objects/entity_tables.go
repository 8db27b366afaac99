package valueobjects

// EntityTables returns the logical tables every installation must be able to
// query before the main window opens.
func EntityTables() []string {
	return []string{
		"customers",
		"products",
		"invoices",
		"invoice_lines",
		"payments",
		"app_settings",
	}
}

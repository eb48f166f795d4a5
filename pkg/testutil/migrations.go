package testutil

// StockMigrations returns the stock service migrations for tests.
// These match migrations/schema.sql.
func StockMigrations() []string {
	return []string{
		// Medicine catalog
		`CREATE TABLE IF NOT EXISTS medicines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			generic_name VARCHAR(255),
			manufacturer VARCHAR(255),
			strength VARCHAR(100),
			form VARCHAR(100),
			prescription_required BOOLEAN NOT NULL DEFAULT TRUE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Inventory batches
		`CREATE TABLE IF NOT EXISTS inventory_batches (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			pharmacy_id UUID NOT NULL,
			medicine_id UUID NOT NULL REFERENCES medicines(id),
			batch_number VARCHAR(100) NOT NULL,
			quantity_available INT NOT NULL DEFAULT 0,
			quantity_reserved INT NOT NULL DEFAULT 0,
			minimum_threshold INT NOT NULL DEFAULT 10,
			manufacture_date DATE,
			expiry_date DATE NOT NULL,
			purchase_date DATE,
			supplier_name VARCHAR(255),
			unit_price NUMERIC(10,2),
			mrp NUMERIC(10,2),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT unique_batch_per_pharmacy UNIQUE (pharmacy_id, medicine_id, batch_number),
			CONSTRAINT check_positive_quantity CHECK (quantity_available >= 0),
			CONSTRAINT check_positive_reserved CHECK (quantity_reserved >= 0),
			CONSTRAINT check_min_threshold CHECK (minimum_threshold >= 1),
			CONSTRAINT check_valid_dates CHECK (manufacture_date IS NULL OR expiry_date > manufacture_date),
			CONSTRAINT check_positive_prices CHECK (
				(unit_price IS NULL OR unit_price > 0) AND (mrp IS NULL OR mrp > 0)
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_medicine ON inventory_batches (pharmacy_id, medicine_id)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_expiry ON inventory_batches (pharmacy_id, expiry_date)`,

		// Notifications
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			pharmacy_id UUID NOT NULL,
			type VARCHAR(50) NOT NULL,
			priority VARCHAR(20) NOT NULL DEFAULT 'Normal',
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			data JSONB,
			dedup_key VARCHAR(255),
			read_status BOOLEAN NOT NULL DEFAULT FALSE,
			action_required BOOLEAN NOT NULL DEFAULT FALSE,
			read_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT unique_dedup_key UNIQUE (dedup_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_pharmacy ON notifications (pharmacy_id, created_at DESC)`,
	}
}

// restore-seed is a one-shot tool to restore the demo catalog and the admin
// user. Run it against an empty database after migrations, or when the
// catalog has been accidentally wiped. It never touches instances or tags.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"log"
	"os"

	"stockroom/internal/db"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Restoring categories...")
	_, err = tx.Exec(ctx, `
		INSERT INTO categories (code, name, kind, required_attributes)
		VALUES
		  ('FASTENERS',   'Fasteners',        'product', '{}'),
		  ('LUMBER',      'Lumber',           'product', '{grade}'),
		  ('CONSUMABLES', 'Site Consumables', 'product', '{}'),
		  ('POWER-TOOLS', 'Power Tools',      'tool',    '{serial_number}'),
		  ('HAND-TOOLS',  'Hand Tools',       'tool',    '{}')
		ON CONFLICT (code) DO UPDATE
		  SET name = EXCLUDED.name,
		      kind = EXCLUDED.kind,
		      required_attributes = EXCLUDED.required_attributes;
	`)
	if err != nil {
		log.Fatalf("Failed to restore categories: %v", err)
	}

	log.Println("Restoring SKUs...")
	_, err = tx.Exec(ctx, `
		INSERT INTO skus (code, category_id, name, description, unit_cost, is_bundle, status)
		SELECT v.code, c.id, v.name, v.description, v.unit_cost::NUMERIC, false, 'active'
		FROM (VALUES
		    ('BOLT-M8',    'FASTENERS',   'M8 Hex Bolt 40mm',        '',                     '0.35'),
		    ('SCREW-W50',  'FASTENERS',   'Wood Screw 50mm',         'box of 100',           '4.20'),
		    ('PLY-18',     'LUMBER',      'Plywood Sheet 18mm',      '2440x1220',            '38.00'),
		    ('STUD-2X4',   'LUMBER',      'Stud 2x4 2.4m',           '',                     '5.10'),
		    ('TAPE-GAFF',  'CONSUMABLES', 'Gaffer Tape 48mm',        '',                     '6.75'),
		    ('DRILL-18V',  'POWER-TOOLS', 'Cordless Drill 18V',      '',                     '89.50'),
		    ('SAW-CIRC',   'POWER-TOOLS', 'Circular Saw 185mm',      '',                     '129.00'),
		    ('HAMMER-C',   'HAND-TOOLS',  'Claw Hammer 450g',        '',                     '14.00'),
		    ('LEVEL-60',   'HAND-TOOLS',  'Spirit Level 600mm',      '',                     '11.25')
		) AS v(code, category_code, name, description, unit_cost)
		JOIN categories c ON c.code = v.category_code
		ON CONFLICT (code) DO UPDATE
		  SET name = EXCLUDED.name,
		      description = EXCLUDED.description,
		      unit_cost = EXCLUDED.unit_cost;
	`)
	if err != nil {
		log.Fatalf("Failed to restore SKUs: %v", err)
	}

	log.Println("Seeding cost history...")
	_, err = tx.Exec(ctx, `
		INSERT INTO sku_cost_history (sku_id, cost, effective_date, updated_by, notes)
		SELECT s.id, s.unit_cost, CURRENT_DATE, 'seed', 'initial cost'
		FROM skus s
		WHERE NOT EXISTS (
			SELECT 1 FROM sku_cost_history h WHERE h.sku_id = s.id
		);
	`)
	if err != nil {
		log.Fatalf("Failed to seed cost history: %v", err)
	}

	log.Println("Restoring allocation rules...")
	_, err = tx.Exec(ctx, `
		DELETE FROM allocation_rules WHERE category_id IN (
			SELECT id FROM categories WHERE code IN ('LUMBER', 'POWER-TOOLS')
		);
		INSERT INTO allocation_rules (category_id, selection_method, cost_order, default_location)
		SELECT c.id, v.method, v.cost_order, v.location
		FROM (VALUES
		    ('LUMBER',      'cost_based', 'cost_asc', ''),
		    ('POWER-TOOLS', 'fifo',       'cost_asc', 'tool-cage')
		) AS v(category_code, method, cost_order, location)
		JOIN categories c ON c.code = v.category_code;
	`)
	if err != nil {
		log.Fatalf("Failed to restore allocation rules: %v", err)
	}

	log.Println("Restoring admin user...")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "stockroom"
		log.Println("SEED_ADMIN_PASSWORD not set, using default password 'stockroom'")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ('admin', 'admin@localhost', $1, 'admin')
		ON CONFLICT (username) DO UPDATE
		  SET password_hash = EXCLUDED.password_hash,
		      role = EXCLUDED.role;
	`, string(hash))
	if err != nil {
		log.Fatalf("Failed to restore admin user: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed data restored successfully.")
}

// verify-db runs read-only consistency checks against the live database and
// exits non-zero if any fail. It never repairs anything; run the reconcile
// operation for that.
//
// Checks:
//  1. every inventory row satisfies available + reserved + broken + loaned == total
//  2. inventory counters match the instance/tag ground truth
//  3. no instance references a fulfilled or cancelled tag
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"log"
	"os"

	"stockroom/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	failures := 0

	// Check 1: conservation law on the counter cache itself.
	rows, err := pool.Query(ctx, `
		SELECT s.code, inv.total_quantity, inv.available_quantity,
		       inv.reserved_quantity, inv.broken_quantity, inv.loaned_quantity
		FROM inventory inv
		JOIN skus s ON s.id = inv.sku_id
		WHERE inv.available_quantity + inv.reserved_quantity
		    + inv.broken_quantity + inv.loaned_quantity <> inv.total_quantity
		ORDER BY s.code`)
	if err != nil {
		log.Fatalf("[BALANCE] query failed: %v", err)
	}
	for rows.Next() {
		var code string
		var total, available, reserved, broken, loaned int
		if err := rows.Scan(&code, &total, &available, &reserved, &broken, &loaned); err != nil {
			log.Fatalf("[BALANCE] scan failed: %v", err)
		}
		log.Printf("[BALANCE] %s: %d+%d+%d+%d != %d", code, available, reserved, broken, loaned, total)
		failures++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Fatalf("[BALANCE] rows failed: %v", err)
	}
	log.Println("[BALANCE] checked")

	// Check 2: counters vs ground truth. Held units are grouped by the
	// referenced tag's type; imperfect and stock holds land in the broken
	// and reserved buckets respectively.
	rows, err = pool.Query(ctx, `
		SELECT s.code,
		       inv.total_quantity, inv.available_quantity,
		       inv.reserved_quantity, inv.broken_quantity, inv.loaned_quantity,
		       COUNT(i.id) AS actual_total,
		       COUNT(i.id) FILTER (WHERE i.tag_id IS NULL) AS actual_available,
		       COUNT(i.id) FILTER (WHERE t.tag_type IN ('reserved', 'stock')) AS actual_reserved,
		       COUNT(i.id) FILTER (WHERE t.tag_type IN ('broken', 'imperfect')) AS actual_broken,
		       COUNT(i.id) FILTER (WHERE t.tag_type = 'loaned') AS actual_loaned
		FROM inventory inv
		JOIN skus s ON s.id = inv.sku_id
		LEFT JOIN instances i ON i.sku_id = inv.sku_id
		LEFT JOIN tags t ON t.id = i.tag_id
		GROUP BY s.code, inv.total_quantity, inv.available_quantity,
		         inv.reserved_quantity, inv.broken_quantity, inv.loaned_quantity
		ORDER BY s.code`)
	if err != nil {
		log.Fatalf("[DRIFT] query failed: %v", err)
	}
	for rows.Next() {
		var code string
		var total, available, reserved, broken, loaned int
		var aTotal, aAvailable, aReserved, aBroken, aLoaned int
		if err := rows.Scan(&code, &total, &available, &reserved, &broken, &loaned,
			&aTotal, &aAvailable, &aReserved, &aBroken, &aLoaned); err != nil {
			log.Fatalf("[DRIFT] scan failed: %v", err)
		}
		if total != aTotal || available != aAvailable || reserved != aReserved ||
			broken != aBroken || loaned != aLoaned {
			log.Printf("[DRIFT] %s: cached (t=%d a=%d r=%d b=%d l=%d) vs actual (t=%d a=%d r=%d b=%d l=%d)",
				code, total, available, reserved, broken, loaned,
				aTotal, aAvailable, aReserved, aBroken, aLoaned)
			failures++
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Fatalf("[DRIFT] rows failed: %v", err)
	}
	log.Println("[DRIFT] checked")

	// Check 3: stale tag references.
	rows, err = pool.Query(ctx, `
		SELECT i.id, s.code, t.id, t.status
		FROM instances i
		JOIN skus s ON s.id = i.sku_id
		JOIN tags t ON t.id = i.tag_id
		WHERE t.status <> 'active'
		ORDER BY i.id`)
	if err != nil {
		log.Fatalf("[STALE] query failed: %v", err)
	}
	for rows.Next() {
		var instanceID, tagID int
		var code, status string
		if err := rows.Scan(&instanceID, &code, &tagID, &status); err != nil {
			log.Fatalf("[STALE] scan failed: %v", err)
		}
		log.Printf("[STALE] instance %d (%s) held by %s tag %d", instanceID, code, status, tagID)
		failures++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Fatalf("[STALE] rows failed: %v", err)
	}
	log.Println("[STALE] checked")

	if failures > 0 {
		log.Printf("[FAIL] %d consistency issue(s) found", failures)
		os.Exit(1)
	}
	log.Println("[DONE] database is consistent")
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RuleEngine resolves per-category allocation defaults from the
// allocation_rules table. It replaces hardcoded selection policy in the
// engine: a request that leaves the method blank gets the category's rule,
// or FIFO ascending when no rule is configured.
type RuleEngine interface {
	ResolveDefaults(ctx context.Context, categoryID int) (SelectionMethod, CostOrder, string, error)
}

type ruleEngine struct {
	pool *pgxpool.Pool
}

func NewRuleEngine(pool *pgxpool.Pool) RuleEngine {
	return &ruleEngine{pool: pool}
}

// ResolveDefaults returns (method, costOrder, defaultLocation) for a category,
// highest priority rule first, ignoring expired rules.
func (r *ruleEngine) ResolveDefaults(ctx context.Context, categoryID int) (SelectionMethod, CostOrder, string, error) {
	var method SelectionMethod
	var order CostOrder
	var location string
	err := r.pool.QueryRow(ctx, `
		SELECT selection_method, cost_order, default_location
		FROM allocation_rules
		WHERE category_id = $1
		  AND (effective_to IS NULL OR effective_to >= CURRENT_DATE)
		ORDER BY priority DESC
		LIMIT 1
	`, categoryID).Scan(&method, &order, &location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SelectFIFO, CostAscending, "", nil
		}
		return "", "", "", fmt.Errorf("failed to resolve allocation rule (category_id=%d): %w", categoryID, err)
	}
	return method, order, location, nil
}

package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// TagService is the allocation/fulfillment engine: it is the only code path
// that binds instances to tags, releases or consumes them, and adjusts the
// inventory counters — always within one transaction per operation.
type TagService interface {
	// CreateTag creates an active tag and allocates every requested line.
	// All-or-nothing: if any line cannot be satisfied, nothing is created.
	CreateTag(ctx context.Context, req CreateTagRequest) (*Tag, error)

	// AllocateToTag allocates an additional SKU line (or extends an existing
	// one) on an active tag.
	AllocateToTag(ctx context.Context, tagID int, line AllocationInput, actor string) (*Tag, error)

	// FulfillTag resolves some or all of a tag's held instances. Empty
	// resolutions means "everything the tag holds". mode consume deletes the
	// instances; mode release makes them available again. The tag becomes
	// fulfilled when it no longer holds any instance.
	FulfillTag(ctx context.Context, tagID int, resolutions []Resolution, mode ResolutionMode, actor string) (*Tag, error)

	// ReturnWithCondition releases loaned instances from a tag and, when the
	// reported condition is not functional, rebinds them into a freshly
	// created broken/imperfect hold in the same transaction: an unserviceable
	// unit is never observable as available. Returns the updated original tag
	// and the hold tag (nil for functional returns).
	ReturnWithCondition(ctx context.Context, tagID int, instanceIDs []int, condition InstanceCondition, actor string) (*Tag, *Tag, error)

	// CancelTag abandons an active tag, releasing (never deleting) every
	// instance it holds.
	CancelTag(ctx context.Context, tagID int, reason, actor string) (*Tag, error)

	// GetTag returns a tag by numeric id or tag number, with lines and the
	// instance ids each line currently holds.
	GetTag(ctx context.Context, ref string) (*Tag, error)

	// ListTags returns tags, newest first, optionally filtered by status
	// and/or tag type (empty string means no filter).
	ListTags(ctx context.Context, status, tagType string) ([]Tag, error)
}

type tagService struct {
	pool      *pgxpool.Pool
	sequences SequenceService
	rules     RuleEngine
	movements *MovementLog
}

func NewTagService(pool *pgxpool.Pool, sequences SequenceService, rules RuleEngine, movements *MovementLog) TagService {
	return &tagService{pool: pool, sequences: sequences, rules: rules, movements: movements}
}

// ── Creation and allocation ───────────────────────────────────────────────────

func (s *tagService) CreateTag(ctx context.Context, req CreateTagRequest) (*Tag, error) {
	if !ValidTagType(string(req.TagType)) {
		return nil, fmt.Errorf("unknown tag type %q", req.TagType)
	}
	if req.CreatedBy == "" {
		return nil, fmt.Errorf("created_by is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tagNumber, err := s.sequences.NextNumberTx(ctx, tx, "TAG")
	if err != nil {
		return nil, err
	}

	var dueDate *string
	if req.DueDate != "" {
		if _, err := time.Parse("2006-01-02", req.DueDate); err != nil {
			return nil, fmt.Errorf("invalid due_date %q: %w", req.DueDate, err)
		}
		dueDate = &req.DueDate
	}

	var tagID int
	err = tx.QueryRow(ctx, `
		INSERT INTO tags (tag_number, tag_type, status, customer, project, due_date, notes, created_by)
		VALUES ($1, $2, 'active', $3, $4, $5, $6, $7)
		RETURNING id
	`, tagNumber, string(req.TagType), req.Customer, req.Project, dueDate, req.Notes, req.CreatedBy).Scan(&tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}

	for _, line := range req.Lines {
		if err := s.allocateLineTx(ctx, tx, tagID, req.TagType, line, req.CreatedBy); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit tag creation: %w", err)
	}
	return s.GetTag(ctx, strconv.Itoa(tagID))
}

func (s *tagService) AllocateToTag(ctx context.Context, tagID int, line AllocationInput, actor string) (*Tag, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tagType, status, err := lockTagTx(ctx, tx, tagID)
	if err != nil {
		return nil, err
	}
	if status != TagActive {
		return nil, fmt.Errorf("%w: tag %d is %s, allocation requires active", ErrInvalidTagState, tagID, status)
	}

	if err := s.allocateLineTx(ctx, tx, tagID, tagType, line, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}
	return s.GetTag(ctx, strconv.Itoa(tagID))
}

// allocateLineTx selects instances for one SKU line and binds them to the tag,
// adjusting counters and journaling the movement, all inside tx.
func (s *tagService) allocateLineTx(ctx context.Context, tx pgx.Tx, tagID int, tagType TagType, line AllocationInput, actor string) error {
	sku, err := resolveActiveSKUTx(ctx, tx, line.SKUCode)
	if err != nil {
		return err
	}

	method := line.Method
	order := line.CostOrder
	if len(line.InstanceIDs) > 0 {
		method = SelectManual
	} else if method == "" {
		// Fall back to the category's configured defaults.
		method, order, _, err = s.rules.ResolveDefaults(ctx, sku.CategoryID)
		if err != nil {
			return err
		}
	}
	if !ValidSelectionMethod(string(method)) {
		return fmt.Errorf("%w: unknown selection method %q", ErrInvalidInstanceSelection, method)
	}

	// Serialize allocations per SKU before touching instance rows.
	if err := lockInventoryRowTx(ctx, tx, sku.ID); err != nil {
		return err
	}

	var ids []int
	if method == SelectManual {
		if err := validateManualSelectionTx(ctx, tx, sku.ID, line.InstanceIDs); err != nil {
			return err
		}
		ids = line.InstanceIDs
	} else {
		ids, err = selectAvailableTx(ctx, tx, sku.ID, line.Quantity, method, order)
		if err != nil {
			return err
		}
	}

	if err := claimInstancesTx(ctx, tx, tagID, ids); err != nil {
		return err
	}

	// Upsert the tag line. An existing line keeps its original method.
	_, err = tx.Exec(ctx, `
		INSERT INTO tag_items (tag_id, sku_id, selection_method)
		VALUES ($1, $2, $3)
		ON CONFLICT (tag_id, sku_id) DO NOTHING
	`, tagID, sku.ID, string(method))
	if err != nil {
		return fmt.Errorf("failed to upsert tag item: %w", err)
	}

	if err := moveAvailableToHeldTx(ctx, tx, sku.ID, tagType, len(ids)); err != nil {
		return err
	}

	return s.movements.RecordTx(ctx, tx, Movement{
		Type:     MovementAllocate,
		SKUID:    sku.ID,
		TagID:    &tagID,
		Quantity: len(ids),
		Actor:    actor,
		Notes:    fmt.Sprintf("%d × %s allocated (%s)", len(ids), sku.Code, method),
	})
}

// ── Fulfillment ───────────────────────────────────────────────────────────────

func (s *tagService) FulfillTag(ctx context.Context, tagID int, resolutions []Resolution, mode ResolutionMode, actor string) (*Tag, error) {
	if mode != ResolveConsume && mode != ResolveRelease {
		return nil, fmt.Errorf("unknown resolution mode %q", mode)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tagType, status, err := lockTagTx(ctx, tx, tagID)
	if err != nil {
		return nil, err
	}
	if status != TagActive {
		return nil, fmt.Errorf("%w: tag %d is %s, fulfillment requires active", ErrInvalidTagState, tagID, status)
	}

	// No explicit resolutions: resolve everything the tag currently holds.
	if len(resolutions) == 0 {
		resolutions, err = fullResolutionsTx(ctx, tx, tagID)
		if err != nil {
			return nil, err
		}
	}

	for _, res := range resolutions {
		sku, err := resolveSKUTx(ctx, tx, res.SKUCode)
		if err != nil {
			return nil, err
		}
		if err := lockInventoryRowTx(ctx, tx, sku.ID); err != nil {
			return nil, err
		}

		held, err := heldInstancesTx(ctx, tx, tagID, sku.ID)
		if err != nil {
			return nil, err
		}
		if len(held) == 0 {
			return nil, fmt.Errorf("%w: tag %d holds no instances of %s", ErrNotInTag, tagID, sku.Code)
		}

		var ids []int
		if len(res.InstanceIDs) > 0 {
			heldSet := make(map[int]bool, len(held))
			for _, id := range held {
				heldSet[id] = true
			}
			// Each id is consumed from the set so a repeated id fails like
			// an id the tag never held.
			for _, id := range res.InstanceIDs {
				if !heldSet[id] {
					return nil, fmt.Errorf("%w: instance %d is not held by tag %d for %s", ErrNotInTag, id, tagID, sku.Code)
				}
				heldSet[id] = false
			}
			ids = res.InstanceIDs
		} else {
			// Quantity resolution: oldest held instances first.
			n := res.Quantity
			if n <= 0 || n > len(held) {
				return nil, fmt.Errorf("%w: tag %d holds %d × %s, cannot resolve %d", ErrNotInTag, tagID, len(held), sku.Code, n)
			}
			ids = held[:n]
		}

		switch mode {
		case ResolveConsume:
			var consumed decimal.Decimal
			if err := tx.QueryRow(ctx,
				`SELECT COALESCE(SUM(acquisition_cost), 0) FROM instances WHERE id = ANY($1)`, ids,
			).Scan(&consumed); err != nil {
				return nil, fmt.Errorf("failed to value consumed instances: %w", err)
			}
			deleted, err := tx.Exec(ctx, `DELETE FROM instances WHERE id = ANY($1) AND tag_id = $2`, ids, tagID)
			if err != nil {
				return nil, fmt.Errorf("failed to delete consumed instances: %w", err)
			}
			if int(deleted.RowsAffected()) != len(ids) {
				return nil, fmt.Errorf("%w: consumed %d of %d instances from tag %d", ErrNotInTag, deleted.RowsAffected(), len(ids), tagID)
			}
			if err := consumeHeldTx(ctx, tx, sku.ID, tagType, len(ids)); err != nil {
				return nil, err
			}
			if err := refreshValuationTx(ctx, tx, sku.ID); err != nil {
				return nil, err
			}
			if err := s.movements.RecordTx(ctx, tx, Movement{
				Type: MovementConsume, SKUID: sku.ID, TagID: &tagID, Quantity: len(ids),
				TotalCost: consumed, Actor: actor,
				Notes: fmt.Sprintf("%d × %s consumed", len(ids), sku.Code),
			}); err != nil {
				return nil, err
			}

		case ResolveRelease:
			if err := releaseInstancesTx(ctx, tx, tagID, ids); err != nil {
				return nil, err
			}
			if err := moveHeldToAvailableTx(ctx, tx, sku.ID, tagType, len(ids)); err != nil {
				return nil, err
			}
			if err := s.movements.RecordTx(ctx, tx, Movement{
				Type: MovementRelease, SKUID: sku.ID, TagID: &tagID, Quantity: len(ids),
				Actor: actor,
				Notes: fmt.Sprintf("%d × %s returned to available", len(ids), sku.Code),
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := closeTagIfEmptyTx(ctx, tx, tagID, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit fulfillment: %w", err)
	}
	return s.GetTag(ctx, strconv.Itoa(tagID))
}

func (s *tagService) ReturnWithCondition(ctx context.Context, tagID int, instanceIDs []int, condition InstanceCondition, actor string) (*Tag, *Tag, error) {
	holdType := HoldTagType(condition)
	if condition != ConditionFunctional && holdType == "" {
		return nil, nil, fmt.Errorf("unknown instance condition %q", condition)
	}
	if len(instanceIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: no instances given for condition return", ErrNotInTag)
	}

	// Functional units follow the plain release path.
	if condition == ConditionFunctional {
		resolutions, err := s.resolutionsForInstances(ctx, tagID, instanceIDs)
		if err != nil {
			return nil, nil, err
		}
		tag, err := s.FulfillTag(ctx, tagID, resolutions, ResolveRelease, actor)
		return tag, nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tagType, status, err := lockTagTx(ctx, tx, tagID)
	if err != nil {
		return nil, nil, err
	}
	if status != TagActive {
		return nil, nil, fmt.Errorf("%w: tag %d is %s, return requires active", ErrInvalidTagState, tagID, status)
	}

	// Group the returned instances by SKU and verify they are held by the tag.
	bySKU := make(map[int][]int)
	skuCodes := make(map[int]string)
	rows, err := tx.Query(ctx, `
		SELECT i.id, i.sku_id, i.tag_id, s.code
		FROM instances i JOIN skus s ON s.id = i.sku_id
		WHERE i.id = ANY($1)
		FOR UPDATE OF i
	`, instanceIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock returned instances: %w", err)
	}
	seen := 0
	for rows.Next() {
		var id, skuID int
		var heldBy *int
		var code string
		if err := rows.Scan(&id, &skuID, &heldBy, &code); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("failed to scan returned instance: %w", err)
		}
		if heldBy == nil || *heldBy != tagID {
			rows.Close()
			return nil, nil, fmt.Errorf("%w: instance %d is not held by tag %d", ErrNotInTag, id, tagID)
		}
		bySKU[skuID] = append(bySKU[skuID], id)
		skuCodes[skuID] = code
		seen++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read returned instances: %w", err)
	}
	if seen != len(instanceIDs) {
		return nil, nil, fmt.Errorf("%w: %d of %d returned instances not found", ErrNotInTag, len(instanceIDs)-seen, len(instanceIDs))
	}

	// Create the hold tag that will take the unserviceable units.
	holdNumber, err := s.sequences.NextNumberTx(ctx, tx, "TAG")
	if err != nil {
		return nil, nil, err
	}
	var holdID int
	err = tx.QueryRow(ctx, `
		INSERT INTO tags (tag_number, tag_type, status, notes, created_by)
		VALUES ($1, $2, 'active', $3, $4)
		RETURNING id
	`, holdNumber, string(holdType), fmt.Sprintf("condition return from tag %d (%s)", tagID, condition), actor).Scan(&holdID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s hold tag: %w", holdType, err)
	}

	for skuID, ids := range bySKU {
		if err := lockInventoryRowTx(ctx, tx, skuID); err != nil {
			return nil, nil, err
		}
		if err := transferInstancesTx(ctx, tx, tagID, holdID, ids); err != nil {
			return nil, nil, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO tag_items (tag_id, sku_id, selection_method)
			VALUES ($1, $2, 'manual')
			ON CONFLICT (tag_id, sku_id) DO NOTHING
		`, holdID, skuID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to insert hold tag item: %w", err)
		}
		if err := moveHeldToHeldTx(ctx, tx, skuID, tagType, holdType, len(ids)); err != nil {
			return nil, nil, err
		}
		if err := s.movements.RecordTx(ctx, tx, Movement{
			Type: MovementRelease, SKUID: skuID, TagID: &tagID, Quantity: len(ids),
			Actor: actor,
			Notes: fmt.Sprintf("%d × %s returned %s, moved to hold tag %d", len(ids), skuCodes[skuID], condition, holdID),
		}); err != nil {
			return nil, nil, err
		}
		if err := s.movements.RecordTx(ctx, tx, Movement{
			Type: MovementAllocate, SKUID: skuID, TagID: &holdID, Quantity: len(ids),
			Actor: actor,
			Notes: fmt.Sprintf("%d × %s held as %s", len(ids), skuCodes[skuID], holdType),
		}); err != nil {
			return nil, nil, err
		}
	}

	if err := closeTagIfEmptyTx(ctx, tx, tagID, actor); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit condition return: %w", err)
	}

	orig, err := s.GetTag(ctx, strconv.Itoa(tagID))
	if err != nil {
		return nil, nil, err
	}
	hold, err := s.GetTag(ctx, strconv.Itoa(holdID))
	if err != nil {
		return nil, nil, err
	}
	return orig, hold, nil
}

// resolutionsForInstances groups explicit instance ids into per-SKU
// resolutions for the release path of a functional return.
func (s *tagService) resolutionsForInstances(ctx context.Context, tagID int, instanceIDs []int) ([]Resolution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, s.code
		FROM instances i JOIN skus s ON s.id = i.sku_id
		WHERE i.id = ANY($1) AND i.tag_id = $2
	`, instanceIDs, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to group returned instances: %w", err)
	}
	defer rows.Close()

	byCode := make(map[string][]int)
	seen := 0
	for rows.Next() {
		var id int
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, fmt.Errorf("failed to scan returned instance: %w", err)
		}
		byCode[code] = append(byCode[code], id)
		seen++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if seen != len(instanceIDs) {
		return nil, fmt.Errorf("%w: %d of %d instances not held by tag %d", ErrNotInTag, len(instanceIDs)-seen, len(instanceIDs), tagID)
	}

	var resolutions []Resolution
	for code, ids := range byCode {
		resolutions = append(resolutions, Resolution{SKUCode: code, InstanceIDs: ids})
	}
	return resolutions, nil
}

// ── Cancellation ──────────────────────────────────────────────────────────────

func (s *tagService) CancelTag(ctx context.Context, tagID int, reason, actor string) (*Tag, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tagType, status, err := lockTagTx(ctx, tx, tagID)
	if err != nil {
		return nil, err
	}
	if status != TagActive {
		return nil, fmt.Errorf("%w: tag %d is %s, cancellation requires active", ErrInvalidTagState, tagID, status)
	}

	// Release every held instance per SKU. Cancellation never deletes.
	resolutions, err := fullResolutionsTx(ctx, tx, tagID)
	if err != nil {
		return nil, err
	}
	for _, res := range resolutions {
		sku, err := resolveSKUTx(ctx, tx, res.SKUCode)
		if err != nil {
			return nil, err
		}
		if err := lockInventoryRowTx(ctx, tx, sku.ID); err != nil {
			return nil, err
		}
		held, err := heldInstancesTx(ctx, tx, tagID, sku.ID)
		if err != nil {
			return nil, err
		}
		if len(held) == 0 {
			continue
		}
		if err := releaseInstancesTx(ctx, tx, tagID, held); err != nil {
			return nil, err
		}
		if err := moveHeldToAvailableTx(ctx, tx, sku.ID, tagType, len(held)); err != nil {
			return nil, err
		}
		if err := s.movements.RecordTx(ctx, tx, Movement{
			Type: MovementRelease, SKUID: sku.ID, TagID: &tagID, Quantity: len(held),
			Actor: actor,
			Notes: fmt.Sprintf("%d × %s released on cancellation", len(held), sku.Code),
		}); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE tags
		SET status = 'cancelled', cancelled_by = $1, cancelled_date = NOW(), cancellation_reason = $2
		WHERE id = $3
	`, actor, reason, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark tag cancelled: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return s.GetTag(ctx, strconv.Itoa(tagID))
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *tagService) GetTag(ctx context.Context, ref string) (*Tag, error) {
	where := "t.tag_number = $1"
	var arg any = ref
	if id, err := strconv.Atoi(ref); err == nil {
		where = "t.id = $1"
		arg = id
	}

	t := &Tag{}
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT t.id, COALESCE(t.tag_number, ''), t.tag_type, t.status, t.customer, t.project,
		       to_char(t.due_date, 'YYYY-MM-DD'), t.notes, t.created_by, t.created_at,
		       t.fulfilled_by, t.fulfilled_date, t.cancelled_by, t.cancelled_date, t.cancellation_reason
		FROM tags t
		WHERE %s
	`, where), arg).Scan(
		&t.ID, &t.TagNumber, &t.TagType, &t.Status, &t.Customer, &t.Project,
		&t.DueDate, &t.Notes, &t.CreatedBy, &t.CreatedAt,
		&t.FulfilledBy, &t.FulfilledDate, &t.CancelledBy, &t.CancelledDate, &t.CancellationReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTagNotFound, ref)
		}
		return nil, fmt.Errorf("failed to fetch tag %s: %w", ref, err)
	}

	items, err := s.loadItems(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return t, nil
}

func (s *tagService) loadItems(ctx context.Context, tagID int) ([]TagItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ti.id, ti.tag_id, ti.sku_id, s.code, s.name, ti.selection_method,
		       COALESCE(array_agg(i.id ORDER BY i.id) FILTER (WHERE i.id IS NOT NULL), '{}')
		FROM tag_items ti
		JOIN skus s ON s.id = ti.sku_id
		LEFT JOIN instances i ON i.tag_id = ti.tag_id AND i.sku_id = ti.sku_id
		WHERE ti.tag_id = $1
		GROUP BY ti.id, ti.tag_id, ti.sku_id, s.code, s.name, ti.selection_method
		ORDER BY ti.id
	`, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag items: %w", err)
	}
	defer rows.Close()

	var items []TagItem
	for rows.Next() {
		var ti TagItem
		if err := rows.Scan(&ti.ID, &ti.TagID, &ti.SKUID, &ti.SKUCode, &ti.SKUName, &ti.SelectionMethod, &ti.SelectedInstanceIDs); err != nil {
			return nil, fmt.Errorf("failed to scan tag item: %w", err)
		}
		items = append(items, ti)
	}
	return items, rows.Err()
}

func (s *tagService) ListTags(ctx context.Context, status, tagType string) ([]Tag, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, COALESCE(t.tag_number, ''), t.tag_type, t.status, t.customer, t.project,
		       to_char(t.due_date, 'YYYY-MM-DD'), t.notes, t.created_by, t.created_at,
		       t.fulfilled_by, t.fulfilled_date, t.cancelled_by, t.cancelled_date, t.cancellation_reason
		FROM tags t
		WHERE ($1 = '' OR t.status = $1)
		  AND ($2 = '' OR t.tag_type = $2)
		ORDER BY t.id DESC
	`, status, tagType)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(
			&t.ID, &t.TagNumber, &t.TagType, &t.Status, &t.Customer, &t.Project,
			&t.DueDate, &t.Notes, &t.CreatedBy, &t.CreatedAt,
			&t.FulfilledBy, &t.FulfilledDate, &t.CancelledBy, &t.CancelledDate, &t.CancellationReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tags {
		items, err := s.loadItems(ctx, tags[i].ID)
		if err != nil {
			return nil, err
		}
		tags[i].Items = items
	}
	return tags, nil
}

// ── Shared tx helpers ─────────────────────────────────────────────────────────

// lockTagTx row-locks a tag and returns its type and status.
func lockTagTx(ctx context.Context, tx pgx.Tx, tagID int) (TagType, TagStatus, error) {
	var tagType TagType
	var status TagStatus
	err := tx.QueryRow(ctx,
		`SELECT tag_type, status FROM tags WHERE id = $1 FOR UPDATE`, tagID,
	).Scan(&tagType, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", fmt.Errorf("%w: id %d", ErrTagNotFound, tagID)
		}
		return "", "", fmt.Errorf("failed to lock tag %d: %w", tagID, err)
	}
	return tagType, status, nil
}

// fullResolutionsTx builds a resolution covering everything a tag holds,
// one entry per SKU with held instances.
func fullResolutionsTx(ctx context.Context, tx pgx.Tx, tagID int) ([]Resolution, error) {
	rows, err := tx.Query(ctx, `
		SELECT s.code, COUNT(i.id)
		FROM instances i JOIN skus s ON s.id = i.sku_id
		WHERE i.tag_id = $1
		GROUP BY s.code
		ORDER BY s.code
	`, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate held instances for tag %d: %w", tagID, err)
	}
	defer rows.Close()

	var resolutions []Resolution
	for rows.Next() {
		var res Resolution
		if err := rows.Scan(&res.SKUCode, &res.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan held count: %w", err)
		}
		resolutions = append(resolutions, res)
	}
	return resolutions, rows.Err()
}

// closeTagIfEmptyTx marks the tag fulfilled when it no longer holds any
// instance on any line.
func closeTagIfEmptyTx(ctx context.Context, tx pgx.Tx, tagID int, actor string) error {
	var remaining int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM instances WHERE tag_id = $1`, tagID,
	).Scan(&remaining); err != nil {
		return fmt.Errorf("failed to count remaining held instances: %w", err)
	}
	if remaining > 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE tags SET status = 'fulfilled', fulfilled_by = $1, fulfilled_date = NOW()
		WHERE id = $2
	`, actor, tagID)
	if err != nil {
		return fmt.Errorf("failed to mark tag fulfilled: %w", err)
	}
	return nil
}

// skuRef is the minimal SKU projection the engine needs inside a transaction.
type skuRef struct {
	ID         int
	Code       string
	CategoryID int
	Status     SKUStatus
}

func resolveSKUTx(ctx context.Context, tx pgx.Tx, code string) (*skuRef, error) {
	ref := &skuRef{}
	err := tx.QueryRow(ctx,
		`SELECT id, code, category_id, status FROM skus WHERE code = $1`, code,
	).Scan(&ref.ID, &ref.Code, &ref.CategoryID, &ref.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSKUNotFound, code)
		}
		return nil, fmt.Errorf("failed to resolve sku %s: %w", code, err)
	}
	return ref, nil
}

func resolveActiveSKUTx(ctx context.Context, tx pgx.Tx, code string) (*skuRef, error) {
	ref, err := resolveSKUTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if ref.Status != SKUActive {
		return nil, fmt.Errorf("%w: %s is disabled", ErrSKUNotFound, code)
	}
	return ref, nil
}

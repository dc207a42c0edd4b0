package app

import (
	"context"
	"fmt"
	"strings"

	"stockroom/internal/ai"
	"stockroom/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

type appService struct {
	pool      *pgxpool.Pool
	catalog   core.CatalogService
	receipts  core.ReceiptService
	tags      core.TagService
	inventory core.InventoryService
	reporting core.ReportingService
	users     core.UserService
	movements *core.MovementLog
	agent     *ai.Agent
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	catalog core.CatalogService,
	receipts core.ReceiptService,
	tags core.TagService,
	inventory core.InventoryService,
	reporting core.ReportingService,
	users core.UserService,
	movements *core.MovementLog,
	agent *ai.Agent,
) ApplicationService {
	return &appService{
		pool:      pool,
		catalog:   catalog,
		receipts:  receipts,
		tags:      tags,
		inventory: inventory,
		reporting: reporting,
		users:     users,
		movements: movements,
		agent:     agent,
	}
}

// ── Auth ──────────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &UserSession{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{ID: user.ID, Username: user.Username, Email: user.Email, Role: user.Role}, nil
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) ListCategories(ctx context.Context) (*CategoryListResult, error) {
	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return &CategoryListResult{Categories: categories}, nil
}

func (s *appService) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*core.Category, error) {
	return s.catalog.CreateCategory(ctx, req.Code, req.Name, core.CategoryKind(req.Kind), req.RequiredAttributes)
}

func (s *appService) ListSKUs(ctx context.Context, includeDisabled bool) (*SKUListResult, error) {
	skus, err := s.catalog.ListSKUs(ctx, includeDisabled)
	if err != nil {
		return nil, err
	}
	return &SKUListResult{SKUs: skus}, nil
}

func (s *appService) GetSKU(ctx context.Context, code string) (*core.SKU, error) {
	return s.catalog.GetSKU(ctx, code)
}

func (s *appService) CreateSKU(ctx context.Context, req CreateSKURequest) (*core.SKU, error) {
	coreReq := core.CreateSKURequest{
		Code:         req.Code,
		CategoryCode: req.CategoryCode,
		Name:         req.Name,
		Description:  req.Description,
		UnitCost:     req.UnitCost,
		CreatedBy:    req.CreatedBy,
	}
	for _, item := range req.BundleItems {
		coreReq.BundleItems = append(coreReq.BundleItems, core.BundleItemInput{
			ComponentSKUCode: item.ComponentSKUCode,
			Quantity:         item.Quantity,
		})
	}
	return s.catalog.CreateSKU(ctx, coreReq)
}

func (s *appService) UpdateSKUCost(ctx context.Context, req UpdateSKUCostRequest) (*core.SKU, error) {
	return s.catalog.UpdateSKUCost(ctx, req.Code, req.Cost, req.EffectiveDate, req.UpdatedBy, req.Notes)
}

func (s *appService) GetCostHistory(ctx context.Context, code string) (*CostHistoryResult, error) {
	entries, err := s.catalog.GetCostHistory(ctx, code)
	if err != nil {
		return nil, err
	}
	return &CostHistoryResult{SKUCode: code, Entries: entries}, nil
}

func (s *appService) SetSKUStatus(ctx context.Context, code, status string) (*core.SKU, error) {
	return s.catalog.SetSKUStatus(ctx, code, core.SKUStatus(status))
}

// ── Receiving ─────────────────────────────────────────────────────────────────

func (s *appService) ReceiveStock(ctx context.Context, req ReceiveStockRequest) (*core.Receipt, error) {
	coreReq := core.ReceiveStockRequest{
		Supplier:     req.Supplier,
		ReceivedBy:   req.ReceivedBy,
		MovementDate: req.MovementDate,
		Notes:        req.Notes,
	}
	for _, line := range req.Lines {
		coreReq.Lines = append(coreReq.Lines, core.ReceiptLineInput{
			SKUCode:  line.SKUCode,
			Quantity: line.Quantity,
			UnitCost: line.UnitCost,
			Location: line.Location,
		})
	}
	return s.receipts.ReceiveStock(ctx, coreReq)
}

func (s *appService) GetReceipt(ctx context.Context, receiptID int) (*core.Receipt, error) {
	return s.receipts.GetReceipt(ctx, receiptID)
}

func (s *appService) ListReceipts(ctx context.Context, limit int) (*ReceiptListResult, error) {
	receipts, err := s.receipts.ListReceipts(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &ReceiptListResult{Receipts: receipts}, nil
}

// ── Tags ──────────────────────────────────────────────────────────────────────

func (s *appService) CreateTag(ctx context.Context, req CreateTagRequest) (*core.Tag, error) {
	coreReq := core.CreateTagRequest{
		TagType:   core.TagType(req.TagType),
		Customer:  req.Customer,
		Project:   req.Project,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
		CreatedBy: req.CreatedBy,
	}
	for _, line := range req.Lines {
		coreReq.Lines = append(coreReq.Lines, toAllocationInput(line))
	}
	return s.tags.CreateTag(ctx, coreReq)
}

func (s *appService) AllocateToTag(ctx context.Context, tagID int, line TagLineInput, actor string) (*core.Tag, error) {
	return s.tags.AllocateToTag(ctx, tagID, toAllocationInput(line), actor)
}

func toAllocationInput(line TagLineInput) core.AllocationInput {
	return core.AllocationInput{
		SKUCode:     line.SKUCode,
		Quantity:    line.Quantity,
		Method:      core.SelectionMethod(line.Method),
		CostOrder:   core.CostOrder(line.CostOrder),
		InstanceIDs: line.InstanceIDs,
	}
}

func (s *appService) FulfillTag(ctx context.Context, req FulfillTagRequest) (*core.Tag, error) {
	var resolutions []core.Resolution
	for _, r := range req.Resolutions {
		resolutions = append(resolutions, core.Resolution{
			SKUCode:     r.SKUCode,
			Quantity:    r.Quantity,
			InstanceIDs: r.InstanceIDs,
		})
	}
	return s.tags.FulfillTag(ctx, req.TagID, resolutions, core.ResolutionMode(req.Mode), req.Actor)
}

func (s *appService) ReturnWithCondition(ctx context.Context, req ConditionReturnRequest) (*ConditionReturnResult, error) {
	tag, hold, err := s.tags.ReturnWithCondition(ctx, req.TagID, req.InstanceIDs, core.InstanceCondition(req.Condition), req.Actor)
	if err != nil {
		return nil, err
	}
	return &ConditionReturnResult{Tag: tag, HoldTag: hold}, nil
}

func (s *appService) CancelTag(ctx context.Context, tagID int, reason, actor string) (*core.Tag, error) {
	return s.tags.CancelTag(ctx, tagID, reason, actor)
}

func (s *appService) GetTag(ctx context.Context, ref string) (*core.Tag, error) {
	return s.tags.GetTag(ctx, ref)
}

func (s *appService) ListTags(ctx context.Context, status, tagType string) (*TagListResult, error) {
	tags, err := s.tags.ListTags(ctx, status, tagType)
	if err != nil {
		return nil, err
	}
	return &TagListResult{Tags: tags}, nil
}

// ── Inventory ─────────────────────────────────────────────────────────────────

func (s *appService) GetStockLevels(ctx context.Context) (*StockResult, error) {
	rows, err := s.inventory.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Rows: rows}, nil
}

func (s *appService) ReconcileInventory(ctx context.Context, skuCode string) (*core.ReconcileResult, error) {
	return s.inventory.Reconcile(ctx, skuCode)
}

func (s *appService) ListMovements(ctx context.Context, skuCode string, limit int) (*MovementListResult, error) {
	movements, err := s.movements.List(ctx, skuCode, limit)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: movements}, nil
}

// ── Reports ───────────────────────────────────────────────────────────────────

func (s *appService) GetValuationReport(ctx context.Context) (*core.ValuationReport, error) {
	return s.reporting.ValuationSummary(ctx)
}

func (s *appService) GetOverdueLoans(ctx context.Context, asOf string) (*OverdueLoansResult, error) {
	loans, err := s.reporting.OverdueLoans(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return &OverdueLoansResult{AsOf: asOf, Loans: loans}, nil
}

// ── AI ────────────────────────────────────────────────────────────────────────

func (s *appService) InterpretRequest(ctx context.Context, text string) (*AIResult, error) {
	catalog, err := s.catalogContext(ctx)
	if err != nil {
		return nil, err
	}
	response, err := s.agent.InterpretRequest(ctx, text, catalog)
	if err != nil {
		return nil, err
	}
	if response.IsClarificationRequest {
		return &AIResult{IsClarification: true, ClarificationMessage: response.Clarification.Message}, nil
	}
	return &AIResult{Proposal: response.Proposal}, nil
}

func (s *appService) ValidateProposal(ctx context.Context, proposal core.TagProposal) error {
	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return err
	}
	// Structural validation passed; verify the SKUs exist and are active.
	for _, line := range proposal.Lines {
		sku, err := s.catalog.GetSKU(ctx, line.SKUCode)
		if err != nil {
			return err
		}
		if sku.Status != core.SKUActive {
			return fmt.Errorf("%w: %s is disabled", core.ErrSKUNotFound, line.SKUCode)
		}
	}
	return nil
}

func (s *appService) CommitProposal(ctx context.Context, proposal core.TagProposal, actor string) (*core.Tag, error) {
	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, fmt.Errorf("proposal validation failed: %w", err)
	}
	return s.tags.CreateTag(ctx, proposal.ToRequest(actor))
}

// catalogContext renders the active catalog with live availability as the
// grounding context for the AI agent.
func (s *appService) catalogContext(ctx context.Context) (string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.code, s.name, c.kind, COALESCE(inv.available_quantity, 0)
		FROM skus s
		JOIN categories c ON c.id = s.category_id
		LEFT JOIN inventory inv ON inv.sku_id = s.id
		WHERE s.status = 'active'
		ORDER BY s.code
	`)
	if err != nil {
		return "", fmt.Errorf("failed to build catalog context: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var code, name string
		var kind core.CategoryKind
		var available int
		if err := rows.Scan(&code, &name, &kind, &available); err != nil {
			return "", fmt.Errorf("failed to scan catalog row: %w", err)
		}
		fmt.Fprintf(&b, "%s | %s | %s | %d available\n", code, name, kind, available)
	}
	return b.String(), rows.Err()
}

package repl

import (
	"fmt"
	"strings"

	"stockroom/internal/app"
	"stockroom/internal/core"
)

func printStockLevels(result *app.StockResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 78))
	fmt.Printf("  %-58s\n", "STOCK LEVELS")
	fmt.Println(strings.Repeat("=", 78))
	if len(result.Rows) == 0 {
		fmt.Println("  No inventory rows found.")
		fmt.Println(strings.Repeat("=", 78))
		return
	}
	fmt.Printf("  %-12s %-24s %6s %6s %6s %6s %6s %10s\n",
		"SKU", "NAME", "TOTAL", "AVAIL", "RESV", "LOAN", "BRKN", "VALUE")
	fmt.Println(strings.Repeat("-", 78))
	for _, row := range result.Rows {
		marker := " "
		if !row.Balanced() {
			marker = "!"
		}
		fmt.Printf("%s %-12s %-24s %6d %6d %6d %6d %6d %10s\n",
			marker, row.SKUCode, truncate(row.SKUName, 24), row.Total, row.Available,
			row.Reserved, row.Loaned, row.Broken, row.TotalValue.StringFixed(2))
	}
	fmt.Println(strings.Repeat("=", 78))
}

func printSKUs(result *app.SKUListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("  CATALOG")
	fmt.Println(strings.Repeat("=", 72))
	if len(result.SKUs) == 0 {
		fmt.Println("  No SKUs found.")
		fmt.Println(strings.Repeat("=", 72))
		return
	}
	fmt.Printf("  %-12s %-28s %-10s %10s  %s\n", "CODE", "NAME", "CATEGORY", "UNIT COST", "STATUS")
	fmt.Println(strings.Repeat("-", 72))
	for _, s := range result.SKUs {
		code := s.Code
		if s.IsBundle {
			code += "*"
		}
		fmt.Printf("  %-12s %-28s %-10s %10s  %s\n",
			code, truncate(s.Name, 28), s.CategoryCode, s.UnitCost.StringFixed(2), s.Status)
	}
	fmt.Println(strings.Repeat("-", 72))
	fmt.Println("  * = bundle SKU (receiving it creates component instances)")
	fmt.Println(strings.Repeat("=", 72))
}

func printSKUDetail(s *core.SKU) {
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("  SKU:       %s\n", s.Code)
	fmt.Printf("  Name:      %s\n", s.Name)
	fmt.Printf("  Category:  %s (%s)\n", s.CategoryCode, s.CategoryKind)
	fmt.Printf("  Unit cost: %s\n", s.UnitCost.StringFixed(2))
	fmt.Printf("  Status:    %s\n", s.Status)
	if s.Description != "" {
		fmt.Printf("  Notes:     %s\n", s.Description)
	}
	if s.IsBundle {
		fmt.Println("  Bundle components:")
		for _, item := range s.BundleItems {
			fmt.Printf("    %dx %s\n", item.Quantity, item.ComponentSKUCode)
		}
	}
	fmt.Println(strings.Repeat("-", 60))
}

func printCategories(result *app.CategoryListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 64))
	fmt.Println("  CATEGORIES")
	fmt.Println(strings.Repeat("=", 64))
	fmt.Printf("  %-10s %-28s %-8s %s\n", "CODE", "NAME", "KIND", "REQUIRED ATTRS")
	fmt.Println(strings.Repeat("-", 64))
	for _, c := range result.Categories {
		fmt.Printf("  %-10s %-28s %-8s %s\n",
			c.Code, truncate(c.Name, 28), c.Kind, strings.Join(c.RequiredAttributes, ", "))
	}
	fmt.Println(strings.Repeat("=", 64))
}

func printTags(result *app.TagListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("  TAGS")
	fmt.Println(strings.Repeat("=", 80))
	if len(result.Tags) == 0 {
		fmt.Println("  No tags found.")
		fmt.Println(strings.Repeat("=", 80))
		return
	}
	fmt.Printf("  %-5s %-12s %-10s %-10s %-18s %5s  %s\n",
		"ID", "NUMBER", "TYPE", "STATUS", "CUSTOMER", "UNITS", "DUE")
	fmt.Println(strings.Repeat("-", 80))
	for _, t := range result.Tags {
		units := 0
		for _, item := range t.Items {
			units += item.Quantity()
		}
		due := ""
		if t.DueDate != nil {
			due = *t.DueDate
		}
		fmt.Printf("  %-5d %-12s %-10s %-10s %-18s %5d  %s\n",
			t.ID, t.TagNumber, t.TagType, t.Status, truncate(t.Customer, 18), units, due)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func printTagDetail(t *core.Tag) {
	fmt.Println()
	fmt.Println(strings.Repeat("-", 64))
	fmt.Printf("  Tag:      %s (ID %d)\n", t.TagNumber, t.ID)
	fmt.Printf("  Type:     %s\n", t.TagType)
	fmt.Printf("  Status:   %s\n", t.Status)
	if t.Customer != "" {
		fmt.Printf("  Customer: %s\n", t.Customer)
	}
	if t.Project != "" {
		fmt.Printf("  Project:  %s\n", t.Project)
	}
	if t.DueDate != nil {
		fmt.Printf("  Due:      %s\n", *t.DueDate)
	}
	if t.Notes != "" {
		fmt.Printf("  Notes:    %s\n", t.Notes)
	}
	fmt.Printf("  Created:  %s by %s\n", t.CreatedAt.Format("2006-01-02 15:04"), t.CreatedBy)
	if t.CancellationReason != nil && *t.CancellationReason != "" {
		fmt.Printf("  Cancelled: %s\n", *t.CancellationReason)
	}
	fmt.Println(strings.Repeat("-", 64))
	fmt.Printf("  %-12s %-24s %-10s %5s  %s\n", "SKU", "NAME", "METHOD", "UNITS", "INSTANCES")
	fmt.Println(strings.Repeat("-", 64))
	for _, item := range t.Items {
		fmt.Printf("  %-12s %-24s %-10s %5d  %s\n",
			item.SKUCode, truncate(item.SKUName, 24), item.SelectionMethod,
			item.Quantity(), joinInts(item.SelectedInstanceIDs))
	}
	fmt.Println(strings.Repeat("-", 64))
}

func printReceipts(result *app.ReceiptListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("  RECEIPTS")
	fmt.Println(strings.Repeat("=", 72))
	if len(result.Receipts) == 0 {
		fmt.Println("  No receipts found.")
		fmt.Println(strings.Repeat("=", 72))
		return
	}
	fmt.Printf("  %-5s %-12s %-20s %-12s %5s  %s\n", "ID", "NUMBER", "SUPPLIER", "DATE", "LINES", "BY")
	fmt.Println(strings.Repeat("-", 72))
	for _, rc := range result.Receipts {
		fmt.Printf("  %-5d %-12s %-20s %-12s %5d  %s\n",
			rc.ID, rc.ReceiptNumber, truncate(rc.Supplier, 20), rc.MovementDate, len(rc.Lines), rc.ReceivedBy)
	}
	fmt.Println(strings.Repeat("=", 72))
}

func printMovements(result *app.MovementListResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 78))
	fmt.Println("  STOCK MOVEMENTS")
	fmt.Println(strings.Repeat("=", 78))
	if len(result.Movements) == 0 {
		fmt.Println("  No movements found.")
		fmt.Println(strings.Repeat("=", 78))
		return
	}
	fmt.Printf("  %-10s %-12s %5s %10s %-12s %s\n", "TYPE", "SKU", "QTY", "TOTAL", "DATE", "ACTOR")
	fmt.Println(strings.Repeat("-", 78))
	for _, m := range result.Movements {
		fmt.Printf("  %-10s %-12s %5d %10s %-12s %s\n",
			m.Type, m.SKUCode, m.Quantity, m.TotalCost.StringFixed(2), m.MovementDate, m.Actor)
	}
	fmt.Println(strings.Repeat("=", 78))
}

func printReconcile(result *core.ReconcileResult) {
	fmt.Printf("\nReconciled %d SKU(s).\n", len(result.Rows))
	for _, row := range result.Rows {
		fmt.Printf("  %-12s total=%d available=%d reserved=%d loaned=%d broken=%d\n",
			row.SKUCode, row.Total, row.Available, row.Reserved, row.Loaned, row.Broken)
	}
	if len(result.Issues) > 0 {
		fmt.Printf("\nINTEGRITY ISSUES (%d):\n", len(result.Issues))
		for _, issue := range result.Issues {
			fmt.Printf("  instance %d (%s): %s\n", issue.InstanceID, issue.SKUCode, issue.Detail)
		}
	}
}

func printValuation(report *core.ValuationReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  INVENTORY VALUATION — as of %s\n", report.AsOf)
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("  %-10s %-26s %-8s %5s %6s %12s\n", "CODE", "NAME", "KIND", "SKUS", "UNITS", "VALUE")
	fmt.Println(strings.Repeat("-", 70))
	for _, c := range report.Categories {
		fmt.Printf("  %-10s %-26s %-8s %5d %6d %12s\n",
			c.CategoryCode, truncate(c.CategoryName, 26), c.Kind, c.SKUCount, c.TotalUnits, c.TotalValue.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("  %-52s %12s\n", "GRAND TOTAL", report.GrandTotal.StringFixed(2))
	fmt.Println(strings.Repeat("=", 70))
}

func printOverdue(result *app.OverdueLoansResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 74))
	fmt.Printf("  OVERDUE LOANS — as of %s\n", result.AsOf)
	fmt.Println(strings.Repeat("=", 74))
	if len(result.Loans) == 0 {
		fmt.Println("  Nothing overdue.")
		fmt.Println(strings.Repeat("=", 74))
		return
	}
	fmt.Printf("  %-12s %-20s %-16s %-12s %5s %8s\n", "NUMBER", "CUSTOMER", "PROJECT", "DUE", "UNITS", "DAYS")
	fmt.Println(strings.Repeat("-", 74))
	for _, l := range result.Loans {
		fmt.Printf("  %-12s %-20s %-16s %-12s %5d %8d\n",
			l.TagNumber, truncate(l.Customer, 20), truncate(l.Project, 16), l.DueDate, l.UnitsHeld, l.DaysOverdue)
	}
	fmt.Println(strings.Repeat("=", 74))
}

func printProposal(p *core.TagProposal) {
	fmt.Printf("\nTAG TYPE:   %s\n", p.TagType)
	if p.Customer != "" {
		fmt.Printf("CUSTOMER:   %s\n", p.Customer)
	}
	if p.Project != "" {
		fmt.Printf("PROJECT:    %s\n", p.Project)
	}
	if p.DueDate != "" {
		fmt.Printf("DUE DATE:   %s\n", p.DueDate)
	}
	fmt.Printf("REASONING:  %s\n", p.Reasoning)
	fmt.Printf("CONFIDENCE: %.2f\n", p.Confidence)
	fmt.Println("LINES:")
	for _, l := range p.Lines {
		fmt.Printf("  %4dx %-12s (%s)\n", l.Quantity, l.SKUCode, l.SelectionMethod)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

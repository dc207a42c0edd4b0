package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"stockroom/internal/app"
	"stockroom/internal/core"
)

// Run executes a one-shot CLI command and exits.
// args is os.Args[1:] — the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, operator string) {
	switch args[0] {
	case "propose", "prop", "p":
		if len(args) < 2 {
			log.Fatal("Usage: app propose \"<stock request>\"")
		}
		result, err := svc.InterpretRequest(ctx, args[1])
		if err != nil {
			log.Fatalf("Agent error: %v", err)
		}
		if result.IsClarification {
			fmt.Fprintln(os.Stderr, "AI needs clarification:", result.ClarificationMessage)
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(result.Proposal)

	case "validate", "val", "v":
		var proposal core.TagProposal
		if err := json.NewDecoder(os.Stdin).Decode(&proposal); err != nil {
			log.Fatalf("Invalid JSON: %v", err)
		}
		if err := svc.ValidateProposal(ctx, proposal); err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
		fmt.Println("Proposal is valid.")

	case "commit", "com", "c":
		var proposal core.TagProposal
		if err := json.NewDecoder(os.Stdin).Decode(&proposal); err != nil {
			log.Fatalf("Invalid JSON: %v", err)
		}
		tag, err := svc.CommitProposal(ctx, proposal, operator)
		if err != nil {
			log.Fatalf("Commit failed: %v", err)
		}
		fmt.Printf("Tag %s created.\n", tag.TagNumber)

	case "stock":
		result, err := svc.GetStockLevels(ctx)
		if err != nil {
			log.Fatalf("Failed to get stock levels: %v", err)
		}
		printStockLevels(result)

	case "reconcile":
		skuCode := ""
		if len(args) >= 2 {
			skuCode = strings.ToUpper(args[1])
		}
		result, err := svc.ReconcileInventory(ctx, skuCode)
		if err != nil {
			log.Fatalf("Reconcile failed: %v", err)
		}
		fmt.Printf("Reconciled %d SKU(s).\n", len(result.Rows))
		for _, issue := range result.Issues {
			fmt.Fprintf(os.Stderr, "INTEGRITY: instance %d (%s): %s\n", issue.InstanceID, issue.SKUCode, issue.Detail)
		}
		if len(result.Issues) > 0 {
			os.Exit(1)
		}

	default:
		log.Fatalf("Unknown command: %s\nAvailable: propose, validate, commit, stock, reconcile", args[0])
	}
}

func printStockLevels(result *app.StockResult) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 78))
	fmt.Printf("  %-58s\n", "STOCK LEVELS")
	fmt.Println(strings.Repeat("=", 78))
	fmt.Printf("  %-12s %-24s %6s %6s %6s %6s %6s %10s\n",
		"SKU", "NAME", "TOTAL", "AVAIL", "RESV", "LOAN", "BRKN", "VALUE")
	fmt.Println(strings.Repeat("-", 78))
	for _, row := range result.Rows {
		fmt.Printf("  %-12s %-24s %6d %6d %6d %6d %6d %10s\n",
			row.SKUCode, row.SKUName, row.Total, row.Available,
			row.Reserved, row.Loaned, row.Broken, row.TotalValue.StringFixed(2))
	}
	fmt.Println(strings.Repeat("=", 78))
}

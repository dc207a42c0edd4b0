package repl

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"stockroom/internal/app"

	"github.com/shopspring/decimal"
)

// handleNewTag runs an interactive tag creation session.
func handleNewTag(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, tagType, operator string) {
	fmt.Printf("Creating %s tag.\n", tagType)
	fmt.Println("Enter lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Println("Format per line: <sku-code> <quantity> [fifo|cheapest|priciest]")
	fmt.Println("  Example: BOLT-M8 50")
	fmt.Println("  Example: DRILL-18V 2 cheapest")
	fmt.Println("Or pick exact units: <sku-code> @ <instance-id> [instance-id...]")

	var lines []app.TagLineInput
	lineNum := 1
	for {
		fmt.Printf("  Line %d: ", lineNum)
		raw, _ := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		if strings.ToLower(raw) == "cancel" {
			fmt.Println("Tag creation cancelled.")
			return
		}
		if strings.ToLower(raw) == "done" {
			break
		}
		if raw == "" {
			continue
		}

		parts := strings.Fields(raw)
		if len(parts) < 2 {
			fmt.Println("  Invalid format. Use: <sku-code> <quantity> [fifo|cheapest|priciest]")
			continue
		}

		// Manual selection: SKU @ id id id
		if parts[1] == "@" {
			if len(parts) < 3 {
				fmt.Println("  Manual selection needs at least one instance id.")
				continue
			}
			var ids []int
			ok := true
			for _, p := range parts[2:] {
				id, err := strconv.Atoi(p)
				if err != nil {
					fmt.Printf("  Invalid instance id: %s\n", p)
					ok = false
					break
				}
				ids = append(ids, id)
			}
			if !ok {
				continue
			}
			lines = append(lines, app.TagLineInput{
				SKUCode:     strings.ToUpper(parts[0]),
				Method:      "manual",
				InstanceIDs: ids,
			})
			lineNum++
			continue
		}

		qty, err := strconv.Atoi(parts[1])
		if err != nil || qty <= 0 {
			fmt.Println("  Invalid quantity.")
			continue
		}

		method, costOrder := "", ""
		if len(parts) >= 3 {
			switch strings.ToLower(parts[2]) {
			case "fifo":
				method = "fifo"
			case "cheapest":
				method, costOrder = "cost_based", "cost_asc"
			case "priciest":
				method, costOrder = "cost_based", "cost_desc"
			default:
				fmt.Printf("  Unknown method: %s\n", parts[2])
				continue
			}
		}

		lines = append(lines, app.TagLineInput{
			SKUCode:   strings.ToUpper(parts[0]),
			Quantity:  qty,
			Method:    method,
			CostOrder: costOrder,
		})
		lineNum++
	}

	if len(lines) == 0 {
		fmt.Println("No lines entered. Tag not created.")
		return
	}

	fmt.Print("Customer (optional): ")
	customer, _ := reader.ReadString('\n')
	customer = strings.TrimSpace(customer)

	fmt.Print("Project (optional): ")
	project, _ := reader.ReadString('\n')
	project = strings.TrimSpace(project)

	dueDate := ""
	if tagType == "loaned" {
		fmt.Print("Due date (YYYY-MM-DD, optional): ")
		dueDate, _ = reader.ReadString('\n')
		dueDate = strings.TrimSpace(dueDate)
	}

	fmt.Print("Notes (optional): ")
	notes, _ := reader.ReadString('\n')
	notes = strings.TrimSpace(notes)

	tag, err := svc.CreateTag(ctx, app.CreateTagRequest{
		TagType:   tagType,
		Customer:  customer,
		Project:   project,
		DueDate:   dueDate,
		Notes:     notes,
		CreatedBy: operator,
		Lines:     lines,
	})
	if err != nil {
		fmt.Printf("[REPL] Error creating tag: %v\n", err)
		return
	}

	fmt.Printf("\nTag %s created (ID: %d)\n", tag.TagNumber, tag.ID)
	printTagDetail(tag)
}

// handleReceive runs an interactive stock receipt session.
func handleReceive(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, operator string) {
	fmt.Println("Posting a stock receipt.")
	fmt.Println("Enter lines. Type 'done' when finished, 'cancel' to abort.")
	fmt.Println("Format per line: <sku-code> <quantity> [unit-cost] [location]")
	fmt.Println("  Example: BOLT-M8 200")
	fmt.Println("  Example: DRILL-18V 4 89.50 shelf-B2")

	var lines []app.ReceiptLineInput
	lineNum := 1
	for {
		fmt.Printf("  Line %d: ", lineNum)
		raw, _ := reader.ReadString('\n')
		raw = strings.TrimSpace(raw)
		if strings.ToLower(raw) == "cancel" {
			fmt.Println("Receipt cancelled.")
			return
		}
		if strings.ToLower(raw) == "done" {
			break
		}
		if raw == "" {
			continue
		}

		parts := strings.Fields(raw)
		if len(parts) < 2 {
			fmt.Println("  Invalid format. Use: <sku-code> <quantity> [unit-cost] [location]")
			continue
		}

		qty, err := strconv.Atoi(parts[1])
		if err != nil || qty <= 0 {
			fmt.Println("  Invalid quantity.")
			continue
		}

		cost := decimal.Zero
		if len(parts) >= 3 {
			cost, err = decimal.NewFromString(parts[2])
			if err != nil || cost.IsNegative() {
				fmt.Println("  Invalid unit cost.")
				continue
			}
		}

		location := ""
		if len(parts) >= 4 {
			location = parts[3]
		}

		lines = append(lines, app.ReceiptLineInput{
			SKUCode:  strings.ToUpper(parts[0]),
			Quantity: qty,
			UnitCost: cost,
			Location: location,
		})
		lineNum++
	}

	if len(lines) == 0 {
		fmt.Println("No lines entered. Receipt not posted.")
		return
	}

	fmt.Print("Supplier (optional): ")
	supplier, _ := reader.ReadString('\n')
	supplier = strings.TrimSpace(supplier)

	fmt.Print("Date (YYYY-MM-DD, leave blank for today): ")
	date, _ := reader.ReadString('\n')
	date = strings.TrimSpace(date)

	fmt.Print("Notes (optional): ")
	notes, _ := reader.ReadString('\n')
	notes = strings.TrimSpace(notes)

	receipt, err := svc.ReceiveStock(ctx, app.ReceiveStockRequest{
		Supplier:     supplier,
		ReceivedBy:   operator,
		MovementDate: date,
		Notes:        notes,
		Lines:        lines,
	})
	if err != nil {
		fmt.Printf("[REPL] Error posting receipt: %v\n", err)
		return
	}

	fmt.Printf("\nReceipt %s posted (ID: %d)\n", receipt.ReceiptNumber, receipt.ID)
	for _, line := range receipt.Lines {
		fmt.Printf("  %4dx %-12s @ %s  %s\n", line.Quantity, line.SKUCode, line.UnitCost.StringFixed(2), line.Location)
	}
}

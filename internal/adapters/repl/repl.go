package repl

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"stockroom/internal/app"
)

// Run starts the interactive REPL loop.
// It reads commands from reader, dispatches slash commands deterministically,
// and routes natural language input through the AI agent.
func Run(ctx context.Context, svc app.ApplicationService, reader *bufio.Reader, operator string) {
	fmt.Println("Stockroom")
	fmt.Printf("Operator: %s\n", operator)
	fmt.Println("Describe a stock request to draft a tag, or use /help for commands.")
	fmt.Println(strings.Repeat("-", 70))

	errExit := fmt.Errorf("exit")

	dispatchSlash := func(input string) error {
		tokens := strings.Fields(strings.TrimPrefix(input, "/"))
		if len(tokens) == 0 {
			return nil
		}
		cmd := strings.ToLower(tokens[0])
		args := tokens[1:]

		switch cmd {
		case "stock":
			result, err := svc.GetStockLevels(ctx)
			if err != nil {
				return err
			}
			printStockLevels(result)

		case "skus":
			includeDisabled := len(args) > 0 && args[0] == "all"
			result, err := svc.ListSKUs(ctx, includeDisabled)
			if err != nil {
				return err
			}
			printSKUs(result)

		case "sku":
			if len(args) < 1 {
				fmt.Println("Usage: /sku <code>")
				return nil
			}
			sku, err := svc.GetSKU(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			printSKUDetail(sku)

		case "categories":
			result, err := svc.ListCategories(ctx)
			if err != nil {
				return err
			}
			printCategories(result)

		case "tags":
			status, tagType := "", ""
			if len(args) > 0 {
				status = strings.ToLower(args[0])
			}
			if len(args) > 1 {
				tagType = strings.ToLower(args[1])
			}
			result, err := svc.ListTags(ctx, status, tagType)
			if err != nil {
				return err
			}
			printTags(result)

		case "tag":
			if len(args) < 1 {
				fmt.Println("Usage: /tag <id-or-number>")
				return nil
			}
			tag, err := svc.GetTag(ctx, args[0])
			if err != nil {
				return err
			}
			printTagDetail(tag)

		case "new-tag":
			// Usage: /new-tag <type> — interactive line entry follows.
			if len(args) < 1 {
				fmt.Println("Usage: /new-tag <reserved|loaned|stock>")
				return nil
			}
			handleNewTag(ctx, reader, svc, strings.ToLower(args[0]), operator)

		case "receive":
			handleReceive(ctx, reader, svc, operator)

		case "fulfill":
			// Usage: /fulfill <tag-id> <consume|release>
			if len(args) < 2 {
				fmt.Println("Usage: /fulfill <tag-id> <consume|release>")
				fmt.Println("  Resolves everything the tag still holds.")
				return nil
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Printf("Invalid tag id: %s\n", args[0])
				return nil
			}
			mode := strings.ToLower(args[1])
			if mode != "consume" && mode != "release" {
				fmt.Println("Mode must be 'consume' or 'release'.")
				return nil
			}
			tag, err := svc.FulfillTag(ctx, app.FulfillTagRequest{TagID: id, Mode: mode, Actor: operator})
			if err != nil {
				return err
			}
			fmt.Printf("Tag %s resolved (%s). Status: %s\n", tag.TagNumber, mode, tag.Status)

		case "return":
			// Usage: /return <tag-id> <condition> <instance-id> [instance-id...]
			if len(args) < 3 {
				fmt.Println("Usage: /return <tag-id> <functional|needs_maintenance|broken> <instance-id> [...]")
				return nil
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Printf("Invalid tag id: %s\n", args[0])
				return nil
			}
			var instanceIDs []int
			for _, raw := range args[2:] {
				iid, err := strconv.Atoi(raw)
				if err != nil {
					fmt.Printf("Invalid instance id: %s\n", raw)
					return nil
				}
				instanceIDs = append(instanceIDs, iid)
			}
			result, err := svc.ReturnWithCondition(ctx, app.ConditionReturnRequest{
				TagID:       id,
				InstanceIDs: instanceIDs,
				Condition:   strings.ToLower(args[1]),
				Actor:       operator,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Returned %d unit(s) from tag %s.\n", len(instanceIDs), result.Tag.TagNumber)
			if result.HoldTag != nil {
				fmt.Printf("Units moved to %s hold tag %s.\n", result.HoldTag.TagType, result.HoldTag.TagNumber)
			}

		case "cancel":
			if len(args) < 1 {
				fmt.Println("Usage: /cancel <tag-id> [reason...]")
				return nil
			}
			id, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Printf("Invalid tag id: %s\n", args[0])
				return nil
			}
			reason := strings.Join(args[1:], " ")
			tag, err := svc.CancelTag(ctx, id, reason, operator)
			if err != nil {
				return err
			}
			fmt.Printf("Tag %s CANCELLED. All held units released.\n", tag.TagNumber)

		case "receipts":
			result, err := svc.ListReceipts(ctx, 20)
			if err != nil {
				return err
			}
			printReceipts(result)

		case "movements":
			sku := ""
			if len(args) > 0 {
				sku = strings.ToUpper(args[0])
			}
			result, err := svc.ListMovements(ctx, sku, 30)
			if err != nil {
				return err
			}
			printMovements(result)

		case "reconcile":
			sku := ""
			if len(args) > 0 {
				sku = strings.ToUpper(args[0])
			}
			result, err := svc.ReconcileInventory(ctx, sku)
			if err != nil {
				return err
			}
			printReconcile(result)

		case "valuation":
			report, err := svc.GetValuationReport(ctx)
			if err != nil {
				return err
			}
			printValuation(report)

		case "overdue":
			asOf := ""
			if len(args) > 0 {
				asOf = args[0]
			}
			result, err := svc.GetOverdueLoans(ctx, asOf)
			if err != nil {
				return err
			}
			printOverdue(result)

		case "help", "h":
			printHelp()

		case "exit", "quit", "e", "q":
			return errExit

		default:
			fmt.Printf("Unknown command: /%s  (type /help for all commands)\n", cmd)
		}
		return nil
	}

	for {
		fmt.Print("\n> ")
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Slash prefix → deterministic command dispatcher, no AI invoked.
		if strings.HasPrefix(input, "/") {
			if err := dispatchSlash(input); err != nil {
				if err == errExit {
					fmt.Println("Goodbye!")
					break
				}
				fmt.Printf("Error: %v\n", err)
			}
			continue
		}

		// No slash prefix → route to AI agent.
		fmt.Println("[AI] Processing...")
		accumulatedInput := input

		rounds := 0
		for {
			rounds++
			if rounds > 3 {
				fmt.Println("Could not produce a proposal. Try a slash command instead — type /help.")
				break
			}

			result, err := svc.InterpretRequest(ctx, accumulatedInput)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				break
			}

			if result.IsClarification {
				fmt.Printf("\n[AI]: %s\n", result.ClarificationMessage)
				fmt.Print("> ")
				userFollowUp, _ := reader.ReadString('\n')
				userFollowUp = strings.TrimSpace(userFollowUp)

				// Slash command during clarification — cancel AI flow and execute it.
				if strings.HasPrefix(userFollowUp, "/") {
					fmt.Println("(AI session cancelled)")
					if dispErr := dispatchSlash(userFollowUp); dispErr != nil {
						if dispErr == errExit {
							fmt.Println("Goodbye!")
							return
						}
						fmt.Printf("Error: %v\n", dispErr)
					}
					break
				}

				if userFollowUp == "" || strings.ToLower(userFollowUp) == "cancel" {
					fmt.Println("Cancelled.")
					break
				}
				accumulatedInput = fmt.Sprintf("Original request: %s\nClarification requested: %s\nUser response: %s",
					accumulatedInput, result.ClarificationMessage, userFollowUp)
				fmt.Println("[AI] Thinking...")
				continue
			}

			proposal := result.Proposal
			printProposal(proposal)

			if proposal.Confidence < 0.6 {
				fmt.Println("\nWARNING: Low confidence proposal.")
			}

			fmt.Print("\nCreate this tag? (y/n): ")
			choice, _ := reader.ReadString('\n')
			choice = strings.TrimSpace(strings.ToLower(choice))

			if choice == "y" || choice == "yes" {
				tag, err := svc.CommitProposal(ctx, *proposal, operator)
				if err != nil {
					fmt.Printf("Tag creation FAILED: %v\n", err)
				} else {
					fmt.Printf("Tag %s created.\n", tag.TagNumber)
				}
			} else {
				fmt.Println("Cancelled.")
			}
			break
		}
	}
}

func printHelp() {
	fmt.Println(`
Commands:
  /stock                      Show inventory counters for all SKUs
  /skus [all]                 List active SKUs (all includes disabled)
  /sku <code>                 Show one SKU with cost and bundle details
  /categories                 List categories
  /tags [status] [type]       List tags, optionally filtered
  /tag <id-or-number>         Show one tag with its held instances
  /new-tag <type>             Create a tag interactively (reserved|loaned|stock)
  /receive                    Post a stock receipt interactively
  /fulfill <id> <mode>        Resolve a tag fully (consume|release)
  /return <id> <cond> <inst>  Return loaned units with a condition report
  /cancel <id> [reason]       Cancel a tag and release its holds
  /receipts                   List recent receipts
  /movements [sku]            List recent stock movements
  /reconcile [sku]            Rebuild inventory counters from ground truth
  /valuation                  Inventory value per category
  /overdue [as-of]            Active loans past their due date
  /exit                       Quit

Anything without a leading slash is sent to the AI agent, which drafts a
tag proposal for your approval. Nothing is committed without a 'y'.`)
}

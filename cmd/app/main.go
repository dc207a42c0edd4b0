package main

import (
	"bufio"
	"context"
	"log"
	"os"

	"stockroom/internal/adapters/cli"
	"stockroom/internal/adapters/repl"
	"stockroom/internal/ai"
	"stockroom/internal/app"
	"stockroom/internal/core"
	"stockroom/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	sequences := core.NewSequenceService(pool)
	movements := core.NewMovementLog(pool)
	rules := core.NewRuleEngine(pool)
	catalogService := core.NewCatalogService(pool)
	receiptService := core.NewReceiptService(pool, sequences, movements)
	tagService := core.NewTagService(pool, sequences, rules, movements)
	inventoryService := core.NewInventoryService(pool)
	reportingService := core.NewReportingService(pool)
	userService := core.NewUserService(pool)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set")
	}
	agent := ai.NewAgent(apiKey)

	svc := app.NewAppService(pool, catalogService, receiptService, tagService,
		inventoryService, reportingService, userService, movements, agent)

	operator := os.Getenv("STOCKROOM_OPERATOR")
	if operator == "" {
		operator = "cli"
	}

	if len(os.Args) > 1 {
		cli.Run(ctx, svc, os.Args[1:], operator)
		return
	}

	repl.Run(ctx, svc, bufio.NewReader(os.Stdin), operator)
}

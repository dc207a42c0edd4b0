package core_test

import (
	"strings"
	"testing"

	"stockroom/internal/core"
)

func TestTagProposal_NormalizeCleansModelOutput(t *testing.T) {
	p := core.TagProposal{
		TagType:  "  Loaned ",
		Customer: " Patel Builds ",
		DueDate:  " 2026-09-15 ",
		Lines: []core.TagProposalLine{
			{SKUCode: " drill-18v ", Quantity: 1, SelectionMethod: " FIFO "},
			{SKUCode: "PLY-18", Quantity: 2},
		},
	}
	p.Normalize()

	if p.TagType != "loaned" {
		t.Errorf("TagType %q, want loaned", p.TagType)
	}
	if p.Customer != "Patel Builds" || p.DueDate != "2026-09-15" {
		t.Errorf("Fields not trimmed: customer=%q due=%q", p.Customer, p.DueDate)
	}
	if p.Lines[0].SelectionMethod != "fifo" {
		t.Errorf("Selection method %q, want fifo", p.Lines[0].SelectionMethod)
	}
	// A blank method defaults to fifo rather than failing validation.
	if p.Lines[1].SelectionMethod != "fifo" {
		t.Errorf("Blank method should default to fifo, got %q", p.Lines[1].SelectionMethod)
	}
}

func TestTagProposal_Validate(t *testing.T) {
	valid := func() core.TagProposal {
		return core.TagProposal{
			TagType: "reserved",
			Lines: []core.TagProposalLine{
				{SKUCode: "PLY-18", Quantity: 2, SelectionMethod: "fifo"},
				{SKUCode: "STUD-2X4", Quantity: 1, SelectionMethod: "cost_based"},
			},
		}
	}
	if err := (&core.TagProposal{
		TagType: "loaned",
		DueDate: "2026-09-15",
		Lines:   valid().Lines,
	}).Validate(); err != nil {
		t.Errorf("Valid proposal rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*core.TagProposal)
		wantErr string
	}{
		{"unknown tag type", func(p *core.TagProposal) { p.TagType = "borrowed" }, "unknown tag type"},
		{"no lines", func(p *core.TagProposal) { p.Lines = nil }, "no lines"},
		{"bad due date", func(p *core.TagProposal) { p.DueDate = "15/09/2026" }, "invalid due date"},
		{"missing sku", func(p *core.TagProposal) { p.Lines[0].SKUCode = "" }, "missing sku"},
		{"duplicate sku", func(p *core.TagProposal) { p.Lines[1].SKUCode = p.Lines[0].SKUCode }, "duplicate sku"},
		{"zero quantity", func(p *core.TagProposal) { p.Lines[0].Quantity = 0 }, "must be positive"},
		{"negative quantity", func(p *core.TagProposal) { p.Lines[1].Quantity = -3 }, "must be positive"},
		{"manual selection", func(p *core.TagProposal) { p.Lines[0].SelectionMethod = "manual" }, "fifo or cost_based"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid()
			tc.mutate(&p)
			err := p.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTagProposal_ToRequest(t *testing.T) {
	p := core.TagProposal{
		TagType:  "loaned",
		Customer: "framing crew",
		Project:  "site-7",
		DueDate:  "2026-09-15",
		Notes:    "two drills for the week",
		Lines: []core.TagProposalLine{
			{SKUCode: "DRILL-18V", Quantity: 2, SelectionMethod: "fifo"},
			{SKUCode: "PLY-18", Quantity: 4, SelectionMethod: "cost_based"},
		},
	}
	req := p.ToRequest("alice")

	if req.TagType != core.TagLoaned || req.CreatedBy != "alice" {
		t.Errorf("Header not carried over: %+v", req)
	}
	if req.Customer != "framing crew" || req.DueDate != "2026-09-15" {
		t.Errorf("Fields not carried over: %+v", req)
	}
	if len(req.Lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(req.Lines))
	}
	if req.Lines[0].SKUCode != "DRILL-18V" || req.Lines[0].Quantity != 2 || req.Lines[0].Method != core.SelectFIFO {
		t.Errorf("Line 0 wrong: %+v", req.Lines[0])
	}
	if req.Lines[1].Method != core.SelectCostBased {
		t.Errorf("Line 1 method %s, want cost_based", req.Lines[1].Method)
	}
	// Proposals never carry explicit instance ids.
	for i, line := range req.Lines {
		if line.InstanceIDs != nil {
			t.Errorf("Line %d carries instance ids: %v", i, line.InstanceIDs)
		}
	}
}

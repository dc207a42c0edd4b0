package core

import (
	"fmt"
	"strings"
	"time"
)

// TagProposalLine is a single SKU line in an AI-generated tag proposal.
type TagProposalLine struct {
	SKUCode         string `json:"sku_code" jsonschema_description:"The exact SKU code from the provided catalog"`
	Quantity        int    `json:"quantity" jsonschema_description:"How many units to allocate (always positive)"`
	SelectionMethod string `json:"selection_method" jsonschema_description:"One of 'fifo' or 'cost_based'. Use 'fifo' unless the user asks for cheapest or most expensive units."`
}

// TagProposal is the AI-generated proposal for creating a tag. It is never
// committed without explicit human approval and a full Validate pass.
type TagProposal struct {
	TagType    string            `json:"tag_type" jsonschema_description:"One of 'reserved', 'loaned', 'broken', 'imperfect', 'stock'. Reservations hold materials for a job; loans hand tools to a customer or crew."`
	Customer   string            `json:"customer" jsonschema_description:"The customer or crew the hold is for, if mentioned"`
	Project    string            `json:"project" jsonschema_description:"The project or job reference, if mentioned"`
	DueDate    string            `json:"due_date" jsonschema_description:"Expected return date in YYYY-MM-DD format, or empty if not mentioned. Only loans normally have one."`
	Notes      string            `json:"notes" jsonschema_description:"A brief summary of the request in the user's words"`
	Confidence float64           `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning  string            `json:"reasoning" jsonschema_description:"Explanation for the proposed tag"`
	Lines      []TagProposalLine `json:"lines" jsonschema_description:"One entry per SKU to allocate"`
}

// ClarificationRequest is returned by the AI when the input is ambiguous or
// missing critical information.
type ClarificationRequest struct {
	Message string `json:"message" jsonschema_description:"A message asking the user for missing details (e.g. 'Which SKU and how many units should be reserved?')."`
}

// AgentResponse wraps the AI output to handle branching between a valid
// TagProposal or a ClarificationRequest. The AI must return exactly one.
type AgentResponse struct {
	IsClarificationRequest bool                  `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if you lack enough information to create a confident proposal."`
	Clarification          *ClarificationRequest `json:"clarification,omitempty" jsonschema_description:"Required if is_clarification_request is true."`
	Proposal               *TagProposal          `json:"proposal,omitempty" jsonschema_description:"Required if is_clarification_request is false."`
}

// Normalize cleans up model output before validation: trims whitespace and
// lowercases the enumerated fields.
func (p *TagProposal) Normalize() {
	p.TagType = strings.ToLower(strings.TrimSpace(p.TagType))
	p.Customer = strings.TrimSpace(p.Customer)
	p.Project = strings.TrimSpace(p.Project)
	p.DueDate = strings.TrimSpace(p.DueDate)
	for i := range p.Lines {
		p.Lines[i].SKUCode = strings.TrimSpace(p.Lines[i].SKUCode)
		p.Lines[i].SelectionMethod = strings.ToLower(strings.TrimSpace(p.Lines[i].SelectionMethod))
		if p.Lines[i].SelectionMethod == "" {
			p.Lines[i].SelectionMethod = string(SelectFIFO)
		}
	}
}

// Validate checks structural validity. It does not touch the database: SKU
// existence and stock levels are checked by the engine at commit time.
func (p *TagProposal) Validate() error {
	if !ValidTagType(p.TagType) {
		return fmt.Errorf("unknown tag type %q", p.TagType)
	}
	if len(p.Lines) == 0 {
		return fmt.Errorf("proposal has no lines")
	}
	if p.DueDate != "" {
		if _, err := time.Parse("2006-01-02", p.DueDate); err != nil {
			return fmt.Errorf("invalid due date %q", p.DueDate)
		}
	}
	seen := make(map[string]bool, len(p.Lines))
	for i, line := range p.Lines {
		if line.SKUCode == "" {
			return fmt.Errorf("line %d: missing sku code", i+1)
		}
		if seen[line.SKUCode] {
			return fmt.Errorf("line %d: duplicate sku %s", i+1, line.SKUCode)
		}
		seen[line.SKUCode] = true
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d: quantity must be positive, got %d", i+1, line.Quantity)
		}
		switch SelectionMethod(line.SelectionMethod) {
		case SelectFIFO, SelectCostBased:
		default:
			// Manual selection needs concrete instance ids, which the model
			// cannot know. Proposals are quantity-based only.
			return fmt.Errorf("line %d: selection method must be fifo or cost_based, got %q", i+1, line.SelectionMethod)
		}
	}
	return nil
}

// ToRequest converts a validated proposal into an engine request.
func (p *TagProposal) ToRequest(createdBy string) CreateTagRequest {
	req := CreateTagRequest{
		TagType:   TagType(p.TagType),
		Customer:  p.Customer,
		Project:   p.Project,
		DueDate:   p.DueDate,
		Notes:     p.Notes,
		CreatedBy: createdBy,
	}
	for _, line := range p.Lines {
		req.Lines = append(req.Lines, AllocationInput{
			SKUCode:  line.SKUCode,
			Quantity: line.Quantity,
			Method:   SelectionMethod(line.SelectionMethod),
		})
	}
	return req
}

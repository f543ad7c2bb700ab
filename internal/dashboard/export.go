package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gwi.com/botstudio/internal/models"
)

type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int      `json:"price"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular,omitempty"`
}

// FormatPrice renders a monthly price the way the plan cards show it.
func (p Plan) FormatPrice() string {
	if p.Price == 0 {
		return "Free"
	}
	return fmt.Sprintf("$%d/month", p.Price)
}

type Invoice struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
}

const CurrentPlanID = "professional"

var plans = []Plan{
	{
		ID: "starter", Name: "Starter", Price: 0,
		Description: "Perfect for getting started",
		Features:    []string{"1,000 API calls/month", "1 GB storage", "Email support", "Basic analytics", "1 team member"},
	},
	{
		ID: "professional", Name: "Professional", Price: 49, Popular: true,
		Description: "Best for growing businesses",
		Features:    []string{"10,000 API calls/month", "10 GB storage", "Priority support", "Advanced analytics", "5 team members", "Custom models"},
	},
	{
		ID: "enterprise", Name: "Enterprise", Price: 199,
		Description: "For large organizations",
		Features:    []string{"Unlimited API calls", "100 GB storage", "24/7 phone support", "Custom analytics", "Unlimited team members", "Custom integrations", "Dedicated account manager"},
	},
}

var invoices = []Invoice{
	{ID: "inv_001", Date: "2024-01-15", Amount: 49.00, Status: "paid", Description: "Professional Plan - January 2024"},
	{ID: "inv_002", Date: "2023-12-15", Amount: 49.00, Status: "paid", Description: "Professional Plan - December 2023"},
	{ID: "inv_003", Date: "2023-11-15", Amount: 49.00, Status: "paid", Description: "Professional Plan - November 2023"},
}

func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// CurrentPlan falls back to the professional plan for an unknown id.
func CurrentPlan(id string) Plan {
	for _, p := range plans {
		if p.ID == id {
			return p
		}
	}
	return plans[1]
}

func Invoices() []Invoice {
	out := make([]Invoice, len(invoices))
	copy(out, invoices)
	return out
}

func FindInvoice(id string) (Invoice, bool) {
	for _, inv := range invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return Invoice{}, false
}

func InvoiceFileName(inv Invoice) string {
	return "invoice-" + inv.ID + ".json"
}

// ExportInvoice writes inv as indented JSON.
func (s *Service) ExportInvoice(w io.Writer, inv Invoice) error {
	if err := writeJSON(w, inv); err != nil {
		return s.fail("Failed to download invoice", err)
	}
	s.success("Invoice downloaded")
	return nil
}

type conversationExport struct {
	ExportedAt   time.Time            `json:"exportedAt"`
	SystemPrompt string               `json:"systemPrompt,omitempty"`
	Messages     []models.ChatMessage `json:"messages"`
}

// ExportConversation writes the playground conversation as indented JSON.
func (s *Service) ExportConversation(w io.Writer, systemPrompt string, messages []models.ChatMessage) error {
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	doc := conversationExport{
		ExportedAt:   time.Now().UTC(),
		SystemPrompt: systemPrompt,
		Messages:     messages,
	}
	if err := writeJSON(w, doc); err != nil {
		return s.fail("Failed to export conversation", err)
	}
	s.success("Conversation exported")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

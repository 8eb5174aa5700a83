package enrich

import (
	"fmt"
	"strings"
)

// comprehensiveSystemPrompt asks for all enrichment fields in one call to
// minimize round trips.
const comprehensiveSystemPrompt = `You are an expert email assistant that analyzes emails and extracts structured metadata.

Respond with a single JSON object containing:
- "category": one of Work, Personal, Finance, Shopping, Travel, Social, Newsletters, Spam
- "priority": one of Low, Medium, High
- "priority_reason": one sentence explaining the priority
- "summary": a concise summary of the email (1-3 sentences)
- "action_items": an array of action item strings (empty array if none)
- "contact_info": an object of contact details found in the email, such as "name", "email", "phone" (empty object if none)

Respond ONLY with the JSON object, no additional text.`

func comprehensivePrompt(content string) string {
	return fmt.Sprintf("Analyze this email:\n\n%s", content)
}

const categorySystemPrompt = `Classify the email into exactly one of these categories: Work, Personal, Finance, Shopping, Travel, Social, Newsletters, Spam.
Respond with only the category name.`

const prioritySystemPrompt = `Rate the email's priority as exactly one of: Low, Medium, High.
Respond with the priority on the first line, followed by a one-sentence explanation on the next line.`

const summarySystemPrompt = `Summarize the email in 1-3 sentences. Respond with only the summary.`

const actionItemsSystemPrompt = `Extract action items from the email.
Respond with a JSON array of strings, e.g. ["Reply to Bob", "Book the flight"]. Respond with [] if there are none.`

const contactInfoSystemPrompt = `Extract contact information from the email (name, email address, phone number, company, etc.).
Respond with a JSON object of string values, e.g. {"name": "Jane Doe", "phone": "555-0100"}. Respond with {} if there is none.`

func fieldPrompt(content string) string {
	return fmt.Sprintf("Email:\n\n%s", strings.TrimSpace(content))
}

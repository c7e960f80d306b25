package canvas

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// BusinessUser is a business owner's profile. The profile fields are static
// context; KeyInsights is the living memory the extraction pipeline mutates.
type BusinessUser struct {
	Token        string           `json:"token"`
	Role         string           `json:"role"`
	OwnerName    string           `json:"owner_name"`
	BusinessName string           `json:"business_name"`
	Sector       string           `json:"sector"`
	Challenges   []string         `json:"challenges"`
	Goals        []string         `json:"goals"`
	KeyInsights  BusinessInsights `json:"key_insights"`
}

// NewUser creates a user with a fresh token and empty insights.
func NewUser(ownerName, businessName, sector string) *BusinessUser {
	return &BusinessUser{
		Token:        uuid.New().String(),
		Role:         "user",
		OwnerName:    ownerName,
		BusinessName: businessName,
		Sector:       sector,
		Challenges:   []string{},
		Goals:        []string{},
		KeyInsights:  NewInsights(),
	}
}

// Normalize fills defaults on a user decoded from an external source.
func (u *BusinessUser) Normalize() {
	if u.Token == "" {
		u.Token = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = "user"
	}
	if u.Challenges == nil {
		u.Challenges = []string{}
	}
	if u.Goals == nil {
		u.Goals = []string{}
	}
	if u.KeyInsights.CanvasState == nil {
		u.KeyInsights = NewInsights()
	}
}

// ContextString renders the profile and the shared living context as a
// prompt fragment for the advisor's system message.
func (u *BusinessUser) ContextString() string {
	var canvasStr strings.Builder
	hasCanvasData := false
	for _, block := range Blocks {
		items := u.KeyInsights.CanvasState[block]
		if len(items) == 0 {
			continue
		}
		hasCanvasData = true
		fmt.Fprintf(&canvasStr, "- %s:\n", readableBlock(block))
		for _, item := range items {
			fmt.Fprintf(&canvasStr, "  - %s\n", item)
		}
	}
	canvas := canvasStr.String()
	if !hasCanvasData {
		canvas = "(No business model facts recorded yet)\n"
	}

	return fmt.Sprintf(`CLIENT PROFILE:
Name: %s (your client)
Business: %s
Sector: %s
Current Challenges: %s
Business Goals: %s

=== SHARED LIVING CONTEXT (LONG-TERM MEMORY) ===
This section contains facts agreed upon with ALL other experts.

[BUSINESS MODEL STATE]
%s
[CONSTRAINTS & BOUNDARIES]
%s
[USER PREFERENCES]
%s
[PENDING TOPICS / OPEN QUESTIONS]
%s
Note: You are meeting with %s for a business consultation.
They are your established client and you should know their name.`,
		u.OwnerName,
		u.BusinessName,
		u.Sector,
		joinOrNone(u.Challenges, ", "),
		joinOrNone(u.Goals, ", "),
		canvas,
		bulletList(u.KeyInsights.Constraints),
		bulletList(u.KeyInsights.Preferences),
		bulletList(u.KeyInsights.PendingTopics),
		firstName(u.OwnerName),
	)
}

func readableBlock(block string) string {
	words := strings.Split(block, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(None)\n"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return b.String()
}

func joinOrNone(items []string, sep string) string {
	if len(items) == 0 {
		return "(None)"
	}
	return strings.Join(items, sep)
}

func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}

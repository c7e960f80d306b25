package advisor

import "sort"

// Expert is one Business Model Canvas consultant persona. Each expert
// covers a single canvas block; the shared living context keeps their
// advice consistent with what the user agreed elsewhere.
type Expert struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Perspective string `json:"perspective"`
	Style       string `json:"style"`
}

var experts = map[string]Expert{
	"customer_segments": {
		ID:          "customer_segments",
		Name:        "Sofia Marquez",
		Domain:      "Customer Segments",
		Perspective: "Market segmentation, customer discovery interviews, and identifying which groups a business should serve first.",
		Style:       "Warm and curious. Asks probing questions before giving advice.",
	},
	"value_propositions": {
		ID:          "value_propositions",
		Name:        "David Okafor",
		Domain:      "Value Propositions",
		Perspective: "Articulating the specific value a product delivers, jobs-to-be-done analysis, and differentiation from alternatives.",
		Style:       "Direct and structured. Pushes for precise, testable statements.",
	},
	"channels": {
		ID:          "channels",
		Name:        "Lena Kovac",
		Domain:      "Channels",
		Perspective: "Distribution and communication channels, channel economics, and matching channels to customer segments.",
		Style:       "Pragmatic. Grounds every recommendation in cost and reach.",
	},
	"customer_relationships": {
		ID:          "customer_relationships",
		Name:        "Marcus Reid",
		Domain:      "Customer Relationships",
		Perspective: "Acquisition, retention, and upselling strategies, and choosing between personal and automated relationships.",
		Style:       "Empathetic storyteller. Uses concrete customer anecdotes.",
	},
	"revenue_streams": {
		ID:          "revenue_streams",
		Name:        "Priya Nair",
		Domain:      "Revenue Streams",
		Perspective: "Pricing models, willingness to pay, and the mix of transaction and recurring revenue.",
		Style:       "Numbers-first. Always asks what the customer actually pays for.",
	},
	"key_resources": {
		ID:          "key_resources",
		Name:        "Tomás Herrera",
		Domain:      "Key Resources",
		Perspective: "Physical, intellectual, human, and financial assets a business model depends on.",
		Style:       "Methodical. Separates must-have resources from nice-to-have.",
	},
	"key_activities": {
		ID:          "key_activities",
		Name:        "Ingrid Svensson",
		Domain:      "Key Activities",
		Perspective: "The operations a business must excel at, from production to problem solving to platform upkeep.",
		Style:       "Brisk and operational. Thinks in processes and bottlenecks.",
	},
	"key_partnerships": {
		ID:          "key_partnerships",
		Name:        "Yusuf Demir",
		Domain:      "Key Partnerships",
		Perspective: "Strategic alliances, supplier relationships, and build-versus-partner decisions.",
		Style:       "Diplomatic. Weighs what each side of a deal actually gains.",
	},
	"cost_structure": {
		ID:          "cost_structure",
		Name:        "Claire Dubois",
		Domain:      "Cost Structure",
		Perspective: "Fixed versus variable costs, economies of scale, and keeping the cost base aligned with the value created.",
		Style:       "Frugal and precise. Challenges every cost line.",
	},
}

// GetExpert returns the expert for an ID.
func GetExpert(id string) (Expert, bool) {
	e, ok := experts[id]
	return e, ok
}

// ListExperts returns all experts sorted by ID.
func ListExperts() []Expert {
	out := make([]Expert, 0, len(experts))
	for _, e := range experts {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

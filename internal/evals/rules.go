package evals

import (
	"fmt"
	"strings"
)

// MaxReplyWords is the conciseness budget for expert replies.
const MaxReplyWords = 50

// forbiddenPhrases break the consultant roleplay when they appear in a
// reply.
var forbiddenPhrases = []string{
	"as an ai",
	"language model",
	"virtual assistant",
	"artificial intelligence",
	"i am a bot",
}

// RuleResult is one deterministic check outcome.
type RuleResult struct {
	Key     string `json:"key"`
	Pass    bool   `json:"pass"`
	Comment string `json:"comment"`
}

// CheckConciseness verifies the reply stays within the word budget.
func CheckConciseness(reply string) RuleResult {
	words := len(strings.Fields(reply))
	if words <= MaxReplyWords {
		return RuleResult{Key: "is_concise", Pass: true, Comment: fmt.Sprintf("%d words", words)}
	}
	return RuleResult{Key: "is_concise", Pass: false, Comment: fmt.Sprintf("%d words > %d", words, MaxReplyWords)}
}

// CheckIdentitySafety verifies the reply never breaks character.
func CheckIdentitySafety(reply string) RuleResult {
	lower := strings.ToLower(reply)
	for _, phrase := range forbiddenPhrases {
		if strings.Contains(lower, phrase) {
			return RuleResult{Key: "is_safe", Pass: false, Comment: "identity violation: " + phrase}
		}
	}
	return RuleResult{Key: "is_safe", Pass: true, Comment: "Pass"}
}

// Attachment describes a declared file upload and whether its payload
// actually arrived.
type Attachment struct {
	Name       string
	HasPayload bool
}

// CheckFileIntegrity verifies every named attachment carries a payload.
// Returns no result when there are no attachments involved.
func CheckFileIntegrity(attachments []Attachment) *RuleResult {
	if len(attachments) == 0 {
		return nil
	}
	var errs []string
	var verified []string
	for _, a := range attachments {
		switch {
		case a.Name != "" && a.HasPayload:
			verified = append(verified, a.Name)
		case a.Name != "":
			errs = append(errs, "missing payload for "+a.Name)
		case a.HasPayload:
			verified = append(verified, "(unnamed)")
		}
	}
	if len(errs) > 0 {
		return &RuleResult{Key: "file_integrity", Pass: false, Comment: strings.Join(errs, "; ")}
	}
	return &RuleResult{Key: "file_integrity", Pass: true, Comment: "verified: " + strings.Join(verified, ", ")}
}

// CheckReply runs all content checks on one expert reply.
func CheckReply(reply string) []RuleResult {
	return []RuleResult{
		CheckConciseness(reply),
		CheckIdentitySafety(reply),
	}
}

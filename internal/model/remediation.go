package model

import (
	"fmt"
	"time"
)

// RemediationAction is what an editor did about a queued claim
type RemediationAction string

const (
	ActionVerified  RemediationAction = "verified"  // Claim verified as accurate
	ActionUpdated   RemediationAction = "updated"   // Claim text corrected
	ActionFlagged   RemediationAction = "flagged"   // Needs further review
	ActionDismissed RemediationAction = "dismissed" // Contradictions were false positives
)

// RemediationActions lists every valid action
var RemediationActions = []RemediationAction{ActionVerified, ActionUpdated, ActionFlagged, ActionDismissed}

// ParseRemediationAction validates an action name
func ParseRemediationAction(s string) (RemediationAction, error) {
	for _, a := range RemediationActions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", Invalid("unknown remediation action %q (valid: verified, updated, flagged, dismissed)", s)
}

// Remediation is one recorded triage action
type Remediation struct {
	ID           string            `json:"id"`
	ClaimID      string            `json:"claim_id"`
	Action       RemediationAction `json:"action"`
	Editor       string            `json:"editor,omitempty"`
	PreviousText string            `json:"previous_text,omitempty"`
	NewText      string            `json:"new_text,omitempty"`
	Note         string            `json:"note,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

func (r Remediation) String() string {
	return fmt.Sprintf("%s %s on %s at %s", r.ID, r.Action, r.ClaimID, r.Timestamp.Format(time.RFC3339))
}

// TriageStats summarizes the remediation log
type TriageStats struct {
	TotalRemediations     int                       `json:"total_remediations"`
	RemediationsByAction  map[RemediationAction]int `json:"remediations_by_action"`
	VulnerableClaimsCount int                       `json:"vulnerable_claims_count"`
	Timestamp             time.Time                 `json:"timestamp"`
}

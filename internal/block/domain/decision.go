package domain

// BlockDecision is the outcome of matching one request against the
// installed rules. The zero value means allowed.
type BlockDecision struct {
	Blocked   bool   `json:"blocked"`
	RuleID    int    `json:"rule_id,omitempty"`
	URLFilter string `json:"url_filter,omitempty"`
	Site      string `json:"site,omitempty"` // registrable domain of the request host
}

// AllowDecision returns a not-blocked decision.
func AllowDecision() BlockDecision { return BlockDecision{} }

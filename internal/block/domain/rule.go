package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultRuleCapacity is the size of the addressable rule id range [1, N].
const DefaultRuleCapacity = 100

// RuleAction is what the engine does with a matching request.
type RuleAction string

const RuleActionBlock RuleAction = "block"

// ResourceType classifies a request the way the rule engine filters it.
type ResourceType string

const (
	ResourceMainFrame      ResourceType = "main_frame"
	ResourceSubFrame       ResourceType = "sub_frame"
	ResourceXMLHTTPRequest ResourceType = "xmlhttprequest"
	ResourceMedia          ResourceType = "media"
	ResourceImage          ResourceType = "image"
	ResourceScript         ResourceType = "script"
	ResourceOther          ResourceType = "other"
)

// BlockedResourceTypes is the fixed set every generated rule applies to.
var BlockedResourceTypes = []ResourceType{
	ResourceMainFrame,
	ResourceSubFrame,
	ResourceXMLHTTPRequest,
	ResourceMedia,
	ResourceImage,
	ResourceScript,
}

// ParseResourceType converts a string into a ResourceType (case-insensitive).
func ParseResourceType(s string) (ResourceType, error) {
	switch rt := ResourceType(strings.ToLower(strings.TrimSpace(s))); rt {
	case ResourceMainFrame, ResourceSubFrame, ResourceXMLHTTPRequest,
		ResourceMedia, ResourceImage, ResourceScript, ResourceOther:
		return rt, nil
	default:
		return "", fmt.Errorf("unsupported ResourceType: %q", s)
	}
}

// Rule is a declarative blocking directive. URLFilter is matched as a
// substring of the request URL.
type Rule struct {
	ID            int            `json:"id"`
	Priority      int            `json:"priority"`
	Action        RuleAction     `json:"action"`
	URLFilter     string         `json:"url_filter"`
	ResourceTypes []ResourceType `json:"resource_types"`
}

// NewBlockRule builds a priority-1 block rule over BlockedResourceTypes.
func NewBlockRule(id int, filter string) Rule {
	return Rule{
		ID:            id,
		Priority:      1,
		Action:        RuleActionBlock,
		URLFilter:     filter,
		ResourceTypes: append([]ResourceType(nil), BlockedResourceTypes...),
	}
}

// Validate checks the rule against an id range of [1, capacity].
func (r Rule) Validate(capacity int) error {
	if r.ID < 1 || r.ID > capacity {
		return fmt.Errorf("%w: id %d outside [1, %d]", ErrInvalidRule, r.ID, capacity)
	}
	if r.Priority < 1 {
		return fmt.Errorf("%w: rule %d priority must be >= 1", ErrInvalidRule, r.ID)
	}
	if r.Action != RuleActionBlock {
		return fmt.Errorf("%w: rule %d unsupported action %q", ErrInvalidRule, r.ID, r.Action)
	}
	if r.URLFilter == "" {
		return fmt.Errorf("%w: rule %d url filter must not be empty", ErrInvalidRule, r.ID)
	}
	for _, c := range r.URLFilter {
		if c > unicode.MaxASCII || unicode.IsSpace(c) || unicode.IsControl(c) {
			return fmt.Errorf("%w: rule %d url filter %q must be printable ASCII without spaces", ErrInvalidRule, r.ID, r.URLFilter)
		}
	}
	if len(r.ResourceTypes) == 0 {
		return fmt.Errorf("%w: rule %d has no resource types", ErrInvalidRule, r.ID)
	}
	for _, rt := range r.ResourceTypes {
		if _, err := ParseResourceType(string(rt)); err != nil {
			return fmt.Errorf("%w: rule %d: %v", ErrInvalidRule, r.ID, err)
		}
	}
	return nil
}

// AppliesTo reports whether the rule covers requests of type rt.
func (r Rule) AppliesTo(rt ResourceType) bool {
	for _, t := range r.ResourceTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// RuleUpdate is one batched change to the installed rule set. Removals are
// applied before additions.
type RuleUpdate struct {
	Add       []Rule
	RemoveIDs []int
}

// RuleIDRange returns every id in [1, capacity].
func RuleIDRange(capacity int) []int {
	if capacity < 1 {
		return nil
	}
	ids := make([]int, capacity)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// OverflowPolicy decides what happens when more entries are active than
// the rule capacity allows.
type OverflowPolicy uint8

const (
	// OverflowReject fails the build with ErrCapacityExceeded.
	OverflowReject OverflowPolicy = iota
	// OverflowTruncate keeps the first capacity entries in list order.
	OverflowTruncate
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowReject:
		return "reject"
	case OverflowTruncate:
		return "truncate"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", p)
	}
}

// ParseOverflowPolicy accepts "reject" or "truncate" (case-insensitive).
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject":
		return OverflowReject, nil
	case "truncate":
		return OverflowTruncate, nil
	default:
		return 0, fmt.Errorf("unsupported OverflowPolicy: %q", s)
	}
}

// BuildRules projects active entries onto rules with ids 1..n in order.
// The second return value lists entries dropped by OverflowTruncate.
func BuildRules(active []string, capacity int, policy OverflowPolicy) ([]Rule, []string, error) {
	var dropped []string
	if len(active) > capacity {
		if policy != OverflowTruncate {
			return nil, nil, fmt.Errorf("%w: %d active entries, capacity %d", ErrCapacityExceeded, len(active), capacity)
		}
		dropped = append(dropped, active[capacity:]...)
		active = active[:capacity]
	}
	if len(active) == 0 {
		return nil, dropped, nil
	}
	rules := make([]Rule, 0, len(active))
	for i, site := range active {
		rules = append(rules, NewBlockRule(i+1, site))
	}
	return rules, dropped, nil
}

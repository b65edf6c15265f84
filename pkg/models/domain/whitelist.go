package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

type Whitelist struct {
	Entries []WhitelistEntry `json:"Whitelist"`
}

// WhitelistEntry lists the resources exempted from one rule.
type WhitelistEntry struct {
	RuleIdentifier string                 `json:"ruleIdentifier"`
	Resources      []WhitelistedResources `json:"whitelistedResources"`
}

type WhitelistedResources struct {
	ResourceIDs    []string `json:"resourceIds"`
	ApprovalTicket string   `json:"approvalTicket"`
	ValidUntil     Date     `json:"validUntil"`
}

// Applies reports whether the exemption covers resourceID on the given day.
// ValidUntil is inclusive and an exemption without an approval ticket never applies.
func (r WhitelistedResources) Applies(resourceID string, today Date) bool {
	if strings.TrimSpace(r.ApprovalTicket) == "" {
		return false
	}
	if r.ValidUntil.Before(today) {
		return false
	}
	return slices.Contains(r.ResourceIDs, resourceID)
}

// Exempts reports whether any entry targeting one of the rule identifiers
// (ARN or name) exempts the resource today.
func (w *Whitelist) Exempts(ruleIdentifiers []string, resourceID string, today Date) bool {
	if w == nil {
		return false
	}
	for _, entry := range w.Entries {
		if !slices.Contains(ruleIdentifiers, entry.RuleIdentifier) {
			continue
		}
		for _, res := range entry.Resources {
			if res.Applies(resourceID, today) {
				return true
			}
		}
	}
	return false
}

// WhitelistState is the value of the WhitelistedComplianceType record field.
type WhitelistState string

const (
	WhitelistApplied    WhitelistState = "True"
	WhitelistNotApplied WhitelistState = "False"
	WhitelistError      WhitelistState = "Error"
)

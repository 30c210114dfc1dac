package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const legacyFeePrefix = "annualFee"

// UnmarshalJSON decodes a member and folds legacy per-year keys
// ("annualFee2024": 500) into AnnualFees. Explicit annualFees entries win.
func (m *Member) UnmarshalJSON(b []byte) error {
	type plain Member
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		rest, ok := strings.CutPrefix(key, legacyFeePrefix)
		if !ok {
			continue
		}
		year, err := strconv.Atoi(rest)
		if err != nil || year <= 0 {
			continue
		}
		var amount Money
		if err := json.Unmarshal(val, &amount); err != nil {
			return fmt.Errorf("member %d %s: %w", p.ID, key, err)
		}
		if p.AnnualFees == nil {
			p.AnnualFees = make(map[int]Money)
		}
		if _, exists := p.AnnualFees[year]; !exists {
			p.AnnualFees[year] = amount
		}
	}
	if p.AnnualFees == nil {
		p.AnnualFees = make(map[int]Money)
	}
	*m = Member(p)
	return nil
}

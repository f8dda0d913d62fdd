package sessions

import (
	"encoding/json"
	"fmt"
)

// TerminalOffset is the cursor sentinel the vendor returns on the last page
// of the history feed.
const TerminalOffset = "last_page"

// ActivityPage is one decoded page of the history feed: the raw session batch
// and the cursor for the page after it.
type ActivityPage struct {
	Sessions   []json.RawMessage
	NextOffset string
}

// DecodeActivityPage extracts the session batch and next-page cursor from a
// raw history response. Two envelope shapes are in the wild: the rolling feed
// nests sessions directly under charging_activity, the monthly feed nests
// them one level deeper under month_info. A response matching neither shape
// decodes to an empty page, which ends pagination.
func DecodeActivityPage(raw json.RawMessage) (ActivityPage, error) {
	var env struct {
		ChargingActivity *struct {
			Sessions   []json.RawMessage `json:"sessions"`
			PageOffset string            `json:"page_offset"`
		} `json:"charging_activity"`
		ChargingActivityMonthly *struct {
			MonthInfo []struct {
				Sessions []json.RawMessage `json:"sessions"`
			} `json:"month_info"`
			PageOffset string `json:"page_offset"`
		} `json:"charging_activity_monthly"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return ActivityPage{}, fmt.Errorf("decode activity page: %w", err)
	}
	switch {
	case env.ChargingActivity != nil:
		return ActivityPage{
			Sessions:   env.ChargingActivity.Sessions,
			NextOffset: env.ChargingActivity.PageOffset,
		}, nil
	case env.ChargingActivityMonthly != nil:
		page := ActivityPage{NextOffset: env.ChargingActivityMonthly.PageOffset}
		if len(env.ChargingActivityMonthly.MonthInfo) > 0 {
			page.Sessions = env.ChargingActivityMonthly.MonthInfo[0].Sessions
		}
		return page, nil
	default:
		return ActivityPage{}, nil
	}
}

package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// BusyInterval is one busy slot in a principal's schedule.
type BusyInterval struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status"` // busy, tentative, oof, workingElsewhere
}

// Schedule holds the busy intervals for one requested principal. Principals
// the provider cannot resolve get an empty Intervals slice, not an error.
type Schedule struct {
	Principal string         `json:"principal"`
	Intervals []BusyInterval `json:"intervals"`
}

// graphDateTime is the date-time layout used by getSchedule responses
// (no zone suffix; the zone is requested separately as UTC).
const graphDateTime = "2006-01-02T15:04:05"

// GetSchedule performs a free/busy lookup for a set of principals over a
// half-open time window [start, end) with the given slot granularity in
// minutes. Principals must be email/principal-name shaped: raw directory
// object ids are not resolvable by the upstream schedule endpoint.
func (c *Client) GetSchedule(ctx context.Context, userID uint, principals []string, start, end time.Time, granularityMinutes int) ([]Schedule, error) {
	if granularityMinutes <= 0 {
		granularityMinutes = 30
	}

	payload := map[string]interface{}{
		"schedules": principals,
		"startTime": map[string]string{
			"dateTime": start.UTC().Format(graphDateTime),
			"timeZone": "UTC",
		},
		"endTime": map[string]string{
			"dateTime": end.UTC().Format(graphDateTime),
			"timeZone": "UTC",
		},
		"availabilityViewInterval": granularityMinutes,
	}

	var resp struct {
		Value []struct {
			ScheduleID    string `json:"scheduleId"`
			ScheduleItems []struct {
				Status string `json:"status"`
				Start  struct {
					DateTime string `json:"dateTime"`
				} `json:"start"`
				End struct {
					DateTime string `json:"dateTime"`
				} `json:"end"`
			} `json:"scheduleItems"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"value"`
	}

	reqURL := fmt.Sprintf("%s/me/calendar/getSchedule", c.baseURL)
	if err := c.doJSON(ctx, userID, http.MethodPost, reqURL, payload, &resp); err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	schedules := make([]Schedule, 0, len(resp.Value))
	for _, entry := range resp.Value {
		schedule := Schedule{Principal: entry.ScheduleID, Intervals: []BusyInterval{}}
		if entry.Error != nil {
			// Unresolvable principal: empty schedule rather than a failure
			schedules = append(schedules, schedule)
			continue
		}
		for _, item := range entry.ScheduleItems {
			startAt, err := time.Parse(graphDateTime, item.Start.DateTime)
			if err != nil {
				continue
			}
			endAt, err := time.Parse(graphDateTime, item.End.DateTime)
			if err != nil {
				continue
			}
			schedule.Intervals = append(schedule.Intervals, BusyInterval{
				Start:  startAt,
				End:    endAt,
				Status: item.Status,
			})
		}
		schedules = append(schedules, schedule)
	}

	return schedules, nil
}

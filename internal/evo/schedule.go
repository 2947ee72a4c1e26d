package evo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"borntoski-evo-sync/internal/metrics"
)

// ListSchedule fetches the agenda slots for one day from the v1 API
func (c *Client) ListSchedule(ctx context.Context, dayISO string) ([]Record, error) {
	params := url.Values{
		"date":           {dayISO},
		"showFullWeek":   {"false"},
		"onlyAvailables": {"false"},
		"take":           {"500"},
	}

	body, err := c.getJSON(ctx, metrics.OpListSchedule, c.baseURLV1, "/activities/schedule", params)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule for %s: %w", dayISO, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}

	return ToList(payload), nil
}

// GetScheduleDetail fetches a slot's detail, including its enrollments
func (c *Client) GetScheduleDetail(ctx context.Context, configurationID int64, activityDateISO string) (Record, error) {
	params := url.Values{
		"idConfiguration": {fmt.Sprintf("%d", configurationID)},
		"activityDate":    {activityDateISO},
	}

	body, err := c.getJSON(ctx, metrics.OpGetScheduleDetail, c.baseURLV1, "/activities/schedule/detail", params)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule detail %d@%s: %w", configurationID, activityDateISO, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule detail: %w", err)
	}

	return Unwrap(payload), nil
}

// Enrollments returns the enrollment records of a schedule detail
func Enrollments(detail Record) []Record {
	if detail == nil {
		return nil
	}
	list, ok := detail["enrollments"].([]any)
	if !ok {
		return nil
	}
	return toRecords(list)
}

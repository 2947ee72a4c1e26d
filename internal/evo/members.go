package evo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"borntoski-evo-sync/internal/metrics"
)

// ListMembers pages through /members until an empty page and returns the raw
// member records
func (c *Client) ListMembers(ctx context.Context) ([]Record, error) {
	var members []Record
	skip := 0

	for {
		params := url.Values{
			"take":            {strconv.Itoa(c.pageSize)},
			"skip":            {strconv.Itoa(skip)},
			"showMemberships": {"true"},
			"includeAddress":  {"true"},
			"includeContacts": {"true"},
		}

		body, err := c.getJSON(ctx, metrics.OpListMembers, c.baseURLV2, "/members", params)
		if err != nil {
			return nil, fmt.Errorf("failed to list members: %w", err)
		}
		if len(body) == 0 {
			break
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal members page: %w", err)
		}

		batch := ToList(payload)
		if len(batch) == 0 {
			break
		}

		members = append(members, batch...)
		skip += c.pageSize
	}

	return members, nil
}

// GetMemberProfile fetches /members/{id}, which carries the memberLevel list
// maintained by the school's instructors
func (c *Client) GetMemberProfile(ctx context.Context, memberID int64) (Record, error) {
	path := fmt.Sprintf("/members/%d", memberID)

	body, err := c.getJSON(ctx, metrics.OpGetMemberProfile, c.baseURLV2, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get member profile %d: %w", memberID, err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal member profile: %w", err)
	}

	return Unwrap(payload), nil
}

// MemberLevelNames extracts the currentLevelName values from a member
// profile's memberLevel list
func MemberLevelNames(profile Record) []string {
	if profile == nil {
		return nil
	}

	list, ok := profile["memberLevel"].([]any)
	if !ok {
		return nil
	}

	var names []string
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name := FirstString(entry, "currentLevelName"); name != "" {
			names = append(names, name)
		}
	}
	return names
}

package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/flowtrack/internal/storage"
)

// parseSpace converts a Redis hash to TrackingSpace
func parseSpace(data map[string]string) (*storage.TrackingSpace, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	active, err := strconv.ParseBool(data["is_active"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse is_active: %w", err)
	}

	var createdAt time.Time
	if raw := data["created_at"]; raw != "" {
		createdAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
	}

	apps := []string{}
	if raw := data["apps"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &apps); err != nil {
			return nil, fmt.Errorf("failed to parse apps: %w", err)
		}
	}

	return &storage.TrackingSpace{
		ID:        data["id"],
		Name:      data["name"],
		Apps:      apps,
		IsActive:  active,
		Color:     data["color"],
		CreatedAt: createdAt,
	}, nil
}

// spaceFields flattens a TrackingSpace into hash fields
func spaceFields(space storage.TrackingSpace) (map[string]interface{}, error) {
	apps := space.Apps
	if apps == nil {
		apps = []string{}
	}
	encoded, err := json.Marshal(apps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode apps: %w", err)
	}

	return map[string]interface{}{
		"id":         space.ID,
		"name":       space.Name,
		"apps":       string(encoded),
		"is_active":  strconv.FormatBool(space.IsActive),
		"color":      space.Color,
		"created_at": space.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}

// parseEntry converts a Redis hash to TimeEntry
func parseEntry(data map[string]string) (*storage.TimeEntry, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	duration, err := strconv.ParseInt(data["duration"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration: %w", err)
	}

	return &storage.TimeEntry{
		SpaceID:  data["space_id"],
		AppName:  data["app_name"],
		Date:     data["date"],
		Duration: duration,
	}, nil
}

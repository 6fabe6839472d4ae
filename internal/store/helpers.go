package store

import (
	"encoding/json"
	"fmt"

	"github.com/jsai2001/GetYourLifeBack/internal/models"
)

// marshalApps encodes the selected-app set as a JSON array for storage.
func marshalApps(apps []models.AppID) (string, error) {
	if len(apps) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(apps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal selected apps: %w", err)
	}
	return string(b), nil
}

// unmarshalApps decodes a stored selected-app JSON array.
func unmarshalApps(raw string) ([]models.AppID, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var apps []models.AppID
	if err := json.Unmarshal([]byte(raw), &apps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selected apps: %w", err)
	}
	return apps, nil
}

// modeFor maps the persisted is_specific_apps_mode flag to a SessionMode.
func modeFor(specificApps bool) models.SessionMode {
	if specificApps {
		return models.ModeSpecificApps
	}
	return models.ModeWholeDevice
}

// ABOUTME: JSON-file device source used by the CLI
// ABOUTME: Stands in for the platform address-book adapter outside the app
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/copainapp/copain/models"
)

// FileSource reads raw contacts from a JSON file: an array of records with
// id, names, phone_numbers and emails.
type FileSource struct {
	Path string
}

func (f FileSource) List(ctx context.Context) ([]models.RawContact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}

	var raws []models.RawContact
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}

	return raws, nil
}

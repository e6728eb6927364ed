package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Update runs one synchronization pass and prints the resulting report
// as indented JSON.
func (a *App) Update(ctx context.Context) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	report, err := a.newSynchronizer(store).RunUpdate(ctx)
	a.Audit.Record("run_update", err, map[string]any{"total": report.Total})
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if encodeErr := encoder.Encode(report); encodeErr != nil {
		return fmt.Errorf("encode report: %w", encodeErr)
	}
	return nil
}

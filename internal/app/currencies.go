package app

import (
	"context"
	"fmt"
	"os"
)

// Currencies prints the supported currency registry.
func (a *App) Currencies(ctx context.Context) error {
	for _, code := range a.Registry.Codes() {
		c, err := a.Registry.Get(code)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, c.DisplayInfo())
	}
	return nil
}

package update

import (
	"context"
	"fmt"

	"github.com/ganderhq/gander/db"
	"github.com/rs/zerolog/log"
)

// BatchResult summarizes one batch run.
type BatchResult struct {
	Updated  []string
	UpToDate []string
	Failed   map[string]error
}

// Batch runs the engine over every tracked install record. One failing
// title does not stop the rest; failures are collected per title.
func Batch(ctx context.Context, engine *Engine, installs db.InstallRepository, force, deltaAllowed bool) (*BatchResult, error) {
	records, err := installs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing installs: %w", err)
	}
	if len(records) == 0 {
		log.Info().Msg("No tracked installs to update")
	}

	result := &BatchResult{Failed: map[string]error{}}
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		updated, err := engine.Update(ctx, record, force, deltaAllowed)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("game", record.Name).Msg("Update failed")
			result.Failed[record.Name] = err
		case updated.Version != record.Version || force:
			result.Updated = append(result.Updated, record.Name)
		default:
			result.UpToDate = append(result.UpToDate, record.Name)
		}
	}
	return result, nil
}

package scanner

import "context"

// Resolve runs one full attempt: submit, then best-effort enrichment.
// The person profile is fetched for every attempt and the prior scan time
// only for duplicates. Enrichment failures degrade to partial display and
// never mask the primary classification.
func (c *Client) Resolve(ctx context.Context, cfg Config, identifier string) Result {
	outcome := c.Submit(ctx, cfg, identifier)

	result := Result{
		Identifier: identifier,
		Message:    outcome.Message,
		ScannedAt:  outcome.ScannedAt,
	}
	switch outcome.Kind {
	case OutcomeAccepted:
		result.State = StateSuccess
	case OutcomeDuplicate:
		result.State = StateDuplicate
	default:
		result.State = StateFailure
	}

	if profile, err := c.LookupPerson(ctx, identifier, cfg.RosterID); err == nil {
		result.Profile = &profile
	}

	if outcome.Kind == OutcomeDuplicate && cfg.EventLocationID != nil {
		if ls, err := c.LastSeen(ctx, identifier, *cfg.EventLocationID, outcome.RecordID); err == nil && ls.Found {
			result.LastSeen = ls.ScannedAt
		}
	}

	return result
}

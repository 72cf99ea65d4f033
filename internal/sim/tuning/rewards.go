package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed rewards.schema.json
var rewardsSchemaSrc string

// RewardsDoc is the milestone/reward table as authored by operators.
// Reward lines stay in their raw "ITEM:COUNT" form here; resolving them
// against the item catalog happens in the fare package so one bad line
// never fails the whole document.
type RewardsDoc struct {
	Enabled    bool           `json:"enabled"`
	Milestones []MilestoneDef `json:"milestones"`
}

type MilestoneDef struct {
	Distance int      `json:"distance"`
	Rewards  []string `json:"rewards"`
}

// LoadRewards reads and schema-validates the rewards document. Schema
// violations are hard errors: a document that does not parse at all is an
// operator mistake, unlike individual malformed reward lines.
func LoadRewards(path string) (RewardsDoc, error) {
	var doc RewardsDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}

	schema, err := jsonschema.CompileString("rewards.schema.json", rewardsSchemaSrc)
	if err != nil {
		return doc, fmt.Errorf("rewards schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return doc, fmt.Errorf("rewards.json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return doc, fmt.Errorf("rewards.json: %w", err)
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("rewards.json: %w", err)
	}
	return doc, nil
}

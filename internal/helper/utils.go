package helper

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID returns a random v4 uuid string, used as document ids.
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("helper: generate uuid: %w", err)
	}
	return id.String(), nil
}

// PrettyPrint writes v to stdout as indented JSON. Values that cannot be
// marshaled are logged and skipped, never printed as empty output.
func PrettyPrint(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("pretty print failed")
		return
	}
	fmt.Println(string(b))
}

package entity

import (
	"strconv"

	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
)

// parseHashFields converts a stored hash into a domain Entity.
func parseHashFields(ks domain.Keyspace, id string, m map[string]string) domentity.Entity {
	score, _ := strconv.ParseInt(m[ks.ScoreField], 10, 64)
	return domentity.Reconstruct(
		id,
		m[ks.ParentField],
		m[ks.ScopeField],
		m[ks.OwnerField],
		parseBool(m[ks.FlagField]),
		parseBool(m[ks.DeletedField]),
		score,
	)
}

// parseBool treats "1" and "true" as set; anything else, including absence, as unset.
func parseBool(v string) bool {
	return v == "1" || v == "true"
}

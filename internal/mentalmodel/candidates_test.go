package mentalmodel

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(errors.New("some other error")))
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
}

func TestIntersectTags_OnlySharedTagsSurvive(t *testing.T) {
	got := intersectTags([][]string{{"vip", "eu"}, {"vip", "us"}, {"vip"}})
	assert.Equal(t, []string{"vip"}, got)
}

func TestIntersectTags_OneUntaggedObservationEmptiesIntersection(t *testing.T) {
	got := intersectTags([][]string{{"vip"}, {}})
	assert.Empty(t, got)
}

func TestDefaultMentalModelQuery_MentionsEntityName(t *testing.T) {
	assert.Contains(t, defaultMentalModelQuery("Acme Corp"), "Acme Corp")
}

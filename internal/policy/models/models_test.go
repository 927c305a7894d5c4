package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

func TestParseExecutionMode(t *testing.T) {
	m, err := ParseExecutionMode(" Attested ")
	require.NoError(t, err)
	assert.Equal(t, ModeAttested, m)

	_, err = ParseExecutionMode("deferred")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRuleSetAppliesTo(t *testing.T) {
	untagged := &RuleSet{}
	assert.True(t, untagged.AppliesTo("borrower"))

	lenderOnly := &RuleSet{Roles: []string{"lender"}}
	assert.True(t, lenderOnly.AppliesTo("lender"))
	assert.False(t, lenderOnly.AppliesTo("borrower"))
}

func TestRuleSetDeactivate(t *testing.T) {
	rs := &RuleSet{Active: true}
	require.NoError(t, rs.CanDeactivate())
	now := time.Now()
	rs.ApplyDeactivate(now)
	assert.False(t, rs.Active)
	assert.Equal(t, now, rs.UpdatedAt)
	assert.True(t, dErrors.HasCode(rs.CanDeactivate(), dErrors.CodeInvalidState))
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, Pass().Err())
	err := Fail("X", []string{"R1"}).Err()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeComplianceRejected))
	assert.Equal(t, "X", dErrors.ReasonOf(err))
	assert.Equal(t, []string{}, Fail("X", nil).AppliedRuleTypes)
}

func TestCloneIsDeep(t *testing.T) {
	rs := &RuleSet{Roles: []string{"lender"}}
	c := rs.Clone()
	c.Roles[0] = "borrower"
	assert.Equal(t, "lender", rs.Roles[0])

	b := &Binding{RuleSetIDs: []id.RuleSetID{"R1"}}
	cb := b.Clone()
	cb.RuleSetIDs[0] = "R2"
	assert.Equal(t, "R1", string(b.RuleSetIDs[0]))
}

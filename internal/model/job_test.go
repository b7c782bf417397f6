package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingByID(t *testing.T) {
	job := &Job{Findings: []Finding{{ID: "f1"}, {ID: "f2"}}}

	f := job.FindingByID("f2")
	require.NotNil(t, f)
	assert.Equal(t, "f2", f.ID)

	assert.Nil(t, job.FindingByID("f3"))
}

func TestRemediationFor(t *testing.T) {
	job := &Job{Remediations: []RemediationProposal{
		{FindingID: "f1", Summary: "first"},
		{FindingID: "f2", Summary: "second"},
	}}

	r := job.RemediationFor("f1")
	require.NotNil(t, r)
	assert.Equal(t, "first", r.Summary)

	assert.Nil(t, job.RemediationFor("f9"))
}

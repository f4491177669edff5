package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labmetrixis/labmetrixis/internal/models"
	"github.com/labmetrixis/labmetrixis/internal/policy"
)

func Test_CanPerform(t *testing.T) {
	lead := policy.Actor{ID: 1, Role: models.RoleResearcher}
	member := policy.Actor{ID: 2, Role: models.RoleResearcher}
	technician := policy.Actor{ID: 3, Role: models.RoleTechnician}
	otherTechnician := policy.Actor{ID: 4, Role: models.RoleTechnician}
	outsider := policy.Actor{ID: 5, Role: models.RoleResearcher}

	target := policy.Target{
		TeamLeadID:   lead.ID,
		MemberIDs:    []uint{member.ID},
		TechnicianID: technician.ID,
	}

	tests := []struct {
		name    string
		actor   policy.Actor
		action  policy.Action
		allowed bool
	}{
		{"researcher_creates_project", lead, policy.ActionCreateProject, true},
		{"technician_cannot_create_project", technician, policy.ActionCreateProject, false},

		{"lead_removes_member", lead, policy.ActionRemoveMember, true},
		{"member_cannot_remove_member", member, policy.ActionRemoveMember, false},

		{"lead_deletes_sample", lead, policy.ActionDeleteSample, true},
		{"member_cannot_delete_sample", member, policy.ActionDeleteSample, false},
		{"technician_cannot_delete_sample", technician, policy.ActionDeleteSample, false},

		{"lead_deletes_project", lead, policy.ActionDeleteProject, true},
		{"member_cannot_delete_project", member, policy.ActionDeleteProject, false},

		{"assigned_technician_transitions", technician, policy.ActionTransitionSample, true},
		{"other_technician_cannot_transition", otherTechnician, policy.ActionTransitionSample, false},
		{"lead_cannot_transition_sample", lead, policy.ActionTransitionSample, false},

		{"assigned_technician_submits_analysis", technician, policy.ActionSubmitAnalysis, true},
		{"other_technician_cannot_submit_analysis", otherTechnician, policy.ActionSubmitAnalysis, false},

		{"lead_edits_project", lead, policy.ActionEditProject, true},
		{"member_edits_project", member, policy.ActionEditProject, true},
		{"outsider_cannot_edit_project", outsider, policy.ActionEditProject, false},

		{"member_edits_report_draft", member, policy.ActionEditReportDraft, true},
		{"member_publishes_report", member, policy.ActionPublishReport, true},
		{"outsider_cannot_publish_report", outsider, policy.ActionPublishReport, false},

		{"member_adds_sample", member, policy.ActionAddSample, true},
		{"outsider_cannot_add_sample", outsider, policy.ActionAddSample, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := policy.CanPerform(tc.actor, tc.action, target)

			assert.Equal(t, tc.allowed, decision.Allowed)

			if tc.allowed {
				assert.Empty(t, decision.Reason)
			} else {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

func Test_CanPerform_DenyReasonsAreSpecific(t *testing.T) {
	target := policy.Target{TeamLeadID: 1, TechnicianID: 3}

	decision := policy.CanPerform(policy.Actor{ID: 2, Role: models.RoleResearcher}, policy.ActionRemoveMember, target)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Only the team lead can remove team members", decision.Reason)

	decision = policy.CanPerform(policy.Actor{ID: 2, Role: models.RoleResearcher}, policy.ActionDeleteSample, target)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Only the team lead can delete samples", decision.Reason)

	decision = policy.CanPerform(policy.Actor{ID: 9, Role: models.RoleTechnician}, policy.ActionCreateProject, policy.Target{})
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Only researchers can create projects", decision.Reason)
}

func Test_CanPerform_UnknownActionDenied(t *testing.T) {
	decision := policy.CanPerform(policy.Actor{ID: 1, Role: models.RoleAdmin}, policy.Action("frobnicate"), policy.Target{})
	assert.False(t, decision.Allowed)
}

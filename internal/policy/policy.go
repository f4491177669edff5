// Package policy decides, per action, whether the acting user may perform a
// given mutation. It is consulted before every mutating operation; a deny is a
// decision with a reason, never an error.
package policy

import "github.com/labmetrixis/labmetrixis/internal/models"

type Action string

const (
	ActionCreateProject    Action = "create_project"
	ActionEditProject      Action = "edit_project"
	ActionDeleteProject    Action = "delete_project"
	ActionAddMember        Action = "add_member"
	ActionRemoveMember     Action = "remove_member"
	ActionAddSample        Action = "add_sample"
	ActionEditSample       Action = "edit_sample"
	ActionDeleteSample     Action = "delete_sample"
	ActionTransitionSample Action = "transition_sample"
	ActionSubmitAnalysis   Action = "submit_analysis"
	ActionEditReportDraft  Action = "edit_report_draft"
	ActionPublishReport    Action = "publish_report"
	ActionLogReport        Action = "log_report"
)

// Actor is the authenticated user a decision is evaluated for.
type Actor struct {
	ID   uint
	Role string
}

// Target carries the project/sample relationships a rule may depend on.
// Fields that do not apply to an action may be left zero.
type Target struct {
	TeamLeadID   uint
	MemberIDs    []uint
	TechnicianID uint
}

type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

const (
	reasonResearchersOnly = "Only researchers can create projects"
	reasonTeamLeadMembers = "Only the team lead can remove team members"
	reasonTeamLeadSamples = "Only the team lead can delete samples"
	reasonTeamLeadProject = "Only the team lead can delete the project"
	reasonAssignedTech    = "Only the assigned technician can update this sample's status"
	reasonAssignedTechRpt = "Only the assigned technician can submit the analysis report"
	reasonNotOnTeam       = "Only the team lead or a team member can modify this project"
)

// CanPerform evaluates one action for one actor against one target.
func CanPerform(actor Actor, action Action, target Target) Decision {
	switch action {
	case ActionCreateProject:
		if actor.Role != models.RoleResearcher {
			return Deny(reasonResearchersOnly)
		}
		return Allow()

	case ActionDeleteProject:
		if actor.ID != target.TeamLeadID {
			return Deny(reasonTeamLeadProject)
		}
		return Allow()

	case ActionRemoveMember:
		if actor.ID != target.TeamLeadID {
			return Deny(reasonTeamLeadMembers)
		}
		return Allow()

	case ActionDeleteSample:
		if actor.ID != target.TeamLeadID {
			return Deny(reasonTeamLeadSamples)
		}
		return Allow()

	case ActionTransitionSample:
		if actor.ID != target.TechnicianID {
			return Deny(reasonAssignedTech)
		}
		return Allow()

	case ActionSubmitAnalysis:
		if actor.ID != target.TechnicianID {
			return Deny(reasonAssignedTechRpt)
		}
		return Allow()

	case ActionEditProject, ActionAddMember, ActionAddSample, ActionEditSample,
		ActionEditReportDraft, ActionPublishReport, ActionLogReport:
		if onTeam(actor.ID, target) {
			return Allow()
		}
		return Deny(reasonNotOnTeam)
	}

	return Deny("Unknown action")
}

func onTeam(userID uint, target Target) bool {
	if userID == target.TeamLeadID {
		return true
	}
	for _, id := range target.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

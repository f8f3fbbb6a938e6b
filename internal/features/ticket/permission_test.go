package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var (
	admin    = Actor{ID: "admin-1", Role: RoleSuperAdmin, Name: "Rita Admin"}
	engineer = Actor{ID: "eng-1", Role: RoleITEngineer, Name: "Evan Engineer", Email: "evan@helpdesk.local"}
	support  = Actor{ID: "sup-1", Role: RoleITTechSupport, Name: "Sam Support"}
	enduser  = Actor{ID: "user-1", Role: RoleUser, Name: "Uma User"}
)

func openTicket() Ticket {
	return Ticket{
		ID:          "t-1",
		Subject:     "Laptop will not boot",
		Status:      StatusOpen,
		OwnerUserID: enduser.ID,
	}
}

func assignedTicket(status Status) Ticket {
	t := openTicket()
	t.Status = status
	t.AssigneeID = engineer.ID
	t.AssigneeName = engineer.Name
	return t
}

func TestCanTake(t *testing.T) {
	open := openTicket()
	assert.True(t, CanTake(&open, engineer))
	assert.True(t, CanTake(&open, support))
	assert.True(t, CanTake(&open, admin))
	assert.False(t, CanTake(&open, enduser), "end users never claim tickets")

	taken := assignedTicket(StatusInProgress)
	assert.False(t, CanTake(&taken, support), "already assigned")

	deleted := openTicket()
	deleted.Deleted = true
	assert.False(t, CanTake(&deleted, engineer))
}

func TestCanStart(t *testing.T) {
	open := openTicket()
	assert.True(t, CanStart(&open, enduser), "anyone may start an unassigned open ticket")
	assert.True(t, CanStart(&open, engineer))

	assigned := assignedTicket(StatusOpen)
	assert.True(t, CanStart(&assigned, engineer), "assignee")
	assert.True(t, CanStart(&assigned, admin), "super admin bypass")
	assert.False(t, CanStart(&assigned, support), "other staff locked out once assigned")

	inProgress := assignedTicket(StatusInProgress)
	assert.False(t, CanStart(&inProgress, engineer), "only open tickets start")
}

func TestCanResolve(t *testing.T) {
	inProgress := assignedTicket(StatusInProgress)
	assert.True(t, CanResolve(&inProgress, engineer))
	assert.True(t, CanResolve(&inProgress, admin))
	assert.False(t, CanResolve(&inProgress, support))
	assert.False(t, CanResolve(&inProgress, enduser))

	open := openTicket()
	assert.False(t, CanResolve(&open, admin), "must be in progress first")
}

func TestCanReopen(t *testing.T) {
	for _, status := range []Status{StatusResolved, StatusClosed, StatusCompleted} {
		final := assignedTicket(status)
		assert.True(t, CanReopen(&final, engineer), string(status))
		assert.True(t, CanReopen(&final, admin), string(status))
		assert.False(t, CanReopen(&final, support), string(status))
	}

	inProgress := assignedTicket(StatusInProgress)
	assert.False(t, CanReopen(&inProgress, admin))
}

func TestCanDelete(t *testing.T) {
	inProgress := assignedTicket(StatusInProgress)
	assert.True(t, CanDelete(&inProgress, admin))
	assert.True(t, CanDelete(&inProgress, engineer))
	assert.False(t, CanDelete(&inProgress, support))
	assert.False(t, CanDelete(&inProgress, enduser))

	inProgress.Deleted = true
	assert.False(t, CanDelete(&inProgress, admin), "no double delete")
}

func TestCanOwnerDelete(t *testing.T) {
	open := openTicket()
	assert.True(t, CanOwnerDelete(&open, enduser))
	assert.False(t, CanOwnerDelete(&open, engineer), "staff use the admin-side delete")

	started := assignedTicket(StatusInProgress)
	assert.False(t, CanOwnerDelete(&started, enduser), "only while still open")
}

func TestIsAssigneeLegacyFallback(t *testing.T) {
	legacy := Ticket{AssigneeName: "Evan Engineer", AssigneeLegacy: true}
	assert.True(t, IsAssignee(&legacy, engineer), "name match")
	assert.False(t, IsAssignee(&legacy, support))

	byEmail := Ticket{AssigneeName: "someone evan@helpdesk.local here", AssigneeLegacy: true}
	assert.True(t, IsAssignee(&byEmail, engineer), "embedded email match")

	canonical := Ticket{AssigneeID: "eng-1", AssigneeName: "Stale Name"}
	assert.True(t, IsAssignee(&canonical, engineer))
	assert.False(t, IsAssignee(&canonical, Actor{ID: "other", Name: "Stale Name"}),
		"id wins over name once present")
}

func TestAllowedMatchesGuards(t *testing.T) {
	open := openTicket()
	assert.Equal(t, []Action{ActionTake, ActionStart, ActionDelete}, Allowed(&open, admin))
	assert.Equal(t, []Action{ActionStart, ActionOwnerDelete}, Allowed(&open, enduser))

	inProgress := assignedTicket(StatusInProgress)
	assert.Equal(t, []Action{ActionResolve, ActionDelete}, Allowed(&inProgress, engineer))
	assert.Empty(t, Allowed(&inProgress, enduser))
}

// A denied guard must leave the ticket untouched, so a stale UI cannot
// corrupt state by firing an action the server no longer allows.
func TestGuardDenialMutatesNothing(t *testing.T) {
	inProgress := assignedTicket(StatusInProgress)
	before := inProgress

	_, mutations, err := Transition(inProgress, support, ActionResolve,
		TransitionParams{Note: "long enough resolution note", FinalStatus: StatusResolved}, time.Now())

	assert.Error(t, err)
	assert.Nil(t, mutations)
	assert.Equal(t, before, inProgress)
}

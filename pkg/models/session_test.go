package models

import "testing"

func TestAgentStatusValid(t *testing.T) {
	for _, status := range []AgentStatus{
		StatusWorking, StatusWaiting, StatusBlocked,
		StatusPendingReview, StatusDelivered, StatusArchived,
	} {
		if !status.Valid() {
			t.Errorf("%s reported invalid", status)
		}
	}
	if AgentStatus("sleeping").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestAgentStatusActive(t *testing.T) {
	active := map[AgentStatus]bool{
		StatusWorking:       true,
		StatusWaiting:       true,
		StatusBlocked:       true,
		StatusPendingReview: false,
		StatusDelivered:     false,
		StatusArchived:      false,
	}
	for status, want := range active {
		if got := status.Active(); got != want {
			t.Errorf("%s.Active() = %v, want %v", status, got, want)
		}
	}
}

func TestDeliverableTypeValid(t *testing.T) {
	for _, typ := range []DeliverableType{
		DeliverableCode, DeliverableResearch, DeliverableDecision,
		DeliverableArtifact, DeliverableError,
	} {
		if !typ.Valid() {
			t.Errorf("%s reported invalid", typ)
		}
	}
	if DeliverableType("poem").Valid() {
		t.Error("unknown type reported valid")
	}
}

func TestIsRoot(t *testing.T) {
	root := Session{ID: "r"}
	if !root.IsRoot() {
		t.Error("session without parent is not root")
	}
	child := Session{ID: "c", ParentID: "r"}
	if child.IsRoot() {
		t.Error("session with parent is root")
	}
}

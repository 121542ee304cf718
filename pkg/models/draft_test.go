package models

import "testing"

func TestDraftFinalize(t *testing.T) {
	d := DraftDeliverable{
		DraftID:        "d1",
		SessionID:      "s1",
		Type:           DeliverableResearch,
		Summary:        "findings",
		Content:        "body",
		Artifacts:      []ArtifactRef{{Path: "out/a.md"}},
		RevisionNumber: 3,
	}

	got := d.Finalize()
	if got.Type != DeliverableResearch || got.Summary != "findings" || got.Content != "body" {
		t.Errorf("finalized = %+v", got)
	}
	if len(got.Artifacts) != 1 || got.Artifacts[0].Path != "out/a.md" {
		t.Errorf("artifacts = %+v", got.Artifacts)
	}
}

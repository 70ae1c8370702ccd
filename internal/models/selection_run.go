package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SelectionRun is the audit record of one explicit selection invocation.
type SelectionRun struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Mode           string         `gorm:"size:16;not null" json:"mode"`
	Value          float64        `gorm:"not null" json:"value"`
	CandidateCount int            `gorm:"not null" json:"candidate_count"`
	Cutoff         int            `gorm:"not null" json:"cutoff"`
	SelectedIDs    datatypes.JSON `gorm:"type:json" json:"-"`
	RankingDigest  string         `gorm:"size:64" json:"ranking_digest"`
	TriggeredBy    uint           `gorm:"not null" json:"triggered_by"`
	TriggeredRole  string         `gorm:"size:32" json:"triggered_role"`
	RunAt          time.Time      `gorm:"not null;index" json:"run_at"`
	ReleasedAt     *time.Time     `json:"released_at"`
}

// SetSelectedIDs stores the selected students in rank order.
func (r *SelectionRun) SetSelectedIDs(ids []uint) {
	data, err := json.Marshal(ids)
	if err != nil {
		r.SelectedIDs = datatypes.JSON([]byte("[]"))
		return
	}
	r.SelectedIDs = datatypes.JSON(data)
}

// SelectedStudentIDs decodes the selected students.
func (r SelectionRun) SelectedStudentIDs() []uint {
	if len(r.SelectedIDs) == 0 {
		return []uint{}
	}
	var ids []uint
	if err := json.Unmarshal(r.SelectedIDs, &ids); err != nil || ids == nil {
		return []uint{}
	}
	return ids
}

// Released reports whether results of the run were published to students.
func (r SelectionRun) Released() bool {
	return r.ReleasedAt != nil
}

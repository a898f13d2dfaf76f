package oquapi

import (
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - wire types to domain types
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts API payloads into domain types, rejecting payloads the
// domain cannot represent.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ToRemoteLedger converts a LedgerDTO to a domain RemoteLedger.
func (m *Mapper) ToRemoteLedger(dto *LedgerDTO) (*progress.RemoteLedger, error) {
	if dto == nil {
		return nil, shared.ErrRemoteBadResponse
	}
	if dto.UserID == "" || dto.TotalXP < 0 {
		return nil, shared.ErrRemoteBadResponse
	}

	return &progress.RemoteLedger{
		UserID:    progress.UserID(dto.UserID),
		TotalXP:   progress.XP(dto.TotalXP),
		UpdatedAt: dto.UpdatedAt.UTC(),
	}, nil
}

// ToCohort converts a CohortDTO to domain cohort members. Rows the domain
// cannot represent are dropped rather than failing the whole snapshot.
func (m *Mapper) ToCohort(dto *CohortDTO) ([]progress.CohortMember, error) {
	if dto == nil {
		return nil, shared.ErrRemoteBadResponse
	}

	members := make([]progress.CohortMember, 0, len(dto.Members))
	for _, row := range dto.Members {
		if row.UserID == "" || row.TotalXP < 0 {
			continue
		}
		members = append(members, progress.CohortMember{
			UserID:         progress.UserID(row.UserID),
			DisplayName:    row.DisplayName,
			TotalXP:        progress.XP(row.TotalXP),
			LastActivityAt: row.LastActivityAt.UTC(),
		})
	}
	return members, nil
}

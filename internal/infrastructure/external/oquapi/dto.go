package oquapi

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// Mirrors of the Oqu platform API payloads. Never leak these outside the
// package: the mapper converts them into domain types.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerDTO is the server-side progress state of one user.
type LedgerDTO struct {
	UserID    string    `json:"user_id"`
	TotalXP   int       `json:"total_xp"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CohortMemberDTO is one row of a cohort snapshot.
type CohortMemberDTO struct {
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	TotalXP        int       `json:"total_xp"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// CohortDTO is the cohort snapshot response.
type CohortDTO struct {
	Members []CohortMemberDTO `json:"members"`
}

// PushDeltaRequestDTO reports an unsynced local XP delta to the server.
type PushDeltaRequestDTO struct {
	Delta int `json:"delta"`
}

// PushDeltaResponseDTO carries the authoritative total after the server
// has applied (or deduplicated) the delta.
type PushDeltaResponseDTO struct {
	TotalXP int `json:"total_xp"`
}

// APIErrorDTO is the platform error envelope.
type APIErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

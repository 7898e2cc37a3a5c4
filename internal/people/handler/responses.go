package handler

import (
	"personring/internal/people/models"
	"personring/internal/people/service"
)

type recognizedResponse struct {
	ID uint64 `json:"id"`
}

type forceRecognizedResponse struct {
	IDs []uint64 `json:"ids"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

type reservationResponse struct {
	ID uint64 `json:"id"`
}

type positionResponse struct {
	State               string  `json:"state"`
	QueuePage           *uint32 `json:"queue_page,omitempty"`
	Ring                *uint32 `json:"ring,omitempty"`
	RingPosition        *uint32 `json:"ring_position,omitempty"`
	ScheduledForRemoval bool    `json:"scheduled_for_removal,omitempty"`
}

type personResponse struct {
	ID       uint64           `json:"id"`
	Key      models.MemberKey `json:"key"`
	Position positionResponse `json:"position"`
	Account  *string          `json:"account,omitempty"`
}

type ringRootResponse struct {
	Commitment models.Commitment `json:"commitment"`
	Revision   uint32            `json:"revision"`
}

type ringResponse struct {
	Index    uint32             `json:"index"`
	Keys     []models.MemberKey `json:"keys"`
	Total    uint32             `json:"total"`
	Included uint32             `json:"included"`
	Root     *ringRootResponse  `json:"root,omitempty"`
}

type queuePageResponse struct {
	Page uint32             `json:"page"`
	Keys []models.MemberKey `json:"keys"`
}

type migrationResponse struct {
	NewKey models.MemberKey `json:"new_key"`
}

type statusResponse struct {
	Phase              string `json:"phase"`
	CurrentRing        uint32 `json:"current_ring"`
	ActiveMembers      uint32 `json:"active_members"`
	OnboardingSize     uint32 `json:"onboarding_size"`
	QueueHead          uint32 `json:"queue_head"`
	QueueTail          uint32 `json:"queue_tail"`
	QueuedKeys         int    `json:"queued_keys"`
	StagedMigrations   int    `json:"staged_migrations"`
	PendingSuspensions int    `json:"pending_suspensions"`
}

func toPersonResponse(id models.PersonalID, record *models.PersonRecord) personResponse {
	resp := personResponse{
		ID:      uint64(id),
		Key:     record.Key,
		Account: record.Account,
	}
	position := record.Position
	resp.Position.State = position.Kind.String()
	switch position.Kind {
	case models.PositionOnboarding:
		page := uint32(position.QueuePage)
		resp.Position.QueuePage = &page
	case models.PositionIncluded:
		ring := uint32(position.RingIndex)
		at := position.RingPosition
		resp.Position.Ring = &ring
		resp.Position.RingPosition = &at
		resp.Position.ScheduledForRemoval = position.ScheduledForRemoval
	}
	return resp
}

func toRingResponse(view *service.RingView) ringResponse {
	resp := ringResponse{
		Index:    uint32(view.Index),
		Keys:     view.Keys,
		Total:    view.Total,
		Included: view.Included,
	}
	if view.Root != nil {
		resp.Root = &ringRootResponse{
			Commitment: view.Root.Commitment,
			Revision:   view.Root.Revision,
		}
	}
	return resp
}

func toStatusResponse(view service.StatusView) statusResponse {
	return statusResponse{
		Phase:              view.Phase.String(),
		CurrentRing:        uint32(view.CurrentRing),
		ActiveMembers:      view.ActiveMembers,
		OnboardingSize:     view.OnboardingSize,
		QueueHead:          uint32(view.QueueHead),
		QueueTail:          uint32(view.QueueTail),
		QueuedKeys:         view.QueuedKeys,
		StagedMigrations:   view.StagedMigrations,
		PendingSuspensions: view.PendingSuspensions,
	}
}

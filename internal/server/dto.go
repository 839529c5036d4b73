package server

import (
	"encoding/json"

	"cleanflow/internal/domain"
)

type SignupRequest struct {
	FullName string `json:"full_name" example:"Awa Ceesay"`
	Email    string `json:"email" format:"email" example:"awa@example.gm"`
	Phone    string `json:"phone,omitempty" example:"+2203456789"`
}

type ProfileResponse struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	IsApproved bool   `json:"is_approved"`
	CreatedAt  string `json:"created_at"`
}

type CreateCollectorRequest struct {
	FullName      string `json:"full_name"`
	Email         string `json:"email" format:"email"`
	Phone         string `json:"phone,omitempty"`
	VehicleNumber string `json:"vehicle_number" example:"BJL-1042"`
	VehicleType   string `json:"vehicle_type,omitempty" example:"truck"`
}

type CollectorResponse struct {
	ID                 string   `json:"id"`
	AccountID          string   `json:"account_id"`
	VehicleNumber      string   `json:"vehicle_number"`
	VehicleType        string   `json:"vehicle_type,omitempty"`
	IsAvailable        bool     `json:"is_available"`
	CurrentLat         *float64 `json:"current_lat,omitempty"`
	CurrentLng         *float64 `json:"current_lng,omitempty"`
	LastLocationUpdate *string  `json:"last_location_update,omitempty"`
}

type CreateWorkItemRequest struct {
	Kind    domain.Kind `json:"kind" enum:"booking,report"`
	Address string      `json:"address" example:"12 Kairaba Avenue, Serrekunda"`
	Lat     float64     `json:"lat" minimum:"-90" maximum:"90"`
	Lng     float64     `json:"lng" minimum:"-180" maximum:"180"`
	Details string      `json:"details,omitempty"`
}

type WorkItemResponse struct {
	ID          string        `json:"id"`
	Kind        domain.Kind   `json:"kind"`
	OwnerID     string        `json:"owner_id"`
	Address     string        `json:"address"`
	Lat         float64       `json:"lat"`
	Lng         float64       `json:"lng"`
	Details     string        `json:"details,omitempty"`
	CollectorID *string       `json:"collector_id,omitempty"`
	Status      domain.Status `json:"status"`
	RequestedAt string        `json:"requested_at"`
	AssignedAt  *string       `json:"assigned_at,omitempty"`
	StartedAt   *string       `json:"started_at,omitempty"`
	CompletedAt *string       `json:"completed_at,omitempty"`
}

type AssignRequest struct {
	CollectorID string `json:"collector_id"`
}

type StatusRequest struct {
	Status domain.Status `json:"status" enum:"in_progress,completed,cleared,rejected"`
}

type AvailabilityRequest struct {
	IsAvailable bool `json:"is_available"`
}

type PositionRequest struct {
	Lat float64 `json:"lat" minimum:"-90" maximum:"90"`
	Lng float64 `json:"lng" minimum:"-180" maximum:"180"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

func profileResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:         p.ID,
		FullName:   p.FullName,
		Email:      p.Email,
		Phone:      p.Phone,
		IsApproved: p.IsApproved,
		CreatedAt:  p.CreatedAt,
	}
}

func mapProfiles(items []domain.Profile) []ProfileResponse {
	res := []ProfileResponse{}
	for _, p := range items {
		res = append(res, profileResponse(p))
	}
	return res
}

func collectorResponse(c domain.Collector) CollectorResponse {
	return CollectorResponse{
		ID:                 c.ID,
		AccountID:          c.AccountID,
		VehicleNumber:      c.VehicleNumber,
		VehicleType:        c.VehicleType,
		IsAvailable:        c.IsAvailable,
		CurrentLat:         c.CurrentLat,
		CurrentLng:         c.CurrentLng,
		LastLocationUpdate: c.LastLocationUpdate,
	}
}

func mapCollectors(items []domain.Collector) []CollectorResponse {
	res := []CollectorResponse{}
	for _, c := range items {
		res = append(res, collectorResponse(c))
	}
	return res
}

func workItemResponse(w domain.WorkItem) WorkItemResponse {
	return WorkItemResponse{
		ID:          w.ID,
		Kind:        w.Kind,
		OwnerID:     w.OwnerID,
		Address:     w.Address,
		Lat:         w.Lat,
		Lng:         w.Lng,
		Details:     w.Details,
		CollectorID: w.CollectorID,
		Status:      w.Status,
		RequestedAt: w.RequestedAt,
		AssignedAt:  w.AssignedAt,
		StartedAt:   w.StartedAt,
		CompletedAt: w.CompletedAt,
	}
}

func mapWorkItems(items []domain.WorkItem) []WorkItemResponse {
	res := []WorkItemResponse{}
	for _, w := range items {
		res = append(res, workItemResponse(w))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    json.RawMessage(e.Payload),
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	res := []EventResponse{}
	for _, e := range items {
		res = append(res, eventResponse(e))
	}
	return res
}

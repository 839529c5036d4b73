package domain

// Role is the single role an account holds.
type Role string

const (
	RoleResident  Role = "resident"
	RoleCollector Role = "collector"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleCollector, RoleAdmin:
		return true
	}
	return false
}

// Kind discriminates the two work-item flavors.
type Kind string

const (
	KindBooking Kind = "booking"
	KindReport  Kind = "report"
)

func (k Kind) Valid() bool {
	return k == KindBooking || k == KindReport
}

// Status is a work-item lifecycle state. Bookings terminate in completed,
// reports in cleared or rejected.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCleared    Status = "cleared"
	StatusRejected   Status = "rejected"
)

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCleared, StatusRejected:
		return true
	}
	return false
}

type Profile struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	IsApproved bool   `json:"is_approved"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Collector struct {
	ID                 string   `json:"id"`
	AccountID          string   `json:"account_id"`
	VehicleNumber      string   `json:"vehicle_number"`
	VehicleType        string   `json:"vehicle_type,omitempty"`
	IsAvailable        bool     `json:"is_available"`
	CurrentLat         *float64 `json:"current_lat,omitempty"`
	CurrentLng         *float64 `json:"current_lng,omitempty"`
	LastLocationUpdate *string  `json:"last_location_update,omitempty" format:"date-time"`
}

// WorkItem unifies bookings and reports under one lifecycle shape.
// RequestedAt doubles as reported_at for reports, CompletedAt as cleared_at.
type WorkItem struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind" enum:"booking,report"`
	OwnerID     string  `json:"owner_id"`
	Address     string  `json:"address"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Details     string  `json:"details,omitempty"`
	CollectorID *string `json:"collector_id,omitempty"`
	Status      Status  `json:"status" enum:"pending,assigned,in_progress,completed,cleared,rejected"`
	RequestedAt string  `json:"requested_at" format:"date-time"`
	AssignedAt  *string `json:"assigned_at,omitempty" format:"date-time"`
	StartedAt   *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

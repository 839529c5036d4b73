package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"cleanflow/internal/domain"
	"cleanflow/internal/engine/access"
	"cleanflow/internal/events"
	"cleanflow/internal/feed"
	"cleanflow/internal/repo"
)

// ValidationError reports malformed input; the operation is not attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Engine owns the work-item lifecycle: creation, assignment, status
// transitions, and the administrative account operations around them.
// Every mutation persists transactionally with its event row and is
// published to the change feed after commit.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Gate   access.Gate
	Events events.Writer
	Feed   feed.Publisher
	Now    func() time.Time
}

func New(conn *sql.DB, pub feed.Publisher) Engine {
	r := repo.Repo{DB: conn}
	return Engine{
		DB:     conn,
		Repo:   r,
		Gate:   access.Gate{Repo: r},
		Events: events.Writer{DB: conn},
		Feed:   pub,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) publish(collection, id string, snapshot any) {
	if e.Feed == nil {
		return
	}
	if err := e.Feed.Publish(collection, id, snapshot); err != nil {
		log.Printf("[engine] feed publish %s/%s failed: %v", collection, id, err)
	}
}

// SignupOptions are parameters for resident registration.
type SignupOptions struct {
	AccountID string
	FullName  string
	Email     string
	Phone     string
}

// SignupResident creates an unapproved resident profile with its role row.
// The identity provider owns credentials; this only records the account.
func (e Engine) SignupResident(ctx context.Context, opts SignupOptions) (domain.Profile, error) {
	if strings.TrimSpace(opts.FullName) == "" {
		return domain.Profile{}, ValidationError{Field: "full_name", Reason: "required"}
	}
	if strings.TrimSpace(opts.Email) == "" {
		return domain.Profile{}, ValidationError{Field: "email", Reason: "required"}
	}
	p := domain.Profile{
		ID:         opts.AccountID,
		FullName:   opts.FullName,
		Email:      opts.Email,
		Phone:      opts.Phone,
		IsApproved: false,
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Profile{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProfileTx(ctx, tx, p); err != nil {
		return domain.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	if err := e.Repo.InsertRoleTx(ctx, tx, p.ID, domain.RoleResident); err != nil {
		return domain.Profile{}, fmt.Errorf("insert role: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "resident.signup", "profile", p.ID, p.ID, events.EventPayload{"email": p.Email}); err != nil {
		return domain.Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// ApproveResident flips is_approved. Idempotent: approving an approved
// profile succeeds and changes nothing.
func (e Engine) ApproveResident(ctx context.Context, ident access.Identity, profileID string) (domain.Profile, error) {
	if ident.Role != domain.RoleAdmin {
		return domain.Profile{}, access.ForbiddenError{Role: ident.Role}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Profile{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.ApproveProfileTx(ctx, tx, profileID); err != nil {
		return domain.Profile{}, err
	}
	if err := e.Events.Append(ctx, tx, "resident.approved", "profile", profileID, ident.AccountID, nil); err != nil {
		return domain.Profile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Profile{}, err
	}
	p, err := e.Repo.GetProfile(ctx, profileID)
	if err != nil {
		return domain.Profile{}, err
	}
	e.publish(feed.CollectionProfiles, p.ID, p)
	return p, nil
}

// DeleteResident removes the profile and its dependent rows. Work items are
// kept; the core never deletes them. Their owner link is cleared so the
// profile row can go.
func (e Engine) DeleteResident(ctx context.Context, ident access.Identity, profileID string) error {
	if ident.Role != domain.RoleAdmin {
		return access.ForbiddenError{Role: ident.Role}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ReleaseWorkItemsByOwnerTx(ctx, tx, profileID); err != nil {
		return err
	}
	if err := e.Repo.DeleteProfileTx(ctx, tx, profileID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "resident.deleted", "profile", profileID, ident.AccountID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// CollectorCreateOptions describe a new field-agent account.
type CollectorCreateOptions struct {
	FullName      string
	Email         string
	Phone         string
	VehicleNumber string
	VehicleType   string
}

// CreateCollector provisions the account, its collector role, and the
// collector record in one transaction. Collector accounts are approved on
// creation; approval only gates residents.
func (e Engine) CreateCollector(ctx context.Context, ident access.Identity, opts CollectorCreateOptions) (domain.Collector, error) {
	if ident.Role != domain.RoleAdmin {
		return domain.Collector{}, access.ForbiddenError{Role: ident.Role}
	}
	if strings.TrimSpace(opts.VehicleNumber) == "" {
		return domain.Collector{}, ValidationError{Field: "vehicle_number", Reason: "required"}
	}
	if strings.TrimSpace(opts.Email) == "" {
		return domain.Collector{}, ValidationError{Field: "email", Reason: "required"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Profile{
		ID:         uuid.New().String(),
		FullName:   opts.FullName,
		Email:      opts.Email,
		Phone:      opts.Phone,
		IsApproved: true,
		CreatedAt:  now,
	}
	c := domain.Collector{
		ID:            uuid.New().String(),
		AccountID:     p.ID,
		VehicleNumber: opts.VehicleNumber,
		VehicleType:   opts.VehicleType,
		IsAvailable:   true,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Collector{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProfileTx(ctx, tx, p); err != nil {
		return domain.Collector{}, fmt.Errorf("insert profile: %w", err)
	}
	if err := e.Repo.InsertRoleTx(ctx, tx, p.ID, domain.RoleCollector); err != nil {
		return domain.Collector{}, fmt.Errorf("insert role: %w", err)
	}
	if err := e.Repo.InsertCollectorTx(ctx, tx, c); err != nil {
		return domain.Collector{}, fmt.Errorf("insert collector: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "collector.created", "collector", c.ID, ident.AccountID, events.EventPayload{"vehicle_number": c.VehicleNumber}); err != nil {
		return domain.Collector{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collector{}, err
	}
	e.publish(feed.CollectionCollectors, c.ID, c)
	return c, nil
}

// SetAvailability updates the advisory is_available flag on the caller's own
// collector record. It is not derived from workload.
func (e Engine) SetAvailability(ctx context.Context, ident access.Identity, available bool) (domain.Collector, error) {
	if ident.Role != domain.RoleCollector {
		return domain.Collector{}, access.ForbiddenError{Role: ident.Role}
	}
	c, err := e.Repo.GetCollectorByAccount(ctx, ident.AccountID)
	if err != nil {
		return domain.Collector{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Collector{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetCollectorAvailabilityTx(ctx, tx, c.ID, available); err != nil {
		return domain.Collector{}, err
	}
	if err := e.Events.Append(ctx, tx, "collector.availability", "collector", c.ID, ident.AccountID, events.EventPayload{"is_available": available}); err != nil {
		return domain.Collector{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Collector{}, err
	}
	c.IsAvailable = available
	e.publish(feed.CollectionCollectors, c.ID, c)
	return c, nil
}

// WorkItemCreateOptions are parameters for a new booking or report.
type WorkItemCreateOptions struct {
	Kind    domain.Kind
	Address string
	Lat     float64
	Lng     float64
	Details string
}

// CreateWorkItem records a pending booking or report owned by the resident.
func (e Engine) CreateWorkItem(ctx context.Context, ident access.Identity, opts WorkItemCreateOptions) (domain.WorkItem, error) {
	if ident.Role != domain.RoleResident {
		return domain.WorkItem{}, access.ForbiddenError{Role: ident.Role}
	}
	if !opts.Kind.Valid() {
		return domain.WorkItem{}, ValidationError{Field: "kind", Reason: "must be booking or report"}
	}
	if strings.TrimSpace(opts.Address) == "" {
		return domain.WorkItem{}, ValidationError{Field: "address", Reason: "required"}
	}
	if err := validateCoordinates(opts.Lat, opts.Lng); err != nil {
		return domain.WorkItem{}, err
	}
	if opts.Kind == domain.KindReport && strings.TrimSpace(opts.Details) == "" {
		return domain.WorkItem{}, ValidationError{Field: "details", Reason: "description required for reports"}
	}
	w := domain.WorkItem{
		ID:          uuid.New().String(),
		Kind:        opts.Kind,
		OwnerID:     ident.AccountID,
		Address:     opts.Address,
		Lat:         opts.Lat,
		Lng:         opts.Lng,
		Details:     opts.Details,
		Status:      domain.StatusPending,
		RequestedAt: e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkItem{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWorkItemTx(ctx, tx, w); err != nil {
		return domain.WorkItem{}, fmt.Errorf("insert work item: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "work_item.created", "work_item", w.ID, ident.AccountID, events.EventPayload{
		"kind":   w.Kind,
		"status": w.Status,
	}); err != nil {
		return domain.WorkItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkItem{}, err
	}
	e.publish(feed.CollectionWorkItems, w.ID, w)
	return w, nil
}

// Assign binds a pending work item to a collector. The write is a
// compare-and-set on status=pending: if another administrator got there
// first the caller sees ConflictError and nothing is written. Availability
// of the collector is informational and not a precondition.
func (e Engine) Assign(ctx context.Context, ident access.Identity, itemID, collectorID string) (domain.WorkItem, error) {
	if ident.Role != domain.RoleAdmin {
		return domain.WorkItem{}, access.ForbiddenError{Role: ident.Role}
	}
	item, err := e.Repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if _, err := e.Repo.GetCollector(ctx, collectorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.WorkItem{}, fmt.Errorf("collector %s: %w", collectorID, repo.ErrNotFound)
		}
		return domain.WorkItem{}, err
	}
	if item.Status != domain.StatusPending {
		return domain.WorkItem{}, ConflictError{ItemID: itemID}
	}
	assignedAt := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkItem{}, err
	}
	defer tx.Rollback()
	n, err := e.Repo.AssignWorkItemTx(ctx, tx, itemID, collectorID, assignedAt)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if n == 0 {
		return domain.WorkItem{}, ConflictError{ItemID: itemID}
	}
	if err := e.Events.Append(ctx, tx, "work_item.assigned", "work_item", itemID, ident.AccountID, events.EventPayload{
		"collector_id": collectorID,
	}); err != nil {
		return domain.WorkItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkItem{}, err
	}
	item.Status = domain.StatusAssigned
	item.CollectorID = &collectorID
	item.AssignedAt = &assignedAt
	e.publish(feed.CollectionWorkItems, item.ID, item)
	return item, nil
}

// Transition advances a work item along its lifecycle graph. The requested
// status must be an immediate successor for the item's kind and the actor
// must hold the role permitted for that edge. The lifecycle timestamp for
// the entered status is set exactly once, with the status change, in one
// transaction. On any rule violation nothing is mutated.
func (e Engine) Transition(ctx context.Context, ident access.Identity, itemID string, to domain.Status) (domain.WorkItem, error) {
	item, err := e.Repo.GetWorkItem(ctx, itemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	actor := actorRef{AccountID: ident.AccountID, Role: ident.Role}
	if ident.Role == domain.RoleCollector {
		c, err := e.Repo.GetCollectorByAccount(ctx, ident.AccountID)
		if err != nil {
			return domain.WorkItem{}, err
		}
		actor.CollectorID = c.ID
	}
	if err := ensureTransition(item, to, actor); err != nil {
		return domain.WorkItem{}, err
	}
	ts := e.now().UTC().Format(time.RFC3339)
	col := timestampColumn(to)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkItem{}, err
	}
	defer tx.Rollback()
	n, err := e.Repo.UpdateWorkItemStatusTx(ctx, tx, itemID, item.Status, to, col, ts)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if n == 0 {
		// Status moved under us between read and write.
		return domain.WorkItem{}, ConflictError{ItemID: itemID}
	}
	if err := e.Events.Append(ctx, tx, "work_item."+string(to), "work_item", itemID, ident.AccountID, events.EventPayload{
		"from": item.Status,
		"to":   to,
	}); err != nil {
		return domain.WorkItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkItem{}, err
	}
	item.Status = to
	switch col {
	case "started_at":
		item.StartedAt = &ts
	case "completed_at":
		item.CompletedAt = &ts
	}
	e.publish(feed.CollectionWorkItems, item.ID, item)
	return item, nil
}

// Reject is the administrator's alternate terminal for reports.
func (e Engine) Reject(ctx context.Context, ident access.Identity, itemID string) (domain.WorkItem, error) {
	return e.Transition(ctx, ident, itemID, domain.StatusRejected)
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return ValidationError{Field: "lat", Reason: "must be a finite value in [-90, 90]"}
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) || lng < -180 || lng > 180 {
		return ValidationError{Field: "lng", Reason: "must be a finite value in [-180, 180]"}
	}
	return nil
}

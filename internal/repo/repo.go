package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cleanflow/internal/domain"
)

// Repo is typed read/write access to the four record collections. It enforces
// no business rules; lifecycle checks live in the engine.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- profiles ---

func (r Repo) InsertProfileTx(ctx context.Context, tx *sql.Tx, p domain.Profile) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO profiles(id,full_name,email,phone,is_approved,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.FullName, p.Email, nullable(p.Phone), p.IsApproved, p.CreatedAt)
	return err
}

func (r Repo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var p domain.Profile
	var phone sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,full_name,email,phone,is_approved,created_at FROM profiles WHERE id=?`, id).
		Scan(&p.ID, &p.FullName, &p.Email, &phone, &p.IsApproved, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if phone.Valid {
		p.Phone = phone.String
	}
	return p, err
}

func (r Repo) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	var p domain.Profile
	var phone sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,full_name,email,phone,is_approved,created_at FROM profiles WHERE email=?`, email).
		Scan(&p.ID, &p.FullName, &p.Email, &phone, &p.IsApproved, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if phone.Valid {
		p.Phone = phone.String
	}
	return p, err
}

// ListProfilesByRole returns profiles holding the given role, newest first.
func (r Repo) ListProfilesByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT p.id,p.full_name,p.email,COALESCE(p.phone,''),p.is_approved,p.created_at
FROM profiles p JOIN roles r ON r.account_id=p.id
WHERE r.role=? ORDER BY p.created_at DESC, p.id DESC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &p.IsApproved, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ApproveProfileTx flips is_approved to true. Approving an already approved
// profile affects zero semantic change and is not an error (monotonic flag).
func (r Repo) ApproveProfileTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET is_approved=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteProfileTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- roles ---

func (r Repo) InsertRoleTx(ctx context.Context, tx *sql.Tx, accountID string, role domain.Role) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO roles(account_id,role) VALUES (?,?)`, accountID, role)
	return err
}

func (r Repo) GetRole(ctx context.Context, accountID string) (domain.Role, error) {
	var role domain.Role
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM roles WHERE account_id=?`, accountID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return role, err
}

// --- collectors ---

func (r Repo) InsertCollectorTx(ctx context.Context, tx *sql.Tx, c domain.Collector) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO collectors(id,account_id,vehicle_number,vehicle_type,is_available) VALUES (?,?,?,?,?)`,
		c.ID, c.AccountID, c.VehicleNumber, nullable(c.VehicleType), c.IsAvailable)
	return err
}

func scanCollector(scan func(...any) error) (domain.Collector, error) {
	var c domain.Collector
	var vtype sql.NullString
	var lat, lng sql.NullFloat64
	var updated sql.NullString
	err := scan(&c.ID, &c.AccountID, &c.VehicleNumber, &vtype, &c.IsAvailable, &lat, &lng, &updated)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if vtype.Valid {
		c.VehicleType = vtype.String
	}
	if lat.Valid {
		c.CurrentLat = &lat.Float64
	}
	if lng.Valid {
		c.CurrentLng = &lng.Float64
	}
	if updated.Valid {
		c.LastLocationUpdate = &updated.String
	}
	return c, nil
}

const collectorCols = `id,account_id,vehicle_number,vehicle_type,is_available,current_lat,current_lng,last_location_update`

func (r Repo) GetCollector(ctx context.Context, id string) (domain.Collector, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+collectorCols+` FROM collectors WHERE id=?`, id)
	return scanCollector(row.Scan)
}

func (r Repo) GetCollectorByAccount(ctx context.Context, accountID string) (domain.Collector, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+collectorCols+` FROM collectors WHERE account_id=?`, accountID)
	return scanCollector(row.Scan)
}

type CollectorFilters struct {
	OnlyLocated   bool
	OnlyAvailable bool
}

func (r Repo) ListCollectors(ctx context.Context, f CollectorFilters) ([]domain.Collector, error) {
	var clauses []string
	if f.OnlyLocated {
		clauses = append(clauses, "current_lat IS NOT NULL AND current_lng IS NOT NULL")
	}
	if f.OnlyAvailable {
		clauses = append(clauses, "is_available=1")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+collectorCols+` FROM collectors `+where+` ORDER BY vehicle_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Collector
	for rows.Next() {
		c, err := scanCollector(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateCollectorPosition overwrites the stored position unconditionally
// (last-write-wins; no ordering check against the sample timestamp).
func (r Repo) UpdateCollectorPosition(ctx context.Context, id string, lat, lng float64, observedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE collectors SET current_lat=?, current_lng=?, last_location_update=? WHERE id=?`,
		lat, lng, observedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetCollectorAvailabilityTx(ctx context.Context, tx *sql.Tx, id string, available bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE collectors SET is_available=? WHERE id=?`, available, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- work items ---

const workItemCols = `id,kind,owner_id,address,lat,lng,details,collector_id,status,requested_at,assigned_at,started_at,completed_at`

func scanWorkItem(scan func(...any) error) (domain.WorkItem, error) {
	var w domain.WorkItem
	var ownerID, details, collectorID, assignedAt, startedAt, completedAt sql.NullString
	err := scan(&w.ID, &w.Kind, &ownerID, &w.Address, &w.Lat, &w.Lng, &details, &collectorID, &w.Status,
		&w.RequestedAt, &assignedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if ownerID.Valid {
		w.OwnerID = ownerID.String
	}
	if details.Valid {
		w.Details = details.String
	}
	if collectorID.Valid {
		w.CollectorID = &collectorID.String
	}
	if assignedAt.Valid {
		w.AssignedAt = &assignedAt.String
	}
	if startedAt.Valid {
		w.StartedAt = &startedAt.String
	}
	if completedAt.Valid {
		w.CompletedAt = &completedAt.String
	}
	return w, nil
}

func (r Repo) InsertWorkItemTx(ctx context.Context, tx *sql.Tx, w domain.WorkItem) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO work_items(`+workItemCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Kind, w.OwnerID, w.Address, w.Lat, w.Lng, nullable(w.Details), nullableStringPtr(w.CollectorID),
		w.Status, w.RequestedAt, nullableStringPtr(w.AssignedAt), nullableStringPtr(w.StartedAt), nullableStringPtr(w.CompletedAt))
	return err
}

func (r Repo) GetWorkItem(ctx context.Context, id string) (domain.WorkItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workItemCols+` FROM work_items WHERE id=?`, id)
	return scanWorkItem(row.Scan)
}

func (r Repo) GetWorkItemTx(ctx context.Context, tx *sql.Tx, id string) (domain.WorkItem, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+workItemCols+` FROM work_items WHERE id=?`, id)
	return scanWorkItem(row.Scan)
}

type WorkItemFilters struct {
	Kind            domain.Kind
	OwnerID         string
	CollectorID     string
	Status          domain.Status
	ExcludeTerminal bool
}

func (r Repo) ListWorkItems(ctx context.Context, f WorkItemFilters) ([]domain.WorkItem, error) {
	var clauses []string
	var args []any
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, f.OwnerID)
	}
	if f.CollectorID != "" {
		clauses = append(clauses, "collector_id=?")
		args = append(args, f.CollectorID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ExcludeTerminal {
		clauses = append(clauses, "status NOT IN ('completed','cleared','rejected')")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workItemCols+` FROM work_items `+where+` ORDER BY requested_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

// ReleaseWorkItemsByOwnerTx clears ownership of every item the account
// holds. Items survive account deletion; only the owner link is dropped.
func (r Repo) ReleaseWorkItemsByOwnerTx(ctx context.Context, tx *sql.Tx, ownerID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE work_items SET owner_id=NULL WHERE owner_id=?`, ownerID)
	return err
}

// AssignWorkItemTx is the compare-and-set backing assignment: the write only
// lands if the row is still pending. Returns the number of rows updated so
// the engine can distinguish a lost race (0) from success (1).
func (r Repo) AssignWorkItemTx(ctx context.Context, tx *sql.Tx, itemID, collectorID, assignedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
UPDATE work_items SET collector_id=?, status=?, assigned_at=?
WHERE id=? AND status=?`,
		collectorID, domain.StatusAssigned, assignedAt, itemID, domain.StatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateWorkItemStatusTx advances status conditioned on the expected current
// status, setting the named timestamp column when one applies.
func (r Repo) UpdateWorkItemStatusTx(ctx context.Context, tx *sql.Tx, itemID string, from, to domain.Status, tsColumn, ts string) (int64, error) {
	query := `UPDATE work_items SET status=? WHERE id=? AND status=?`
	args := []any{to, itemID, from}
	if tsColumn != "" {
		switch tsColumn {
		case "started_at", "completed_at":
		default:
			return 0, fmt.Errorf("unknown timestamp column %q", tsColumn)
		}
		query = `UPDATE work_items SET status=?, ` + tsColumn + `=? WHERE id=? AND status=?`
		args = []any{to, ts, itemID, from}
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- events ---

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

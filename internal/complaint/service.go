// Package complaint implements the complaint lifecycle:
// Submitted → Assigned → In Progress → Resolved.
//
// Every mutating operation runs in one storage transaction whose conditional
// UPDATE is the linearization point, so two racing requests for the same
// transition can never both succeed.
package complaint

import (
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/events"
	"civicdesk/backend/internal/geo"
	"civicdesk/backend/internal/localization"
	"civicdesk/backend/internal/metrics"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/storage"
	"context"
	"strings"

	"go.uber.org/zap"
)

// Service handles the business logic for complaints.
type Service struct {
	store  storage.Storage
	fence  geo.Fence
	events events.Publisher
	mirror Mirror
	texts  *localization.Localizer
	log    *zap.Logger
}

// NewService creates a new complaint service. pub and log may be nil.
func NewService(store storage.Storage, fence geo.Fence, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  store,
		fence:  fence,
		events: pub,
		texts:  localization.Default(),
		log:    log,
	}
}

// SetMirror registers a sink that receives every notification after commit.
func (s *Service) SetMirror(m Mirror) { s.mirror = m }

// SubmitInput is a new complaint as filed by a citizen.
type SubmitInput struct {
	CitizenID   uint
	CitizenName string
	Title       string
	Description string
	Location    string
	Latitude    *float64
	Longitude   *float64
	Photo       *string
}

// Submit files a new complaint and notifies the admins.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Complaint, error) {
	in.CitizenName = strings.TrimSpace(in.CitizenName)
	in.Title = strings.TrimSpace(in.Title)

	if in.CitizenID == 0 || in.CitizenName == "" || in.Title == "" {
		return nil, apperr.Validation("missing_fields", "citizen and title are required")
	}
	if err := s.checkLocation(in.Latitude, in.Longitude); err != nil {
		return nil, err
	}
	if in.Photo != nil && *in.Photo == "" {
		in.Photo = nil
	}

	c := &models.Complaint{
		CitizenID:   in.CitizenID,
		CitizenName: in.CitizenName,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Photo:       in.Photo,
		Status:      models.StatusSubmitted,
	}

	var sent []*models.Notification
	err := s.store.Transaction(ctx, func(tx storage.Storage) error {
		if err := tx.CreateComplaint(ctx, c); err != nil {
			return err
		}
		e := s.emitter(tx)
		if err := e.emit(ctx, models.ToRole(models.RoleAdmin), "complaint_submitted", c.CitizenName, c.Title); err != nil {
			return err
		}
		sent = e.sent
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, sent, events.Event{
		Type:        events.ComplaintSubmitted,
		ComplaintID: c.ID,
		Status:      string(c.Status),
		Actor:       c.CitizenName,
	})
	return c, nil
}

func (s *Service) checkLocation(lat, lon *float64) error {
	if lat == nil && lon == nil {
		return nil
	}
	if lat == nil || lon == nil {
		return apperr.Validation("incomplete_coordinates", "latitude and longitude must be given together")
	}
	p := geo.Point{Lat: *lat, Lon: *lon}
	if !p.Valid() {
		return apperr.Validation("invalid_coordinates", "coordinates are out of range")
	}
	if !s.fence.Contains(p) {
		return apperr.Validation("outside_service_area", "location is outside the service area")
	}
	return nil
}

// AssignmentResult is the outcome of a successful Assign.
type AssignmentResult struct {
	Complaint     models.Complaint      `json:"complaint"`
	Assignment    models.Assignment     `json:"assignment"`
	Notifications []models.Notification `json:"notifications"`
}

// Assign hands a Submitted complaint to an active worker. All effects happen in
// one transaction; the conditional status update decides racing calls.
func (s *Service) Assign(ctx context.Context, complaintID uint, workerName string) (*AssignmentResult, error) {
	workerName = strings.TrimSpace(workerName)
	if workerName == "" {
		return nil, apperr.Validation("missing_fields", "worker name is required")
	}

	var res AssignmentResult
	var sent []*models.Notification
	err := s.store.Transaction(ctx, func(tx storage.Storage) error {
		c, err := tx.GetComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		if c.Status != models.StatusSubmitted {
			return apperr.InvalidState("not_submitted", "complaint is already assigned")
		}

		worker, err := tx.FindActiveWorkerByName(ctx, workerName)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.InvalidWorker("unknown_worker", "worker not found or inactive")
		}
		if err != nil {
			return err
		}

		ok, err := tx.MarkAssigned(ctx, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("not_submitted", "complaint is already assigned")
		}
		c.Status = models.StatusAssigned

		a := models.Assignment{ComplaintID: c.ID, WorkerID: worker.ID, WorkerName: worker.Name}
		if err := tx.CreateAssignment(ctx, &a); err != nil {
			return err
		}

		e := s.emitter(tx)
		if err := e.emit(ctx, models.ToUser(models.RoleWorker, worker.ID, worker.Name), "task_assigned", c.ID); err != nil {
			return err
		}
		if err := e.emit(ctx, models.ToUser(models.RoleCitizen, c.CitizenID, c.CitizenName), "worker_assigned", worker.Name); err != nil {
			return err
		}

		res.Complaint = *c
		res.Assignment = a
		sent = e.sent
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, n := range sent {
		res.Notifications = append(res.Notifications, *n)
	}
	s.afterCommit(ctx, sent, events.Event{
		Type:        events.ComplaintAssigned,
		ComplaintID: complaintID,
		Status:      string(models.StatusAssigned),
		Actor:       res.Assignment.WorkerName,
	})
	return &res, nil
}

// transitions is the legal (requested → required current) table.
var transitions = map[models.ComplaintStatus]models.ComplaintStatus{
	models.StatusInProgress: models.StatusAssigned,
	models.StatusResolved:   models.StatusInProgress,
}

// UpdateStatus moves a complaint one step forward on behalf of its current
// worker. Resolving requires a completion photo.
func (s *Service) UpdateStatus(ctx context.Context, complaintID uint, workerName string, newStatus models.ComplaintStatus, completionPhoto *string) error {
	from, legal := transitions[newStatus]
	if !legal {
		return apperr.InvalidTransition("invalid_transition", "status change not allowed")
	}
	if completionPhoto != nil && *completionPhoto == "" {
		completionPhoto = nil
	}
	if newStatus == models.StatusResolved && completionPhoto == nil {
		return apperr.Validation("completion_photo_required", "a completion photo is required to resolve")
	}

	var sent []*models.Notification
	err := s.store.Transaction(ctx, func(tx storage.Storage) error {
		ok, err := tx.AdvanceStatus(ctx, complaintID, workerName, from, newStatus, completionPhoto)
		if err != nil {
			return err
		}
		if !ok {
			return s.classifyRejected(ctx, tx, complaintID, workerName)
		}

		if newStatus != models.StatusResolved {
			return nil
		}
		c, err := tx.GetComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		e := s.emitter(tx)
		if err := e.emit(ctx, models.ToUser(models.RoleCitizen, c.CitizenID, c.CitizenName), "complaint_resolved_citizen", c.ID); err != nil {
			return err
		}
		if err := e.emit(ctx, models.ToRole(models.RoleAdmin), "complaint_resolved_admin", c.ID, workerName); err != nil {
			return err
		}
		sent = e.sent
		return nil
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, sent, events.Event{
		Type:        events.ComplaintStatus,
		ComplaintID: complaintID,
		Status:      string(newStatus),
		Actor:       workerName,
	})
	return nil
}

// classifyRejected explains why the conditional update matched no row.
func (s *Service) classifyRejected(ctx context.Context, tx storage.Storage, complaintID uint, workerName string) error {
	if _, err := tx.GetComplaint(ctx, complaintID); err != nil {
		return err
	}
	current, err := tx.CurrentAssignment(ctx, complaintID)
	if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return err
	}
	if current == nil || current.WorkerName != workerName {
		return apperr.InvalidTransition("worker_not_assigned", "complaint is not assigned to this worker")
	}
	return apperr.InvalidTransition("invalid_transition", "status change not allowed")
}

func (s *Service) afterCommit(ctx context.Context, sent []*models.Notification, ev events.Event) {
	metrics.ComplaintTransitions.WithLabelValues(ev.Status).Inc()

	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish lifecycle event",
			zap.String("type", string(ev.Type)),
			zap.Uint("complaint_id", ev.ComplaintID),
			zap.Error(err))
	}
	if s.mirror == nil {
		return
	}
	for _, n := range sent {
		s.mirror.Mirror(ctx, n)
	}
}

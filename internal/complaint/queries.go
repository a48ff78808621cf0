package complaint

import (
	"civicdesk/backend/internal/config"
	"civicdesk/backend/internal/models"
	"context"
)

// CitizenStats is the citizen dashboard summary.
type CitizenStats struct {
	models.StatusCounts
	ImpactPoints int64  `json:"impact_points"`
	Badge        string `json:"badge"`
}

// BadgeFor returns the badge earned by resolved complaints.
func BadgeFor(resolved int64) string {
	switch {
	case resolved >= config.CommunityHeroThreshold:
		return config.BadgeCommunityHero
	case resolved >= config.GuardianThreshold:
		return config.BadgeGuardian
	default:
		return config.BadgeObserver
	}
}

func (s *Service) ListAll(ctx context.Context) ([]models.Complaint, error) {
	return s.store.ListComplaints(ctx)
}

func (s *Service) ListByCitizen(ctx context.Context, citizenID uint) ([]models.Complaint, error) {
	return s.store.ListComplaintsByCitizen(ctx, citizenID)
}

// ListByWorker returns the complaints whose current assignment is workerName.
func (s *Service) ListByWorker(ctx context.Context, workerName string) ([]models.Complaint, error) {
	return s.store.ListComplaintsByWorker(ctx, workerName)
}

func (s *Service) WorkerActivity(ctx context.Context, workerName string) ([]models.WorkerActivity, error) {
	return s.store.WorkerActivity(ctx, workerName)
}

func (s *Service) MapPoints(ctx context.Context) ([]models.MapPoint, error) {
	return s.store.MapPoints(ctx)
}

func (s *Service) CitizenStats(ctx context.Context, citizenID uint) (*CitizenStats, error) {
	counts, err := s.store.CitizenStatusCounts(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	return &CitizenStats{
		StatusCounts: counts,
		ImpactPoints: counts.Resolved * config.ImpactPointsPerResolved,
		Badge:        BadgeFor(counts.Resolved),
	}, nil
}

// CitizenActivity returns the citizen's most recently updated complaints.
func (s *Service) CitizenActivity(ctx context.Context, citizenID uint) ([]models.CitizenActivity, error) {
	return s.store.CitizenActivity(ctx, citizenID, config.CitizenActivityLimit)
}

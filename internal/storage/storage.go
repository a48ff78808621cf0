package storage

import (
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/models"
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence contract used by the services. Every method takes the
// request context; errors are *apperr.Error values (NotFound, Conflict or Storage).
type Storage interface {
	// Transaction runs fn against a transactional view of the store. Any error
	// returned by fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindActiveWorkerByName(ctx context.Context, name string) (*models.User, error)
	ListActiveWorkers(ctx context.Context) ([]models.User, error)
	DeactivateWorker(ctx context.Context, id uint) error
	UpdateUserAddress(ctx context.Context, id uint, address string) error

	CreateComplaint(ctx context.Context, complaint *models.Complaint) error
	GetComplaint(ctx context.Context, id uint) (*models.Complaint, error)
	MarkAssigned(ctx context.Context, id uint) (bool, error)
	AdvanceStatus(ctx context.Context, id uint, workerName string, from, to models.ComplaintStatus, completionPhoto *string) (bool, error)
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	CurrentAssignment(ctx context.Context, complaintID uint) (*models.Assignment, error)
	CountAssignments(ctx context.Context, complaintID uint) (int64, error)

	ListComplaints(ctx context.Context) ([]models.Complaint, error)
	ListComplaintsByCitizen(ctx context.Context, citizenID uint) ([]models.Complaint, error)
	ListComplaintsByWorker(ctx context.Context, workerName string) ([]models.Complaint, error)
	WorkerActivity(ctx context.Context, workerName string) ([]models.WorkerActivity, error)
	MapPoints(ctx context.Context) ([]models.MapPoint, error)
	CitizenStatusCounts(ctx context.Context, citizenID uint) (models.StatusCounts, error)
	CitizenActivity(ctx context.Context, citizenID uint, limit int) ([]models.CitizenActivity, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, role models.Role, userID uint) ([]models.Notification, error)

	CreateAnnouncement(ctx context.Context, a *models.Announcement) error
	ListAnnouncements(ctx context.Context, role models.Role) ([]models.Announcement, error)

	SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ChatHistory(ctx context.Context, room string) ([]models.ChatMessage, error)
	ActiveRooms(ctx context.Context) ([]models.ActiveRoom, error)

	CreateOTP(ctx context.Context, rec *models.OTPRecord) error
	LatestOTP(ctx context.Context, email string) (*models.OTPRecord, error)
	IncrementOTPAttempts(ctx context.Context, id uint) error
	DeleteOTPs(ctx context.Context, email string) error
}

// Service implements Storage on gorm. Redis is optional and only used for chat fan-out.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate створює або оновлює таблиці для всіх моделей.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Complaint{},
		&models.Assignment{},
		&models.Notification{},
		&models.Announcement{},
		&models.ChatMessage{},
		&models.OTPRecord{},
	)
}

func (s *Service) db(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	err := s.db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Redis: s.Redis})
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.Storage("transaction", err)
	}
	return nil
}

// wrap converts a gorm error into the apperr taxonomy.
func wrap(entity, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(entity+"_not_found", entity+" not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Conflict(entity+"_exists", entity+" already exists")
	default:
		return apperr.Storage(op, err)
	}
}

// --- users ---

func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	return wrap("user", "create user", s.db(ctx).Create(user).Error)
}

func (s *Service) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db(ctx).First(&user, id).Error; err != nil {
		return nil, wrap("user", "get user", err)
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, wrap("user", "get user by email", err)
	}
	return &user, nil
}

// FindActiveWorkerByName returns the active worker with the given display name.
func (s *Service) FindActiveWorkerByName(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	err := s.db(ctx).
		Where("name = ? AND role = ? AND is_active = ?", name, models.RoleWorker, true).
		Order("id").
		First(&user).Error
	if err != nil {
		return nil, wrap("worker", "find worker", err)
	}
	return &user, nil
}

func (s *Service) ListActiveWorkers(ctx context.Context) ([]models.User, error) {
	var workers []models.User
	err := s.db(ctx).
		Where("role = ? AND is_active = ?", models.RoleWorker, true).
		Order("name").
		Find(&workers).Error
	if err != nil {
		return nil, wrap("worker", "list workers", err)
	}
	return workers, nil
}

// DeactivateWorker виконує м'яке видалення працівника.
func (s *Service) DeactivateWorker(ctx context.Context, id uint) error {
	res := s.db(ctx).Model(&models.User{}).
		Where("id = ? AND role = ? AND is_active = ?", id, models.RoleWorker, true).
		Update("is_active", false)
	if res.Error != nil {
		return wrap("worker", "deactivate worker", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("worker_not_found", "worker not found")
	}
	return nil
}

func (s *Service) UpdateUserAddress(ctx context.Context, id uint, address string) error {
	res := s.db(ctx).Model(&models.User{}).Where("id = ?", id).Update("address", address)
	if res.Error != nil {
		return wrap("user", "update address", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user_not_found", "user not found")
	}
	return nil
}

// --- complaints ---

func (s *Service) CreateComplaint(ctx context.Context, complaint *models.Complaint) error {
	return wrap("complaint", "create complaint", s.db(ctx).Create(complaint).Error)
}

func (s *Service) GetComplaint(ctx context.Context, id uint) (*models.Complaint, error) {
	var c models.Complaint
	if err := s.db(ctx).First(&c, id).Error; err != nil {
		return nil, wrap("complaint", "get complaint", err)
	}
	return &c, nil
}

// MarkAssigned moves a complaint from Submitted to Assigned. It reports false
// when the complaint is no longer Submitted.
func (s *Service) MarkAssigned(ctx context.Context, id uint) (bool, error) {
	res := s.db(ctx).Model(&models.Complaint{}).
		Where("id = ? AND status = ?", id, models.StatusSubmitted).
		Updates(map[string]any{
			"status":     models.StatusAssigned,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, wrap("complaint", "mark assigned", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// currentWorkerIs matches complaints whose latest assignment names the worker.
const currentWorkerIs = `EXISTS (
	SELECT 1 FROM assignments a
	WHERE a.complaint_id = complaints.id
	  AND a.worker_name = ?
	  AND a.id = (SELECT MAX(a2.id) FROM assignments a2 WHERE a2.complaint_id = complaints.id)
)`

// AdvanceStatus performs one conditional transition. It reports false when the
// complaint is absent, not in status from, or not currently assigned to
// workerName. A nil completionPhoto keeps the stored one.
func (s *Service) AdvanceStatus(ctx context.Context, id uint, workerName string, from, to models.ComplaintStatus, completionPhoto *string) (bool, error) {
	res := s.db(ctx).Model(&models.Complaint{}).
		Where("id = ? AND status = ?", id, from).
		Where(currentWorkerIs, workerName).
		Updates(map[string]any{
			"status":           to,
			"completion_photo": gorm.Expr("COALESCE(?, completion_photo)", completionPhoto),
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, wrap("complaint", "advance status", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Service) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	return wrap("assignment", "create assignment", s.db(ctx).Create(a).Error)
}

// CurrentAssignment returns the latest assignment of a complaint.
func (s *Service) CurrentAssignment(ctx context.Context, complaintID uint) (*models.Assignment, error) {
	var a models.Assignment
	err := s.db(ctx).Where("complaint_id = ?", complaintID).Order("id DESC").First(&a).Error
	if err != nil {
		return nil, wrap("assignment", "current assignment", err)
	}
	return &a, nil
}

func (s *Service) CountAssignments(ctx context.Context, complaintID uint) (int64, error) {
	var n int64
	err := s.db(ctx).Model(&models.Assignment{}).Where("complaint_id = ?", complaintID).Count(&n).Error
	return n, wrap("assignment", "count assignments", err)
}

func (s *Service) ListComplaints(ctx context.Context) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.db(ctx).Order("created_at DESC, id DESC").Find(&out).Error
	return out, wrap("complaint", "list complaints", err)
}

func (s *Service) ListComplaintsByCitizen(ctx context.Context, citizenID uint) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.db(ctx).
		Where("citizen_id = ?", citizenID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, wrap("complaint", "list citizen complaints", err)
}

// ListComplaintsByWorker returns complaints currently assigned to the worker.
func (s *Service) ListComplaintsByWorker(ctx context.Context, workerName string) ([]models.Complaint, error) {
	var out []models.Complaint
	err := s.db(ctx).
		Where(currentWorkerIs, workerName).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, wrap("complaint", "list worker complaints", err)
}

func (s *Service) WorkerActivity(ctx context.Context, workerName string) ([]models.WorkerActivity, error) {
	var out []models.WorkerActivity
	err := s.db(ctx).Model(&models.Complaint{}).
		Select("id, title, status, location, latitude, longitude, completion_photo").
		Where(currentWorkerIs, workerName).
		Order("status, id").
		Scan(&out).Error
	return out, wrap("complaint", "worker activity", err)
}

func (s *Service) MapPoints(ctx context.Context) ([]models.MapPoint, error) {
	var out []models.MapPoint
	err := s.db(ctx).Model(&models.Complaint{}).
		Select("id, status, latitude, longitude").
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Order("id").
		Scan(&out).Error
	return out, wrap("complaint", "map points", err)
}

func (s *Service) CitizenStatusCounts(ctx context.Context, citizenID uint) (models.StatusCounts, error) {
	var counts models.StatusCounts
	err := s.db(ctx).Model(&models.Complaint{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS resolved,
			COALESCE(SUM(CASE WHEN status <> ? THEN 1 ELSE 0 END), 0) AS pending`,
			models.StatusResolved, models.StatusResolved).
		Where("citizen_id = ?", citizenID).
		Scan(&counts).Error
	return counts, wrap("complaint", "citizen stats", err)
}

func (s *Service) CitizenActivity(ctx context.Context, citizenID uint, limit int) ([]models.CitizenActivity, error) {
	var out []models.CitizenActivity
	err := s.db(ctx).Model(&models.Complaint{}).
		Select("title, status, created_at, updated_at").
		Where("citizen_id = ?", citizenID).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, wrap("complaint", "citizen activity", err)
}

// --- notifications & announcements ---

func (s *Service) CreateNotification(ctx context.Context, n *models.Notification) error {
	return wrap("notification", "create notification", s.db(ctx).Create(n).Error)
}

// ListNotifications returns the role broadcasts plus the user's own notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, role models.Role, userID uint) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db(ctx).
		Where("user_role = ? AND (user_id IS NULL OR user_id = ?)", role, userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, wrap("notification", "list notifications", err)
}

func (s *Service) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.Type == "" {
		a.Type = models.AnnouncementGeneral
	}
	if len(a.Audience) == 0 {
		a.Audience = []string{string(models.RoleCitizen)}
	}
	return wrap("announcement", "create announcement", s.db(ctx).Create(a).Error)
}

// ListAnnouncements returns announcements addressed to role, newest first.
// The audience filter runs in Go so the query stays portable across drivers.
func (s *Service) ListAnnouncements(ctx context.Context, role models.Role) ([]models.Announcement, error) {
	var all []models.Announcement
	if err := s.db(ctx).Order("created_at DESC, id DESC").Find(&all).Error; err != nil {
		return nil, wrap("announcement", "list announcements", err)
	}
	out := all[:0]
	for i := range all {
		if all[i].VisibleTo(role) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// --- chat ---

func (s *Service) SaveChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	return wrap("chat_message", "save chat message", s.db(ctx).Create(msg).Error)
}

// ChatHistory отримує історію повідомлень кімнати в порядку вставки.
func (s *Service) ChatHistory(ctx context.Context, room string) ([]models.ChatMessage, error) {
	history := make([]models.ChatMessage, 0)
	err := s.db(ctx).Where("room_name = ?", room).Order("id ASC").Find(&history).Error
	return history, wrap("chat_message", "chat history", err)
}

// ActiveRooms lists rooms with at least one message, most recently active first.
func (s *Service) ActiveRooms(ctx context.Context) ([]models.ActiveRoom, error) {
	type lastMessage struct {
		RoomName string
		LastID   uint
	}
	var latest []lastMessage
	err := s.db(ctx).Model(&models.ChatMessage{}).
		Select("room_name, MAX(id) AS last_id").
		Group("room_name").
		Order("last_id DESC").
		Scan(&latest).Error
	if err != nil {
		return nil, wrap("chat_message", "active rooms", err)
	}

	rooms := make([]models.ActiveRoom, 0, len(latest))
	if len(latest) == 0 {
		return rooms, nil
	}

	ids := make([]uint, len(latest))
	for i, l := range latest {
		ids[i] = l.LastID
	}
	var msgs []models.ChatMessage
	if err := s.db(ctx).Select("id, created_at").Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, wrap("chat_message", "active rooms", err)
	}
	createdAt := make(map[uint]time.Time, len(msgs))
	for _, m := range msgs {
		createdAt[m.ID] = m.CreatedAt
	}

	for _, l := range latest {
		rooms = append(rooms, models.ActiveRoom{RoomName: l.RoomName, LastActivity: createdAt[l.LastID]})
	}
	return rooms, nil
}

// --- OTP ---

func (s *Service) CreateOTP(ctx context.Context, rec *models.OTPRecord) error {
	return wrap("otp", "create otp", s.db(ctx).Create(rec).Error)
}

// LatestOTP returns the most recently issued code for email.
func (s *Service) LatestOTP(ctx context.Context, email string) (*models.OTPRecord, error) {
	var rec models.OTPRecord
	err := s.db(ctx).Where("email = ?", email).Order("id DESC").First(&rec).Error
	if err != nil {
		return nil, wrap("otp", "latest otp", err)
	}
	return &rec, nil
}

func (s *Service) IncrementOTPAttempts(ctx context.Context, id uint) error {
	err := s.db(ctx).Model(&models.OTPRecord{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
	return wrap("otp", "increment otp attempts", err)
}

func (s *Service) DeleteOTPs(ctx context.Context, email string) error {
	err := s.db(ctx).Where("email = ?", email).Delete(&models.OTPRecord{}).Error
	return wrap("otp", "delete otps", err)
}

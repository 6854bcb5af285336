package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greetforge/greetforge/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence layer for users, generations, and prompt
// templates. Writes are serialized through a single mutex so concurrent
// requests cannot interleave multi-step updates.
type Store struct {
	db *gorm.DB
	mu sync.Mutex
}

// New creates a Store backed by the given gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NormalizeCompany lowercases and trims a company identifier. All company
// matching in the store is case-insensitive through this normal form.
func NormalizeCompany(company string) string {
	return strings.ToLower(strings.TrimSpace(company))
}

// FindOrCreateUser returns the user identified by (email, company),
// creating it on first sight. The same identity pair always resolves to
// the same user row.
func (s *Store) FindOrCreateUser(ctx context.Context, name, email, company string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	company = NormalizeCompany(company)
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("email = ? AND company = ?", email, company).
		First(&user).Error
	if errFind == nil {
		return user, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.User{}, fmt.Errorf("store: find user: %w", errFind)
	}

	user = models.User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     email,
		Company:   company,
		CreatedAt: time.Now().UTC(),
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		return models.User{}, fmt.Errorf("store: create user: %w", errCreate)
	}
	return user, nil
}

// AppendGeneration persists one completed generation for a user.
func (s *Store) AppendGeneration(ctx context.Context, userID, company, mode, imageURL, prompt string, details models.UserDetails) (models.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, errMarshal := json.Marshal(details)
	if errMarshal != nil {
		return models.Generation{}, fmt.Errorf("store: marshal user details: %w", errMarshal)
	}

	generation := models.Generation{
		ID:          uuid.NewString(),
		UserID:      userID,
		Company:     NormalizeCompany(company),
		Mode:        mode,
		ImageURL:    imageURL,
		Prompt:      prompt,
		UserDetails: raw,
		CreatedAt:   time.Now().UTC(),
	}
	if errCreate := s.db.WithContext(ctx).Create(&generation).Error; errCreate != nil {
		return models.Generation{}, fmt.Errorf("store: create generation: %w", errCreate)
	}
	return generation, nil
}

// CountGenerations returns the number of persisted generations for a company.
func (s *Store) CountGenerations(ctx context.Context, company string) (int64, error) {
	var total int64
	errCount := s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Where("company = ?", NormalizeCompany(company)).
		Count(&total).Error
	if errCount != nil {
		return 0, fmt.Errorf("store: count generations: %w", errCount)
	}
	return total, nil
}

// CountAllGenerations returns the total number of persisted generations.
func (s *Store) CountAllGenerations(ctx context.Context) (int64, error) {
	var total int64
	if errCount := s.db.WithContext(ctx).Model(&models.Generation{}).Count(&total).Error; errCount != nil {
		return 0, fmt.Errorf("store: count generations: %w", errCount)
	}
	return total, nil
}

// GenerationByID returns the generation with the given id, or ErrNotFound.
func (s *Store) GenerationByID(ctx context.Context, id string) (models.Generation, error) {
	var generation models.Generation
	errFind := s.db.WithContext(ctx).Where("id = ?", id).First(&generation).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.Generation{}, ErrNotFound
	}
	if errFind != nil {
		return models.Generation{}, fmt.Errorf("store: find generation: %w", errFind)
	}
	return generation, nil
}

// GenerationByImageURL returns the generation whose artifact URL matches,
// or ErrNotFound. Share lookups resolve artifacts through this.
func (s *Store) GenerationByImageURL(ctx context.Context, imageURL string) (models.Generation, error) {
	var generation models.Generation
	errFind := s.db.WithContext(ctx).Where("image_url = ?", imageURL).First(&generation).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.Generation{}, ErrNotFound
	}
	if errFind != nil {
		return models.Generation{}, fmt.Errorf("store: find generation: %w", errFind)
	}
	return generation, nil
}

// RecentGenerations returns the newest generations, optionally scoped to a
// company. A limit of 0 returns all rows.
func (s *Store) RecentGenerations(ctx context.Context, company string, limit int) ([]models.Generation, error) {
	query := s.db.WithContext(ctx).Model(&models.Generation{}).Order("created_at DESC")
	if company != "" {
		query = query.Where("company = ?", NormalizeCompany(company))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var generations []models.Generation
	if errFind := query.Find(&generations).Error; errFind != nil {
		return nil, fmt.Errorf("store: list generations: %w", errFind)
	}
	return generations, nil
}

// Users returns users newest first, optionally scoped to a company.
// A limit of 0 returns all rows.
func (s *Store) Users(ctx context.Context, company string, limit int) ([]models.User, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).Order("created_at DESC")
	if company != "" {
		query = query.Where("company = ?", NormalizeCompany(company))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var users []models.User
	if errFind := query.Find(&users).Error; errFind != nil {
		return nil, fmt.Errorf("store: list users: %w", errFind)
	}
	return users, nil
}

// CountUsers returns the number of users, optionally scoped to a company.
func (s *Store) CountUsers(ctx context.Context, company string) (int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if company != "" {
		query = query.Where("company = ?", NormalizeCompany(company))
	}
	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return 0, fmt.Errorf("store: count users: %w", errCount)
	}
	return total, nil
}

// CompaniesWithActivity returns the distinct companies that have at least
// one persisted generation.
func (s *Store) CompaniesWithActivity(ctx context.Context) ([]string, error) {
	var companies []string
	errFind := s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Distinct("company").
		Order("company").
		Pluck("company", &companies).Error
	if errFind != nil {
		return nil, fmt.Errorf("store: list companies: %w", errFind)
	}
	return companies, nil
}

// ActiveTemplate returns the active custom prompt template for a client,
// or ErrNotFound when none is configured. Client matching is
// case-insensitive.
func (s *Store) ActiveTemplate(ctx context.Context, client string) (models.PromptTemplate, error) {
	var template models.PromptTemplate
	errFind := s.db.WithContext(ctx).
		Where("client_key = ? AND is_active = ?", NormalizeCompany(client), true).
		First(&template).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.PromptTemplate{}, ErrNotFound
	}
	if errFind != nil {
		return models.PromptTemplate{}, fmt.Errorf("store: find template: %w", errFind)
	}
	return template, nil
}

// Templates returns all prompt templates, newest update first.
func (s *Store) Templates(ctx context.Context) ([]models.PromptTemplate, error) {
	var templates []models.PromptTemplate
	errFind := s.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&templates).Error
	if errFind != nil {
		return nil, fmt.Errorf("store: list templates: %w", errFind)
	}
	return templates, nil
}

// UpsertTemplate stores a prompt template for a client, replacing any
// existing one for the same client key. Last write wins.
func (s *Store) UpsertTemplate(ctx context.Context, clientName, body string, isActive bool, createdBy string) (models.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	template := models.PromptTemplate{
		ClientKey:  NormalizeCompany(clientName),
		ClientName: strings.TrimSpace(clientName),
		Template:   body,
		IsActive:   isActive,
		CreatedBy:  createdBy,
	}
	errUpsert := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"client_name", "template", "is_active", "created_by", "updated_at"}),
		}).
		Create(&template).Error
	if errUpsert != nil {
		return models.PromptTemplate{}, fmt.Errorf("store: upsert template: %w", errUpsert)
	}

	var saved models.PromptTemplate
	if errFind := s.db.WithContext(ctx).Where("client_key = ?", template.ClientKey).First(&saved).Error; errFind != nil {
		return models.PromptTemplate{}, fmt.Errorf("store: reload template: %w", errFind)
	}
	return saved, nil
}

// DeleteTemplate removes the prompt template for a client. Returns
// ErrNotFound when no template exists for that client.
func (s *Store) DeleteTemplate(ctx context.Context, clientName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.WithContext(ctx).
		Where("client_key = ?", NormalizeCompany(clientName)).
		Delete(&models.PromptTemplate{})
	if result.Error != nil {
		return fmt.Errorf("store: delete template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

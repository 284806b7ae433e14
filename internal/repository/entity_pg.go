package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mocklab/mockgate/internal/model"
)

// DB Model, JSON 列使用 gorm serializer
type entityRow struct {
	ID         string   `gorm:"primaryKey;size:64"`
	Name       string   `gorm:"uniqueIndex;size:255;not null"`
	BasePath   string   `gorm:"uniqueIndex;size:255;not null"`
	APIKey     string   `gorm:"column:api_key;size:128;not null"`
	OwnerID    string   `gorm:"index;size:128"`
	IsPublic   bool     `gorm:"not null;default:false"`
	SharedWith []string `gorm:"serializer:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (entityRow) TableName() string { return "mock_entities" }

type endpointRow struct {
	ID                      string            `gorm:"primaryKey;size:64"`
	EntityID                string            `gorm:"index;size:64;not null"`
	Name                    string            `gorm:"size:255"`
	Method                  string            `gorm:"size:16;not null"`
	Path                    string            `gorm:"size:1024;not null"`
	Position                int               `gorm:"not null"`
	IsActive                bool              `gorm:"not null"`
	Scenarios               []model.Scenario  `gorm:"serializer:json"`
	SelectionMode           string            `gorm:"size:16"`
	ActiveScenarioIndex     int               `gorm:"not null;default:0"`
	ScenarioWeights         []float64         `gorm:"serializer:json"`
	SchemaValidationEnabled bool              `gorm:"not null;default:false"`
	RequestSchema           string            `gorm:"type:text"`
	CallbackEnabled         bool              `gorm:"not null;default:false"`
	CallbackURL             string            `gorm:"column:callback_url;size:2048"`
	CallbackURLField        string            `gorm:"column:callback_url_field;size:255"`
	CallbackMethod          string            `gorm:"size:16"`
	CallbackPayload         string            `gorm:"type:text"`
	CallbackDelayMs         int               `gorm:"not null;default:0"`
	CallbackHeaders         map[string]string `gorm:"serializer:json"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (endpointRow) TableName() string { return "mock_endpoints" }

type PostgresEntityRepo struct {
	db *gorm.DB
}

func NewPostgresEntityRepo(db *gorm.DB) *PostgresEntityRepo {
	return &PostgresEntityRepo{db: db}
}

func entityToRow(e *model.Entity) *entityRow {
	return &entityRow{
		ID:         e.ID,
		Name:       e.Name,
		BasePath:   e.BasePath,
		APIKey:     e.APIKey,
		OwnerID:    e.OwnerID,
		IsPublic:   e.IsPublic,
		SharedWith: e.SharedWith,
		CreatedAt:  e.CreatedAt,
	}
}

func (r *entityRow) toDomain() *model.Entity {
	return &model.Entity{
		ID:         r.ID,
		Name:       r.Name,
		BasePath:   r.BasePath,
		APIKey:     r.APIKey,
		OwnerID:    r.OwnerID,
		IsPublic:   r.IsPublic,
		SharedWith: r.SharedWith,
		CreatedAt:  r.CreatedAt,
	}
}

func endpointToRow(ep *model.Endpoint) *endpointRow {
	return &endpointRow{
		ID:                      ep.ID,
		EntityID:                ep.EntityID,
		Name:                    ep.Name,
		Method:                  ep.Method,
		Path:                    ep.Path,
		Position:                ep.Position,
		IsActive:                ep.IsActive,
		Scenarios:               ep.Scenarios,
		SelectionMode:           ep.SelectionMode,
		ActiveScenarioIndex:     ep.ActiveScenarioIndex,
		ScenarioWeights:         ep.ScenarioWeights,
		SchemaValidationEnabled: ep.SchemaValidationEnabled,
		RequestSchema:           ep.RequestSchema,
		CallbackEnabled:         ep.CallbackEnabled,
		CallbackURL:             ep.CallbackURL,
		CallbackURLField:        ep.CallbackURLField,
		CallbackMethod:          ep.CallbackMethod,
		CallbackPayload:         ep.CallbackPayload,
		CallbackDelayMs:         ep.CallbackDelayMs,
		CallbackHeaders:         ep.CallbackHeaders,
		CreatedAt:               ep.CreatedAt,
		UpdatedAt:               ep.UpdatedAt,
	}
}

func (r *endpointRow) toDomain() model.Endpoint {
	return model.Endpoint{
		ID:                      r.ID,
		EntityID:                r.EntityID,
		Name:                    r.Name,
		Method:                  r.Method,
		Path:                    r.Path,
		Position:                r.Position,
		IsActive:                r.IsActive,
		Scenarios:               r.Scenarios,
		SelectionMode:           r.SelectionMode,
		ActiveScenarioIndex:     r.ActiveScenarioIndex,
		ScenarioWeights:         r.ScenarioWeights,
		SchemaValidationEnabled: r.SchemaValidationEnabled,
		RequestSchema:           r.RequestSchema,
		CallbackEnabled:         r.CallbackEnabled,
		CallbackURL:             r.CallbackURL,
		CallbackURLField:        r.CallbackURLField,
		CallbackMethod:          r.CallbackMethod,
		CallbackPayload:         r.CallbackPayload,
		CallbackDelayMs:         r.CallbackDelayMs,
		CallbackHeaders:         r.CallbackHeaders,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func (r *PostgresEntityRepo) ListEntities(ctx context.Context) ([]*model.Entity, error) {
	var rows []entityRow
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Entity, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *PostgresEntityRepo) CreateEntity(ctx context.Context, e *model.Entity) error {
	return r.db.WithContext(ctx).Create(entityToRow(e)).Error
}

func (r *PostgresEntityRepo) UpdateEntity(ctx context.Context, e *model.Entity) error {
	row := entityToRow(e)
	row.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&entityRow{ID: e.ID}).
		Select("api_key", "owner_id", "is_public", "shared_with", "updated_at").
		Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntity removes the entity, its endpoints and its traffic in one
// transaction.
func (r *PostgresEntityRepo) DeleteEntity(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("entity_id = ?", id).Delete(&trafficRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("entity_id = ?", id).Delete(&endpointRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entityRow{}).Error
	})
}

func (r *PostgresEntityRepo) ListEndpoints(ctx context.Context, entityID string) ([]model.Endpoint, error) {
	var rows []endpointRow
	err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.Endpoint, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *PostgresEntityRepo) CreateEndpoint(ctx context.Context, ep *model.Endpoint) error {
	return r.db.WithContext(ctx).Create(endpointToRow(ep)).Error
}

func (r *PostgresEntityRepo) UpdateEndpoint(ctx context.Context, ep *model.Endpoint) error {
	res := r.db.WithContext(ctx).Model(&endpointRow{ID: ep.ID}).
		Select("*").Omit("id", "entity_id", "created_at").
		Updates(endpointToRow(ep))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresEntityRepo) DeleteEndpoint(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&endpointRow{}).Error
}

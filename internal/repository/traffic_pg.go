package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mocklab/mockgate/internal/model"
)

type trafficRow struct {
	ID              string            `gorm:"primaryKey;size:64"`
	EntityID        string            `gorm:"index:idx_traffic_entity_ts,priority:1;size:64;not null"`
	EndpointID      string            `gorm:"index;size:64"`
	Timestamp       time.Time         `gorm:"index:idx_traffic_entity_ts,priority:2,sort:desc;not null"`
	Method          string            `gorm:"size:16"`
	Path            string            `gorm:"size:2048"`
	QueryParams     map[string]string `gorm:"serializer:json"`
	RequestHeaders  map[string]string `gorm:"serializer:json"`
	RequestBody     string            `gorm:"type:text"`
	ResponseCode    int               `gorm:"not null"`
	ResponseHeaders map[string]string `gorm:"serializer:json"`
	ResponseBody    string            `gorm:"type:text"`
	DurationMs      int64             `gorm:"not null;default:0"`
	ScenarioName    string            `gorm:"size:255"`
	Outcome         string            `gorm:"size:32;index"`
}

func (trafficRow) TableName() string { return "mock_traffic_logs" }

func trafficToRow(l *model.TrafficLog) *trafficRow {
	return &trafficRow{
		ID:              l.ID,
		EntityID:        l.EntityID,
		EndpointID:      l.EndpointID,
		Timestamp:       l.Timestamp,
		Method:          l.Method,
		Path:            l.Path,
		QueryParams:     l.QueryParams,
		RequestHeaders:  l.RequestHeaders,
		RequestBody:     l.RequestBody,
		ResponseCode:    l.ResponseCode,
		ResponseHeaders: l.ResponseHeaders,
		ResponseBody:    l.ResponseBody,
		DurationMs:      l.DurationMs,
		ScenarioName:    l.ScenarioName,
		Outcome:         l.Outcome,
	}
}

func (r *trafficRow) toDomain() *model.TrafficLog {
	return &model.TrafficLog{
		ID:              r.ID,
		EntityID:        r.EntityID,
		EndpointID:      r.EndpointID,
		Timestamp:       r.Timestamp,
		Method:          r.Method,
		Path:            r.Path,
		QueryParams:     r.QueryParams,
		RequestHeaders:  r.RequestHeaders,
		RequestBody:     r.RequestBody,
		ResponseCode:    r.ResponseCode,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		DurationMs:      r.DurationMs,
		ScenarioName:    r.ScenarioName,
		Outcome:         r.Outcome,
	}
}

// PostgresTrafficRepo keeps at most maxPerEntity rows per entity.
type PostgresTrafficRepo struct {
	db           *gorm.DB
	maxPerEntity int
}

func NewPostgresTrafficRepo(db *gorm.DB, maxPerEntity int) *PostgresTrafficRepo {
	return &PostgresTrafficRepo{db: db, maxPerEntity: maxPerEntity}
}

func (r *PostgresTrafficRepo) Insert(ctx context.Context, entry *model.TrafficLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trafficToRow(entry)).Error; err != nil {
			return err
		}
		if r.maxPerEntity <= 0 {
			return nil
		}
		// 超出上限的旧记录直接裁剪
		return tx.Exec(`
			DELETE FROM mock_traffic_logs
			WHERE entity_id = ? AND id NOT IN (
				SELECT id FROM mock_traffic_logs
				WHERE entity_id = ?
				ORDER BY timestamp DESC
				LIMIT ?
			)`, entry.EntityID, entry.EntityID, r.maxPerEntity).Error
	})
}

// List returns entries newest first.
func (r *PostgresTrafficRepo) List(ctx context.Context, filter model.TrafficFilter) ([]*model.TrafficLog, error) {
	q := r.db.WithContext(ctx).Where("entity_id = ?", filter.EntityID)
	if filter.EndpointID != "" {
		q = q.Where("endpoint_id = ?", filter.EndpointID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []trafficRow
	if err := q.Order("timestamp DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*model.TrafficLog, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *PostgresTrafficRepo) DeleteByEntity(ctx context.Context, entityID string) error {
	return r.db.WithContext(ctx).Where("entity_id = ?", entityID).Delete(&trafficRow{}).Error
}
